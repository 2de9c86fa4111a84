package document_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/document"
)

var _ = Describe("mapBounded", func() {
	It("keeps results at their item's index", func() {
		items := []int{5, 1, 4, 2, 3}
		results, errs := document.MapBounded(context.Background(), items, 3, func(_ context.Context, n int) (int, error) {
			time.Sleep(time.Duration(n) * time.Millisecond)
			return n * 10, nil
		})
		Expect(results).To(Equal([]int{50, 10, 40, 20, 30}))
		Expect(errs).To(HaveEach(BeNil()))
	})

	It("never exceeds the limit", func() {
		var inFlight, peak atomic.Int32
		items := make([]int, 50)
		document.MapBounded(context.Background(), items, 4, func(_ context.Context, _ int) (struct{}, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inFlight.Add(-1)
			return struct{}{}, nil
		})
		Expect(peak.Load()).To(BeNumerically("<=", 4))
		Expect(peak.Load()).To(BeNumerically(">", 1))
	})

	It("isolates failures to their item", func() {
		boom := errors.New("boom")
		results, errs := document.MapBounded(context.Background(), []string{"a", "fail", "c"}, 2, func(_ context.Context, s string) (string, error) {
			if s == "fail" {
				return "", boom
			}
			return s + "!", nil
		})
		Expect(results[0]).To(Equal("a!"))
		Expect(results[2]).To(Equal("c!"))
		Expect(errs[1]).To(MatchError(boom))
		Expect(errs[0]).To(BeNil())
	})

	It("reports a cancelled context for items not yet started", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, errs := document.MapBounded(ctx, []int{1, 2}, 1, func(context.Context, int) (int, error) {
			return 0, nil
		})
		Expect(errs).To(HaveEach(MatchError(context.Canceled)))
	})
})
