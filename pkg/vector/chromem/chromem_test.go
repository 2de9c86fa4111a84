package chromem_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/vector"
	"github.com/papercomputeco/mnemo/pkg/vector/chromem"
)

var _ = Describe("Index", func() {
	var (
		idx *chromem.Index
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		idx, err = chromem.NewIndex(chromem.Config{}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(idx.CreateCollection(ctx, "chunks", 3)).To(Succeed())
	})

	It("implements vector.Index", func() {
		var _ vector.Index = idx
	})

	It("returns no matches from an empty collection", func() {
		matches, err := idx.Search(ctx, "chunks", []float32{1, 0, 0}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(matches).To(BeEmpty())
	})

	It("caps the result count at the collection size", func() {
		_, err := idx.Upsert(ctx, "chunks", []vector.Point{
			{ID: "a", Vector: []float32{1, 0, 0}, Payload: map[string]any{"text": "a", "page": 1}},
			{ID: "b", Vector: []float32{0, 1, 0}, Payload: map[string]any{"text": "b", "page": 2}},
		})
		Expect(err).NotTo(HaveOccurred())

		matches, err := idx.Search(ctx, "chunks", []float32{1, 0.1, 0}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(matches).To(HaveLen(2))
		Expect(matches[0].ID).To(Equal("a"))
		Expect(matches[0].Payload).To(HaveKeyWithValue("text", "a"))
		page, ok := vector.PayloadInt(matches[0].Payload, "page")
		Expect(ok).To(BeTrue())
		Expect(page).To(Equal(int64(1)))
	})

	It("treats a zero query as matching nothing", func() {
		_, err := idx.Upsert(ctx, "chunks", []vector.Point{{ID: "a", Vector: []float32{1, 0, 0}}})
		Expect(err).NotTo(HaveOccurred())
		matches, err := idx.Search(ctx, "chunks", []float32{0, 0, 0}, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(matches).To(BeEmpty())
	})

	It("rejects zero and mis-sized vectors on upsert", func() {
		_, err := idx.Upsert(ctx, "chunks", []vector.Point{{Vector: []float32{0, 0, 0}}})
		Expect(err).To(MatchError(vector.ErrIndex))

		_, err = idx.Upsert(ctx, "chunks", []vector.Point{{Vector: []float32{1}}})
		var dimErr *vector.DimensionError
		Expect(errors.As(err, &dimErr)).To(BeTrue())
	})

	It("deletes by id", func() {
		_, err := idx.Upsert(ctx, "chunks", []vector.Point{
			{ID: "a", Vector: []float32{1, 0, 0}},
			{ID: "b", Vector: []float32{0, 1, 0}},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(idx.Delete(ctx, "chunks", []string{"a"})).To(Succeed())

		matches, err := idx.Search(ctx, "chunks", []float32{1, 0, 0}, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(matches).To(HaveLen(1))
		Expect(matches[0].ID).To(Equal("b"))
	})
})
