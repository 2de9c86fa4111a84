package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/eventstream"
	"github.com/papercomputeco/mnemo/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	var p *nop.Publisher

	BeforeEach(func() {
		p = nop.NewPublisher()
	})

	It("satisfies eventstream.Publisher", func() {
		var _ eventstream.Publisher = p
	})

	It("returns ErrNilEvent for nil events", func() {
		Expect(p.PublishMemory(context.Background(), nil)).To(MatchError(eventstream.ErrNilEvent))
		Expect(p.PublishDocument(context.Background(), nil)).To(MatchError(eventstream.ErrNilEvent))
	})

	It("succeeds for non-nil events", func() {
		Expect(p.PublishMemory(context.Background(), &eventstream.MemoryStoredEvent{})).To(Succeed())
		Expect(p.PublishDocument(context.Background(), &eventstream.DocumentProcessedEvent{})).To(Succeed())
	})

	It("closes successfully", func() {
		Expect(p.Close()).To(Succeed())
	})
})
