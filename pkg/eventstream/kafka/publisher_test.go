package kafka_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/mnemo/pkg/eventstream"
	"github.com/papercomputeco/mnemo/pkg/eventstream/kafka"
)

type recordingWriter struct {
	mu     sync.Mutex
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("expected a deadline")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		writer *recordingWriter
		p      *kafka.Publisher
		ctx    context.Context
		source eventstream.EventSource
	)

	BeforeEach(func() {
		writer = &recordingWriter{}
		p = kafka.NewPublisherWithWriter(writer, time.Second)
		ctx = context.Background()
		source = eventstream.EventSource{Service: "mnemo"}
	})

	It("requires brokers", func() {
		_, err := kafka.NewPublisher(kafka.Config{})
		Expect(err).To(MatchError(ContainSubstring("broker")))
	})

	It("keys memory events by session", func() {
		Expect(p.PublishMemory(ctx, eventstream.NewMemoryStoredEvent(source, "m1", "sess-9", "user", "hi"))).To(Succeed())
		Expect(writer.msgs).To(HaveLen(1))
		Expect(string(writer.msgs[0].Key)).To(Equal("sess-9"))
		Expect(writer.msgs[0].Headers[0].Value).To(Equal([]byte(eventstream.EventTypeMemoryStored)))

		var decoded eventstream.MemoryStoredEvent
		Expect(json.Unmarshal(writer.msgs[0].Value, &decoded)).To(Succeed())
		Expect(decoded.Text).To(Equal("hi"))
	})

	It("keys document events by path", func() {
		Expect(p.PublishDocument(ctx, eventstream.NewDocumentProcessedEvent(source, "a.pdf", 2, 1, time.Second))).To(Succeed())
		Expect(string(writer.msgs[0].Key)).To(Equal("a.pdf"))
	})

	It("rejects nil events", func() {
		Expect(p.PublishMemory(ctx, nil)).To(MatchError(eventstream.ErrNilEvent))
		Expect(p.PublishDocument(ctx, nil)).To(MatchError(eventstream.ErrNilEvent))
	})

	It("wraps write failures", func() {
		writer.err = errors.New("broker down")
		err := p.PublishMemory(ctx, eventstream.NewMemoryStoredEvent(source, "m", "s", "user", "x"))
		Expect(err).To(MatchError(ContainSubstring("broker down")))
	})

	It("closes the writer", func() {
		Expect(p.Close()).To(Succeed())
		Expect(writer.closed).To(BeTrue())
	})
})
