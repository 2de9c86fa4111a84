package worker_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/memory/worker"
	"github.com/papercomputeco/mnemo/pkg/session"
	storageinmem "github.com/papercomputeco/mnemo/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/mnemo/pkg/utils/test"
	"github.com/papercomputeco/mnemo/pkg/vector"
	"github.com/papercomputeco/mnemo/pkg/vector/inmemory"
)

const dim = 8

var _ = Describe("Worker Pool", func() {
	var (
		ctx       context.Context
		index     *inmemory.Index
		store     *memory.Store
		sessions  *session.Manager
		embedder  *testutils.MockEmbedder
		log       *storageinmem.Driver
		publisher *testutils.MockPublisher
		tagger    *testutils.MockBackend
		cfg       *worker.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		index = inmemory.NewIndex()
		sessions = session.NewManager(session.Config{})

		var err error
		store, err = memory.NewStore(memory.Config{Index: index, Sessions: sessions, Dimensions: dim})
		Expect(err).NotTo(HaveOccurred())
		Expect(store.EnsureCollection(ctx)).To(Succeed())

		embedder = testutils.NewMockEmbedderDim(dim)
		log = storageinmem.NewDriver()
		publisher = &testutils.MockPublisher{}
		tagger = testutils.NewMockBackend()
		tagger.Default = "deploy,ops|0.6"

		cfg = &worker.Config{
			Store:      store,
			Embedder:   embedder,
			Tagger:     tagger,
			Log:        log,
			Publisher:  publisher,
			NumWorkers: 2,
		}
	})

	newPool := func() *worker.Pool {
		wp, err := worker.NewPool(cfg)
		Expect(err).NotTo(HaveOccurred())
		return wp
	}

	It("requires a store", func() {
		_, err := worker.NewPool(&worker.Config{})
		Expect(err).To(HaveOccurred())
	})

	It("embeds, stores, logs and publishes a turn", func() {
		s := sessions.StartNew(ctx, "ops")
		wp := newPool()
		Expect(wp.Enqueue(worker.Job{Text: "the deploy finished", Role: "assistant", LogTag: "chat"})).To(BeTrue())
		wp.Close()

		Expect(embedder.Calls()).To(Equal(1))
		Expect(index.Count(vector.CollectionMemory)).To(Equal(1))

		recs, err := store.SearchBySession(ctx, s.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(recs).To(HaveLen(1))
		Expect(recs[0].Importance).To(Equal(memory.DefaultImportance))
		Expect(recs[0].TopicTags).To(BeEmpty())

		logged, err := log.Recent(ctx, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(logged).To(HaveLen(1))
		Expect(logged[0].Actor).To(Equal("assistant"))
		Expect(logged[0].Tag).To(Equal("chat"))

		events := publisher.MemoryEvents()
		Expect(events).To(HaveLen(1))
		Expect(events[0].SessionID).To(Equal(s.ID))
		Expect(events[0].MemoryID).To(Equal(recs[0].ID))
	})

	It("uses a supplied embedding without embedding again", func() {
		wp := newPool()
		wp.Enqueue(worker.Job{Text: "hi", Role: "user", Embedding: testutils.HashVector("hi", dim)})
		wp.Close()

		Expect(embedder.Calls()).To(BeZero())
		Expect(index.Count(vector.CollectionMemory)).To(Equal(1))
	})

	It("stores the turn at the time it happened", func() {
		at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
		wp := newPool()
		wp.Enqueue(worker.Job{Text: "earlier answer", Role: "assistant", Timestamp: at})
		wp.Close()

		recs, err := store.GetRecent(ctx, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(recs).To(HaveLen(1))
		Expect(recs[0].Timestamp.Equal(at)).To(BeTrue())

		logged, _ := log.Recent(ctx, 1)
		Expect(logged[0].Timestamp.Equal(at)).To(BeTrue())
	})

	It("tags analyzed turns and logs the first tag", func() {
		wp := newPool()
		wp.Enqueue(worker.Job{Text: "rollout", Role: "assistant", Analyze: true, LogTag: "chat"})
		wp.Close()

		recs, err := store.TopicContext(ctx, "deploy", 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(recs).To(HaveLen(1))
		Expect(recs[0].Importance).To(Equal(0.6))

		logged, _ := log.Recent(ctx, 1)
		Expect(logged[0].Tag).To(Equal("deploy"))
		Expect(publisher.MemoryEvents()[0].TopicTags).To(Equal([]string{"deploy", "ops"}))
	})

	It("stores untagged when tagging fails", func() {
		tagger.FailOnPrompt = "Analyze"
		wp := newPool()
		wp.Enqueue(worker.Job{Text: "rollout", Role: "assistant", Analyze: true})
		wp.Close()

		recs, _ := store.GetRecent(ctx, 5)
		Expect(recs).To(HaveLen(1))
		Expect(recs[0].TopicTags).To(BeEmpty())
	})

	It("drops a turn whose embedding fails", func() {
		embedder.FailOn = "broken"
		wp := newPool()
		wp.Enqueue(worker.Job{Text: "broken", Role: "user"})
		wp.Enqueue(worker.Job{Text: "fine", Role: "user"})
		wp.Close()

		recs, _ := store.GetRecent(ctx, 5)
		Expect(recs).To(HaveLen(1))
		Expect(recs[0].Text).To(Equal("fine"))
		Expect(publisher.MemoryEvents()).To(HaveLen(1))
	})

	It("keeps the stored record when publishing fails", func() {
		publisher.Err = errors.New("stream down")
		wp := newPool()
		wp.Enqueue(worker.Job{Text: "hi", Role: "user"})
		wp.Close()

		Expect(index.Count(vector.CollectionMemory)).To(Equal(1))
	})

	It("drops jobs once closed", func() {
		wp := newPool()
		wp.Close()
		Expect(wp.Enqueue(worker.Job{Text: "late", Role: "user"})).To(BeFalse())
		wp.Close()
	})
})
