package engine_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/engine"
	"github.com/papercomputeco/mnemo/pkg/logger"
	storageinmem "github.com/papercomputeco/mnemo/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/mnemo/pkg/utils/test"
	"github.com/papercomputeco/mnemo/pkg/vector"
	"github.com/papercomputeco/mnemo/pkg/vector/inmemory"
)

const dim = 8

var _ = Describe("Engine", func() {
	var (
		ctx     context.Context
		dir     string
		cfg     *config.Config
		backend *testutils.MockBackend
		index   *inmemory.Index
		opts    engine.Options
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir = GinkgoT().TempDir()
		cfg = config.NewDefaultConfig()
		cfg.Embedding.Dimensions = dim
		cfg.Storage.Driver = engine.StorageMemory
		cfg.VectorStore.Provider = "inmemory"

		backend = testutils.NewMockBackend()
		backend.Embedder = testutils.NewMockEmbedderDim(dim)
		backend.Default = "Hi!"
		index = inmemory.NewIndex()

		opts = engine.Options{
			Config:    cfg,
			ConfigDir: dir,
			Backend:   backend,
			Index:     index,
		}
	})

	It("wires every component and creates the collections", func() {
		e, err := engine.New(ctx, opts)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(e.Close)

		Expect(e.Memory).NotTo(BeNil())
		Expect(e.Sessions).NotTo(BeNil())
		Expect(e.Documents).NotTo(BeNil())
		Expect(e.Semantic).NotTo(BeNil())
		Expect(e.Pool).NotTo(BeNil())
		Expect(e.Chat).NotTo(BeNil())
		Expect(e.Topics).NotTo(BeNil())
		Expect(e.Log).To(BeAssignableToTypeOf(&storageinmem.Driver{}))
		Expect(e.Source.Service).To(Equal(engine.ServiceName))

		for _, name := range []string{vector.CollectionMemory, vector.CollectionChunks, vector.CollectionInsights, vector.CollectionSemantic} {
			_, err := index.Search(ctx, name, make([]float32, dim), 1)
			Expect(err).NotTo(HaveOccurred(), name)
		}
	})

	It("runs a chat turn end to end and drains the pool on close", func() {
		e, err := engine.New(ctx, opts)
		Expect(err).NotTo(HaveOccurred())

		reply, err := e.Chat.Send(ctx, "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(reply.Response).To(Equal("Hi!"))
		Expect(reply.Queued).To(BeTrue())

		Expect(e.Close()).To(Succeed())
		Expect(index.Count(vector.CollectionMemory)).To(Equal(2))
	})

	It("stores assistant turns synchronously without workers", func() {
		opts.DisableWorkers = true
		e, err := engine.New(ctx, opts)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(e.Close)
		Expect(e.Pool).To(BeNil())

		_, err = e.Chat.Send(ctx, "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(index.Count(vector.CollectionMemory)).To(Equal(2))
	})

	It("restores the current session from redis", func() {
		mr := miniredis.RunT(GinkgoT())
		cfg.Session.Store = engine.SessionStoreRedis
		cfg.Session.RedisAddr = mr.Addr()

		first, err := engine.New(ctx, opts)
		Expect(err).NotTo(HaveOccurred())
		id := first.Chat.StartConversation(ctx, "gardening")
		Expect(first.Close()).To(Succeed())

		second, err := engine.New(ctx, opts)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(second.Close)
		Expect(second.Sessions.CurrentID()).To(Equal(id))
	})

	It("warns that chromem cannot serve recency scans", func() {
		var buf bytes.Buffer
		cfg.VectorStore.Provider = "chromem"
		opts.Index = nil
		opts.Logger = logger.New(logger.WithWriter(&buf))

		e, err := engine.New(ctx, opts)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(e.Close)

		Expect(buf.String()).To(ContainSubstring("level=WARN"))
		Expect(buf.String()).To(ContainSubstring("chromem cannot answer zero-vector queries"))
	})

	It("does not warn for indexes that rank zero vectors", func() {
		var buf bytes.Buffer
		opts.Logger = logger.New(logger.WithWriter(&buf))

		e, err := engine.New(ctx, opts)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(e.Close)

		Expect(buf.String()).NotTo(ContainSubstring("zero-vector"))
	})

	It("rejects unknown drivers", func() {
		cfg.Storage.Driver = "mongo"
		_, err := engine.New(ctx, opts)
		Expect(err).To(MatchError(ContainSubstring("unsupported storage driver: mongo")))
	})

	It("rejects a kafka publisher without brokers", func() {
		cfg.Events.Publisher = engine.PublisherKafka
		_, err := engine.New(ctx, opts)
		Expect(err).To(MatchError(ContainSubstring("at least one broker")))
	})

	It("opens a sqlite log in the config directory by default", func() {
		cfg.Storage.Driver = engine.StorageSQLite
		e, err := engine.New(ctx, opts)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(e.Close)
		Expect(filepath.Join(dir, "mnemo.db")).To(BeAnExistingFile())
	})

	It("applies memory retention", func() {
		e, err := engine.New(ctx, opts)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(e.Close)

		n, err := e.Cleanup(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())
	})

	Describe("personality", func() {
		var path string

		BeforeEach(func() {
			path = filepath.Join(dir, "persona.yaml")
			Expect(os.WriteFile(path, []byte("name: Ada\nstyle: curious\n"), 0o600)).To(Succeed())
			cfg.Personality.Path = path
		})

		It("loads the profile and generates topics", func() {
			backend.Default = "Topic: The history of looms"
			e, err := engine.New(ctx, opts)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(e.Close)

			Expect(e.Personality().Name).To(Equal("Ada"))
			topic, err := e.NextTopic(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(topic).To(Equal("The history of looms"))
		})

		It("swaps the system prompt when the file changes", func() {
			e, err := engine.New(ctx, opts)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(e.Close)

			watchCtx, cancel := context.WithCancel(ctx)
			DeferCleanup(cancel)
			go func() {
				defer GinkgoRecover()
				_ = e.WatchPersonality(watchCtx)
			}()

			Eventually(func() string {
				_ = os.WriteFile(path, []byte("name: Grace\n"), 0o600)
				return e.Personality().Name
			}, 5*time.Second, 100*time.Millisecond).Should(Equal("Grace"))
			Expect(backend.CurrentSystemPrompt()).To(ContainSubstring("Grace"))
		})

		It("fails on an invalid profile", func() {
			Expect(os.WriteFile(path, []byte("style: nameless\n"), 0o600)).To(Succeed())
			_, err := engine.New(ctx, opts)
			Expect(err).To(HaveOccurred())
		})
	})
})
