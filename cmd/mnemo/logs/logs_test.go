package logscmder_test

import (
	"bytes"
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	logscmder "github.com/papercomputeco/mnemo/cmd/mnemo/logs"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/engine"
	"github.com/papercomputeco/mnemo/pkg/storage"
	storageinmem "github.com/papercomputeco/mnemo/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/mnemo/pkg/utils/test"
	"github.com/papercomputeco/mnemo/pkg/vector/inmemory"
)

var _ = Describe("Logs Command", func() {
	var (
		ctx  context.Context
		log  *storageinmem.Driver
		opts engine.Options
		out  *bytes.Buffer
	)

	BeforeEach(func() {
		ctx = context.Background()

		cfg := config.NewDefaultConfig()
		cfg.Embedding.Dimensions = 8
		cfg.VectorStore.Provider = "inmemory"

		backend := testutils.NewMockBackend()
		backend.Embedder = testutils.NewMockEmbedderDim(8)

		log = storageinmem.NewDriver()
		now := time.Now()
		for i, content := range []string{"we picked postgres", "the schema has three tables", "lunch was good"} {
			_, err := log.Append(ctx, &storage.Conversation{
				Timestamp: now.Add(time.Duration(i) * time.Second),
				Actor:     "user",
				Content:   content,
				Tag:       "chat",
			})
			Expect(err).NotTo(HaveOccurred())
		}
		_, err := log.SaveInsight(ctx, &storage.DocumentInsight{
			Timestamp:    now,
			DocumentPath: "/docs/looms.txt",
			InsightText:  "Punched cards encoded patterns",
			Relevance:    0.9,
			InsightType:  "key_point",
		})
		Expect(err).NotTo(HaveOccurred())

		opts = engine.Options{
			Config:    cfg,
			ConfigDir: GinkgoT().TempDir(),
			Backend:   backend,
			Index:     inmemory.NewIndex(),
			Log:       log,
		}
		out = &bytes.Buffer{}
	})

	run := func(args ...string) error {
		cmd := logscmder.NewLogsCmdWithOptions(opts)
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.PersistentFlags().Bool("debug", false, "")
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		return cmd.ExecuteContext(ctx)
	}

	It("shows recent entries", func() {
		Expect(run()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("lunch was good"))
		Expect(out.String()).To(ContainSubstring("we picked postgres"))
	})

	It("limits the entries shown", func() {
		Expect(run("--limit", "1")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("lunch was good"))
		Expect(out.String()).NotTo(ContainSubstring("we picked postgres"))
	})

	It("filters by content", func() {
		Expect(run("--query", "schema")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("three tables"))
		Expect(out.String()).NotTo(ContainSubstring("lunch"))
	})

	It("shows a document's insights", func() {
		Expect(run("--insights", "/docs/looms.txt")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Punched cards encoded patterns"))
		Expect(out.String()).To(ContainSubstring("0.90"))
	})

	It("searches insights", func() {
		Expect(run("--insights-query", "cards")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Punched cards"))

		out.Reset()
		Expect(run("--insights-query", "weather")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("No insights recorded."))
	})

	It("rejects a non-positive limit", func() {
		Expect(run("--limit", "0")).To(MatchError(ContainSubstring("--limit")))
	})
})
