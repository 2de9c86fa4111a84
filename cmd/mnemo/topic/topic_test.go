package topiccmder_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	topiccmder "github.com/papercomputeco/mnemo/cmd/mnemo/topic"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/engine"
	testutils "github.com/papercomputeco/mnemo/pkg/utils/test"
	"github.com/papercomputeco/mnemo/pkg/vector/inmemory"
)

var _ = Describe("Topic Command", func() {
	var (
		cfg  *config.Config
		dir  string
		opts engine.Options
		out  *bytes.Buffer
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		cfg = config.NewDefaultConfig()
		cfg.Embedding.Dimensions = 8
		cfg.Storage.Driver = engine.StorageMemory
		cfg.VectorStore.Provider = "inmemory"

		backend := testutils.NewMockBackend()
		backend.Embedder = testutils.NewMockEmbedderDim(8)
		backend.Default = "Topic: Tidal clocks"

		opts = engine.Options{
			Config:    cfg,
			ConfigDir: dir,
			Backend:   backend,
			Index:     inmemory.NewIndex(),
		}
		out = &bytes.Buffer{}
	})

	run := func(args ...string) error {
		cmd := topiccmder.NewTopicCmdWithOptions(opts)
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.PersistentFlags().Bool("debug", false, "")
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		return cmd.ExecuteContext(context.Background())
	}

	It("suggests a topic for the personality", func() {
		path := filepath.Join(dir, "ada.yaml")
		Expect(os.WriteFile(path, []byte("name: Ada\n"), 0o600)).To(Succeed())
		cfg.Personality.Path = path

		Expect(run()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Ada"))
		Expect(out.String()).To(ContainSubstring("Tidal clocks"))
	})

	It("fails without a personality", func() {
		Expect(run()).To(MatchError(ContainSubstring("no personality configured")))
	})

	It("rejects a non-positive count", func() {
		Expect(run("--count", "0")).To(MatchError(ContainSubstring("--count")))
	})
})
