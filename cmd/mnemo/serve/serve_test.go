package servecmder_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	servecmder "github.com/papercomputeco/mnemo/cmd/mnemo/serve"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/engine"
	testutils "github.com/papercomputeco/mnemo/pkg/utils/test"
	"github.com/papercomputeco/mnemo/pkg/vector/inmemory"
)

var _ = Describe("Serve Command", func() {
	var opts engine.Options

	BeforeEach(func() {
		cfg := config.NewDefaultConfig()
		cfg.Embedding.Dimensions = 8
		cfg.Storage.Driver = engine.StorageMemory
		cfg.VectorStore.Provider = "inmemory"

		backend := testutils.NewMockBackend()
		backend.Embedder = testutils.NewMockEmbedderDim(8)

		opts = engine.Options{
			Config:    cfg,
			ConfigDir: GinkgoT().TempDir(),
			Backend:   backend,
			Index:     inmemory.NewIndex(),
		}
	})

	execute := func(ctx context.Context, args ...string) error {
		cmd := servecmder.NewServeCmdWithOptions(opts)
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.PersistentFlags().Bool("debug", false, "")
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		return cmd.ExecuteContext(ctx)
	}

	It("registers its flags", func() {
		cmd := servecmder.NewServeCmd()
		Expect(cmd.Flags().Lookup("listen")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("no-mcp")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("cleanup-interval")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("log-file")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("vector-store-provider")).NotTo(BeNil())
	})

	It("serves until its context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- execute(ctx, "--listen", "127.0.0.1:0", "--cleanup-interval", "10ms")
		}()

		Consistently(done, 300*time.Millisecond).ShouldNot(Receive())
		cancel()
		Eventually(done, 5*time.Second).Should(Receive(BeNil()))
	})

	It("writes JSON records to each log file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "serve.log")
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- execute(ctx, "--listen", "127.0.0.1:0", "--cleanup-interval", "0", "--log-file", path)
		}()

		Consistently(done, 200*time.Millisecond).ShouldNot(Receive())
		cancel()
		Eventually(done, 5*time.Second).Should(Receive(BeNil()))

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		Expect(lines).NotTo(BeEmpty())

		var msgs []string
		for _, line := range lines {
			var rec map[string]any
			Expect(json.Unmarshal([]byte(line), &rec)).To(Succeed())
			msg, _ := rec["msg"].(string)
			msgs = append(msgs, msg)
		}
		Expect(msgs).To(ContainElement("shutting down"))
	})

	It("fails when a log file cannot be opened", func() {
		missing := filepath.Join(GinkgoT().TempDir(), "no-such-dir", "serve.log")
		err := execute(context.Background(), "--listen", "127.0.0.1:0", "--log-file", missing)
		Expect(err).To(MatchError(ContainSubstring("opening log file")))
	})

	It("fails on an unusable listen address", func() {
		err := execute(context.Background(), "--listen", "not-an-address", "--cleanup-interval", "0")
		Expect(err).To(HaveOccurred())
	})
})
