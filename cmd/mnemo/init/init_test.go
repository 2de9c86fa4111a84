package initcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/mnemo/cmd/mnemo/init"
	"github.com/papercomputeco/mnemo/pkg/config"
)

var _ = Describe("Init Command", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		tmpDir = GinkgoT().TempDir()
		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
	})

	run := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	It("creates the .mnemo directory", func() {
		Expect(run()).To(Succeed())
		info, err := os.Stat(filepath.Join(tmpDir, ".mnemo"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
		Expect(out.String()).To(ContainSubstring("Initialized"))
	})

	It("is idempotent", func() {
		Expect(run()).To(Succeed())
		out.Reset()
		Expect(run()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Already initialized"))
	})

	It("writes a preset config", func() {
		Expect(run("--preset", "ollama")).To(Succeed())

		cfger, err := config.NewConfiger(filepath.Join(tmpDir, ".mnemo"))
		Expect(err).NotTo(HaveOccurred())
		cfg, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.LLM.Provider).To(Equal("ollama"))
		Expect(cfg.Embedding.Dimensions).To(Equal(uint(768)))
	})

	It("refuses to overwrite without --force", func() {
		Expect(run("--preset", "openai")).To(Succeed())
		Expect(run("--preset", "gemini")).To(MatchError(ContainSubstring("--force")))
		Expect(run("--preset", "gemini", "--force")).To(Succeed())
	})

	It("rejects unknown presets", func() {
		Expect(run("--preset", "nope")).To(MatchError(ContainSubstring("unknown preset")))
	})
})
