package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/mnemo/cmd/mnemo/config"
	"github.com/papercomputeco/mnemo/pkg/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		subcommands := []string{}
		for _, sub := range cmd.Commands() {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir string
		out    *bytes.Buffer
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
	})

	run := func(args ...string) error {
		cmd := configcmder.NewConfigCmd()
		cmd.PersistentFlags().String("config-dir", "", "Override path to .mnemo/ config directory")
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append(args, "--config-dir", tmpDir))
		return cmd.Execute()
	}

	Describe("set subcommand", func() {
		It("writes config.toml", func() {
			Expect(run("set", "llm.provider", "anthropic")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("llm.provider"))

			_, err := os.Stat(filepath.Join(tmpDir, "config.toml"))
			Expect(err).NotTo(HaveOccurred())

			cfger, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			cfg, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.LLM.Provider).To(Equal("anthropic"))
		})

		It("rejects unknown keys", func() {
			Expect(run("set", "invalid_key", "value")).To(MatchError(ContainSubstring("unknown config key")))
		})

		It("rejects values of the wrong type", func() {
			Expect(run("set", "embedding.dimensions", "many")).To(HaveOccurred())
			Expect(run("set", "session.window", "soon")).To(HaveOccurred())
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "llm.provider")).To(HaveOccurred())
		})
	})

	Describe("get subcommand", func() {
		It("reads a value that was set", func() {
			Expect(run("set", "embedding.dimensions", "768")).To(Succeed())
			out.Reset()

			Expect(run("get", "embedding.dimensions")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("768"))
		})

		It("reports defaults when no file exists", func() {
			Expect(run("get", "llm.provider")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("openai"))
		})

		It("marks empty values as not set", func() {
			Expect(run("get", "llm.model")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("<not set>"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "nope")).To(HaveOccurred())
		})
	})

	Describe("list subcommand", func() {
		It("prints every key", func() {
			Expect(run("set", "vector_store.provider", "qdrant")).To(Succeed())
			out.Reset()

			Expect(run("list")).To(Succeed())
			for _, key := range config.ValidConfigKeys() {
				Expect(out.String()).To(ContainSubstring(key))
			}
			Expect(out.String()).To(ContainSubstring(`"qdrant"`))
		})

		It("accepts no arguments", func() {
			Expect(run("list", "extra")).To(HaveOccurred())
		})
	})
})

var _ = Describe("command wiring", func() {
	It("completes keys for set", func() {
		cmd := configcmder.NewConfigCmd()
		var set *cobra.Command
		for _, sub := range cmd.Commands() {
			if sub.Name() == "set" {
				set = sub
			}
		}
		Expect(set).NotTo(BeNil())
		keys, _ := set.ValidArgsFunction(set, nil, "")
		Expect(keys).To(ContainElement("llm.provider"))
	})
})
