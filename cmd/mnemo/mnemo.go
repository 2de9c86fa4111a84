// Package mnemocmder provides the root mnemo command.
package mnemocmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/mnemo/cmd/mnemo/auth"
	chatcmder "github.com/papercomputeco/mnemo/cmd/mnemo/chat"
	configcmder "github.com/papercomputeco/mnemo/cmd/mnemo/config"
	ingestcmder "github.com/papercomputeco/mnemo/cmd/mnemo/ingest"
	initcmder "github.com/papercomputeco/mnemo/cmd/mnemo/init"
	logscmder "github.com/papercomputeco/mnemo/cmd/mnemo/logs"
	searchcmder "github.com/papercomputeco/mnemo/cmd/mnemo/search"
	servecmder "github.com/papercomputeco/mnemo/cmd/mnemo/serve"
	topiccmder "github.com/papercomputeco/mnemo/cmd/mnemo/topic"
	versioncmder "github.com/papercomputeco/mnemo/cmd/version"
)

const mnemoLongDesc string = `mnemo is a long-term memory engine for LLM conversations.

Conversation turns and documents are embedded into a vector store. Before
each reply mnemo assembles recent turns and the most relevant memories into
the prompt, so the model remembers across sessions.

Get started:
  mnemo init --preset openai   Create a local .mnemo/ with a config
  mnemo auth openai            Store an API key
  mnemo chat                   Talk with memory
  mnemo ingest notes.txt       Add a document
  mnemo serve                  Run the HTTP and MCP API`

const mnemoShortDesc string = "mnemo - memory for LLM conversations"

func NewMnemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "mnemo",
		Short:        mnemoShortDesc,
		Long:         mnemoLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .mnemo/ config directory")

	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(logscmder.NewLogsCmd())
	cmd.AddCommand(topiccmder.NewTopicCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
