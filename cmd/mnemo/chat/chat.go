// Package chatcmder provides the chat command: an interactive conversation
// with the configured LLM backend, grounded in mnemo's memory.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/mnemo/cmd/mnemo/shared"
	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/engine"
)

var (
	userPrompt      = cliui.UserStyle.Render("you> ")
	assistantPrompt = cliui.AssistantStyle.Render("assistant> ")
)

const chatLongDesc string = `Start an interactive chat session backed by mnemo's memory.

Every message is embedded and remembered. Before answering, mnemo assembles
the most recent turns and the most similar past memories into the prompt,
so earlier conversations inform new ones.

Commands available inside the session:
  /new [topic]   Start a new conversation session
  /summary       Show the most recent turns
  /topic         Suggest a conversation topic from the personality
  /quit          Leave the session

Arguments given on the command line are sent as a single message and the
command exits after the reply.

Examples:
  mnemo chat
  mnemo chat --provider anthropic
  mnemo chat "what did we decide about the schema?"`

const chatShortDesc string = "Chat with memory"

type chatCommander struct {
	base engine.Options

	sync  bool
	plain bool
	topic string
}

func NewChatCmd() *cobra.Command {
	return newChatCmd(engine.Options{})
}

func newChatCmd(base engine.Options) *cobra.Command {
	cmder := &chatCommander{base: base}

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cmder.base
			opts.DisableWorkers = opts.DisableWorkers || cmder.sync
			eng, err := shared.NewEngine(cmd.Context(), cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			if cmder.topic != "" {
				eng.Chat.StartConversation(cmd.Context(), cmder.topic)
			}

			out := cmd.OutOrStdout()
			if len(args) > 0 {
				return cmder.turn(cmd.Context(), out, eng, strings.Join(args, " "))
			}
			return cmder.repl(cmd.Context(), out, cmd.InOrStdin(), eng)
		},
	}

	shared.AddFlags(cmd, shared.EngineFlags...)
	cmd.Flags().BoolVar(&cmder.sync, "sync", false, "Store replies before returning instead of in the background")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Print replies without markdown rendering")
	cmd.Flags().StringVar(&cmder.topic, "topic", "", "Start a new session about this topic")

	return cmd
}

func (c *chatCommander) repl(ctx context.Context, out io.Writer, in io.Reader, eng *engine.Engine) error {
	fmt.Fprintf(out, "%s\n\n", cliui.DimStyle.Render("Type /quit to leave, /new to start a fresh session."))

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, userPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := c.command(ctx, out, eng, line)
			if err != nil {
				fmt.Fprintf(out, "%s %v\n\n", cliui.FailMark, err)
			}
			if quit {
				return nil
			}
			continue
		}

		if err := c.turn(ctx, out, eng, line); err != nil {
			fmt.Fprintf(out, "%s %v\n\n", cliui.FailMark, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *chatCommander) command(ctx context.Context, out io.Writer, eng *engine.Engine, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true, nil

	case "/new":
		id := eng.Chat.StartConversation(ctx, arg)
		fmt.Fprintf(out, "%s New session %s\n\n", cliui.SuccessMark, cliui.ValueStyle.Render(id))

	case "/summary":
		summary, err := eng.Chat.ConversationSummary(ctx)
		if err != nil {
			return false, err
		}
		if summary == "" {
			summary = cliui.DimStyle.Render("No conversation yet.")
		}
		fmt.Fprintf(out, "%s\n\n", summary)

	case "/topic":
		topic, err := eng.NextTopic(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "%s %s\n\n", cliui.KeyStyle.Render("Topic:"), topic)

	default:
		return false, fmt.Errorf("unknown command %q", name)
	}
	return false, nil
}

func (c *chatCommander) turn(ctx context.Context, out io.Writer, eng *engine.Engine, message string) error {
	reply, err := eng.Chat.Send(ctx, message)
	if err != nil {
		return err
	}

	response := reply.Response
	if !c.plain && isTerminal(out) {
		if rendered, err := cliui.RenderMarkdown(response); err == nil {
			response = strings.TrimRight(rendered, "\n")
		}
	}

	fmt.Fprintf(out, "%s%s\n\n", assistantPrompt, response)
	if !reply.Queued {
		fmt.Fprintf(out, "%s\n\n", cliui.DimStyle.Render("(reply was not remembered: memory queue full)"))
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
