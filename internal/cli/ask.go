package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/construct/internal/oracle"
)

// AskOptions holds flags for the ask command.
type AskOptions struct {
	*RootOptions
	Label string
}

// NewAskCommand creates the ask command.
func NewAskCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AskOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Send a prompt from stdin to the agent",
		Long: `Read a prompt from stdin, send it to the configured agent and print the reply.

The exchange is recorded as a report like every other agent call.

Examples:
  echo "Summarize README.md" | construct ask
  construct ask --agent codex --label review < prompt.md`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Label, "label", "stdin_prompt", "report label")

	return cmd
}

func runAsk(opts *AskOptions, cmd *cobra.Command) error {
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read prompt", err)
	}
	prompt := string(data)
	if strings.TrimSpace(prompt) == "" {
		return NewExitError(ExitFailure, "no prompt provided on stdin")
	}

	e, err := loadEnv(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	o, err := e.oracle()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd, e.logger)
	defer cancel()

	reply, err := o.Ask(ctx, oracle.Request{
		Prompt:  prompt,
		Label:   opts.Label,
		Timeout: e.cfg.OracleTimeout(),
	})
	if err != nil {
		return WrapExitError(ExitFailure, "agent failed", err)
	}

	if opts.Format == "json" {
		return e.output.Success(map[string]string{
			"text":   reply.Text,
			"report": reply.ReportPath,
		})
	}
	fmt.Fprint(cmd.OutOrStdout(), reply.Text)
	return nil
}
