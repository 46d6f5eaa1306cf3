package oracle

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"

	"github.com/roach88/construct/internal/harness"
	"github.com/roach88/construct/internal/report"
)

// Supported agents.
const (
	AgentClaude = "claude"
	AgentCodex  = "codex"
)

// DefaultClaudeModel is passed to claude when no model is configured.
const DefaultClaudeModel = "sonnet"

// AgentArgv returns the default command line for agent.
func AgentArgv(agent, model string) ([]string, error) {
	switch agent {
	case AgentClaude:
		if model == "" {
			model = DefaultClaudeModel
		}
		return []string{"claude", "-", "--output-format=json", "--dangerously-skip-permissions", "--model", model}, nil
	case AgentCodex:
		argv := []string{"codex", "exec", "-", "--json", "--skip-git-repo-check", "--dangerously-bypass-approvals-and-sandbox"}
		if model != "" {
			argv = append(argv, "--model", model)
		}
		return argv, nil
	default:
		return nil, fmt.Errorf("unsupported agent %q (supported: %s, %s)", agent, AgentClaude, AgentCodex)
	}
}

// CLI drives an agent binary. The prompt goes to the agent's stdin; its
// stdout is parsed according to the agent's output format.
type CLI struct {
	Agent string
	Model string

	// Argv overrides the command line per agent. Absent agents use
	// AgentArgv.
	Argv map[string][]string

	Dir     string         // working directory of the agent
	Grace   time.Duration  // terminate-to-kill window; zero uses the harness default
	Prompts *report.Writer // prompt copies
	Reports *report.Writer
	Logger  *slog.Logger
}

// Ask runs one agent call. It always writes the prompt copy and one
// report; a non-zero exit is returned as *ExitError after the report is
// written.
func (c *CLI) Ask(ctx context.Context, req Request) (Reply, error) {
	agent := req.Agent
	if agent == "" {
		agent = c.Agent
	}
	argv, ok := c.Argv[agent]
	if !ok {
		var err error
		if argv, err = AgentArgv(agent, c.Model); err != nil {
			return Reply{}, err
		}
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	label := req.Label
	if label == "" {
		label = "prompt"
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("call", uuid.Must(uuid.NewV7()).String(), "agent", agent, "label", label)

	if c.Prompts != nil {
		f, _, err := c.Prompts.Create("prompt", "md")
		if err != nil {
			return Reply{}, err
		}
		_, werr := f.WriteString(req.Prompt)
		f.Close()
		if werr != nil {
			return Reply{}, fmt.Errorf("write prompt copy: %w", werr)
		}
		logger.Debug("prompt copied", "path", f.Name())
	}

	logger.Info("asking oracle", "argv", shellquote.Join(argv...), "timeout", timeout)
	var stdout, stderr bytes.Buffer
	res, err := harness.Run(ctx, harness.Command{
		Args:    argv,
		Dir:     c.Dir,
		Stdin:   strings.NewReader(req.Prompt),
		Timeout: timeout,
		Grace:   c.Grace,
		Stdout:  &stdout,
		Stderr:  &stderr,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("start %s: %w", agent, err)
	}
	raw := stdout.String()
	if res.TimedOut || res.Cancelled {
		cause := fmt.Errorf("after %s: %w", timeout, ErrTimeout)
		response := fmt.Sprintf("[TIMEOUT] after %s", timeout)
		if res.Cancelled && ctx.Err() != nil {
			cause = ctx.Err()
			response = "[CANCELLED] " + cause.Error()
		}
		logger.Error("oracle did not answer", "timeout", timeout, "err", cause)

		reportPath, err := c.Reports.WriteExchange(report.Exchange{
			Label:    label,
			Prompt:   req.Prompt,
			Response: response,
			Raw:      partialOutput(raw, stderr.String()),
		})
		if err != nil {
			return Reply{}, err
		}
		return Reply{ReportPath: reportPath}, &CallError{Agent: agent, ReportPath: reportPath, Err: cause}
	}

	var text string
	if agent == AgentCodex {
		text = parseCodex(raw)
	} else {
		text = parseClaude(raw)
	}
	if stderr.Len() > 0 {
		text += "\n\n--- stderr ---\n" + stderr.String()
	}

	reportPath, err := c.Reports.WriteExchange(report.Exchange{
		Label:    label,
		Prompt:   req.Prompt,
		Response: text,
		Raw:      prettyJSON(raw),
	})
	if err != nil {
		return Reply{}, err
	}
	logger.Info("oracle answered", "exit_code", res.ExitCode, "chars", len(text), "report", reportPath, "duration", res.Duration)

	if res.ExitCode != 0 {
		return Reply{Text: text, ReportPath: reportPath}, &ExitError{Agent: agent, Code: res.ExitCode, ReportPath: reportPath}
	}
	return Reply{Text: text, ReportPath: reportPath}, nil
}

// partialOutput joins whatever the agent wrote before it was stopped.
func partialOutput(stdout, stderr string) string {
	if stderr == "" {
		return stdout
	}
	return stdout + "\n--- stderr ---\n" + stderr
}

// Supported reports whether agent names a known agent.
func Supported(agent string) bool {
	_, err := AgentArgv(agent, "")
	return err == nil
}
