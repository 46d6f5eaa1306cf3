// Package oracle is the port to the external code-generation agent.
//
// The engine only ever sees the Oracle interface: a prompt goes in, response
// text comes out, and every call leaves exactly one report behind. CLI
// drives a real agent binary; Scripted replays canned responses for tests.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"
)

// DefaultTimeout bounds a single oracle call.
const DefaultTimeout = 3600 * time.Second

// ErrTimeout is returned when the agent did not answer within the request
// timeout.
var ErrTimeout = errors.New("oracle timed out")

// Request is one prompt for the oracle.
type Request struct {
	Prompt  string
	Label   string        // report label, e.g. "write_test"
	Timeout time.Duration // zero means DefaultTimeout
	Agent   string        // empty means the adapter default
}

// Reply is the oracle's answer.
type Reply struct {
	Text       string
	ReportPath string
}

// Instruction references an instruction document with the @path form the
// agents resolve relative to the workspace root.
func Instruction(promptsDir, file string) string {
	return "Please follow these instructions: @./" + path.Join(promptsDir, file)
}

// Oracle answers prompts.
type Oracle interface {
	Ask(ctx context.Context, req Request) (Reply, error)
}

// ExitError reports an agent process that exited non-zero. The report was
// still written.
type ExitError struct {
	Agent      string
	Code       int
	ReportPath string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with %d (report: %s)", e.Agent, e.Code, e.ReportPath)
}

// CallError reports a call that ended without an answer, either on timeout
// or because the context was cancelled. The report was still written.
type CallError struct {
	Agent      string
	ReportPath string
	Err        error // wraps ErrTimeout or the context error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %v (report: %s)", e.Agent, e.Err, e.ReportPath)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// IsExitError checks if an error is an ExitError.
func IsExitError(err error) bool {
	var e *ExitError
	return errors.As(err, &e)
}
