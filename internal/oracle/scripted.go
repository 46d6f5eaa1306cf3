package oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/construct/internal/report"
)

// Handler produces a response for one request. Handlers may mutate the
// workspace, the way a real agent would.
type Handler func(ctx context.Context, req Request) (string, error)

// Respond returns a handler that always answers text.
func Respond(text string) Handler {
	return func(context.Context, Request) (string, error) { return text, nil }
}

// Scripted is an in-process Oracle that dispatches on the request label.
// It records every request and, when Reports is set, writes a report per
// call like the CLI adapter does.
type Scripted struct {
	Handlers map[string]Handler
	Default  Handler
	Reports  *report.Writer

	mu       sync.Mutex
	requests []Request
}

// NewScripted returns an empty scripted oracle.
func NewScripted() *Scripted {
	return &Scripted{Handlers: make(map[string]Handler)}
}

// On registers h for label and returns s for chaining.
func (s *Scripted) On(label string, h Handler) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Handlers[label] = h
	return s
}

// Ask implements Oracle.
func (s *Scripted) Ask(ctx context.Context, req Request) (Reply, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	h, ok := s.Handlers[req.Label]
	if !ok {
		h = s.Default
	}
	s.mu.Unlock()

	if h == nil {
		return Reply{}, fmt.Errorf("scripted oracle: no handler for %q", req.Label)
	}
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}

	text, err := h(ctx, req)
	if err != nil {
		if s.Reports == nil {
			return Reply{}, err
		}
		reportPath, werr := s.Reports.WriteExchange(report.Exchange{
			Label:    req.Label,
			Prompt:   req.Prompt,
			Response: "[ERROR] " + err.Error(),
		})
		if werr != nil {
			return Reply{}, errors.Join(err, werr)
		}
		return Reply{ReportPath: reportPath}, fmt.Errorf("%w (report: %s)", err, reportPath)
	}

	var reportPath string
	if s.Reports != nil {
		reportPath, err = s.Reports.WriteExchange(report.Exchange{
			Label:    req.Label,
			Prompt:   req.Prompt,
			Response: text,
			Raw:      text,
		})
		if err != nil {
			return Reply{}, err
		}
	}
	return Reply{Text: text, ReportPath: reportPath}, nil
}

// Requests returns a copy of every request received, in arrival order.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Calls returns the requests received for label.
func (s *Scripted) Calls(label string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if r.Label == label {
			out = append(out, r)
		}
	}
	return out
}
