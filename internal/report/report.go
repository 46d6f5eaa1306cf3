// Package report writes append-only audit artifacts.
//
// Every test run and every oracle invocation leaves exactly one file in the
// reports directory. Files are created exclusively and never overwritten.
package report

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/construct/internal/ir"
)

// TimestampLayout is the prefix of every report file name.
const TimestampLayout = "2006-01-02-15-04-05"

// Clock returns the current time. Tests substitute a stepping clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Writer creates report files under Dir.
type Writer struct {
	Dir   string
	Clock Clock
}

// NewWriter returns a writer for dir using the system clock.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir, Clock: systemClock{}}
}

func (w *Writer) now() time.Time {
	if w.Clock == nil {
		return time.Now()
	}
	return w.Clock.Now()
}

// Create opens a new report file named <timestamp>_<label>.<ext>.
// A name collision gets a -N suffix before the extension; an existing file
// is never reused. The caller closes the returned file.
func (w *Writer) Create(label, ext string) (*os.File, time.Time, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return nil, time.Time{}, fmt.Errorf("create reports dir: %w", err)
	}

	ts := w.now()
	base := ts.Format(TimestampLayout) + "_" + sanitize(label)
	for n := 1; ; n++ {
		name := base
		if n > 1 {
			name = fmt.Sprintf("%s-%d", base, n)
		}
		path := filepath.Join(w.Dir, name+"."+ext)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("create report: %w", err)
		}
		return f, ts, nil
	}
}

// WriteTest writes a test-run report: a "<label> PASS|FAIL" header line
// followed by the transcript. Returns the report path.
func (w *Writer) WriteTest(r ir.Report) (string, error) {
	f, _, err := w.Create(r.Label, "txt")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s %s\n%s", r.Label, r.Status, r.Transcript); err != nil {
		return "", fmt.Errorf("write report %s: %w", f.Name(), err)
	}
	return f.Name(), nil
}

// Exchange is one oracle call as recorded in a markdown report.
type Exchange struct {
	Label    string
	Prompt   string
	Response string
	Raw      string
}

// WriteExchange writes an oracle report in markdown. Returns the path.
func (w *Writer) WriteExchange(e Exchange) (string, error) {
	f, ts, err := w.Create(e.Label, "md")
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", Title(e.Label))
	fmt.Fprintf(&b, "**Timestamp:** %s\n\n", ts.Format(time.RFC3339))
	b.WriteString("## Prompt\n\n")
	b.WriteString(fence(e.Prompt))
	b.WriteString("\n## Response\n\n")
	b.WriteString(e.Response)
	if !strings.HasSuffix(e.Response, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n## Raw Output\n\n")
	b.WriteString(fence(e.Raw))

	if _, err := f.WriteString(b.String()); err != nil {
		return "", fmt.Errorf("write report %s: %w", f.Name(), err)
	}
	return f.Name(), nil
}

func fence(s string) string {
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return "```\n" + s + "```\n"
}

// Title turns a label such as "failing_test" into "Failing Test".
func Title(label string) string {
	words := strings.FieldsFunc(label, func(r rune) bool { return r == '_' || r == '-' })
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// sanitize keeps labels usable as a single file name component.
func sanitize(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "report"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, label)
}

// Latest returns the most recently modified report in dir, or "" when
// there is none.
func Latest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("list reports: %w", err)
	}

	var (
		latest string
		when   time.Time
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		// Ties go to the lexicographically later name, which for our
		// naming scheme is the later timestamp.
		if latest == "" || info.ModTime().After(when) || info.ModTime().Equal(when) && e.Name() > filepath.Base(latest) {
			latest = filepath.Join(dir, e.Name())
			when = info.ModTime()
		}
	}
	return latest, nil
}
