package harness

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// ExitTimeout is the exit code reported for a run killed by its watchdog
// or by context cancellation. Real exit codes are never negative: a process
// ended by a signal reports 128+signal.
const ExitTimeout = -1

// DefaultGraceWindow is how long a terminated process may take to exit
// before it is killed, when the command sets no Grace.
const DefaultGraceWindow = 5 * time.Second

// ReaderJoin bounds the wait for the stream readers after the process is
// gone. Descendants that escaped the process group can hold a pipe open
// indefinitely.
var ReaderJoin = time.Second

// Command describes one subprocess.
type Command struct {
	Args    []string
	Dir     string
	Env     []string // nil inherits the parent environment
	Stdin   io.Reader
	Timeout time.Duration // zero disables the watchdog
	Grace   time.Duration // terminate-to-kill window; zero means DefaultGraceWindow

	// Capture drains stdout and stderr into the transcript. When false the
	// child inherits Stdout and Stderr below (os.Stdout/os.Stderr if nil).
	Capture bool

	// Echo, when set in capture mode, receives each transcript line as it
	// is read.
	Echo io.Writer

	Stdout io.Writer
	Stderr io.Writer
}

// Result is the outcome of a finished subprocess.
type Result struct {
	ExitCode   int
	Transcript string
	TimedOut   bool
	Cancelled  bool
	Duration   time.Duration
}

// transcript is the shared, line-ordered capture of both streams.
type transcript struct {
	mu   sync.Mutex
	b    strings.Builder
	echo io.Writer
}

func (t *transcript) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.b.WriteString(line)
	if t.echo != nil {
		io.WriteString(t.echo, line)
	}
}

func (t *transcript) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.b.String()
}

// pump copies r into the transcript one line at a time.
func pump(r io.Reader, prefix string, t *transcript, wg *sync.WaitGroup) {
	defer wg.Done()
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			if !strings.HasSuffix(line, "\n") {
				line += "\n"
			}
			t.add(prefix + line)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				t.add(fmt.Sprintf("\n[ERROR reading stream: %v]\n", err))
			}
			return
		}
	}
}

// Run starts c and supervises it to completion. The returned error is
// non-nil only when the process could not be started; a process that ran
// and failed is reported through Result.ExitCode.
func Run(ctx context.Context, c Command) (Result, error) {
	if len(c.Args) == 0 {
		return Result{}, errors.New("harness: empty command")
	}

	cmd := exec.Command(c.Args[0], c.Args[1:]...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdin = c.Stdin
	setProcessGroup(cmd)

	tr := &transcript{echo: c.Echo}
	var (
		readers sync.WaitGroup
		pipes   []*os.File
	)
	if c.Capture {
		outR, outW, err := os.Pipe()
		if err != nil {
			return Result{}, fmt.Errorf("harness: stdout pipe: %w", err)
		}
		errR, errW, err := os.Pipe()
		if err != nil {
			outR.Close()
			outW.Close()
			return Result{}, fmt.Errorf("harness: stderr pipe: %w", err)
		}
		cmd.Stdout = outW
		cmd.Stderr = errW
		pipes = []*os.File{outR, errR}
		defer func() {
			for _, p := range pipes {
				p.Close()
			}
		}()

		start := time.Now()
		if err := cmd.Start(); err != nil {
			outW.Close()
			errW.Close()
			return Result{}, fmt.Errorf("harness: start %s: %w", c.Args[0], err)
		}
		// The child holds its own copies; ours must close so the readers
		// see EOF when it exits.
		outW.Close()
		errW.Close()

		readers.Add(2)
		go pump(outR, "", tr, &readers)
		go pump(errR, "[stderr] ", tr, &readers)

		res := supervise(ctx, cmd, c, tr)
		joinReaders(&readers)
		res.Transcript = tr.String()
		res.Duration = time.Since(start)
		return res, nil
	}

	cmd.Stdout = c.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = c.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	// Non-file writers are fed by exec's own copy goroutines; bound them
	// like the capture readers.
	cmd.WaitDelay = ReaderJoin

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("harness: start %s: %w", c.Args[0], err)
	}
	res := supervise(ctx, cmd, c, tr)
	res.Transcript = tr.String()
	res.Duration = time.Since(start)
	return res, nil
}

// supervise waits for cmd, enforcing the watchdog and ctx.
func supervise(ctx context.Context, cmd *exec.Cmd, c Command, tr *transcript) Result {
	timeout := c.Timeout
	grace := c.Grace
	if grace <= 0 {
		grace = DefaultGraceWindow
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var watchdog <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		watchdog = timer.C
	}

	select {
	case err := <-done:
		return Result{ExitCode: exitCode(err)}
	case <-watchdog:
		tr.add(fmt.Sprintf("\n[TIMEOUT] Process exceeded %s\n", timeout))
		stop(cmd, done, grace, tr)
		return Result{ExitCode: ExitTimeout, TimedOut: true}
	case <-ctx.Done():
		tr.add(fmt.Sprintf("\n[CANCELLED] %v\n", ctx.Err()))
		stop(cmd, done, grace, tr)
		return Result{ExitCode: ExitTimeout, Cancelled: true}
	}
}

// stop terminates the process group and escalates to kill after grace.
func stop(cmd *exec.Cmd, done <-chan error, grace time.Duration, tr *transcript) {
	tr.add(fmt.Sprintf("[KILLING PROCESS] Attempting to terminate PID %d...\n", cmd.Process.Pid))
	if err := terminate(cmd); err != nil {
		killProcess(cmd)
		<-done
		tr.add("[KILLED] Process force-killed\n")
		return
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		tr.add("[KILLED] Process terminated gracefully\n")
	case <-timer.C:
		killProcess(cmd)
		<-done
		tr.add("[KILLED] Process force-killed\n")
	}
}

func joinReaders(wg *sync.WaitGroup) {
	joined := make(chan struct{})
	go func() {
		wg.Wait()
		close(joined)
	}()
	t := time.NewTimer(ReaderJoin)
	defer t.Stop()
	select {
	case <-joined:
	case <-t.C:
	}
}
