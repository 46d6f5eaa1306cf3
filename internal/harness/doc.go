// Package harness supervises build and test subprocesses.
//
// A test run is one subprocess whose stdout and stderr are drained by two
// goroutines into a shared transcript while the process runs, so a test
// that hangs still leaves its last output behind. A watchdog timer bounds
// every run; on expiry the process group receives SIGTERM, then SIGKILL
// after a grace window, and the run reports ExitTimeout instead of the
// process's own status.
//
// Commands are always argv slices. Nothing in this package invokes a shell.
//
// # Usage
//
//	h := harness.New(layout, reports, logger)
//	out, err := h.Check(ctx, "tests/failing/test_01_parse.py")
//	if err != nil {
//	    return err
//	}
//	if out.ExitCode == harness.ExitTimeout {
//	    // the test hung; out.Transcript holds what it printed
//	}
package harness
