// Package engine implements the construction state machine.
//
// A run has two phases. Setup brings the workspace to a state where every
// requirement has a test: it authors a missing build procedure, makes
// requirement ids unique, removes orphaned tags, asks for one test per
// untested requirement, checks test strategy compliance and orders new
// tests. The main loop then drives failing tests to passing one at a time,
// in file name order, with a bounded number of fix attempts per test.
//
// Every mutation of the workspace is followed by a full index rebuild; the
// engine never patches the index. Work items are derived from the index or
// the filesystem, logged when produced, and consumed exactly once.
//
// The engine is single-threaded. The only concurrency during a run lives
// in the harness, which drains subprocess output on two goroutines.
package engine
