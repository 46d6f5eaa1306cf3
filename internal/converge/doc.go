// Package converge applies independent documentation fixes until the
// requirement documents stop changing.
//
// Each iteration fingerprints the definition documents, runs an optional
// serial pre-step, then runs one batch of oracle tasks concurrently. An
// unchanged fingerprint across the iteration is a fixpoint. Loops that
// never settle fail with NonConvergenceError after MaxIterations.
package converge
