// Package ir provides the data model shared by every construct package.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - The requirement index is derived state. The text corpus is the source
//     of truth and the index is rebuilt wholesale after every mutation.
//   - Requirement ids are unique among definitions.
//   - Every ordered sequence exposed by this package sorts lexicographically
//     so downstream consumers process deterministically.
//   - All JSON tags use snake_case
package ir
