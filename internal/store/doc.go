// Package store provides the SQLite-backed requirement index.
//
// The index is derived, ephemeral state: the text corpus is the source of
// truth and every build replaces the tables wholesale. There is no
// incremental update path.
//
// # Tables
//
//   - req_definitions: one row per requirement id (PRIMARY KEY enforces
//     uniqueness, so duplicates must be resolved before a build)
//   - req_locations: one row per tag occurrence, indexed by req_id and by
//     category
//
// # Critical Patterns
//
// Deterministic Contents:
//   - Rows are inserted in sorted order and every read uses ORDER BY, so two
//     builds from an unchanged corpus dump byte-identical contents.
//
// Single Writer:
//   - One orchestration process owns a workspace; the pool is limited to a
//     single connection and a build runs in one transaction.
//
// # Database Configuration
//
//   - WAL mode
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
