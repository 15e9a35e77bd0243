// Package store is the SQLite-backed persistent backend of the query result
// cache. Entries survive restarts; they are bounded by an optional TTL and
// by the data-version purge the cache performs when the engine's data
// changes.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Schema changes are applied as numbered migrations tracked in
// PRAGMA user_version.
package store
