// Package tape provides the durable log of recorded MQTT traffic.
//
// The store persists two kinds of rows:
//   - Run: one bounded recording session with a start and (eventually) end time
//   - Message: one captured MQTT publish, tied to a run
//
// Both are append-only from the core's point of view: runs are finalised
// exactly once, messages are never mutated or deleted, and replay order is
// defined by (timestamp, id) ascending so colliding timestamps still yield
// a deterministic total order.
//
// The store performs no caching - every call is a direct read or write
// against the SQLite file, so correctness never depends on in-memory state
// that could desynchronise from disk.
package tape
