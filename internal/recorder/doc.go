// Package recorder bridges an asynchronous broker message stream into
// durable storage.
//
// The recorder is an explicit state machine:
//
//	Idle -> Starting -> Recording -> Stopping -> Idle
//
// Start connects to the broker, subscribes the configured topic filters as
// one batch, opens a run in the tape store, and transitions to Recording.
// Every message received while Recording is stamped with its arrival time
// and appended to the store synchronously on the transport's delivery
// goroutine - no queue, no batching, no drops. A slow store write
// back-pressures delivery instead of being hidden.
//
// Store failures on the callback path have no synchronous caller to return
// to, so they are reported out-of-band via SetOnStoreError (and logged).
// Transport disconnects are reported via SetOnDisconnect but do not close
// the run: the underlying client auto-reconnects, restores subscriptions,
// and recording resumes against the same run.
package recorder
