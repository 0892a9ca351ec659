// Package playback republishes a recorded run to the broker with its
// original timing.
//
// The player reads the run's messages in (timestamp, id) order and sends
// them one at a time, sleeping the recorded inter-message gap (divided by
// the speed factor) before each publish. Publishing is strictly
// sequential: message i+1 is never sent before message i's publish
// completes, so broker-observed order always matches stored order.
//
// Timing arithmetic is pure and separated from sleeping, and the sleep
// itself is injectable, so tests verify exact delay sequences without
// wall-clock waits.
package playback
