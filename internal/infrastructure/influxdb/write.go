package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteRecordedMessage records one captured message in the recording throughput
// measurement.
//
// The write is non-blocking; data is batched and sent asynchronously, so the
// recorder's ingestion path is never slowed by the metrics backend.
//
// Parameters:
//   - runID: The recording run the message belongs to
//   - topic: The concrete topic the message arrived on
//   - payloadBytes: Size of the message payload
func (c *Client) WriteRecordedMessage(runID int64, topic string, payloadBytes int) {
	c.writeMessagePoint("recorded_messages", runID, topic, payloadBytes)
}

// WritePlayedMessage records one republished message in the playback throughput
// measurement.
//
// Parameters:
//   - runID: The run being played back
//   - topic: The topic the message was published to
//   - payloadBytes: Size of the message payload
func (c *Client) WritePlayedMessage(runID int64, topic string, payloadBytes int) {
	c.writeMessagePoint("played_messages", runID, topic, payloadBytes)
}

// writeMessagePoint writes a single per-message throughput point.
func (c *Client) writeMessagePoint(measurement string, runID int64, topic string, payloadBytes int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		measurement,
		map[string]string{
			"topic": topic,
		},
		map[string]interface{}{
			"run_id":        runID,
			"payload_bytes": payloadBytes,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
