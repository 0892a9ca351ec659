// Package influxdb provides optional time-series metrics for mqtt-tape.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes, and health monitoring.
//
// # Purpose
//
// When enabled, the recorder and playback engines emit one point per
// message (topic, payload size, run id), giving per-topic throughput
// visibility over long captures without touching the SQLite log itself.
//
// Metrics are strictly observational: a write failure never interrupts
// recording or playback, it is only reported via the error callback.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteRecordedMessage(runID, "sensors/temp", len(payload))
package influxdb
