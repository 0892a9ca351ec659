package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/mqtt-tape/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-tape/internal/infrastructure/mqtt"
)

// State is the recorder lifecycle state.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRecording
	StateStopping
)

// String returns a human-readable state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Broker is the transport surface the recorder needs.
// Satisfied by *mqtt.Client; narrowed so tests can substitute a fake.
type Broker interface {
	SubscribeMultiple(filters []string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(filters ...string) error
	SetOnDisconnect(callback func(err error))
	Close() error
}

// Store is the persistence surface the recorder needs.
// Satisfied by *tape.Store.
type Store interface {
	CreateRun(ctx context.Context, startTime time.Time) (int64, error)
	CloseRun(ctx context.Context, runID int64, endTime time.Time) error
	AppendMessage(ctx context.Context, runID int64, timestamp time.Time, topic string, payload []byte) (int64, error)
}

// Metrics is the optional throughput metrics surface.
// Satisfied by *influxdb.Client.
type Metrics interface {
	WriteRecordedMessage(runID int64, topic string, payloadBytes int)
}

// Logger interface for structured logging.
// Compatible with logging.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// connectFunc establishes a broker connection for a recording session.
// Overridden in tests to substitute a fake transport.
type connectFunc func(cfg config.MQTTConfig) (Broker, error)

// Recorder captures live MQTT traffic into the tape store.
//
// A recorder owns at most one run at a time: Start opens a run and Stop
// finalises it. The zero value is not usable; construct with New.
type Recorder struct {
	cfg     config.MQTTConfig
	topics  []string
	qos     byte
	store   Store
	connect connectFunc

	// now is the message timestamp source; swapped in tests.
	now func() time.Time

	mu     sync.Mutex
	state  State
	broker Broker
	runID  int64

	metrics      Metrics
	logger       Logger
	onStoreError func(err error)
	onDisconnect func(err error)
	callbackMu   sync.RWMutex
}

// New creates an idle recorder.
//
// Parameters:
//   - cfg: Broker connection settings
//   - topics: Topic filters to capture (wildcards allowed)
//   - qos: Maximum QoS for the subscriptions
//   - store: Destination for runs and messages
func New(cfg config.MQTTConfig, topics []string, qos byte, store Store) *Recorder {
	return &Recorder{
		cfg:    cfg,
		topics: topics,
		qos:    qos,
		store:  store,
		connect: func(cfg config.MQTTConfig) (Broker, error) {
			return mqtt.Connect(cfg)
		},
		now: time.Now,
	}
}

// SetMetrics attaches an optional throughput metrics sink.
// Must be called before Start.
func (r *Recorder) SetMetrics(m Metrics) {
	r.metrics = m
}

// SetLogger attaches a structured logger.
// Must be called before Start.
func (r *Recorder) SetLogger(l Logger) {
	r.logger = l
}

// SetOnStoreError sets a callback invoked when a message fails to persist.
//
// Store failures happen on the broker's delivery goroutine, where there is
// no synchronous caller to return an error to; this callback is the
// out-of-band channel. It may be invoked concurrently with Stop.
func (r *Recorder) SetOnStoreError(callback func(err error)) {
	r.callbackMu.Lock()
	r.onStoreError = callback
	r.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the broker connection drops.
//
// A disconnect does not close the run: the transport auto-reconnects and
// restores subscriptions, and capture resumes against the same run. The
// callback exists so callers can surface the gap.
func (r *Recorder) SetOnDisconnect(callback func(err error)) {
	r.callbackMu.Lock()
	r.onDisconnect = callback
	r.callbackMu.Unlock()
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// RunID returns the id of the active run, or 0 when not recording.
func (r *Recorder) RunID() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return 0
	}
	return r.runID
}

// Start connects to the broker, subscribes all configured topic filters in
// one batch, opens a new run, and begins capturing.
//
// Start is all-or-nothing: if any step fails the connection is torn down,
// no run is left open, and the recorder returns to idle.
//
// Parameters:
//   - ctx: Context for the run-creation write
//
// Returns:
//   - error: ErrAlreadyRecording if not idle, ErrNoTopics, or a wrapped
//     connect/subscribe/store error
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return fmt.Errorf("%w: state is %s", ErrAlreadyRecording, r.state)
	}
	if len(r.topics) == 0 {
		return ErrNoTopics
	}
	r.state = StateStarting

	broker, err := r.connect(r.cfg)
	if err != nil {
		r.state = StateIdle
		return fmt.Errorf("connecting for recording: %w", err)
	}

	broker.SetOnDisconnect(func(err error) {
		r.handleDisconnect(err)
	})

	if err := broker.SubscribeMultiple(r.topics, r.qos, r.handleMessage); err != nil {
		broker.Close()
		r.state = StateIdle
		return fmt.Errorf("subscribing %d filters: %w", len(r.topics), err)
	}

	runID, err := r.store.CreateRun(ctx, r.now())
	if err != nil {
		broker.Close()
		r.state = StateIdle
		return fmt.Errorf("opening run: %w", err)
	}

	r.broker = broker
	r.runID = runID
	r.state = StateRecording

	if r.logger != nil {
		r.logger.Info("Recording started",
			"run_id", runID,
			"topics", r.topics,
			"qos", r.qos,
		)
	}
	return nil
}

// Stop unsubscribes, disconnects, and finalises the active run.
//
// Messages still in flight on the delivery goroutine when Stop takes effect
// are dropped, not appended to the closed run.
//
// Parameters:
//   - ctx: Context for the run-closing write
//
// Returns:
//   - error: ErrNotRecording if no recording is active, or a wrapped
//     store error if the run could not be finalised
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateRecording {
		return fmt.Errorf("%w: state is %s", ErrNotRecording, r.state)
	}
	r.state = StateStopping

	if err := r.broker.Unsubscribe(r.topics...); err != nil && r.logger != nil {
		// Not fatal: the disconnect below drops the subscriptions anyway.
		r.logger.Warn("Unsubscribe on stop failed", "error", err)
	}
	if err := r.broker.Close(); err != nil && r.logger != nil {
		r.logger.Warn("Disconnect on stop failed", "error", err)
	}
	r.broker = nil

	runID := r.runID
	r.runID = 0
	r.state = StateIdle

	if err := r.store.CloseRun(ctx, runID, r.now()); err != nil {
		return fmt.Errorf("finalising run %d: %w", runID, err)
	}

	if r.logger != nil {
		r.logger.Info("Recording stopped", "run_id", runID)
	}
	return nil
}

// handleMessage is the broker message callback.
//
// Runs on the transport's delivery goroutine. The append is synchronous:
// the next message is not processed until this one is on disk, which is
// what guarantees capture order matches arrival order.
func (r *Recorder) handleMessage(topic string, payload []byte) error {
	timestamp := r.now()

	r.mu.Lock()
	if r.state != StateRecording {
		// Late delivery racing Stop; the run is closed, drop it.
		r.mu.Unlock()
		return nil
	}
	runID := r.runID
	r.mu.Unlock()

	if _, err := r.store.AppendMessage(context.Background(), runID, timestamp, topic, payload); err != nil {
		if r.logger != nil {
			r.logger.Error("Failed to persist message",
				"run_id", runID,
				"topic", topic,
				"error", err,
			)
		}
		r.reportStoreError(err)
		return fmt.Errorf("appending message: %w", err)
	}

	if r.metrics != nil {
		r.metrics.WriteRecordedMessage(runID, topic, len(payload))
	}
	return nil
}

// handleDisconnect relays transport drops to the caller.
func (r *Recorder) handleDisconnect(err error) {
	if r.logger != nil {
		r.logger.Warn("Broker connection lost while recording", "error", err)
	}

	r.callbackMu.RLock()
	callback := r.onDisconnect
	r.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// reportStoreError relays append failures to the caller.
func (r *Recorder) reportStoreError(err error) {
	r.callbackMu.RLock()
	callback := r.onStoreError
	r.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}
