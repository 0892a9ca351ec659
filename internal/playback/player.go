package playback

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/nerrad567/mqtt-tape/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-tape/internal/infrastructure/mqtt"
	"github.com/nerrad567/mqtt-tape/internal/tape"
)

// Publisher is the transport surface playback needs.
// Satisfied by *mqtt.Client; narrowed so tests can substitute a fake.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Close() error
}

// Store is the read surface playback needs.
// Satisfied by *tape.Store.
type Store interface {
	LatestRunID(ctx context.Context) (int64, error)
	ReadRunMessages(ctx context.Context, runID int64) ([]tape.Message, error)
}

// Metrics is the optional throughput metrics surface.
// Satisfied by *influxdb.Client.
type Metrics interface {
	WritePlayedMessage(runID int64, topic string, payloadBytes int)
}

// Logger interface for structured logging.
// Compatible with logging.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Player replays recorded runs against the broker.
//
// A player holds no connection between plays: each PlayRun connects,
// replays, and disconnects. The zero value is not usable; construct
// with New.
type Player struct {
	cfg   config.MQTTConfig
	qos   byte
	store Store

	// connect and sleep are swapped in tests for a fake transport and clock.
	connect func(cfg config.MQTTConfig) (Publisher, error)
	sleep   func(ctx context.Context, d time.Duration) error

	metrics Metrics
	logger  Logger
}

// New creates a player reading from the given store.
//
// Parameters:
//   - cfg: Broker connection settings
//   - qos: QoS level used for every republished message
//   - store: Source of runs and messages
func New(cfg config.MQTTConfig, qos byte, store Store) *Player {
	return &Player{
		cfg:   cfg,
		qos:   qos,
		store: store,
		connect: func(cfg config.MQTTConfig) (Publisher, error) {
			return mqtt.Connect(cfg)
		},
		sleep: sleepContext,
	}
}

// SetMetrics attaches an optional throughput metrics sink.
// Must be called before Play/PlayRun.
func (p *Player) SetMetrics(m Metrics) {
	p.metrics = m
}

// SetLogger attaches a structured logger.
// Must be called before Play/PlayRun.
func (p *Player) SetLogger(l Logger) {
	p.logger = l
}

// Play replays the most recent run.
//
// Returns:
//   - error: tape.ErrNoRuns if nothing has ever been recorded,
//     ErrInvalidSpeed, or a wrapped read/connect/publish error
func (p *Player) Play(ctx context.Context, speed float64) error {
	if err := validateSpeed(speed); err != nil {
		return err
	}

	runID, err := p.store.LatestRunID(ctx)
	if err != nil {
		return fmt.Errorf("resolving latest run: %w", err)
	}
	return p.PlayRun(ctx, runID, speed)
}

// PlayRun replays one run at the given speed factor.
//
// Speed divides every recorded gap: 1 reproduces the original cadence,
// 2 plays twice as fast, 0.5 at half speed. The speed is validated and
// the run read in full before the broker is contacted; a run with no
// messages completes immediately without connecting at all.
//
// Publishing is sequential: each publish blocks until acknowledged before
// the next delay starts, so replay order is exactly stored order.
//
// Parameters:
//   - ctx: Cancels the replay between messages (mid-sleep included)
//   - runID: The run to replay
//   - speed: Positive finite time-dilation factor
//
// Returns:
//   - error: ErrInvalidSpeed, a wrapped read/connect/publish error, or
//     ctx.Err() if cancelled
func (p *Player) PlayRun(ctx context.Context, runID int64, speed float64) error {
	if err := validateSpeed(speed); err != nil {
		return err
	}

	messages, err := p.store.ReadRunMessages(ctx, runID)
	if err != nil {
		return fmt.Errorf("reading run %d: %w", runID, err)
	}
	if len(messages) == 0 {
		if p.logger != nil {
			p.logger.Info("Run has no messages, nothing to replay", "run_id", runID)
		}
		return nil
	}

	publisher, err := p.connect(p.cfg)
	if err != nil {
		return fmt.Errorf("connecting for playback: %w", err)
	}
	defer publisher.Close()

	if p.logger != nil {
		p.logger.Info("Playback started",
			"run_id", runID,
			"messages", len(messages),
			"speed", speed,
		)
	}

	prev := messages[0].Timestamp
	for i, m := range messages {
		if i > 0 {
			if err := p.sleep(ctx, scaledDelay(prev, m.Timestamp, speed)); err != nil {
				return fmt.Errorf("playback of run %d interrupted: %w", runID, err)
			}
			prev = m.Timestamp
		}

		if err := publisher.Publish(m.Topic, m.Payload, p.qos, false); err != nil {
			return fmt.Errorf("publishing message %d of run %d: %w", m.ID, runID, err)
		}
		if p.metrics != nil {
			p.metrics.WritePlayedMessage(runID, m.Topic, len(m.Payload))
		}
	}

	if p.logger != nil {
		p.logger.Info("Playback finished", "run_id", runID, "messages", len(messages))
	}
	return nil
}

// validateSpeed rejects non-positive and non-finite speed factors.
func validateSpeed(speed float64) error {
	if speed <= 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidSpeed, speed)
	}
	return nil
}

// scaledDelay computes the wait before the next message.
//
// The recorded gap is divided by the speed factor. Negative gaps cannot
// occur with (timestamp, id) ordering, but clock adjustments during
// recording could produce them; they replay as zero rather than failing.
func scaledDelay(prev, next time.Time, speed float64) time.Duration {
	gap := next.Sub(prev)
	if gap <= 0 {
		return 0
	}
	return time.Duration(float64(gap) / speed)
}

// sleepContext waits for the duration or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
