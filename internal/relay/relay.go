// Package relay publishes the workspace event log to a Kafka topic.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"shiptrack/internal/domain"
	"shiptrack/internal/metrics"
	"shiptrack/internal/repo"
)

const (
	defaultInterval = 2 * time.Second
	defaultBatch    = 100
)

// Writer is the subset of kafka.Writer the relay needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter returns a writer for topic on the given brokers.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

// Relay polls events after its cursor and publishes them in id order. The
// cursor advances only after a batch was written.
type Relay struct {
	Repo     repo.Repo
	Writer   Writer
	Log      *zap.Logger
	Interval time.Duration
	Batch    int
	// Replay starts from the first event instead of the latest one.
	Replay bool

	mu      sync.Mutex
	cursor  int64
	started bool
}

type message struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
	PayloadRaw string          `json:"payload_raw,omitempty"`
}

func (r *Relay) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

// Cursor returns the id of the last published event.
func (r *Relay) Cursor() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor
}

func (r *Relay) init(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	if !r.Replay {
		latest, err := r.Repo.LatestEventID(ctx)
		if err != nil {
			return fmt.Errorf("init relay cursor: %w", err)
		}
		r.cursor = latest
	}
	r.started = true
	return nil
}

// Tick publishes one batch and returns the number of events written.
func (r *Relay) Tick(ctx context.Context) (int, error) {
	if err := r.init(ctx); err != nil {
		return 0, err
	}
	batch := r.Batch
	if batch <= 0 {
		batch = defaultBatch
	}
	evts, err := r.Repo.EventsAfter(ctx, r.Cursor(), batch)
	if err != nil {
		return 0, fmt.Errorf("fetch events: %w", err)
	}
	if len(evts) == 0 {
		return 0, nil
	}
	msgs := make([]kafka.Message, 0, len(evts))
	for _, evt := range evts {
		msg, err := toMessage(evt)
		if err != nil {
			return 0, err
		}
		msgs = append(msgs, msg)
	}
	if err := r.Writer.WriteMessages(ctx, msgs...); err != nil {
		metrics.RelayErrorsTotal.Inc()
		return 0, fmt.Errorf("publish events: %w", err)
	}
	r.mu.Lock()
	r.cursor = evts[len(evts)-1].ID
	r.mu.Unlock()
	metrics.RelayPublishedTotal.Add(float64(len(msgs)))
	return len(msgs), nil
}

// Run publishes on every interval until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	every := r.Interval
	if every <= 0 {
		every = defaultInterval
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		n, err := r.Tick(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			r.log().Warn("relay tick failed", zap.Error(err), zap.Int64("cursor", r.Cursor()))
		case n > 0:
			r.log().Info("relayed events", zap.Int("count", n), zap.Int64("cursor", r.Cursor()))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func toMessage(evt domain.Event) (kafka.Message, error) {
	body := message{
		ID:         evt.ID,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		TS:         evt.TS,
		Payload:    json.RawMessage("{}"),
	}
	if evt.Payload != "" {
		if json.Valid([]byte(evt.Payload)) {
			body.Payload = json.RawMessage(evt.Payload)
		} else {
			body.PayloadRaw = evt.Payload
		}
	}
	value, err := json.Marshal(body)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event %d: %w", evt.ID, err)
	}
	key := evt.EntityID
	if key == "" {
		key = evt.EntityKind
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(evt.Type)},
			{Key: "event-id", Value: []byte(strconv.FormatInt(evt.ID, 10))},
		},
	}, nil
}
