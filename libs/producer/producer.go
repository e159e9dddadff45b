package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/md-rashed-zaman/shopsync/libs/config"
	"github.com/md-rashed-zaman/shopsync/libs/events"
	"github.com/md-rashed-zaman/shopsync/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

// Writer is the part of *kafka.Writer the producer relies on.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers      string        `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	ClientID     string        `env:"KAFKA_CLIENT_ID" envDefault:"shopsync-producer"`
	BatchTimeout time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"10ms"`
}

func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Producer publishes envelopes without blocking the caller. Delivery results
// arrive on the writer's completion callback and are only logged.
type Producer struct {
	writer  Writer
	logger  *slog.Logger
	now     func() time.Time
	pending atomic.Int64
	failed  atomic.Int64
}

// New builds an async kafka.Writer. Messages are partitioned by key hash, so
// every event for one entity lands on the same partition in publish order.
func New(logger *slog.Logger, cfg Config) *Producer {
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	p := &Producer{logger: logger, now: time.Now}
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(kafkax.SplitBrokers(cfg.Brokers)...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  true,
		BatchTimeout:           cfg.BatchTimeout,
		AllowAutoTopicCreation: true,
		Completion:             p.onCompletion,
		Transport:              &kafka.Transport{ClientID: cfg.ClientID},
	}
	return p
}

// NewWithWriter wires a custom writer. The writer must report every accepted
// message to OnCompletion exactly once.
func NewWithWriter(logger *slog.Logger, w Writer) *Producer {
	return &Producer{writer: w, logger: logger, now: time.Now}
}

// OnCompletion is the delivery callback for writers built outside New.
func (p *Producer) OnCompletion(messages []kafka.Message, err error) {
	p.onCompletion(messages, err)
}

// Emit wraps data in a fresh envelope and publishes it to the event type's
// topic keyed by entityID. It never fails the caller.
func (p *Producer) Emit(ctx context.Context, eventType events.Type, entityID string, data any) {
	if _, err := events.ParseType(string(eventType)); err != nil {
		p.logger.Error("event not emitted", "event_type", eventType, "entity_id", entityID, "err", err)
		return
	}
	env, err := events.NewEnvelope(eventType, entityID, data, p.now())
	if err != nil {
		p.logger.Error("event not emitted", "event_type", eventType, "entity_id", entityID, "err", err)
		return
	}
	value, err := events.Encode(env)
	if err != nil {
		p.logger.Error("event not emitted", "event_type", eventType, "entity_id", entityID, "err", err)
		return
	}

	headers := kafkax.MetaHeaders(kafkax.EventMeta{EventID: env.EventID, EventType: string(eventType)})
	p.Send(ctx, eventType.Topic(), []byte(entityID), value, headers...)
}

// Send publishes a raw value. Trace context from ctx is injected into the
// headers.
func (p *Producer) Send(ctx context.Context, topic string, key, value []byte, headers ...kafka.Header) {
	msg := kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: kafkax.InjectTraceHeaders(ctx, append([]kafka.Header(nil), headers...)),
	}

	p.pending.Add(1)
	// Async writers return before delivery; the caller's cancellation must
	// not abort a message that was already accepted.
	if err := p.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		p.pending.Add(-1)
		p.failed.Add(1)
		p.logger.Error("kafka enqueue failed", "topic", topic, "key", string(key), "err", err)
	}
}

func (p *Producer) onCompletion(messages []kafka.Message, err error) {
	p.pending.Add(-int64(len(messages)))
	if err != nil {
		p.failed.Add(int64(len(messages)))
		for _, m := range messages {
			p.logger.Error("kafka delivery failed",
				"topic", m.Topic,
				"key", string(m.Key),
				"event_id", kafkax.HeaderValue(m.Headers, kafkax.HeaderEventID),
				"err", err,
			)
		}
		return
	}
	for _, m := range messages {
		p.logger.Debug("kafka delivered",
			"topic", m.Topic,
			"partition", m.Partition,
			"offset", m.Offset,
			"event_id", kafkax.HeaderValue(m.Headers, kafkax.HeaderEventID),
		)
	}
}

// Pending is the number of accepted messages not yet acknowledged.
func (p *Producer) Pending() int {
	return int(p.pending.Load())
}

// Failed counts messages whose delivery was reported as failed.
func (p *Producer) Failed() int {
	return int(p.failed.Load())
}

// Flush waits until every accepted message is acknowledged or timeout passes
// and returns how many are still undelivered.
func (p *Producer) Flush(timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		n := p.Pending()
		if n <= 0 {
			return 0
		}
		if !time.Now().Before(deadline) {
			return n
		}
		<-ticker.C
	}
}

// Close flushes what it can within timeout, then closes the writer.
func (p *Producer) Close(timeout time.Duration) error {
	left := p.Flush(timeout)
	err := p.writer.Close()
	if left > 0 {
		return errors.Join(err, fmt.Errorf("producer closed with %d undelivered messages", left))
	}
	return err
}
