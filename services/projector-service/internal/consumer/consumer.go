package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/md-rashed-zaman/shopsync/libs/events"
	"github.com/md-rashed-zaman/shopsync/libs/kafkax"
	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/registry"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type State int32

const (
	Stopped State = iota
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	default:
		return "stopped"
	}
}

var (
	ErrAlreadyRunning = errors.New("consumer already running")
	// ErrClosed is returned by Run once a previous run has closed the reader.
	ErrClosed = errors.New("consumer reader closed")
)

// DeadLetterSink receives messages that could not be applied.
// *producer.Producer implements it.
type DeadLetterSink interface {
	Send(ctx context.Context, topic string, key, value []byte, headers ...kafka.Header)
}

// Notifier is told about every applied event.
type Notifier interface {
	Notify(ctx context.Context, env events.Envelope) error
}

type Config struct {
	PollTimeout time.Duration
	// ErrorBackoff is the pause after a transport error that is not
	// end-of-partition.
	ErrorBackoff time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
	DLQTopic     string
}

func (c Config) withDefaults() Config {
	if c.PollTimeout <= 0 {
		c.PollTimeout = time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = time.Second
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 200 * time.Millisecond
	}
	return c
}

type Option func(*Consumer)

func WithDeadLetter(sink DeadLetterSink) Option {
	return func(c *Consumer) { c.dlq = sink }
}

func WithNotifier(n Notifier) Option {
	return func(c *Consumer) { c.notifier = n }
}

// Consumer polls one reader and dispatches each envelope to its registered
// handler, one message at a time. A failing message never stops the loop.
type Consumer struct {
	reader   Reader
	registry *registry.Registry
	logger   *slog.Logger
	cfg      Config
	dlq      DeadLetterSink
	notifier Notifier
	tracer   trace.Tracer

	mu     sync.Mutex
	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
	closed bool

	stats counters
}

func New(logger *slog.Logger, reader Reader, reg *registry.Registry, cfg Config, opts ...Option) *Consumer {
	c := &Consumer{
		reader:   reader,
		registry: reg,
		logger:   logger,
		cfg:      cfg.withDefaults(),
		tracer:   otel.Tracer("kafka"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Consumer) State() State {
	return State(c.state.Load())
}

// Run blocks until ctx is cancelled or Stop is called, then closes the
// reader. Shutdown is observed within one poll timeout.
func (c *Consumer) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.State() != Stopped {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.state.Store(int32(Running))
	done := c.done
	c.mu.Unlock()

	defer func() {
		cancel()
		c.mu.Lock()
		c.state.Store(int32(Stopping))
		c.closed = true
		c.mu.Unlock()
		if err := c.reader.Close(); err != nil {
			c.logger.Error("kafka reader close failed", "err", err)
		}
		c.state.Store(int32(Stopped))
		close(done)
		c.logger.Info("consumer stopped")
	}()

	c.logger.Info("consumer started", "handlers", len(c.registry.Types()), "poll_timeout", c.cfg.PollTimeout.String())
	for {
		if ctx.Err() != nil {
			return nil
		}
		msg, ok, err := c.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.onTransportError(ctx, err)
			continue
		}
		if !ok {
			continue
		}
		c.process(ctx, msg)
	}
}

// Stop requests shutdown and waits for Run to return. A message already
// being handled completes first.
func (c *Consumer) Stop() {
	c.mu.Lock()
	if c.State() != Running {
		c.mu.Unlock()
		return
	}
	c.state.Store(int32(Stopping))
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
}

// poll reads with a bounded wait; ok is false for an empty poll.
func (c *Consumer) poll(ctx context.Context) (kafka.Message, bool, error) {
	pollCtx, cancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
	defer cancel()
	msg, err := c.reader.ReadMessage(pollCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return kafka.Message{}, false, nil
		}
		return kafka.Message{}, false, err
	}
	return msg, true, nil
}

func (c *Consumer) onTransportError(ctx context.Context, err error) {
	c.stats.transportErrors.Add(1)
	te := classifyTransport(err)
	switch te.Kind {
	case events.TransportEndOfPartition:
		c.logger.Debug("kafka end of partition")
		return
	case events.TransportUnknownTopic:
		c.logger.Warn("kafka topic not available", "err", te)
	default:
		c.logger.Error("kafka read error", "err", te)
	}
	t := time.NewTimer(c.cfg.ErrorBackoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	c.stats.received.Add(1)

	msgCtx := kafkax.ExtractTraceContext(ctx, msg)
	msgCtx, span := c.tracer.Start(msgCtx, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.Int("messaging.kafka.partition", msg.Partition),
			attribute.Int64("messaging.kafka.offset", msg.Offset),
		),
	)
	defer span.End()

	log := c.logger.With("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)

	env, err := events.Decode(msg.Value)
	if err != nil {
		c.stats.decodeErrors.Add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		log.Warn("message skipped", "err", err)
		c.deadLetter(msgCtx, msg, err)
		return
	}
	span.SetAttributes(
		attribute.String("event.type", string(env.EventType)),
		attribute.String("event.id", env.EventID),
	)
	log = log.With("event_type", env.EventType, "event_id", env.EventID, "entity_id", env.EntityID)

	if err := env.Validate(); err != nil {
		c.stats.unroutable.Add(1)
		log.Debug("unroutable event ignored", "err", err)
		return
	}
	h, ok := c.registry.Lookup(env.EventType)
	if !ok {
		c.stats.unroutable.Add(1)
		log.Debug("unroutable event ignored", "err", &events.UnroutableError{EventType: env.EventType, Reason: "no handler registered"})
		return
	}

	if err := c.invoke(ctx, msgCtx, h, env, log); err != nil {
		herr := &events.HandlerError{EventType: env.EventType, EventID: env.EventID, Err: err}
		c.stats.handlerErrors.Add(1)
		span.RecordError(herr)
		span.SetStatus(codes.Error, "handler")
		log.Error("handler failed, message skipped", "err", herr, "permanent", events.IsPermanent(err))
		c.deadLetter(msgCtx, msg, herr)
		return
	}

	c.stats.applied.Add(1)
	c.stats.lastApplied.Store(time.Now().UnixNano())
	log.Debug("event applied")

	if c.notifier != nil {
		if err := c.notifier.Notify(msgCtx, env); err != nil {
			log.Warn("change notification failed", "err", err)
		}
	}
}

// invoke runs the handler, retrying transient failures when MaxAttempts > 1.
// Handlers get a context detached from shutdown so a write in progress is
// not aborted; only the waits between attempts observe loopCtx.
func (c *Consumer) invoke(loopCtx, msgCtx context.Context, h registry.Handler, env events.Envelope, log *slog.Logger) error {
	handlerCtx := context.WithoutCancel(msgCtx)
	if c.cfg.MaxAttempts == 1 {
		return safeCall(handlerCtx, h, env)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryBackoff
	_, err := backoff.Retry(loopCtx, func() (struct{}, error) {
		err := safeCall(handlerCtx, h, env)
		if err != nil && events.IsPermanent(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.stats.retries.Add(1)
			log.Warn("handler failed, retrying", "err", err, "retry_in", next.String())
		}),
	)
	return err
}

func safeCall(ctx context.Context, h registry.Handler, env events.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = events.Permanent(fmt.Errorf("handler panic: %v", r))
		}
	}()
	return h(ctx, env)
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error) {
	if c.dlq == nil || c.cfg.DLQTopic == "" {
		return
	}
	headers := append([]kafka.Header(nil), msg.Headers...)
	headers = kafkax.SetHeader(headers, kafkax.HeaderDLQReason, cause.Error())
	headers = kafkax.SetHeader(headers, kafkax.HeaderDLQSourceTopic, msg.Topic)
	c.dlq.Send(ctx, c.cfg.DLQTopic, msg.Key, msg.Value, headers...)
	c.stats.deadLettered.Add(1)
}
