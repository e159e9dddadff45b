// Package notify announces applied projection changes on Redis pub/sub so
// read-side caches can refresh.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/md-rashed-zaman/shopsync/libs/events"
	"github.com/redis/go-redis/v9"
)

// Change is the message published after an event has been applied.
type Change struct {
	EventType events.Type `json:"event_type"`
	EventID   string      `json:"event_id"`
	EntityID  string      `json:"entity_id"`
	Timestamp string      `json:"timestamp"`
}

type Publisher struct {
	rc     *redis.Client
	prefix string
}

func NewPublisher(rc *redis.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = "projections"
	}
	return &Publisher{rc: rc, prefix: prefix}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr, prefix string) (*Publisher, error) {
	rc := redis.NewClient(&redis.Options{Addr: addr})
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewPublisher(rc, prefix), nil
}

// Channel is the pub/sub channel for a topic.
func (p *Publisher) Channel(topic string) string {
	return p.prefix + "." + topic
}

func (p *Publisher) Notify(ctx context.Context, env events.Envelope) error {
	body, err := json.Marshal(Change{
		EventType: env.EventType,
		EventID:   env.EventID,
		EntityID:  env.EntityID,
		Timestamp: env.Timestamp,
	})
	if err != nil {
		return err
	}
	if err := p.rc.Publish(ctx, p.Channel(env.EventType.Topic()), body).Err(); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}
	return nil
}

func (p *Publisher) Ping(ctx context.Context) error {
	return p.rc.Ping(ctx).Err()
}

func (p *Publisher) Close() error {
	return p.rc.Close()
}
