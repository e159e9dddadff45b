package consumer

import (
	"context"
	"strings"
	"time"

	"github.com/md-rashed-zaman/shopsync/libs/kafkax"
	"github.com/segmentio/kafka-go"
)

// Reader is the part of *kafka.Reader the loop uses.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type ReaderConfig struct {
	Brokers  string
	ClientID string
	GroupID  string
	Topics   []string
	// StartOffset is "earliest" or "latest"; it applies when the group has
	// no committed offset yet.
	StartOffset    string
	CommitInterval time.Duration
}

// NewReader builds a consumer-group reader. Offsets are committed in the
// background every CommitInterval, independent of handler completion.
func NewReader(cfg ReaderConfig) *kafka.Reader {
	start := kafka.FirstOffset
	if strings.EqualFold(cfg.StartOffset, "latest") {
		start = kafka.LastOffset
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        kafkax.SplitBrokers(cfg.Brokers),
		GroupID:        cfg.GroupID,
		GroupTopics:    cfg.Topics,
		StartOffset:    start,
		CommitInterval: cfg.CommitInterval,
		MinBytes:       1,
		MaxBytes:       10e6,
		Dialer: &kafka.Dialer{
			ClientID:  cfg.ClientID,
			Timeout:   10 * time.Second,
			DualStack: true,
		},
	})
}
