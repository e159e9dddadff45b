package consumer

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

type counters struct {
	received        atomic.Uint64
	applied         atomic.Uint64
	decodeErrors    atomic.Uint64
	unroutable      atomic.Uint64
	handlerErrors   atomic.Uint64
	transportErrors atomic.Uint64
	retries         atomic.Uint64
	deadLettered    atomic.Uint64
	lastApplied     atomic.Int64
}

type Stats struct {
	State           string     `json:"state"`
	Received        uint64     `json:"received"`
	Applied         uint64     `json:"applied"`
	DecodeErrors    uint64     `json:"decode_errors"`
	Unroutable      uint64     `json:"unroutable"`
	HandlerErrors   uint64     `json:"handler_errors"`
	TransportErrors uint64     `json:"transport_errors"`
	Retries         uint64     `json:"retries"`
	DeadLettered    uint64     `json:"dead_lettered"`
	LastAppliedAt   *time.Time `json:"last_applied_at,omitempty"`
	Lag             *int64     `json:"lag,omitempty"`
}

type lagReporter interface {
	Stats() kafka.ReaderStats
}

func (c *Consumer) Stats() Stats {
	s := Stats{
		State:           c.State().String(),
		Received:        c.stats.received.Load(),
		Applied:         c.stats.applied.Load(),
		DecodeErrors:    c.stats.decodeErrors.Load(),
		Unroutable:      c.stats.unroutable.Load(),
		HandlerErrors:   c.stats.handlerErrors.Load(),
		TransportErrors: c.stats.transportErrors.Load(),
		Retries:         c.stats.retries.Load(),
		DeadLettered:    c.stats.deadLettered.Load(),
	}
	if ns := c.stats.lastApplied.Load(); ns > 0 {
		t := time.Unix(0, ns).UTC()
		s.LastAppliedAt = &t
	}
	if lr, ok := c.reader.(lagReporter); ok {
		lag := lr.Stats().Lag
		s.Lag = &lag
	}
	return s
}

// StatsHandler serves Stats as JSON.
func (c *Consumer) StatsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(c.Stats())
	})
}
