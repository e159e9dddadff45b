package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the wire format of Envelope.Timestamp (ISO-8601, UTC).
const TimestampLayout = time.RFC3339Nano

// Envelope is the wire structure carried on every topic.
type Envelope struct {
	EventType Type            `json:"event_type"`
	EventID   string          `json:"event_id"`
	Timestamp string          `json:"timestamp"`
	EntityID  string          `json:"entity_id"`
	Data      json.RawMessage `json:"data"`
}

// NewEnvelope wraps data with a fresh event id and the given time.
func NewEnvelope(eventType Type, entityID string, data any, now time.Time) (Envelope, error) {
	raw, err := marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s data: %w", eventType, err)
	}
	if bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	return Envelope{
		EventType: eventType,
		EventID:   uuid.NewString(),
		Timestamp: now.UTC().Format(TimestampLayout),
		EntityID:  entityID,
		Data:      raw,
	}, nil
}

// Encode serializes the envelope as compact JSON. &, < and > are written
// as-is so data from other producers survives a decode/encode cycle.
func Encode(env Envelope) ([]byte, error) {
	b, err := marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return b, nil
}

// marshal is json.Marshal without HTML escaping.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Decode parses message bytes. Only malformed JSON fails here; routing
// problems are reported by Validate so the consumer can classify them.
func Decode(b []byte) (Envelope, error) {
	var env Envelope
	if len(bytes.TrimSpace(b)) == 0 {
		return Envelope{}, &DecodeError{Err: errors.New("empty message")}
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, &DecodeError{Err: err}
	}
	if len(env.Data) > 0 {
		var buf bytes.Buffer
		if err := json.Compact(&buf, env.Data); err == nil {
			env.Data = buf.Bytes()
		}
	}
	return env, nil
}

// Validate checks the fields a consumer needs for routing.
func (e Envelope) Validate() error {
	if strings.TrimSpace(string(e.EventType)) == "" {
		return &UnroutableError{Reason: "missing event_type"}
	}
	if _, err := ParseType(string(e.EventType)); err != nil {
		return &UnroutableError{EventType: e.EventType, Reason: err.Error()}
	}
	return nil
}

// Time parses the envelope timestamp; the zero time is returned on failure.
func (e Envelope) Time() (time.Time, bool) {
	if e.Timestamp == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(TimestampLayout, e.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
