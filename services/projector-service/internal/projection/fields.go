package projection

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/shopsync/libs/events"
	"github.com/md-rashed-zaman/shopsync/services/projector-service/internal/storage"
)

// eventInfo is what every handler needs from the envelope besides the payload.
type eventInfo struct {
	entityID string
	at       time.Time
	audit    storage.Audit
}

func infoOf(env events.Envelope) (eventInfo, error) {
	if strings.TrimSpace(env.EntityID) == "" {
		return eventInfo{}, events.Permanent(fmt.Errorf("%s %s: missing entity_id", env.EventType, env.EventID))
	}
	at, ok := env.Time()
	if !ok {
		return eventInfo{}, events.Permanent(fmt.Errorf("%s %s: invalid timestamp %q", env.EventType, env.EventID, env.Timestamp))
	}
	return eventInfo{
		entityID: env.EntityID,
		at:       at,
		audit:    storage.Audit{EventID: env.EventID, EventTimestamp: at},
	}, nil
}

// missingRow turns ErrNotFound from a partial update into a logged no-op.
func missingRow(logger *slog.Logger, env events.Envelope, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		logger.Info("projection row missing, event ignored",
			"event_type", env.EventType,
			"event_id", env.EventID,
			"entity_id", env.EntityID,
		)
		return nil
	}
	return err
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// parseTime accepts RFC 3339 and zone-less ISO timestamps; zone-less values
// are taken as UTC. Empty or unparseable input yields nil.
func parseTime(raw *string) *time.Time {
	if raw == nil {
		return nil
	}
	v := strings.TrimSpace(*raw)
	if v == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func timeOr(raw *string, fallback time.Time) time.Time {
	if t := parseTime(raw); t != nil {
		return *t
	}
	return fallback
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// intField decodes a JSON number or a numeric string such as "10000".
// Any other value leaves the field absent.
type intField struct {
	v  int64
	ok bool
}

func (f *intField) UnmarshalJSON(b []byte) error {
	*f = intField{}
	s, ok := numericText(b)
	if !ok {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = intField{v: n, ok: true}
		return nil
	}
	// 100.0 from producers that do not distinguish ints and floats.
	if x, err := strconv.ParseFloat(s, 64); err == nil && x == math.Trunc(x) && math.Abs(x) < 1<<62 {
		*f = intField{v: int64(x), ok: true}
	}
	return nil
}

func (f intField) ptr() *int64 {
	if !f.ok {
		return nil
	}
	v := f.v
	return &v
}

type floatField struct {
	v  float64
	ok bool
}

func (f *floatField) UnmarshalJSON(b []byte) error {
	*f = floatField{}
	s, ok := numericText(b)
	if !ok {
		return nil
	}
	if x, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(x, 0) && !math.IsNaN(x) {
		*f = floatField{v: x, ok: true}
	}
	return nil
}

func (f floatField) ptr() *float64 {
	if !f.ok {
		return nil
	}
	v := f.v
	return &v
}

// numericText returns the digits of a JSON number or of a string holding one.
func numericText(b []byte) (string, bool) {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", false
		}
		b = []byte(strings.TrimSpace(s))
	}
	if len(b) == 0 || !(b[0] == '-' || b[0] == '+' || b[0] == '.' || (b[0] >= '0' && b[0] <= '9')) {
		return "", false
	}
	return string(b), true
}

func i64(f intField) int64 { return f.v }

func f64(f floatField) float64 { return f.v }

// jsonText keeps a nested payload value as compact JSON text; absent and null
// values are stored as NULL.
func jsonText(raw json.RawMessage) *string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil
	}
	s := buf.String()
	return &s
}
