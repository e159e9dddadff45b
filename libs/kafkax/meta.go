package kafkax

import (
	"strings"

	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventID        = "event_id"
	HeaderEventType      = "event_type"
	HeaderDLQReason      = "dlq_reason"
	HeaderDLQSourceTopic = "dlq_source_topic"
)

// EventMeta is the routing metadata mirrored into Kafka headers so brokers
// and tooling can inspect a message without decoding its value.
type EventMeta struct {
	EventID   string
	EventType string
}

func ExtractEventMeta(msg kafka.Message) EventMeta {
	return EventMeta{
		EventID:   HeaderValue(msg.Headers, HeaderEventID),
		EventType: HeaderValue(msg.Headers, HeaderEventType),
	}
}

func MetaHeaders(meta EventMeta) []kafka.Header {
	var headers []kafka.Header
	if meta.EventID != "" {
		headers = append(headers, kafka.Header{Key: HeaderEventID, Value: []byte(meta.EventID)})
	}
	if meta.EventType != "" {
		headers = append(headers, kafka.Header{Key: HeaderEventType, Value: []byte(meta.EventType)})
	}
	return headers
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// SetHeader replaces key in place or appends it.
func SetHeader(headers []kafka.Header, key, value string) []kafka.Header {
	for i := range headers {
		if headers[i].Key == key {
			headers[i].Value = []byte(value)
			return headers
		}
	}
	return append(headers, kafka.Header{Key: key, Value: []byte(value)})
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
