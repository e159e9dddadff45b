package consumer

import (
	"errors"
	"io"

	"github.com/md-rashed-zaman/shopsync/libs/events"
	"github.com/segmentio/kafka-go"
)

func classifyTransport(err error) *events.TransportError {
	kind := events.TransportOther
	switch {
	case errors.Is(err, io.EOF):
		kind = events.TransportEndOfPartition
	case errors.Is(err, kafka.UnknownTopicOrPartition):
		kind = events.TransportUnknownTopic
	}
	return &events.TransportError{Kind: kind, Err: err}
}
