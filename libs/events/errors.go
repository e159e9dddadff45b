package events

import (
	"errors"
	"fmt"
)

// DecodeError means the message bytes are not a valid envelope or the
// payload does not match the handler's shape.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode envelope: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// UnroutableError means no handler can receive the envelope.
type UnroutableError struct {
	EventType Type
	Reason    string
}

func (e *UnroutableError) Error() string {
	if e.EventType == "" {
		return "unroutable event: " + e.Reason
	}
	return fmt.Sprintf("unroutable event %s: %s", e.EventType, e.Reason)
}

// HandlerError wraps a failure raised by a projector.
type HandlerError struct {
	EventType Type
	EventID   string
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handle %s (%s): %v", e.EventType, e.EventID, e.Err)
}
func (e *HandlerError) Unwrap() error { return e.Err }

type TransportKind int

const (
	TransportOther TransportKind = iota
	TransportEndOfPartition
	TransportUnknownTopic
)

func (k TransportKind) String() string {
	switch k {
	case TransportEndOfPartition:
		return "end_of_partition"
	case TransportUnknownTopic:
		return "unknown_topic"
	default:
		return "other"
	}
}

// TransportError is a broker-level read failure.
type TransportError struct {
	Kind TransportKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport (%s): %v", e.Kind, e.Err)
}
func (e *TransportError) Unwrap() error { return e.Err }

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or anything it wraps, was marked
// permanent or is a DecodeError.
func IsPermanent(err error) bool {
	var p *permanentError
	if errors.As(err, &p) {
		return true
	}
	var d *DecodeError
	return errors.As(err, &d)
}
