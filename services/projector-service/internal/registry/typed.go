package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/md-rashed-zaman/shopsync/libs/events"
)

// Handle registers fn for eventType with the envelope data decoded into P.
// A payload that does not fit P is a permanent failure.
func Handle[P any](r *Registry, eventType events.Type, fn func(ctx context.Context, env events.Envelope, payload P) error) error {
	return r.Register(eventType, func(ctx context.Context, env events.Envelope) error {
		var payload P
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				return &events.DecodeError{Err: fmt.Errorf("%s payload: %w", eventType, err)}
			}
		}
		return fn(ctx, env, payload)
	})
}
