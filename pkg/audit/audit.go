// Package audit wraps state-changing actions with append-only request
// logging. The wrapper is transparent: the action's result and error reach
// the caller untouched, and no logging failure ever becomes the caller's
// failure.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
)

// WithAudit runs action under an audit guard. Exactly one entry is recorded
// per invocation, on every exit path: normal return, failure-shaped result,
// returned error, or panic (the panic is re-raised after the entry is
// written). When the recorder is disabled the action runs unobserved.
func WithAudit[T any](ctx context.Context, rec *Recorder, d Descriptor, action func(context.Context) (T, error)) (T, error) {
	if !rec.Enabled() {
		return action(ctx)
	}

	entry := Entry{
		RequestMeta: MetaFromContext(ctx),
		ActorID:     ActorFromContext(ctx),
		Action:      d.Action,
		Payload:     marshalPayload(d.Payload),
		EntityType:  d.EntityType,
	}

	var (
		result T
		err    error
	)

	defer func() {
		if p := recover(); p != nil {
			entry.Success = false
			entry.ErrorMessage = fmt.Sprint(p)
			rec.record(ctx, entry)
			panic(p)
		}
	}()

	result, err = action(ctx)

	entry.Success = err == nil
	if res, ok := any(result).(Resulter); ok && !res.AuditSuccess() {
		entry.Success = false
		entry.ErrorMessage = res.AuditErrorMessage()
	}
	if err != nil {
		entry.Success = false
		entry.ErrorMessage = err.Error()
	}
	if d.EntityType != "" && entry.Success {
		if ent, ok := any(result).(Entity); ok {
			id := ent.AuditEntityID()
			entry.EntityID = &id
		}
	}

	rec.record(ctx, entry)

	return result, err
}

// marshalPayload serializes the descriptor payload, degrading to a raw
// representation when the value is not JSON-safe. Logging must never be the
// reason a business action fails.
func marshalPayload(payload any) json.RawMessage {
	if payload == nil {
		return nil
	}

	data, err := json.Marshal(payload)
	if err == nil {
		return data
	}

	degraded := map[string]string{
		"_raw":  fmt.Sprint(payload),
		"_type": fmt.Sprintf("%T", payload),
	}
	data, err = json.Marshal(degraded)
	if err != nil {
		return nil
	}
	return data
}
