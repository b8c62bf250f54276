package api

import "context"

// publishJSON emits a domain event best-effort. Event delivery never fails a
// request; a publish error is only logged.
func (a *API) publishJSON(ctx context.Context, subject string, payload map[string]any) {
	if a.bus == nil || subject == "" {
		return
	}
	if err := a.bus.Publish(ctx, subject, payload); err != nil && a.logger != nil {
		a.logger.Printf("WARN publish %s failed: %v", subject, err)
	}
}
