package audit

import (
	"context"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var droppedEntries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "goongoom_audit_entries_dropped_total",
	Help: "Audit entries that failed to persist and were abandoned.",
})

// Sink persists audit entries. Implementations must treat entries as
// append-only rows.
type Sink interface {
	Append(ctx context.Context, entry Entry) error
}

// Recorder writes audit entries best-effort: persistence failures are
// counted and logged, never returned, never retried. A disabled recorder
// (non-production runtime) performs no writes at all.
type Recorder struct {
	sink    Sink
	enabled bool
	logger  *log.Logger
}

// NewRecorder constructs a Recorder. enabled is expected to be true only in
// the production runtime mode.
func NewRecorder(sink Sink, enabled bool, logger *log.Logger) *Recorder {
	return &Recorder{sink: sink, enabled: enabled, logger: logger}
}

// Enabled reports whether guarded actions should produce audit rows.
func (r *Recorder) Enabled() bool {
	return r != nil && r.enabled && r.sink != nil
}

func (r *Recorder) record(ctx context.Context, entry Entry) {
	if !r.Enabled() {
		return
	}
	if err := r.sink.Append(ctx, entry); err != nil {
		droppedEntries.Inc()
		if r.logger != nil {
			r.logger.Printf("ERROR audit entry dropped for action %s: %v", entry.Action, err)
		}
	}
}
