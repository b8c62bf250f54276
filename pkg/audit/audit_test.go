package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type fakeSink struct {
	calls   int
	entries []Entry
	err     error
}

func (s *fakeSink) Append(_ context.Context, entry Entry) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

type createdRow struct {
	ID int64
}

func (r createdRow) AuditEntityID() int64 { return r.ID }

type shapedResult struct {
	ok  bool
	msg string
	id  int64
}

func (r shapedResult) AuditSuccess() bool        { return r.ok }
func (r shapedResult) AuditErrorMessage() string { return r.msg }
func (r shapedResult) AuditEntityID() int64      { return r.id }

func newTestRecorder(sink Sink) *Recorder {
	return NewRecorder(sink, true, nil)
}

func TestWithAuditReturnsActionResult(t *testing.T) {
	sink := &fakeSink{}
	rec := newTestRecorder(sink)

	got, err := WithAudit(context.Background(), rec, Descriptor{Action: "question.create"}, func(context.Context) (string, error) {
		return "hello", nil
	})
	if err != nil {
		t.Fatalf("WithAudit() error = %v", err)
	}
	if got != "hello" {
		t.Errorf("result = %q, want hello", got)
	}
	if sink.calls != 1 {
		t.Fatalf("sink calls = %d, want 1", sink.calls)
	}
	entry := sink.entries[0]
	if !entry.Success {
		t.Error("entry.Success = false, want true")
	}
	if entry.Action != "question.create" {
		t.Errorf("entry.Action = %q", entry.Action)
	}
	if entry.ErrorMessage != "" {
		t.Errorf("entry.ErrorMessage = %q, want empty", entry.ErrorMessage)
	}
}

func TestWithAuditActionError(t *testing.T) {
	sink := &fakeSink{}
	rec := newTestRecorder(sink)
	sentinel := errors.New("recipient not found")

	_, err := WithAudit(context.Background(), rec, Descriptor{Action: "question.create"}, func(context.Context) (int, error) {
		return 0, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("WithAudit() error = %v, want the action's own error", err)
	}
	if sink.calls != 1 {
		t.Fatalf("sink calls = %d, want 1", sink.calls)
	}
	entry := sink.entries[0]
	if entry.Success {
		t.Error("entry.Success = true for failed action")
	}
	if entry.ErrorMessage != "recipient not found" {
		t.Errorf("entry.ErrorMessage = %q", entry.ErrorMessage)
	}
}

func TestWithAuditFailureShapedResult(t *testing.T) {
	sink := &fakeSink{}
	rec := newTestRecorder(sink)

	got, err := WithAudit(context.Background(), rec, Descriptor{Action: "answer.create", EntityType: EntityAnswer}, func(context.Context) (shapedResult, error) {
		return shapedResult{ok: false, msg: "already answered", id: 7}, nil
	})
	if err != nil {
		t.Fatalf("WithAudit() error = %v, want nil (result carries the failure)", err)
	}
	if got.msg != "already answered" {
		t.Errorf("result passed through changed: %+v", got)
	}

	entry := sink.entries[0]
	if entry.Success {
		t.Error("entry.Success = true for failure-shaped result")
	}
	if entry.ErrorMessage != "already answered" {
		t.Errorf("entry.ErrorMessage = %q", entry.ErrorMessage)
	}
	if entry.EntityID != nil {
		t.Errorf("entry.EntityID = %d, want nil on failure", *entry.EntityID)
	}
}

func TestWithAuditEntityID(t *testing.T) {
	tests := []struct {
		name       string
		entityType EntityType
		wantID     *int64
	}{
		{name: "entity type set", entityType: EntityQuestion, wantID: ptr(int64(42))},
		{name: "no entity type", entityType: "", wantID: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &fakeSink{}
			rec := newTestRecorder(sink)

			_, err := WithAudit(context.Background(), rec, Descriptor{Action: "question.create", EntityType: tt.entityType}, func(context.Context) (createdRow, error) {
				return createdRow{ID: 42}, nil
			})
			if err != nil {
				t.Fatal(err)
			}

			entry := sink.entries[0]
			switch {
			case tt.wantID == nil && entry.EntityID != nil:
				t.Errorf("entry.EntityID = %d, want nil", *entry.EntityID)
			case tt.wantID != nil && (entry.EntityID == nil || *entry.EntityID != *tt.wantID):
				t.Errorf("entry.EntityID = %v, want %d", entry.EntityID, *tt.wantID)
			}
		})
	}
}

func TestWithAuditPanic(t *testing.T) {
	sink := &fakeSink{}
	rec := newTestRecorder(sink)

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		_, _ = WithAudit(context.Background(), rec, Descriptor{Action: "question.delete"}, func(context.Context) (int, error) {
			panic("boom")
		})
	}()

	if recovered != "boom" {
		t.Fatalf("recovered = %v, want the original panic", recovered)
	}
	if sink.calls != 1 {
		t.Fatalf("sink calls = %d, want 1 even when the action panics", sink.calls)
	}
	entry := sink.entries[0]
	if entry.Success {
		t.Error("entry.Success = true for panicking action")
	}
	if entry.ErrorMessage != "boom" {
		t.Errorf("entry.ErrorMessage = %q", entry.ErrorMessage)
	}
}

func TestWithAuditDisabled(t *testing.T) {
	sink := &fakeSink{}

	for _, rec := range []*Recorder{nil, NewRecorder(sink, false, nil)} {
		got, err := WithAudit(context.Background(), rec, Descriptor{Action: "question.create"}, func(context.Context) (int, error) {
			return 5, nil
		})
		if err != nil || got != 5 {
			t.Fatalf("WithAudit() = (%d, %v), want (5, nil)", got, err)
		}
	}

	if sink.calls != 0 {
		t.Errorf("sink calls = %d, want 0 outside production", sink.calls)
	}
}

func TestWithAuditSinkFailureSwallowed(t *testing.T) {
	sink := &fakeSink{err: errors.New("logs table unreachable")}
	rec := newTestRecorder(sink)

	got, err := WithAudit(context.Background(), rec, Descriptor{Action: "question.create"}, func(context.Context) (int, error) {
		return 9, nil
	})
	if err != nil {
		t.Fatalf("WithAudit() error = %v, persistence failure leaked to caller", err)
	}
	if got != 9 {
		t.Errorf("result = %d, want 9", got)
	}
}

func TestWithAuditDegradedPayload(t *testing.T) {
	sink := &fakeSink{}
	rec := newTestRecorder(sink)

	_, err := WithAudit(context.Background(), rec, Descriptor{Action: "question.create", Payload: make(chan int)}, func(context.Context) (int, error) {
		return 0, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	var degraded map[string]string
	if err := json.Unmarshal(sink.entries[0].Payload, &degraded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if degraded["_type"] != "chan int" {
		t.Errorf("degraded _type = %q, want chan int", degraded["_type"])
	}
	if degraded["_raw"] == "" {
		t.Error("degraded _raw is empty")
	}
}

func TestWithAuditCapturesContext(t *testing.T) {
	sink := &fakeSink{}
	rec := newTestRecorder(sink)

	ctx := WithMeta(context.Background(), RequestMeta{IPAddress: "203.0.113.9", GeoCountry: "KR"})
	ctx = WithActor(ctx, "user-123")

	_, err := WithAudit(ctx, rec, Descriptor{Action: "answer.create"}, func(context.Context) (int, error) {
		return 0, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	entry := sink.entries[0]
	if entry.IPAddress != "203.0.113.9" {
		t.Errorf("entry.IPAddress = %q", entry.IPAddress)
	}
	if entry.GeoCountry != "KR" {
		t.Errorf("entry.GeoCountry = %q", entry.GeoCountry)
	}
	if entry.ActorID != "user-123" {
		t.Errorf("entry.ActorID = %q", entry.ActorID)
	}
}

func ptr[T any](v T) *T { return &v }
