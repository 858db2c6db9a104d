package core

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"coopquality/pkg/domain"
)

// AuditStatus is the outcome recorded for an operation.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry is one audited service operation.
type AuditEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	Actor     string            `json:"actor,omitempty"`
	Operation string            `json:"operation"`
	Entity    domain.EntityType `json:"entity"`
	Action    domain.Action     `json:"action"`
	EntityID  string            `json:"entity_id,omitempty"`
	Status    AuditStatus       `json:"status"`
	Duration  time.Duration     `json:"duration_ns"`
	Details   map[string]string `json:"details,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// AuditRecorder receives audit entries. Failures are logged by the service
// and never undo the audited transition.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry) error
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, AuditEntry) error { return nil }

// JSONAuditRecorder appends entries to w as JSON lines.
type JSONAuditRecorder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONAuditRecorder writes entries to w.
func NewJSONAuditRecorder(w io.Writer) *JSONAuditRecorder {
	return &JSONAuditRecorder{enc: json.NewEncoder(w)}
}

// Record implements AuditRecorder.
func (r *JSONAuditRecorder) Record(_ context.Context, entry AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(entry)
}

type actorKey struct{}

// WithActor tags ctx with the user performing the operation; audit entries
// pick it up.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor stored by WithActor.
func ActorFrom(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}
