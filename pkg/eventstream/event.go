package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/ssechat/pkg/storage"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnAssembled is emitted after a chat turn is assembled and
	// stored.
	EventTypeTurnAssembled = "ssechat.turn.assembled"
)

// TurnAssembledEvent is a transport-neutral event payload for an assembled
// turn.
type TurnAssembledEvent struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	RequestMeta   TurnRequestMeta `json:"request_meta"`
	Record        *storage.Record `json:"record"`
}

// TurnRequestMeta captures request lifecycle metadata for the event.
type TurnRequestMeta struct {
	Path            string `json:"path,omitempty"`
	DurationMs      int64  `json:"duration_ms"`
	HTTPStatus      int    `json:"http_status,omitempty"`
	TerminatedEarly bool   `json:"terminated_early"`
}

// NewTurnAssembledEvent wraps rec in a fresh event.
func NewTurnAssembledEvent(rec *storage.Record, httpStatus int) *TurnAssembledEvent {
	meta := TurnRequestMeta{
		Path:       rec.Path,
		DurationMs: rec.CompletedAt.Sub(rec.StartedAt).Milliseconds(),
		HTTPStatus: httpStatus,
	}
	if rec.Turn != nil {
		meta.TerminatedEarly = rec.Turn.TerminatedEarly
	}

	return &TurnAssembledEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnAssembled,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		RequestMeta:   meta,
		Record:        rec,
	}
}
