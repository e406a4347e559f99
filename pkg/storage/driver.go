// Package storage persists assembled chat turns.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/ssechat/pkg/turn"
)

// Driver defines the interface for persisting and retrieving turn records in
// a storage backend.
type Driver interface {
	// Put stores a record. Returns true if the record was newly inserted,
	// false if a record with the same ID already exists, in which case Put
	// is a no-op.
	Put(ctx context.Context, rec *Record) (bool, error)

	// Get retrieves a record by its ID.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns up to limit records, most recently completed first.
	// A limit of zero or less returns every record.
	List(ctx context.Context, limit int) ([]*Record, error)

	// Close closes the store and releases any resources.
	Close() error
}

// Record is one assembled chat turn and where it came from.
type Record struct {
	ID string `json:"id"`

	// Source names the component that assembled the turn ("proxy", "chat").
	Source string `json:"source"`

	// Path is the request path of the chat endpoint.
	Path string `json:"path,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	// Error is the pipeline error that aborted the turn, if any.
	Error string `json:"error,omitempty"`

	Turn *turn.Result `json:"turn"`
}

// NewRecord returns a record with a fresh ID, completed now.
func NewRecord(source, path string, startedAt time.Time, res *turn.Result, runErr error) *Record {
	rec := &Record{
		ID:          uuid.NewString(),
		Source:      source,
		Path:        path,
		StartedAt:   startedAt.UTC(),
		CompletedAt: time.Now().UTC(),
		Turn:        res,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	return rec
}
