// Package history keeps a per-user log of resolved texts and transcriptions.
//
// Records are written after a successful resolution and listed newest first.
// The resolution itself never depends on history: a failed Save is logged by
// the caller and the symbols are still returned.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/signcascade/pkg/types"
)

// DefaultListLimit is used when List is called with a limit <= 0.
const DefaultListLimit = 50

// ErrNotFound is returned by Get for an unknown record id.
var ErrNotFound = errors.New("history: record not found")

// Source tells how the resolved text was obtained.
type Source string

const (
	SourceText  Source = "text"
	SourceAudio Source = "audio"
)

// Record is one resolution.
type Record struct {
	ID     uuid.UUID
	UserID string

	// Filename is the uploaded file name for audio records, empty otherwise.
	Filename string

	Source Source

	// Transcript is the text that was resolved: the submitted text, or the
	// (corrected) transcript of the upload.
	Transcript string

	Symbols  types.SymbolSequence
	Strategy string

	CreatedAt time.Time
}

// Store persists records. Implementations must be safe for concurrent use.
type Store interface {
	// Save stores rec. A zero ID or CreatedAt is filled in; the stored record
	// is returned.
	Save(ctx context.Context, rec Record) (Record, error)

	// List returns up to limit records of userID, newest first.
	List(ctx context.Context, userID string, limit int) ([]Record, error)

	// Get returns the record with id or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (Record, error)
}

// Prepare fills in the ID and CreatedAt of rec when unset and copies the
// symbols so the caller's slice is not retained.
func Prepare(rec Record, now time.Time) Record {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now.UTC()
	}
	rec.Symbols = rec.Symbols.Clone()
	return rec
}

// Limit clamps a requested list size.
func Limit(n int) int {
	if n <= 0 {
		return DefaultListLimit
	}
	return n
}
