// Package media serves the sign videos that symbol identifiers refer to.
//
// Every identifier a resolution emits (sentence id, word id or single letter)
// maps to one video named "<id>.mp4" in a [Store].
package media

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ContentType of every stored video.
const ContentType = "video/mp4"

// Extension appended to an identifier to form the object name.
const Extension = ".mp4"

// ErrNotFound is returned for identifiers without a video, including
// identifiers that cannot name a file safely.
var ErrNotFound = errors.New("media: video not found")

// Video is an open video. The caller must Close it.
type Video struct {
	io.ReadCloser
	Size        int64
	ContentType string
	ModTime     time.Time
}

// Store opens videos by symbol identifier.
type Store interface {
	Open(ctx context.Context, id string) (*Video, error)

	// Exists reports whether id has a video without opening it.
	Exists(ctx context.Context, id string) (bool, error)
}

// ValidID reports whether id can be used as an object name. Identifiers may
// not contain path separators or NUL, may not be "." or "..", and may not
// start with a dot.
func ValidID(id string) bool {
	if id == "" || len(id) > 200 {
		return false
	}
	if strings.HasPrefix(id, ".") {
		return false
	}
	return !strings.ContainsAny(id, "/\\\x00")
}

// Entry is one playlist position.
type Entry struct {
	ID        string `json:"id"`
	Available bool   `json:"available"`
}

// Playlist reports for every id, in order, whether a video exists. Repeated
// ids are checked once.
func Playlist(ctx context.Context, s Store, ids []string) ([]Entry, error) {
	out := make([]Entry, len(ids))
	seen := make(map[string]bool, len(ids))
	for i, id := range ids {
		ok, checked := seen[id]
		if !checked {
			var err error
			if ok, err = s.Exists(ctx, id); err != nil {
				return nil, err
			}
			seen[id] = ok
		}
		out[i] = Entry{ID: id, Available: ok}
	}
	return out, nil
}
