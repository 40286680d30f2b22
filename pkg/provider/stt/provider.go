// Package stt defines the Transcriber interface for batch Speech-to-Text
// backends.
//
// An uploaded audio or video file is sent in one request and the backend
// returns the full transcript. Transcripts of speech carry no reliable
// punctuation, which is why the resolver restores it before sentence
// segmentation.
package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
)

// SupportedExtensions are the upload formats accepted for transcription.
// Backends convert containers and codecs themselves.
var SupportedExtensions = []string{".mp3", ".wav", ".ogg", ".flac", ".mp4", ".mov", ".avi", ".mkv", ".webm"}

// ErrUnsupportedFormat is returned for files whose extension is not in
// SupportedExtensions.
var ErrUnsupportedFormat = errors.New("stt: unsupported audio format")

// Audio is one file to transcribe.
type Audio struct {
	// Filename is the original upload name. Its extension selects the format.
	Filename string

	// ContentType is the MIME type if known, e.g. "audio/wav".
	ContentType string

	// Data is read once to the end.
	Data io.Reader
}

// CheckFormat returns ErrUnsupportedFormat unless filename has a supported
// extension. The comparison ignores case.
func CheckFormat(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(SupportedExtensions, ext) {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filename)
	}
	return nil
}

// Transcriber is the abstraction over any batch STT backend. Implementations
// must be safe for concurrent use.
type Transcriber interface {
	// Transcribe returns the text spoken in audio. Silence yields "".
	Transcribe(ctx context.Context, audio Audio) (string, error)
}
