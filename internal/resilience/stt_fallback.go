package resilience

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/MrWong99/signcascade/pkg/provider/stt"
)

var _ stt.Transcriber = (*STTFallback)(nil)

// STTFallback fails over between transcription backends.
type STTFallback struct {
	group *FallbackGroup[stt.Transcriber]
}

// NewSTTFallback returns a fallback with primary as the preferred backend.
func NewSTTFallback(primary stt.Transcriber, name string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{group: NewFallbackGroup(primary, name, cfg)}
}

// AddFallback registers another backend.
func (f *STTFallback) AddFallback(name string, t stt.Transcriber) {
	f.group.AddFallback(name, t)
}

// Transcribe implements stt.Transcriber. With more than one backend the upload
// is read into memory once so every attempt sees the full file.
func (f *STTFallback) Transcribe(ctx context.Context, audio stt.Audio) (string, error) {
	if f.group.Len() == 1 {
		return Call(ctx, f.group, func(ctx context.Context, t stt.Transcriber) (string, error) {
			return t.Transcribe(ctx, audio)
		})
	}
	data, err := io.ReadAll(audio.Data)
	if err != nil {
		return "", fmt.Errorf("resilience: read upload: %w", err)
	}
	return Call(ctx, f.group, func(ctx context.Context, t stt.Transcriber) (string, error) {
		a := audio
		a.Data = bytes.NewReader(data)
		return t.Transcribe(ctx, a)
	})
}
