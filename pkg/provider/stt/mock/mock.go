// Package mock provides a test double for the stt.Transcriber interface.
//
// Example:
//
//	tr := &mock.Transcriber{Text: "hello world"}
//	text, _ := tr.Transcribe(ctx, stt.Audio{Filename: "a.wav", Data: r})
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/MrWong99/signcascade/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	Ctx         context.Context
	Filename    string
	ContentType string
	// Data is the full content read from the audio reader.
	Data []byte
}

// Transcriber is a mock implementation of stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Text is returned by every successful call.
	Text string

	// Err, if non-nil, is returned instead.
	Err error

	// CheckFormat makes Transcribe reject unsupported extensions like a real
	// backend does.
	CheckFormat bool

	// Calls records every call in order.
	Calls []TranscribeCall
}

var _ stt.Transcriber = (*Transcriber)(nil)

// Transcribe implements stt.Transcriber. It drains audio.Data.
func (m *Transcriber) Transcribe(ctx context.Context, audio stt.Audio) (string, error) {
	var data []byte
	if audio.Data != nil {
		b, err := io.ReadAll(audio.Data)
		if err != nil {
			return "", err
		}
		data = b
	}

	m.mu.Lock()
	m.Calls = append(m.Calls, TranscribeCall{Ctx: ctx, Filename: audio.Filename, ContentType: audio.ContentType, Data: data})
	text, err, check := m.Text, m.Err, m.CheckFormat
	m.mu.Unlock()

	if check {
		if ferr := stt.CheckFormat(audio.Filename); ferr != nil {
			return "", ferr
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return text, err
}

// CallCount returns the number of Transcribe calls so far.
func (m *Transcriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
