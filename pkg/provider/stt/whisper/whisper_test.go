package whisper_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/signcascade/pkg/provider/stt"
	"github.com/MrWong99/signcascade/pkg/provider/stt/whisper"
)

// inferenceRequest is what the fake server saw.
type inferenceRequest struct {
	filename string
	content  string
	fields   map[string]string
}

// newServer serves POST /inference, records the parsed form and replies with
// text.
func newServer(t *testing.T, text string, got *inferenceRequest, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if calls != nil {
			calls.Add(1)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if got != nil {
			got.filename = hdr.Filename
			got.content = string(data)
			got.fields = map[string]string{}
			for k, v := range r.MultipartForm.Value {
				got.fields[k] = v[0]
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": text})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_EmptyServerURL(t *testing.T) {
	t.Parallel()
	if _, err := whisper.New(""); err == nil {
		t.Fatal("expected error for empty server URL")
	}
}

func TestTranscribe_SendsMultipartForm(t *testing.T) {
	t.Parallel()
	var got inferenceRequest
	srv := newServer(t, "  hello world how are you \n", &got, nil)

	tr, err := whisper.New(srv.URL+"/", whisper.WithLanguage("de"), whisper.WithModel("base"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	text, err := tr.Transcribe(context.Background(), stt.Audio{
		Filename: "clip.mp3",
		Data:     strings.NewReader("ID3-fake-audio"),
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello world how are you" {
		t.Errorf("text = %q", text)
	}
	if got.filename != "clip.mp3" || got.content != "ID3-fake-audio" {
		t.Errorf("file = %q %q", got.filename, got.content)
	}
	want := map[string]string{"language": "de", "response_format": "json", "model": "base"}
	for k, v := range want {
		if got.fields[k] != v {
			t.Errorf("field %s = %q, want %q", k, got.fields[k], v)
		}
	}
}

func TestTranscribe_OmitsEmptyModel(t *testing.T) {
	t.Parallel()
	var got inferenceRequest
	srv := newServer(t, "ok", &got, nil)
	tr, _ := whisper.New(srv.URL)

	if _, err := tr.Transcribe(context.Background(), stt.Audio{Filename: "a.wav", Data: strings.NewReader("RIFF")}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if _, ok := got.fields["model"]; ok {
		t.Error("model field sent although unset")
	}
	if got.fields["language"] != "en" {
		t.Errorf("default language = %q, want en", got.fields["language"])
	}
}

func TestTranscribe_RejectsUnsupportedFormat(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := newServer(t, "never", nil, &calls)
	tr, _ := whisper.New(srv.URL)

	_, err := tr.Transcribe(context.Background(), stt.Audio{Filename: "slides.pdf", Data: strings.NewReader("%PDF")})
	if !errors.Is(err, stt.ErrUnsupportedFormat) {
		t.Fatalf("error = %v, want ErrUnsupportedFormat", err)
	}
	if calls.Load() != 0 {
		t.Error("server called for unsupported format")
	}
}

func TestTranscribe_ServerErrorIncludesBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "failed to read audio", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	tr, _ := whisper.New(srv.URL)

	_, err := tr.Transcribe(context.Background(), stt.Audio{Filename: "a.ogg", Data: strings.NewReader("x")})
	if err == nil || !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "failed to read audio") {
		t.Errorf("error = %v", err)
	}
}

func TestTranscribe_ErrorField(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"error":"no model loaded"}`)
	}))
	t.Cleanup(srv.Close)
	tr, _ := whisper.New(srv.URL)

	_, err := tr.Transcribe(context.Background(), stt.Audio{Filename: "a.flac", Data: strings.NewReader("x")})
	if err == nil || !strings.Contains(err.Error(), "no model loaded") {
		t.Errorf("error = %v", err)
	}
}

func TestTranscribe_Timeout(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	tr, _ := whisper.New(srv.URL, whisper.WithTimeout(50*time.Millisecond))

	if _, err := tr.Transcribe(context.Background(), stt.Audio{Filename: "a.mp4", Data: strings.NewReader("x")}); err == nil {
		t.Fatal("expected timeout error")
	}
}
