package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestModelDimensions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		model string
		want  int
	}{
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},
		{"bge-base-en", 0},
	}
	for _, tt := range tests {
		if got := modelDimensions(tt.model); got != tt.want {
			t.Errorf("modelDimensions(%q) = %d, want %d", tt.model, got, tt.want)
		}
	}
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	if _, err := New("", ""); err == nil {
		t.Error("New without key or base URL: expected error")
	}
	p, err := New("", "bge-base-en", WithBaseURL("http://localhost:8080/v1"))
	if err != nil {
		t.Fatalf("New with base URL and no key: %v", err)
	}
	if p.ModelID() != "bge-base-en" {
		t.Errorf("ModelID = %q", p.ModelID())
	}
	p, err = New("sk-test", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.ModelID() != DefaultModel {
		t.Errorf("ModelID = %q, want %q", p.ModelID(), DefaultModel)
	}
}

func TestWithDimensions_Truncation(t *testing.T) {
	t.Parallel()
	p, err := New("sk-test", "text-embedding-3-large", WithDimensions(768))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !p.truncate || p.Dimensions() != 768 {
		t.Errorf("3-large with 768: truncate=%v dims=%d", p.truncate, p.Dimensions())
	}

	p, err = New("sk-test", "bge-base-en", WithDimensions(768))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.truncate {
		t.Error("non text-embedding-3 model must not request truncation")
	}
}

// compatServer emulates the OpenAI /embeddings endpoint, replying with the
// inputs in reverse index order to exercise index-based reassembly.
func compatServer(t *testing.T, vectors map[string][]float64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Input any    `json:"input"`
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var inputs []string
		switch v := req.Input.(type) {
		case string:
			inputs = []string{v}
		case []any:
			for _, s := range v {
				inputs = append(inputs, s.(string))
			}
		}
		data := make([]map[string]any, 0, len(inputs))
		for i := len(inputs) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": vectors[inputs[i]],
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbed_CompatibleServer(t *testing.T) {
	t.Parallel()
	srv := compatServer(t, map[string][]float64{
		"hello": {0.5, 0.25},
		"world": {0.125, 1},
	})
	p, err := New("", "bge-base-en", WithBaseURL(srv.URL+"/v1"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	vec, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 || vec[1] != 0.25 {
		t.Errorf("Embed(hello) = %v", vec)
	}

	batch, err := p.EmbedBatch(context.Background(), []string{"hello", "world"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if batch[0][0] != 0.5 || batch[1][0] != 0.125 {
		t.Errorf("EmbedBatch = %v, want index-ordered vectors", batch)
	}
}
