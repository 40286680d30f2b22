package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/MrWong99/signcascade/internal/app"
	"github.com/MrWong99/signcascade/internal/cascade"
	"github.com/MrWong99/signcascade/internal/config"
	"github.com/MrWong99/signcascade/internal/corpus"
	"github.com/MrWong99/signcascade/internal/history"
	"github.com/MrWong99/signcascade/internal/media"
	"github.com/MrWong99/signcascade/internal/textnorm"
	embmock "github.com/MrWong99/signcascade/pkg/provider/embeddings/mock"
	"github.com/MrWong99/signcascade/pkg/provider/llm"
	llmmock "github.com/MrWong99/signcascade/pkg/provider/llm/mock"
	"github.com/MrWong99/signcascade/pkg/provider/stt"
	sttmock "github.com/MrWong99/signcascade/pkg/provider/stt/mock"
	"github.com/MrWong99/signcascade/pkg/types"
)

var helloWorld = types.SymbolSequence{"h", "e", "l", "l", "o", "WORLD_SIGN"}

// testConfig returns a defaulted config. Corpus paths are unused when the
// corpora are injected.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Media.Dir = t.TempDir()
	return cfg
}

func testEmbedder() *embmock.Provider {
	return &embmock.Provider{
		Vectors: map[string][]float32{
			"good morning": {1, 0},
			"world":        {1, 0},
		},
		EmbedResult:     []float32{0, 1},
		DimensionsValue: 2,
		ModelIDValue:    "test-embed",
	}
}

func testSet(t *testing.T) *corpus.Set {
	t.Helper()
	s, err := corpus.New(types.Sentence, "sentences.csv", []types.ReferenceEntry{{ID: "GOOD_MORNING", Vector: []float32{1, 0}}})
	if err != nil {
		t.Fatal(err)
	}
	w, err := corpus.New(types.Word, "words.csv", []types.ReferenceEntry{{ID: "WORLD_SIGN", Vector: []float32{1, 0}}})
	if err != nil {
		t.Fatal(err)
	}
	return &corpus.Set{Sentences: s, Words: w}
}

func testNormalizer(t *testing.T) *textnorm.Normalizer {
	t.Helper()
	n, err := textnorm.New(
		textnorm.WithLemmatizer(textnorm.Identity),
		textnorm.WithSegmenter(textnorm.SegmentFunc(func(text string) []string {
			var out []string
			for _, s := range strings.Split(text, ".") {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
			return out
		})),
	)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func newApp(t *testing.T, cfg *config.Config, providers *app.Providers, opts ...app.Option) *app.App {
	t.Helper()
	opts = append([]app.Option{
		app.WithCorpora(testSet(t)),
		app.WithNormalizer(testNormalizer(t)),
		app.WithHistory(history.NewMemoryStore(100)),
	}, opts...)
	a, err := app.New(context.Background(), cfg, providers, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func TestNew_RequiresEmbeddings(t *testing.T) {
	t.Parallel()
	if _, err := app.New(context.Background(), testConfig(t), &app.Providers{}); err == nil {
		t.Fatal("New without embeddings provider: want error")
	}
}

func TestNew_LoadsCorporaFromDisk(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		return p
	}
	cfg := testConfig(t)
	cfg.Corpus.Sentences = write("sentences.csv", "SENTENCE_NAME,e0,e1\nGOOD_MORNING,1,0\n")
	cfg.Corpus.Words = write("words.csv", "WORD_NAME,e0,e1\nWORLD_SIGN,1,0\n")

	a, err := app.New(context.Background(), cfg, &app.Providers{Embeddings: testEmbedder()},
		app.WithNormalizer(testNormalizer(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	if n := a.Corpora().Words.Len(); n != 1 {
		t.Errorf("word corpus rows = %d, want 1", n)
	}
	res, err := a.ResolveText(context.Background(), "u1", "hello world", "")
	if err != nil {
		t.Fatalf("ResolveText: %v", err)
	}
	if !slices.Equal(res.Symbols, helloWorld) {
		t.Errorf("Symbols = %v, want %v", res.Symbols, helloWorld)
	}
}

func TestNew_CorpusWidthMismatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := testConfig(t)
	cfg.Corpus.Sentences = filepath.Join(dir, "s.csv")
	cfg.Corpus.Words = filepath.Join(dir, "w.csv")
	_ = os.WriteFile(cfg.Corpus.Sentences, []byte("SENTENCE_NAME,a,b,c\nX,1,0,0\n"), 0o600)
	_ = os.WriteFile(cfg.Corpus.Words, []byte("WORD_NAME,a,b,c\nY,1,0,0\n"), 0o600)

	_, err := app.New(context.Background(), cfg, &app.Providers{Embeddings: testEmbedder()},
		app.WithNormalizer(testNormalizer(t)),
	)
	var lerr *corpus.CorpusLoadError
	if !errors.As(err, &lerr) {
		t.Fatalf("New: err = %v, want *corpus.CorpusLoadError", err)
	}
}

func TestNew_UnknownEmbeddingWidth(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := testConfig(t)
	cfg.Corpus.Sentences = filepath.Join(dir, "s.csv")
	cfg.Corpus.Words = filepath.Join(dir, "w.csv")
	_ = os.WriteFile(cfg.Corpus.Sentences, []byte("SENTENCE_NAME,a,b\nX,1,0\n"), 0o600)
	_ = os.WriteFile(cfg.Corpus.Words, []byte("WORD_NAME,a,b\nY,1,0\n"), 0o600)

	down := errors.New("connection refused")
	p := &embmock.Provider{EmbedErr: down, ModelIDValue: "unlisted-model"}
	a, err := app.New(context.Background(), cfg, &app.Providers{Embeddings: p},
		app.WithNormalizer(testNormalizer(t)),
	)
	if err == nil {
		_ = a.Shutdown(context.Background())
		t.Fatal("New succeeded without a known embedding width")
	}
	var lerr *corpus.CorpusLoadError
	if !errors.As(err, &lerr) {
		t.Fatalf("New: err = %v, want *corpus.CorpusLoadError", err)
	}
	if !errors.Is(err, down) {
		t.Errorf("New: err = %v, want it to wrap the embedding failure", err)
	}
}

func TestResolveText_RecordsHistory(t *testing.T) {
	t.Parallel()
	a := newApp(t, testConfig(t), &app.Providers{Embeddings: testEmbedder()})
	ctx := context.Background()

	res, err := a.ResolveText(ctx, "alice", "hello world", "")
	if err != nil {
		t.Fatalf("ResolveText: %v", err)
	}
	if !slices.Equal(res.Symbols, helloWorld) {
		t.Errorf("Symbols = %v, want %v", res.Symbols, helloWorld)
	}
	if res.Strategy != cascade.SentenceFirst {
		t.Errorf("Strategy = %q, want default", res.Strategy)
	}
	if res.RecordID == uuid.Nil {
		t.Fatal("RecordID not set")
	}

	recs, err := a.History(ctx, "alice", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != res.RecordID || recs[0].Source != history.SourceText {
		t.Errorf("History = %+v", recs)
	}
	if others, _ := a.History(ctx, "bob", 0); len(others) != 0 {
		t.Errorf("History(bob) = %d records, want 0", len(others))
	}

	rec, err := a.Record(ctx, res.RecordID)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.Transcript != "hello world" {
		t.Errorf("Transcript = %q", rec.Transcript)
	}
}

func TestResolveText_Strategies(t *testing.T) {
	t.Parallel()
	a := newApp(t, testConfig(t), &app.Providers{Embeddings: testEmbedder()})

	tests := []struct {
		strategy string
		text     string
		want     types.SymbolSequence
		wantErr  error
	}{
		{strategy: "sentence_first", text: "good morning", want: types.SymbolSequence{"GOOD_MORNING"}},
		{strategy: "word_first", text: "world", want: types.SymbolSequence{"WORLD_SIGN"}},
		{strategy: "diagonal", text: "world", wantErr: cascade.ErrUnknownStrategy},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			got, err := a.ResolveText(context.Background(), "u", tt.text, tt.strategy)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveText: %v", err)
			}
			if !slices.Equal(got.Symbols, tt.want) {
				t.Errorf("Symbols = %v, want %v", got.Symbols, tt.want)
			}
		})
	}
}

func TestResolveText_EmptyInput(t *testing.T) {
	t.Parallel()
	p := testEmbedder()
	a := newApp(t, testConfig(t), &app.Providers{Embeddings: p})

	res, err := a.ResolveText(context.Background(), "u", "", "")
	if err != nil {
		t.Fatalf("ResolveText: %v", err)
	}
	if len(res.Symbols) != 0 {
		t.Errorf("Symbols = %v, want empty", res.Symbols)
	}
	if n := p.CallCount(); n != 0 {
		t.Errorf("embed calls = %d, want 0", n)
	}
}

// failingHistory rejects every save.
type failingHistory struct{ history.Store }

func (failingHistory) Save(context.Context, history.Record) (history.Record, error) {
	return history.Record{}, errors.New("disk full")
}

func TestResolveText_HistoryFailureIsNotFatal(t *testing.T) {
	t.Parallel()
	a := newApp(t, testConfig(t), &app.Providers{Embeddings: testEmbedder()},
		app.WithHistory(failingHistory{history.NewMemoryStore(1)}),
	)
	res, err := a.ResolveText(context.Background(), "u", "world", "")
	if err != nil {
		t.Fatalf("ResolveText: %v", err)
	}
	if res.RecordID != uuid.Nil {
		t.Errorf("RecordID = %v, want nil uuid", res.RecordID)
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()
	tr := &sttmock.Transcriber{Text: "hello world"}
	a := newApp(t, testConfig(t), &app.Providers{Embeddings: testEmbedder(), STT: tr})

	res, err := a.Transcribe(context.Background(), "alice", stt.Audio{
		Filename: "clip.WAV",
		Data:     strings.NewReader("RIFF"),
	}, "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Transcript != "hello world" || !slices.Equal(res.Symbols, helloWorld) {
		t.Errorf("Transcribe = %q %v", res.Transcript, res.Symbols)
	}
	if tr.CallCount() != 1 || string(tr.Calls[0].Data) != "RIFF" {
		t.Errorf("transcriber calls = %+v", tr.Calls)
	}
	recs, _ := a.History(context.Background(), "alice", 1)
	if len(recs) != 1 || recs[0].Source != history.SourceAudio || recs[0].Filename != "clip.WAV" {
		t.Errorf("History = %+v", recs)
	}
}

func TestTranscribe_Errors(t *testing.T) {
	t.Parallel()
	sttErr := errors.New("backend down")
	tests := []struct {
		name     string
		stt      stt.Transcriber
		filename string
		want     error
	}{
		{"no backend", nil, "a.wav", app.ErrSTTUnavailable},
		{"unsupported format", &sttmock.Transcriber{}, "notes.txt", stt.ErrUnsupportedFormat},
		{"backend failure", &sttmock.Transcriber{Err: sttErr}, "a.mp3", sttErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := newApp(t, testConfig(t), &app.Providers{Embeddings: testEmbedder(), STT: tt.stt})
			_, err := a.Transcribe(context.Background(), "u", stt.Audio{Filename: tt.filename, Data: strings.NewReader("x")}, "")
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTranscribe_CorrectionEnabled(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Transcript.VocabularyCorrection = true
	a := newApp(t, cfg, &app.Providers{
		Embeddings: testEmbedder(),
		STT:        &sttmock.Transcriber{Text: "world"},
	})
	res, err := a.Transcribe(context.Background(), "u", stt.Audio{Filename: "a.ogg", Data: strings.NewReader("x")}, "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Corrections == nil {
		t.Error("Corrections is nil, want empty slice")
	}
	if !slices.Equal(res.Symbols, types.SymbolSequence{"WORLD_SIGN"}) {
		t.Errorf("Symbols = %v", res.Symbols)
	}
}

func TestApplyConfig(t *testing.T) {
	t.Parallel()
	var level slog.LevelVar
	restorer := &llmmock.Provider{Response: &llm.CompletionResponse{Content: "good morning."}}
	old := testConfig(t)
	a := newApp(t, old, &app.Providers{Embeddings: testEmbedder(), LLM: restorer}, app.WithLevelVar(&level))

	if _, err := a.ResolveText(context.Background(), "u", "good morning", ""); err != nil {
		t.Fatal(err)
	}
	if n := restorer.CallCount(); n != 0 {
		t.Fatalf("punctuation calls while disabled = %d", n)
	}

	next := *old
	next.LogLevel = config.LogDebug
	next.Resolver.Strategy = "word_first"
	next.Punctuation.Enabled = true
	a.ApplyConfig(old, &next)

	if level.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level.Level())
	}
	if got := a.DefaultStrategy(); got != cascade.WordFirst {
		t.Errorf("DefaultStrategy = %q, want word_first", got)
	}
	res, err := a.ResolveText(context.Background(), "u", "good morning", "")
	if err != nil {
		t.Fatal(err)
	}
	if res.Strategy != cascade.WordFirst {
		t.Errorf("Strategy = %q", res.Strategy)
	}
	if _, err := a.ResolveText(context.Background(), "u", "good morning", "sentence_first"); err != nil {
		t.Fatal(err)
	}
	if n := restorer.CallCount(); n != 1 {
		t.Errorf("punctuation calls after enabling = %d, want 1", n)
	}
}

func TestVideo(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	if err := os.WriteFile(filepath.Join(cfg.Media.Dir, "WORLD_SIGN.mp4"), []byte("mp4data"), 0o600); err != nil {
		t.Fatal(err)
	}
	a := newApp(t, cfg, &app.Providers{Embeddings: testEmbedder()})
	ctx := context.Background()

	v, err := a.Video(ctx, "WORLD_SIGN")
	if err != nil {
		t.Fatalf("Video: %v", err)
	}
	body, _ := io.ReadAll(v)
	v.Close()
	if string(body) != "mp4data" {
		t.Errorf("body = %q", body)
	}

	for _, id := range []string{"MISSING", "../WORLD_SIGN"} {
		if _, err := a.Video(ctx, id); !errors.Is(err, media.ErrNotFound) {
			t.Errorf("Video(%q): err = %v, want ErrNotFound", id, err)
		}
	}

	entries, err := a.Playlist(ctx, types.SymbolSequence{"h", "WORLD_SIGN"})
	if err != nil {
		t.Fatalf("Playlist: %v", err)
	}
	if len(entries) != 2 || entries[0].Available || !entries[1].Available {
		t.Errorf("Playlist = %+v", entries)
	}
}

func TestVideo_MissingDirectory(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Media.Dir = filepath.Join(cfg.Media.Dir, "absent")
	a := newApp(t, cfg, &app.Providers{Embeddings: testEmbedder()})
	if _, err := a.Video(context.Background(), "X"); !errors.Is(err, app.ErrMediaUnavailable) {
		t.Errorf("err = %v, want ErrMediaUnavailable", err)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()
	a, err := app.New(context.Background(), testConfig(t), &app.Providers{Embeddings: testEmbedder()},
		app.WithCorpora(testSet(t)),
		app.WithNormalizer(testNormalizer(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Health() == nil {
		t.Fatal("Health() = nil")
	}
	for range 2 {
		if err := a.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	}
}
