package postgres_test

import (
	"context"
	"errors"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/signcascade/internal/history"
	"github.com/MrWong99/signcascade/internal/history/postgres"
	"github.com/MrWong99/signcascade/pkg/types"
)

func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("SIGNCASCADE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SIGNCASCADE_TEST_POSTGRES_DSN not set; skipping history integration test")
	}
	return dsn
}

func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	s, err := postgres.New(context.Background(), testDSN(t))
	if err != nil {
		t.Fatalf("postgres.New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestStore_SaveListGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// A fresh user id per run keeps reruns against the same database apart.
	user := "it-" + uuid.NewString()
	base := time.Now().UTC().Truncate(time.Microsecond)

	first, err := s.Save(ctx, history.Record{
		UserID:     user,
		Source:     history.SourceText,
		Transcript: "hello world",
		Symbols:    types.SymbolSequence{"H", "E", "L", "L", "O", "WORLD_SIGN"},
		Strategy:   "sentence_first",
		CreatedAt:  base,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, err := s.Save(ctx, history.Record{
		UserID:     user,
		Filename:   "clip.wav",
		Source:     history.SourceAudio,
		Transcript: "good morning",
		Symbols:    types.SymbolSequence{"GOOD_MORNING"},
		CreatedAt:  base.Add(time.Second),
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.List(ctx, user, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].ID != second.ID || got[1].ID != first.ID {
		t.Fatalf("List order = %v, want newest first", got)
	}
	if !slices.Equal(got[1].Symbols, first.Symbols) {
		t.Errorf("symbols = %v, want %v", got[1].Symbols, first.Symbols)
	}

	one, err := s.Get(ctx, second.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if one.Filename != "clip.wav" || one.Source != history.SourceAudio {
		t.Errorf("Get = %+v", one)
	}
	if !one.CreatedAt.Equal(second.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", one.CreatedAt, second.CreatedAt)
	}

	if _, err := s.Get(ctx, uuid.New()); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("Get(unknown) err = %v, want ErrNotFound", err)
	}

	empty, err := s.List(ctx, "it-nobody-"+uuid.NewString(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("List(unknown user) = %#v, want empty non-nil slice", empty)
	}
}
