package phonetic_test

import (
	"testing"

	"github.com/MrWong99/signcascade/internal/transcript/phonetic"
)

var vocabulary = []string{"hello", "world", "thanks", "Morning", "good morning", "", "world"}

func TestNew_IndexesSingleWords(t *testing.T) {
	t.Parallel()
	ix := phonetic.New(vocabulary)
	if ix.Len() != 4 {
		t.Errorf("Len = %d, want 4 (multi-word, empty and duplicate skipped)", ix.Len())
	}
	if !ix.Contains("MORNING") {
		t.Error("Contains is case-sensitive")
	}
	if ix.Contains("good morning") {
		t.Error("multi-word term indexed")
	}
}

func TestIndex_Match(t *testing.T) {
	t.Parallel()
	ix := phonetic.New(vocabulary)
	tests := []struct {
		word    string
		want    string
		matched bool
	}{
		{"helo", "hello", true},
		{"wurld", "world", true},
		{"World", "world", true},
		{"house", "house", false},
		{"", "", false},
		{"hi", "hi", false},
	}
	for _, tt := range tests {
		got, score, ok := ix.Match(tt.word)
		if ok != tt.matched || got != tt.want {
			t.Errorf("Match(%q) = %q, %.3f, %v; want %q, %v", tt.word, got, score, ok, tt.want, tt.matched)
		}
		if ok && score < 0.85 {
			t.Errorf("Match(%q) score %.3f below threshold", tt.word, score)
		}
		if !ok && score != 0 {
			t.Errorf("Match(%q) miss with score %.3f", tt.word, score)
		}
	}
}

func TestIndex_ExactMatchScoresOne(t *testing.T) {
	t.Parallel()
	_, score, ok := phonetic.New(vocabulary).Match("thanks")
	if !ok || score != 1 {
		t.Errorf("exact match = %.3f, %v", score, ok)
	}
}

func TestIndex_ThresholdOption(t *testing.T) {
	t.Parallel()
	ix := phonetic.New(vocabulary, phonetic.WithThreshold(0.99))
	if _, _, ok := ix.Match("wurld"); ok {
		t.Error("near match accepted with threshold 0.99")
	}
}

func TestIndex_MinLengthOption(t *testing.T) {
	t.Parallel()
	ix := phonetic.New([]string{"yes"}, phonetic.WithMinLength(5))
	if _, _, ok := ix.Match("yez"); ok {
		t.Error("short word looked up despite min length 5")
	}
	if _, _, ok := ix.Match("yes"); !ok {
		t.Error("exact vocabulary word must match regardless of length")
	}
}
