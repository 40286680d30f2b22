package textnorm_test

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/signcascade/internal/textnorm"
)

// verbs is a tiny lemma table so tests do not depend on dictionary contents.
var verbs = textnorm.LemmaFunc(func(w string) string {
	switch w {
	case "running":
		return "run"
	case "went":
		return "go"
	case "signs":
		return "sign"
	}
	return w
})

// naiveSplit splits on ". " so sentence tests do not depend on the Punkt model.
var naiveSplit = textnorm.SegmentFunc(func(text string) []string {
	var out []string
	for _, s := range strings.Split(text, ". ") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
})

func newNormalizer(t *testing.T) *textnorm.Normalizer {
	t.Helper()
	n, err := textnorm.New(textnorm.WithLemmatizer(verbs), textnorm.WithSegmenter(naiveSplit))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return n
}

func TestNormalizeSentence(t *testing.T) {
	t.Parallel()
	n := newNormalizer(t)

	tests := []struct {
		in   string
		want string
	}{
		{"I am running to the stores!", "i run stores"},
		{"HELLO   WORLD", "hello world"},
		{"She went home, didn't she?", "she go home didnt she"},
		{"We can sign.", "we can sign"},
		{"It's   a  test\t\n", "its test"},
		{"the of and", ""},
		{"", ""},
		{"ﬁne day", "fine day"},
		{"snake_case stays", "snake_case stays"},
	}
	for _, tt := range tests {
		got, err := n.NormalizeSentence(tt.in)
		if err != nil {
			t.Fatalf("NormalizeSentence(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("NormalizeSentence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKeepWordsSurviveFiltering(t *testing.T) {
	t.Parallel()
	n := newNormalizer(t)
	for _, w := range textnorm.DefaultKeepWords() {
		got, err := n.NormalizeSentence(w)
		if err != nil {
			t.Fatalf("NormalizeSentence(%q): %v", w, err)
		}
		if got != w {
			t.Errorf("keep word %q normalized to %q", w, got)
		}
	}
}

func TestWordsUseOriginalSentence(t *testing.T) {
	t.Parallel()
	n := newNormalizer(t)

	got := n.Words("The well-known signer, isn't it?")
	want := []string{"The", "well", "known", "signer,", "isn't", "it?"}
	if !slices.Equal(got, want) {
		t.Errorf("Words = %q, want %q", got, want)
	}
}

func TestWordsSplitAtInnerPunctuation(t *testing.T) {
	t.Parallel()
	n := newNormalizer(t)

	tests := []struct {
		in   string
		want []string
	}{
		{"hello,world", []string{"hello", "world"}},
		{"yes;no:maybe", []string{"yes", "no", "maybe"}},
		{"stop.go!now?ok", []string{"stop", "go", "now", "ok"}},
		{"isn't", []string{"isn't"}},
		{"3.5 cups", []string{"3.5", "cups"}},
		{"wait, what?", []string{"wait,", "what?"}},
	}
	for _, tt := range tests {
		if got := n.Words(tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("Words(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeWord(t *testing.T) {
	t.Parallel()
	n := newNormalizer(t)

	tests := map[string]string{
		"Hello,":  "hello",
		"isn't":   "isnt",
		"THE":     "the",
		"running": "running",
		"...":     "",
		"42!":     "42",
	}
	for in, want := range tests {
		if got := n.NormalizeWord(in); got != want {
			t.Errorf("NormalizeWord(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFilterWord(t *testing.T) {
	t.Parallel()
	n := newNormalizer(t)

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"Running!", "run", true},
		{"the", "", false},
		{"They", "they", true},
		{"?!", "", false},
		{"Signs", "sign", true},
	}
	for _, tt := range tests {
		got, ok := n.FilterWord(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("FilterWord(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestLetters(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want []string
	}{
		{"hello", []string{"h", "e", "l", "l", "o"}},
		{"r2d2", []string{"r", "d"}},
		{"123", nil},
		{"", nil},
		{"café", []string{"c", "a", "f", "é"}},
	}
	for _, tt := range tests {
		if got := textnorm.Letters(tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("Letters(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSentences(t *testing.T) {
	t.Parallel()
	n := newNormalizer(t)

	got, err := n.Sentences("Hello there. How are you")
	if err != nil {
		t.Fatalf("Sentences: %v", err)
	}
	want := []string{"Hello there", "How are you"}
	if !slices.Equal(got, want) {
		t.Errorf("Sentences = %q, want %q", got, want)
	}

	got, err = n.Sentences("   ")
	if err != nil || len(got) != 0 {
		t.Errorf("Sentences(blank) = %q, %v; want empty, nil", got, err)
	}
}

func TestInvalidUTF8(t *testing.T) {
	t.Parallel()
	n := newNormalizer(t)
	bad := "ok \xff\xfe"

	_, err := n.Sentences(bad)
	var ne *textnorm.NormalizationError
	if !errors.As(err, &ne) {
		t.Fatalf("Sentences error = %v, want *NormalizationError", err)
	}
	if ne.Offset != 3 {
		t.Errorf("Offset = %d, want 3", ne.Offset)
	}

	if _, err := n.NormalizeSentence(bad); !errors.As(err, &ne) {
		t.Errorf("NormalizeSentence error = %v, want *NormalizationError", err)
	}

	if err := textnorm.Validate("replacement char � is valid"); err != nil {
		t.Errorf("Validate rejected a literal U+FFFD: %v", err)
	}
}

func TestPunktSegmenter(t *testing.T) {
	t.Parallel()
	seg, err := textnorm.NewPunktSegmenter()
	if err != nil {
		t.Fatalf("NewPunktSegmenter: %v", err)
	}
	got := seg.Segment("Good morning. Where is the station? Thank you!")
	if len(got) != 3 {
		t.Fatalf("Segment returned %d sentences: %q", len(got), got)
	}
	if got[1] != "Where is the station?" {
		t.Errorf("second sentence = %q", got[1])
	}
}

func TestDictLemmatizer(t *testing.T) {
	t.Parallel()
	lem, err := textnorm.NewDictLemmatizer()
	if err != nil {
		t.Fatalf("NewDictLemmatizer: %v", err)
	}
	if got := lem.Lemma("abducting"); got != "abduct" {
		t.Errorf("Lemma(abducting) = %q, want abduct", got)
	}
	if got := lem.Lemma("qwxzv"); got != "qwxzv" {
		t.Errorf("unknown word changed: %q", got)
	}
}
