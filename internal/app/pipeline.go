package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/signcascade/internal/cascade"
	"github.com/MrWong99/signcascade/internal/history"
	"github.com/MrWong99/signcascade/internal/media"
	"github.com/MrWong99/signcascade/internal/observe"
	"github.com/MrWong99/signcascade/internal/transcript"
	"github.com/MrWong99/signcascade/pkg/provider/stt"
	"github.com/MrWong99/signcascade/pkg/types"
)

// ErrSTTUnavailable is returned by Transcribe when no speech-to-text provider
// is configured.
var ErrSTTUnavailable = errors.New("app: speech-to-text is not configured")

// ErrMediaUnavailable is returned by the video operations when no video
// store could be opened.
var ErrMediaUnavailable = errors.New("app: video store is not configured")

// Result is the outcome of one pipeline run.
type Result struct {
	// RecordID identifies the history record. It is uuid.Nil when saving the
	// record failed.
	RecordID uuid.UUID

	// Transcript is the resolved text: the input for text requests and the
	// corrected transcript for audio.
	Transcript  string
	Symbols     types.SymbolSequence
	Strategy    cascade.Strategy
	Corrections []transcript.Correction
}

// strategyOrDefault parses s, falling back to the reloadable default.
func (a *App) strategyOrDefault(s string) (cascade.Strategy, error) {
	return cascade.ParseStrategy(s, a.DefaultStrategy())
}

// ResolveText resolves text with the named strategy ("" for the default) and
// records the result in userID's history.
func (a *App) ResolveText(ctx context.Context, userID, text, strategy string) (*Result, error) {
	s, err := a.strategyOrDefault(strategy)
	if err != nil {
		return nil, err
	}
	syms, err := a.resolver.ResolveWith(ctx, text, s)
	if err != nil {
		return nil, err
	}
	res := &Result{Transcript: text, Symbols: syms, Strategy: s, Corrections: []transcript.Correction{}}
	a.record(ctx, res, history.Record{UserID: userID, Source: history.SourceText})
	return res, nil
}

// Transcribe converts an uploaded recording to text, corrects misheard
// vocabulary words and resolves the transcript.
func (a *App) Transcribe(ctx context.Context, userID string, audio stt.Audio, strategy string) (*Result, error) {
	if a.providers.STT == nil {
		return nil, ErrSTTUnavailable
	}
	if err := stt.CheckFormat(audio.Filename); err != nil {
		return nil, err
	}
	s, err := a.strategyOrDefault(strategy)
	if err != nil {
		return nil, err
	}

	ctx, span := observe.StartSpan(ctx, "app.transcribe")
	start := time.Now()
	text, err := a.providers.STT.Transcribe(ctx, audio)
	a.metrics.RecordSTT(ctx, a.providers.STTName, time.Since(start), err)
	observe.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("app: transcribe %q: %w", audio.Filename, err)
	}

	res := &Result{Transcript: text, Strategy: s, Corrections: []transcript.Correction{}}
	if a.corrector != nil {
		c := a.corrector.Correct(text)
		res.Transcript, res.Corrections = c.Text, c.Corrections
		if len(c.Corrections) > 0 {
			observe.Logger(ctx).Debug("transcript corrected", "corrections", len(c.Corrections))
		}
	}

	syms, err := a.resolver.ResolveWith(ctx, res.Transcript, s)
	if err != nil {
		return nil, err
	}
	res.Symbols = syms
	a.record(ctx, res, history.Record{UserID: userID, Filename: audio.Filename, Source: history.SourceAudio})
	return res, nil
}

// record saves res to the history store. A failed save is logged and leaves
// RecordID unset; the resolution itself already succeeded.
func (a *App) record(ctx context.Context, res *Result, rec history.Record) {
	rec.Transcript = res.Transcript
	rec.Symbols = res.Symbols
	rec.Strategy = string(res.Strategy)
	saved, err := a.history.Save(ctx, rec)
	if err != nil {
		observe.Logger(ctx).Warn("failed to save history record", "user", rec.UserID, "err", err)
		return
	}
	res.RecordID = saved.ID
}

// Explain returns the per-unit decisions for text without recording them.
func (a *App) Explain(ctx context.Context, text, strategy string) ([]cascade.Trace, error) {
	s, err := a.strategyOrDefault(strategy)
	if err != nil {
		return nil, err
	}
	return a.resolver.ExplainWith(ctx, text, s)
}

// History returns userID's most recent records, newest first.
func (a *App) History(ctx context.Context, userID string, limit int) ([]history.Record, error) {
	return a.history.List(ctx, userID, history.Limit(limit))
}

// Record returns a single history record.
func (a *App) Record(ctx context.Context, id uuid.UUID) (history.Record, error) {
	return a.history.Get(ctx, id)
}

// Video opens the clip for a sign id. The caller closes it.
func (a *App) Video(ctx context.Context, id string) (*media.Video, error) {
	if a.media == nil {
		return nil, ErrMediaUnavailable
	}
	if !media.ValidID(id) {
		return nil, media.ErrNotFound
	}
	return a.media.Open(ctx, id)
}

// Playlist reports which symbols of a sequence have a clip.
func (a *App) Playlist(ctx context.Context, syms types.SymbolSequence) ([]media.Entry, error) {
	if a.media == nil {
		return nil, ErrMediaUnavailable
	}
	entries, err := media.Playlist(ctx, a.media, syms)
	if err != nil {
		slog.Warn("playlist lookup failed", "err", err)
		return nil, err
	}
	return entries, nil
}
