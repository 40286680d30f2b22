// Package mcp exposes the resolver as Model Context Protocol tools so that
// assistants can turn text into sign sequences.
//
// Tools:
//
//   - resolve_signs: text -> sign identifier sequence (recorded in history)
//   - explain_signs: text -> per-unit decisions, not recorded
//   - sign_playlist: identifiers -> which ones have a video
//
// The server speaks over any go-sdk transport; the CLI runs it on stdio.
package mcp

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/signcascade/internal/app"
	"github.com/MrWong99/signcascade/internal/cascade"
	"github.com/MrWong99/signcascade/internal/media"
	"github.com/MrWong99/signcascade/pkg/types"
)

// UserID is the history user for tool calls.
const UserID = "mcp"

// Pipeline is the subset of *app.App the tools call.
type Pipeline interface {
	ResolveText(ctx context.Context, userID, text, strategy string) (*app.Result, error)
	Explain(ctx context.Context, text, strategy string) ([]cascade.Trace, error)
	Playlist(ctx context.Context, syms types.SymbolSequence) ([]media.Entry, error)
}

var _ Pipeline = (*app.App)(nil)

// ResolveInput is the argument of resolve_signs and explain_signs.
type ResolveInput struct {
	Text     string `json:"text" jsonschema:"the text to translate into signs"`
	Strategy string `json:"strategy,omitempty" jsonschema:"sentence_first (default) or word_first"`
}

// ResolveOutput is the result of resolve_signs.
type ResolveOutput struct {
	Symbols  []string `json:"symbols" jsonschema:"sign identifiers and spelled letters in reading order"`
	Strategy string   `json:"strategy"`
	RecordID string   `json:"record_id,omitempty"`
}

// Decision is one unit of an explain_signs result.
type Decision struct {
	Text    string   `json:"text"`
	Level   string   `json:"level"`
	Match   string   `json:"match,omitempty"`
	Score   float64  `json:"score"`
	Emitted []string `json:"emitted"`
}

// ExplainOutput is the result of explain_signs.
type ExplainOutput struct {
	Decisions []Decision `json:"decisions"`
}

// PlaylistInput is the argument of sign_playlist.
type PlaylistInput struct {
	Symbols []string `json:"symbols" jsonschema:"sign identifiers as returned by resolve_signs"`
}

// PlaylistOutput is the result of sign_playlist.
type PlaylistOutput struct {
	Entries []media.Entry `json:"entries"`
}

// NewServer returns an MCP server with all tools registered.
func NewServer(p Pipeline, version string) *mcpsdk.Server {
	s := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "signcascade", Version: version}, nil)
	t := &tools{p: p}

	mcpsdk.AddTool(s, &mcpsdk.Tool{
		Name:        "resolve_signs",
		Description: "Translate text into a sequence of sign language identifiers. Sentences and words without a sign are spelled letter by letter.",
	}, t.resolve)
	mcpsdk.AddTool(s, &mcpsdk.Tool{
		Name:        "explain_signs",
		Description: "Show how each sentence and word of the text was matched, with similarity scores.",
	}, t.explain)
	mcpsdk.AddTool(s, &mcpsdk.Tool{
		Name:        "sign_playlist",
		Description: "Report which sign identifiers have a video clip.",
	}, t.playlist)
	return s
}

// Serve runs the server on stdin/stdout until ctx is done or the client
// disconnects.
func Serve(ctx context.Context, p Pipeline, version string) error {
	if err := NewServer(p, version).Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp: serve: %w", err)
	}
	return nil
}

type tools struct {
	p Pipeline
}

func (t *tools) resolve(ctx context.Context, _ *mcpsdk.CallToolRequest, in ResolveInput) (*mcpsdk.CallToolResult, ResolveOutput, error) {
	res, err := t.p.ResolveText(ctx, UserID, in.Text, in.Strategy)
	if err != nil {
		return nil, ResolveOutput{}, err
	}
	out := ResolveOutput{Symbols: res.Symbols.Clone(), Strategy: string(res.Strategy)}
	if res.RecordID != uuid.Nil {
		out.RecordID = res.RecordID.String()
	}
	return nil, out, nil
}

func (t *tools) explain(ctx context.Context, _ *mcpsdk.CallToolRequest, in ResolveInput) (*mcpsdk.CallToolResult, ExplainOutput, error) {
	traces, err := t.p.Explain(ctx, in.Text, in.Strategy)
	if err != nil {
		return nil, ExplainOutput{}, err
	}
	out := ExplainOutput{Decisions: make([]Decision, 0, len(traces))}
	for _, tr := range traces {
		d := Decision{Text: tr.Unit.Raw, Level: tr.Level.String(), Emitted: append([]string{}, tr.Emitted...)}
		if tr.Result != nil {
			d.Match, d.Score = tr.Result.Entry.ID, tr.Result.Score
		}
		out.Decisions = append(out.Decisions, d)
	}
	return nil, out, nil
}

func (t *tools) playlist(ctx context.Context, _ *mcpsdk.CallToolRequest, in PlaylistInput) (*mcpsdk.CallToolResult, PlaylistOutput, error) {
	entries, err := t.p.Playlist(ctx, in.Symbols)
	if err != nil {
		return nil, PlaylistOutput{}, err
	}
	return nil, PlaylistOutput{Entries: entries}, nil
}
