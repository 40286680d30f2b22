package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/signcascade/internal/app"
	"github.com/MrWong99/signcascade/internal/cascade"
	"github.com/MrWong99/signcascade/internal/history"
	"github.com/MrWong99/signcascade/internal/media"
	"github.com/MrWong99/signcascade/pkg/provider/stt"
	"github.com/MrWong99/signcascade/pkg/types"
)

type resolveRequest struct {
	Text     string `json:"text"`
	Strategy string `json:"strategy,omitempty"`
	Explain  bool   `json:"explain,omitempty"`
}

type correctionBody struct {
	Index      int     `json:"index"`
	Original   string  `json:"original"`
	Corrected  string  `json:"corrected"`
	Confidence float64 `json:"confidence"`
}

type resultBody struct {
	RecordID    string               `json:"record_id,omitempty"`
	Transcript  string               `json:"transcript"`
	Symbols     types.SymbolSequence `json:"symbols"`
	Strategy    string               `json:"strategy"`
	Corrections []correctionBody     `json:"corrections,omitempty"`
}

func toResultBody(res *app.Result) resultBody {
	out := resultBody{
		Transcript: res.Transcript,
		Symbols:    res.Symbols.Clone(),
		Strategy:   string(res.Strategy),
	}
	if res.RecordID != uuid.Nil {
		out.RecordID = res.RecordID.String()
	}
	for _, c := range res.Corrections {
		out.Corrections = append(out.Corrections, correctionBody(c))
	}
	return out
}

type traceBody struct {
	Raw        string   `json:"raw"`
	Normalized string   `json:"normalized"`
	Level      string   `json:"level"`
	Match      string   `json:"match,omitempty"`
	Score      *float64 `json:"score,omitempty"`
	Emitted    []string `json:"emitted"`
}

type explainBody struct {
	Symbols types.SymbolSequence `json:"symbols"`
	Trace   []traceBody          `json:"trace"`
}

func toExplainBody(traces []cascade.Trace) explainBody {
	out := explainBody{Symbols: types.SymbolSequence{}, Trace: make([]traceBody, 0, len(traces))}
	for _, tr := range traces {
		tb := traceBody{
			Raw:        tr.Unit.Raw,
			Normalized: tr.Unit.Normalized,
			Level:      tr.Level.String(),
			Emitted:    append([]string{}, tr.Emitted...),
		}
		if tr.Result != nil {
			score := tr.Result.Score
			tb.Match, tb.Score = tr.Result.Entry.ID, &score
		}
		out.Trace = append(out.Trace, tb)
		out.Symbols = append(out.Symbols, tr.Emitted...)
	}
	return out
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxText)
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error()})
		return
	}

	if req.Explain {
		traces, err := s.pipeline.Explain(r.Context(), req.Text, req.Strategy)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toExplainBody(traces))
		return
	}

	res, err := s.pipeline.ResolveText(r.Context(), userID(r), req.Text, req.Strategy)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResultBody(res))
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	mr, err := r.MultipartReader()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "expected multipart/form-data: " + err.Error()})
		return
	}

	// The file part is streamed to the backend, so fields that follow it are
	// not seen. Clients send "strategy" first.
	var strategy string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: `missing "file" part`})
			return
		}
		if err != nil {
			writeError(w, r, fmt.Errorf("api: read multipart: %w", err))
			return
		}
		switch part.FormName() {
		case "strategy":
			b, err := io.ReadAll(io.LimitReader(part, 64))
			if err != nil {
				writeError(w, r, err)
				return
			}
			strategy = string(b)
		case "file":
			res, err := s.pipeline.Transcribe(r.Context(), userID(r), stt.Audio{
				Filename:    part.FileName(),
				ContentType: part.Header.Get("Content-Type"),
				Data:        part,
			}, strategy)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, toResultBody(res))
			return
		}
	}
}

type recordBody struct {
	ID         string               `json:"id"`
	Filename   string               `json:"filename,omitempty"`
	Source     string               `json:"source"`
	Transcript string               `json:"transcript"`
	Symbols    types.SymbolSequence `json:"symbols"`
	Strategy   string               `json:"strategy"`
	CreatedAt  time.Time            `json:"created_at"`
}

func toRecordBody(rec history.Record) recordBody {
	return recordBody{
		ID:         rec.ID.String(),
		Filename:   rec.Filename,
		Source:     rec.Source,
		Transcript: rec.Transcript,
		Symbols:    rec.Symbols.Clone(),
		Strategy:   rec.Strategy,
		CreatedAt:  rec.CreatedAt,
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	recs, err := s.pipeline.History(r.Context(), userID(r), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]recordBody, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecordBody(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": out})
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, history.ErrNotFound)
		return
	}
	rec, err := s.pipeline.Record(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rec.UserID != userID(r) {
		writeError(w, r, history.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toRecordBody(rec))
}

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	v, err := s.pipeline.Video(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer v.Close()

	w.Header().Set("Content-Type", v.ContentType)
	if rs, ok := v.ReadCloser.(io.ReadSeeker); ok {
		http.ServeContent(w, r, r.PathValue("id")+media.Extension, v.ModTime, rs)
		return
	}
	if v.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(v.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, v)
}

type playlistRequest struct {
	Symbols types.SymbolSequence `json:"symbols"`
}

func (s *Server) handlePlaylist(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxText)
	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error()})
		return
	}
	entries, err := s.pipeline.Playlist(r.Context(), req.Symbols)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
