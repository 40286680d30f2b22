package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/signcascade/internal/observe"
	"github.com/MrWong99/signcascade/pkg/types"
)

// streamIdleTimeout closes a stream that sends nothing for this long.
const streamIdleTimeout = 5 * time.Minute

type streamRequest struct {
	Text     string `json:"text"`
	Strategy string `json:"strategy,omitempty"`
}

type streamResponse struct {
	Seq      int                  `json:"seq"`
	Symbols  types.SymbolSequence `json:"symbols,omitempty"`
	RecordID string               `json:"record_id,omitempty"`
	Error    string               `json:"error,omitempty"`
	Status   int                  `json:"status,omitempty"`
}

// handleStream resolves one text frame at a time, replying in order. A
// failed resolution is reported in-band and the stream stays open.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Debug("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(s.maxText)

	ctx := r.Context()
	user := userID(r)
	log := observe.Logger(ctx)
	for seq := 0; ; seq++ {
		readCtx, cancel := context.WithTimeout(ctx, streamIdleTimeout)
		typ, data, err := conn.Read(readCtx)
		cancel()
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled) {
				return
			}
			log.Debug("stream closed", "err", err)
			conn.Close(websocket.StatusPolicyViolation, "read failed")
			return
		}
		if typ != websocket.MessageText {
			conn.Close(websocket.StatusUnsupportedData, "text frames only")
			return
		}

		resp := streamResponse{Seq: seq}
		var req streamRequest
		if err := json.Unmarshal(data, &req); err != nil {
			resp.Error, resp.Status = "invalid JSON frame: "+err.Error(), http.StatusBadRequest
		} else if res, err := s.pipeline.ResolveText(ctx, user, req.Text, req.Strategy); err != nil {
			resp.Error, resp.Status = err.Error(), statusFor(err)
		} else {
			resp.Symbols = res.Symbols.Clone()
			resp.RecordID = toResultBody(res).RecordID
		}

		out, _ := json.Marshal(resp)
		if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
			log.Debug("stream write failed", "err", err)
			return
		}
	}
}
