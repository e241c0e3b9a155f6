package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"widgets/internal/autosave"
	mw "widgets/internal/http/middleware"
	"widgets/internal/widget"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	editWriteTimeout  = 10 * time.Second
	editCommitTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EditHandler serves the live editing socket. Each connection owns one
// autosave session; keystrokes arrive as "set" messages and are persisted
// through the gateway once the debounce elapses.
type EditHandler struct {
	Svc      *widget.Service
	Sessions *autosave.Manager
}

type editRequest struct {
	Type string `json:"type"` // set|resync
	Text string `json:"text"`
}

type editEvent struct {
	Type    string     `json:"type"` // state|saved|error|closed
	Text    *string    `json:"text,omitempty"`
	Saving  *bool      `json:"saving,omitempty"`
	Widget  *widgetDTO `json:"widget,omitempty"`
	Code    string     `json:"code,omitempty"`
	Message string     `json:"message,omitempty"`
}

func stateEvent(s *autosave.Session) editEvent {
	text := s.Text()
	saving := s.Saving()
	return editEvent{Type: "state", Text: &text, Saving: &saving}
}

func errorEvent(err error) editEvent {
	_, code, msg := classify(err)
	return editEvent{Type: "error", Code: code, Message: msg}
}

func (h *EditHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	current, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	lg := mw.LoggerFrom(r.Context()).With("widget", id)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		lg.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	// gorilla/websocket allows one concurrent writer
	var writeMu sync.Mutex
	send := func(ev editEvent) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(editWriteTimeout))
		return conn.WriteJSON(ev)
	}

	var sess *autosave.Session
	commit := func(text string) {
		ctx, cancel := context.WithTimeout(context.Background(), editCommitTimeout)
		defer cancel()

		updated, err := h.Svc.Update(ctx, id, widget.UpdateInput{Text: &text})
		if err != nil {
			// the session keeps its buffer; the client decides what to do
			lg.Warn("autosave commit failed", "err", err)
			_ = send(errorEvent(err))
			return
		}

		sess.Rebase(updated.Text)
		dto := toDTO(updated)
		_ = send(editEvent{Type: "saved", Widget: &dto})
	}

	sess, kick := h.Sessions.Open(id, current.Text, commit,
		autosave.WithOnSaving(func(bool) { _ = send(stateEvent(sess)) }),
	)
	defer h.Sessions.Release(id, sess)

	lg.Debug("edit session opened")

	if err := send(stateEvent(sess)); err != nil {
		return
	}

	connDone := make(chan struct{})
	defer close(connDone)
	go func() {
		select {
		case <-kick:
			_ = send(editEvent{Type: "closed"})
			conn.Close()
		case <-connDone:
		}
	}()

	for {
		var req editRequest
		if err := conn.ReadJSON(&req); err != nil {
			lg.Debug("edit session closed", "err", err)
			return
		}

		switch req.Type {
		case "set":
			sess.SetText(req.Text)
		case "resync":
			fresh, err := h.Svc.Get(r.Context(), id)
			if err != nil {
				_ = send(errorEvent(err))
				continue
			}
			sess.Resync(fresh.Text)
			_ = send(stateEvent(sess))
		default:
			_ = send(editEvent{Type: "error", Code: ErrCodeBadRequest, Message: "unknown message type " + req.Type})
		}
	}
}
