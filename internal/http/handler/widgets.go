package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"widgets/internal/autosave"
	"widgets/internal/widget"

	"github.com/go-chi/chi/v5"
)

type WidgetHandler struct {
	Svc      *widget.Service
	Sessions *autosave.Manager
}

type createWidgetReq struct {
	Type *string `json:"type"`
}

type updateWidgetReq struct {
	Type *string `json:"type"`
	Text *string `json:"text"`
}

func (h *WidgetHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Svc.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]widgetDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *WidgetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createWidgetReq
	// an empty body means "default type"
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "bad json")
		return
	}

	var in widget.CreateInput
	if req.Type != nil {
		t, err := widget.ParseType(*req.Type)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		in.Type = &t
	}

	created, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDTO(created))
}

func (h *WidgetHandler) Get(w http.ResponseWriter, r *http.Request) {
	got, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(got))
}

func (h *WidgetHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateWidgetReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "bad json")
		return
	}

	in := widget.UpdateInput{Text: req.Text}
	if req.Type != nil {
		t, err := widget.ParseType(*req.Type)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		in.Type = &t
	}

	updated, err := h.Svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(updated))
}

// Delete also tears down a live edit session for the widget.
func (h *WidgetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if h.Sessions != nil {
		h.Sessions.Discard(id)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
