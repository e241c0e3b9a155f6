package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	mw "widgets/internal/http/middleware"
	"widgets/internal/widget"
)

const (
	ErrCodeBadRequest = "bad_request"
	ErrCodeNotFound   = "not_found"
	ErrCodeInternal   = "internal"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

type widgetDTO struct {
	ID        string      `json:"id"`
	Type      widget.Type `json:"type"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func toDTO(w widget.Widget) widgetDTO {
	return widgetDTO{
		ID:        w.ID,
		Type:      w.Type,
		Text:      w.Text,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: message}})
}

// classify maps gateway errors to an HTTP status and error code.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, widget.ErrValidation):
		return http.StatusBadRequest, ErrCodeBadRequest, err.Error()
	case errors.Is(err, widget.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound, err.Error()
	default:
		return http.StatusInternalServerError, ErrCodeInternal, "server error"
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)
	if status == http.StatusInternalServerError {
		mw.LoggerFrom(r.Context()).Error("widget operation failed", "err", err)
	}
	writeError(w, status, code, msg)
}
