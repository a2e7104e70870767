package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/tendant/simple-cms/pkg/simplecms"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	// Details lists every validation message separately.
	Details []string `json:"details,omitempty"`
}

func renderData(w http.ResponseWriter, r *http.Request, status int, data any, message string) {
	render.Status(r, status)
	render.JSON(w, r, Response{Success: true, Data: data, Message: message})
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, simplecms.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, simplecms.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, simplecms.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func renderError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, message string) {
	status := statusFor(err)
	resp := Response{Success: false, Message: message}

	switch status {
	case http.StatusBadRequest:
		if msgs := simplecms.ValidationMessages(err); len(msgs) > 0 {
			resp.Error = strings.Join(msgs, "; ")
			resp.Details = msgs
		} else {
			resp.Error = err.Error()
		}
	case http.StatusInternalServerError:
		logger.ErrorContext(r.Context(), message, "error", err, "path", r.URL.Path)
		resp.Error = "internal server error"
	default:
		resp.Error = err.Error()
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}

func renderBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, Response{Success: false, Error: message, Message: message})
}
