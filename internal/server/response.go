package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/joseph-ayodele/hwp-analyzer/internal/common"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message, Error: code})
}

type coded interface{ Code() string }

// errorCode prefers a Code() method (document.ExtractionError), then AppError.
func errorCode(err error) string {
	var c coded
	if errors.As(err, &c) {
		return c.Code()
	}
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return "FILE_TOO_LARGE"
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	case errors.Is(err, context.Canceled):
		return "CANCELED"
	}
	return common.ErrorCode(err)
}

func statusFor(err error, code string) int {
	switch {
	case code == "FILE_TOO_LARGE":
		return http.StatusRequestEntityTooLarge
	case code == "UNREADABLE_FILE":
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrUnsupported), errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrDependency):
		return http.StatusServiceUnavailable
	case errors.Is(err, common.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err and writes the matching error envelope.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	code := errorCode(err)
	status := statusFor(err, code)
	logger := common.LoggerFromContext(r.Context(), s.logger)
	if status >= 500 {
		logger.Error("http.failed", "path", r.URL.Path, "code", code, "error", err)
	} else {
		logger.Warn("http.rejected", "path", r.URL.Path, "code", code, "error", err)
	}
	writeErr(w, status, code, message+": "+sanitizeError(err))
}

// sanitizeError hides scratch paths from clients.
func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	msg = strings.ReplaceAll(msg, os.TempDir(), "[tmp]")
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return msg
}

func parseJSON[T any](r *http.Request, limit int64) (T, error) {
	var out T
	dec := json.NewDecoder(io.LimitReader(r.Body, limit))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&out); err != nil {
		return out, common.NewAppError("INVALID_INPUT", "malformed JSON body", fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
	}
	if err := dec.Decode(new(any)); err != io.EOF {
		return out, common.NewAppError("INVALID_INPUT", "unexpected trailing data", common.ErrInvalidInput)
	}
	return out, nil
}
