// Package response writes JSON and problem responses for the API handlers.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/liip/sheriff"

	"github.com/nagarbus/nagarbus/internal/api/middleware"
	"github.com/nagarbus/nagarbus/internal/api/models"
)

// Field groups for network payloads. Summary drops stop lists and the
// simulator bookkeeping; detail is everything a rider screen shows.
const (
	GroupSummary = "summary"
	GroupDetail  = "detail"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Reduce strips data down to the fields tagged with one of groups.
func Reduce(data any, groups ...string) (any, error) {
	return sheriff.Marshal(&sheriff.Options{Groups: groups}, data)
}

// Grouped writes data reduced to the fields tagged with one of groups.
func Grouped(w http.ResponseWriter, r *http.Request, status int, data any, groups ...string) {
	reduced, err := Reduce(data, groups...)
	if err != nil {
		InternalError(w, r, "could not encode response")
		return
	}
	JSON(w, r, status, reduced)
}

// GroupedList writes items reduced to groups inside a list envelope.
func GroupedList[T any](w http.ResponseWriter, r *http.Request, items []T, groups ...string) {
	if items == nil {
		items = []T{}
	}
	reduced, err := Reduce(items, groups...)
	if err != nil {
		InternalError(w, r, "could not encode response")
		return
	}
	JSON(w, r, http.StatusOK, map[string]any{
		"items": reduced,
		"count": len(items),
	})
}

// Error writes a problem response for the current request.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.WithInstance(r.URL.Path).Write(w)
}

// BadRequest writes a 400 problem.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errors))
}

// NotFound writes a 404 problem.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(middleware.GetRequestID(r.Context()), detail))
}

// Conflict writes a 409 problem.
func Conflict(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewConflict(middleware.GetRequestID(r.Context()), detail))
}

// PayloadTooLarge writes a 413 problem.
func PayloadTooLarge(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewPayloadTooLarge(middleware.GetRequestID(r.Context()), detail))
}

// InternalError writes a 500 problem.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(middleware.GetRequestID(r.Context()), detail))
}

// ServiceUnavailable writes a 503 problem.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(middleware.GetRequestID(r.Context()), detail))
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter, r *http.Request) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.WriteHeader(http.StatusNoContent)
}
