package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nagarbus/nagarbus/internal/api/models"
	"github.com/nagarbus/nagarbus/internal/api/response"
	"github.com/nagarbus/nagarbus/internal/app"
	"github.com/nagarbus/nagarbus/internal/network"
	"github.com/nagarbus/nagarbus/internal/planner"
	"github.com/nagarbus/nagarbus/internal/preferences"
	"github.com/nagarbus/nagarbus/internal/resilience"
	"github.com/nagarbus/nagarbus/internal/search"
)

// maxBodyBytes caps request bodies; every body here is a few short fields.
const maxBodyBytes = 16 << 10

// decodeJSON reads a single JSON object from the request body. On failure it
// writes the problem response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.PayloadTooLarge(w, r, fmt.Sprintf("request body must not exceed %d bytes", tooLarge.Limit))
			return false
		}
		response.BadRequest(w, r, fmt.Sprintf("invalid JSON body: %v", err), nil)
		return false
	}
	return true
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalidCall *planner.InvalidCallError
		validation  *preferences.ValidationError
		expression  *search.ExpressionError
	)

	switch {
	case errors.As(err, &invalidCall):
		response.BadRequest(w, r, err.Error(), []models.FieldError{
			{Field: invalidCall.Field, Message: invalidCall.Reason, Code: models.CodeRequired},
		})
	case errors.As(err, &validation):
		response.BadRequest(w, r, "invalid preferences update", validation.Errors)
	case errors.As(err, &expression):
		response.BadRequest(w, r, "invalid filter expression", []models.FieldError{
			{Field: "filter", Message: expression.Err.Error(), Code: models.CodeInvalid},
		})
	case errors.Is(err, network.ErrStopNotFound),
		errors.Is(err, network.ErrRouteNotFound),
		errors.Is(err, network.ErrBusNotFound),
		errors.Is(err, app.ErrNoCurrentPlan):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, network.ErrStaleBus):
		response.Conflict(w, r, "bus was updated concurrently, retry the request")
	case errors.Is(err, resilience.ErrCircuitOpen),
		errors.Is(err, context.DeadlineExceeded):
		response.ServiceUnavailable(w, r, "network store is unavailable, try again shortly")
	default:
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
