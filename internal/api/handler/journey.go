package handler

import (
	"net/http"

	"github.com/nagarbus/nagarbus/internal/api/models"
	"github.com/nagarbus/nagarbus/internal/api/response"
	"github.com/nagarbus/nagarbus/internal/app"
)

// JourneyHandler plans journeys and exposes the current plan.
type JourneyHandler struct {
	app *app.App
}

// NewJourneyHandler creates a JourneyHandler.
func NewJourneyHandler(a *app.App) *JourneyHandler {
	return &JourneyHandler{app: a}
}

// Plan handles POST /v1/journeys/plan. An empty options list is a
// successful answer, not an error.
func (h *JourneyHandler) Plan(w http.ResponseWriter, r *http.Request) {
	var input models.PlanRequest
	if !decodeJSON(w, r, &input) {
		return
	}
	if errs := input.Validate(); len(errs) > 0 {
		response.BadRequest(w, r, "origin and destination stops are required", errs)
		return
	}

	plan, err := h.app.PlanJourney(r.Context(), input.FromStopID, input.ToStopID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, plan)
}

// Current handles GET /v1/journeys/current.
func (h *JourneyHandler) Current(w http.ResponseWriter, r *http.Request) {
	plan, err := h.app.CurrentPlan()
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, plan)
}

// Clear handles DELETE /v1/journeys/current.
func (h *JourneyHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.app.ClearCurrentPlan()
	response.NoContent(w, r)
}
