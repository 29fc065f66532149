package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nagarbus/nagarbus/internal/api/models"
	"github.com/nagarbus/nagarbus/internal/api/response"
	"github.com/nagarbus/nagarbus/internal/app"
	"github.com/nagarbus/nagarbus/internal/network"
	"github.com/nagarbus/nagarbus/internal/simulator"
)

// FleetHandler drives the simulated fleet.
type FleetHandler struct {
	app *app.App
}

// NewFleetHandler creates a FleetHandler.
func NewFleetHandler(a *app.App) *FleetHandler {
	return &FleetHandler{app: a}
}

// AdvancePositions handles POST /v1/positions/advance: one simulation
// pass outside the timers.
func (h *FleetHandler) AdvancePositions(w http.ResponseWriter, r *http.Request) {
	now := h.app.Now()
	res, err := h.app.AdvanceFleet(r.Context(), now)
	if err != nil {
		writeError(w, r, err)
		return
	}

	buses, err := response.Reduce(res.Buses, response.GroupSummary)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.AdvanceResult{
		Buses:       buses,
		Moved:       res.Moved,
		Arrivals:    res.Arrivals,
		GeneratedAt: models.Timestamp(now),
	})
}

// SetBusStatus handles PUT /v1/buses/{busID}/status.
func (h *FleetHandler) SetBusStatus(w http.ResponseWriter, r *http.Request) {
	var input models.BusStatusRequest
	if !decodeJSON(w, r, &input) {
		return
	}
	status := network.BusStatus(input.Status)
	if !status.IsValid() {
		response.BadRequest(w, r, "unknown bus status", []models.FieldError{
			{Field: "status", Message: "must be one of on_time, delayed, early, breakdown", Code: models.CodeInvalid},
		})
		return
	}

	bus, err := h.app.SetBusStatus(r.Context(), chi.URLParam(r, "busID"), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.Grouped(w, r, http.StatusOK, bus, response.GroupDetail)
}

// GetFocus handles GET /v1/tracking/focus.
func (h *FleetHandler) GetFocus(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.app.Ticker().Target())
}

// Focus handles PUT /v1/tracking/focus: the watched bus or route gets the
// faster refresh timer.
func (h *FleetHandler) Focus(w http.ResponseWriter, r *http.Request) {
	var input models.FocusRequest
	if !decodeJSON(w, r, &input) {
		return
	}
	target := simulator.Target{BusID: input.BusID, RouteID: input.RouteID}
	if target.IsZero() {
		response.BadRequest(w, r, "a bus or route is required", []models.FieldError{
			{Field: "busId", Message: "busId or routeId is required", Code: models.CodeRequired},
		})
		return
	}

	if err := h.app.Focus(r.Context(), target); err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, target)
}

// Unfocus handles DELETE /v1/tracking/focus.
func (h *FleetHandler) Unfocus(w http.ResponseWriter, r *http.Request) {
	h.app.Unfocus()
	response.NoContent(w, r)
}
