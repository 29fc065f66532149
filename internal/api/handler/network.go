package handler

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nagarbus/nagarbus/internal/api/models"
	"github.com/nagarbus/nagarbus/internal/api/response"
	"github.com/nagarbus/nagarbus/internal/app"
	"github.com/nagarbus/nagarbus/internal/network"
	"github.com/nagarbus/nagarbus/internal/tracking"
)

// NetworkHandler serves stops, routes and buses.
type NetworkHandler struct {
	app *app.App
}

// NewNetworkHandler creates a NetworkHandler.
func NewNetworkHandler(a *app.App) *NetworkHandler {
	return &NetworkHandler{app: a}
}

// ListStops handles GET /v1/stops. ?amenity= keeps stops offering it and
// ?favorites=true keeps the rider's favorite stops.
func (h *NetworkHandler) ListStops(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	favorites, ok := favoritesFlag(w, r)
	if !ok {
		return
	}
	amenity := network.Amenity(q.Get("amenity"))
	if amenity != "" && !amenity.IsValid() {
		response.BadRequest(w, r, "unknown amenity", []models.FieldError{
			{Field: "amenity", Message: "is not a known amenity", Code: models.CodeUnknown},
		})
		return
	}

	stops, err := h.app.Network().Stops(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if amenity != "" {
		stops = network.StopsWithAmenity(stops, amenity)
	}
	if favorites {
		prefs := h.app.Preferences()
		stops = slices.DeleteFunc(stops, func(s network.Stop) bool { return !prefs.IsFavoriteStop(s.ID) })
		w.Header().Set("Cache-Control", "no-store")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=300")
	}
	response.GroupedList(w, r, stops, response.GroupSummary)
}

// favoritesFlag parses ?favorites=, writing a 400 when it is not a boolean.
func favoritesFlag(w http.ResponseWriter, r *http.Request) (bool, bool) {
	raw := r.URL.Query().Get("favorites")
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		response.BadRequest(w, r, "invalid favorites filter", []models.FieldError{
			{Field: "favorites", Message: "must be true or false", Code: models.CodeInvalid},
		})
		return false, false
	}
	return v, true
}

// GetStop handles GET /v1/stops/{stopID}. The body adds the routes
// serving the stop.
func (h *NetworkHandler) GetStop(w http.ResponseWriter, r *http.Request) {
	snap, err := h.app.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	stop, ok := snap.StopByID(chi.URLParam(r, "stopID"))
	if !ok {
		writeError(w, r, network.ErrStopNotFound)
		return
	}

	serving := []network.Route{}
	for _, route := range snap.Routes {
		if route.Serves(stop.ID) {
			serving = append(serving, route)
		}
	}

	stopBody, err := response.Reduce(stop, response.GroupDetail)
	if err != nil {
		writeError(w, r, err)
		return
	}
	routesBody, err := response.Reduce(serving, response.GroupSummary)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"stop":   stopBody,
		"routes": routesBody,
	})
}

// ListRoutes handles GET /v1/routes. ?favorites=true keeps the rider's
// favorite routes.
func (h *NetworkHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	favorites, ok := favoritesFlag(w, r)
	if !ok {
		return
	}
	routes, err := h.app.Network().Routes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if favorites {
		prefs := h.app.Preferences()
		routes = slices.DeleteFunc(routes, func(rt network.Route) bool { return !prefs.IsFavoriteRoute(rt.ID) })
		w.Header().Set("Cache-Control", "no-store")
	} else {
		w.Header().Set("Cache-Control", "public, max-age=300")
	}
	response.GroupedList(w, r, routes, response.GroupSummary)
}

// GetRoute handles GET /v1/routes/{routeID}: the route with its stops,
// its buses, its shape and current service notices.
func (h *NetworkHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	route, buses, ok := h.routeWithBuses(w, r)
	if !ok {
		return
	}

	routeBody, err := response.Reduce(route, response.GroupDetail)
	if err != nil {
		writeError(w, r, err)
		return
	}
	busesBody, err := response.Reduce(buses, response.GroupSummary)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"route":   routeBody,
		"buses":   busesBody,
		"shape":   tracking.RouteShape(route),
		"updates": tracking.ServiceUpdates(buses),
	})
}

// RouteTimeline handles GET /v1/routes/{routeID}/timeline.
func (h *NetworkHandler) RouteTimeline(w http.ResponseWriter, r *http.Request) {
	route, buses, ok := h.routeWithBuses(w, r)
	if !ok {
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewList(tracking.StopTimeline(route, buses, h.app.Now())))
}

func (h *NetworkHandler) routeWithBuses(w http.ResponseWriter, r *http.Request) (network.Route, []network.Bus, bool) {
	route, err := h.app.Network().Route(r.Context(), chi.URLParam(r, "routeID"))
	if err != nil {
		writeError(w, r, err)
		return network.Route{}, nil, false
	}
	buses, err := h.app.Network().Buses(r.Context())
	if err != nil {
		writeError(w, r, err)
		return network.Route{}, nil, false
	}
	onRoute := network.BusesOnRoute(buses, route.ID)
	if onRoute == nil {
		onRoute = []network.Bus{}
	}
	return route, onRoute, true
}

// ListBuses handles GET /v1/buses, optionally filtered by ?routeId=.
func (h *NetworkHandler) ListBuses(w http.ResponseWriter, r *http.Request) {
	buses, err := h.app.Network().Buses(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if routeID := r.URL.Query().Get("routeId"); routeID != "" {
		buses = network.BusesOnRoute(buses, routeID)
	}
	w.Header().Set("Cache-Control", "no-store")
	response.GroupedList(w, r, buses, response.GroupSummary)
}

// GetBus handles GET /v1/buses/{busID}.
func (h *NetworkHandler) GetBus(w http.ResponseWriter, r *http.Request) {
	bus, err := h.app.Network().Bus(r.Context(), chi.URLParam(r, "busID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	response.Grouped(w, r, http.StatusOK, bus, response.GroupDetail)
}

// NearbyBuses handles GET /v1/buses/nearby?lat=&lng=&limit=. Without a
// location the buses come back in fleet order with no distance.
func (h *NetworkHandler) NearbyBuses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var fieldErrs []models.FieldError
	var location *network.Coordinates
	if q.Get("lat") != "" || q.Get("lng") != "" {
		lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
		lng, lngErr := strconv.ParseFloat(q.Get("lng"), 64)
		if latErr != nil || lat < -90 || lat > 90 {
			fieldErrs = append(fieldErrs, models.FieldError{Field: "lat", Message: "must be a latitude", Code: models.CodeInvalid})
		}
		if lngErr != nil || lng < -180 || lng > 180 {
			fieldErrs = append(fieldErrs, models.FieldError{Field: "lng", Message: "must be a longitude", Code: models.CodeInvalid})
		}
		location = &network.Coordinates{Latitude: lat, Longitude: lng}
	}

	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 50 {
			fieldErrs = append(fieldErrs, models.FieldError{Field: "limit", Message: "must be between 1 and 50", Code: models.CodeInvalid})
		}
		limit = n
	}
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid nearby query", fieldErrs)
		return
	}

	buses, err := h.app.Network().Buses(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewList(tracking.NearbyBuses(location, buses, limit)))
}

// ServiceUpdates handles GET /v1/updates, optionally for one ?routeId=.
func (h *NetworkHandler) ServiceUpdates(w http.ResponseWriter, r *http.Request) {
	buses, err := h.app.Network().Buses(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if routeID := r.URL.Query().Get("routeId"); routeID != "" {
		if _, err := h.app.Network().Route(r.Context(), routeID); err != nil {
			writeError(w, r, err)
			return
		}
		buses = network.BusesOnRoute(buses, routeID)
	}
	response.JSON(w, r, http.StatusOK, models.NewList(tracking.ServiceUpdates(buses)))
}
