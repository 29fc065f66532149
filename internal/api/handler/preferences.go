package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nagarbus/nagarbus/internal/api/models"
	"github.com/nagarbus/nagarbus/internal/api/response"
	"github.com/nagarbus/nagarbus/internal/app"
	"github.com/nagarbus/nagarbus/internal/preferences"
)

// PreferencesHandler reads and updates the rider's preferences.
type PreferencesHandler struct {
	app *app.App
}

// NewPreferencesHandler creates a PreferencesHandler.
func NewPreferencesHandler(a *app.App) *PreferencesHandler {
	return &PreferencesHandler{app: a}
}

// Get handles GET /v1/preferences.
func (h *PreferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.app.Preferences())
}

// SetLanguage handles PUT /v1/preferences/language.
func (h *PreferencesHandler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	var input models.LanguageRequest
	if !decodeJSON(w, r, &input) {
		return
	}
	h.respond(w, r)(h.app.SetLanguage(r.Context(), input.Language))
}

// AddRecentSearch handles POST /v1/preferences/searches.
func (h *PreferencesHandler) AddRecentSearch(w http.ResponseWriter, r *http.Request) {
	var input models.SearchRecordRequest
	if !decodeJSON(w, r, &input) {
		return
	}
	h.respond(w, r)(h.app.AddRecentSearch(r.Context(), input.Query))
}

// ToggleFavoriteRoute handles POST /v1/preferences/favorites/routes/{routeID}.
func (h *PreferencesHandler) ToggleFavoriteRoute(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.app.ToggleFavoriteRoute(r.Context(), chi.URLParam(r, "routeID")))
}

// ToggleFavoriteStop handles POST /v1/preferences/favorites/stops/{stopID}.
func (h *PreferencesHandler) ToggleFavoriteStop(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r)(h.app.ToggleFavoriteStop(r.Context(), chi.URLParam(r, "stopID")))
}

func (h *PreferencesHandler) respond(w http.ResponseWriter, r *http.Request) func(preferences.Preferences, error) {
	return func(p preferences.Preferences, err error) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		response.JSON(w, r, http.StatusOK, p)
	}
}
