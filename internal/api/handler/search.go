package handler

import (
	"net/http"
	"strconv"

	"github.com/nagarbus/nagarbus/internal/api/models"
	"github.com/nagarbus/nagarbus/internal/api/response"
	"github.com/nagarbus/nagarbus/internal/app"
	"github.com/nagarbus/nagarbus/internal/search"
)

// SearchHandler serves free-text search over routes and stops.
type SearchHandler struct {
	app *app.App
}

// NewSearchHandler creates a SearchHandler.
func NewSearchHandler(a *app.App) *SearchHandler {
	return &SearchHandler{app: a}
}

// Search handles GET /v1/search?q=&ac=&accessible=&filter=.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var fieldErrs []models.FieldError
	parseFlag := func(name string) bool {
		s := q.Get(name)
		if s == "" {
			return false
		}
		v, err := strconv.ParseBool(s)
		if err != nil {
			fieldErrs = append(fieldErrs, models.FieldError{Field: name, Message: "must be true or false", Code: models.CodeInvalid})
		}
		return v
	}
	filters := search.Filters{
		ACOnly:         parseFlag("ac"),
		AccessibleOnly: parseFlag("accessible"),
		Expression:     q.Get("filter"),
	}
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid search filters", fieldErrs)
		return
	}

	snap, err := h.app.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	results, err := search.Search(q.Get("q"), filters, snap)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewList(results))
}
