package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagarbus/nagarbus/internal/api/middleware"
	"github.com/nagarbus/nagarbus/internal/api/response"
	"github.com/nagarbus/nagarbus/internal/network"
)

// serve runs fn behind the RequestID middleware so responses carry an ID.
func serve(t *testing.T, fn http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	middleware.RequestID(fn).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/buses/bus1", http.NoBody))
	return w
}

func testBus() network.Bus {
	return network.Bus{
		ID:               "bus1",
		RouteID:          "route1",
		BusNumber:        "UP78 AB 1234",
		CurrentStopIndex: 2,
		NextStopIndex:    3,
		Speed:            25,
		Capacity:         50,
		CurrentOccupancy: 30,
		Status:           network.StatusOnTime,
		EstimatedArrival: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestJSON_IncludesRequestID(t *testing.T) {
	w := serve(t, func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"message": "hello"})
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"hello"}`, w.Body.String())
}

func TestJSON_WithoutRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	response.JSON(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody), http.StatusOK, nil)

	assert.Empty(t, w.Header().Get("X-Request-Id"))
	assert.Empty(t, w.Body.String())
}

func TestGrouped_SummaryDropsDetailFields(t *testing.T) {
	w := serve(t, func(w http.ResponseWriter, r *http.Request) {
		response.Grouped(w, r, http.StatusOK, testBus(), response.GroupSummary)
	})

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "bus1", body["id"])
	assert.Equal(t, "on_time", body["status"])
	assert.NotContains(t, body, "currentStopIndex")
	assert.NotContains(t, body, "capacity")
}

func TestGrouped_DetailKeepsEverything(t *testing.T) {
	w := serve(t, func(w http.ResponseWriter, r *http.Request) {
		response.Grouped(w, r, http.StatusOK, testBus(), response.GroupDetail)
	})

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(2), body["currentStopIndex"])
	assert.Equal(t, float64(50), body["capacity"])
	assert.Equal(t, "2026-01-01T09:00:00Z", body["estimatedArrival"])
}

func TestGroupedList_NeverNull(t *testing.T) {
	w := serve(t, func(w http.ResponseWriter, r *http.Request) {
		response.GroupedList[network.Bus](w, r, nil, response.GroupSummary)
	})

	assert.JSONEq(t, `{"items":[],"count":0}`, w.Body.String())
}

func TestNotFound_WritesProblem(t *testing.T) {
	w := serve(t, func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "bus not found")
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "bus not found", body["detail"])
	assert.Equal(t, "/v1/buses/bus1", body["instance"])
	assert.Equal(t, w.Header().Get("X-Request-Id"), body["traceId"])
}

func TestNoContent(t *testing.T) {
	w := serve(t, func(w http.ResponseWriter, r *http.Request) {
		response.NoContent(w, r)
	})

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Empty(t, w.Body.String())
}
