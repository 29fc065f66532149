package models

// List wraps collection responses.
type List[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// NewList builds a List, never encoding a null items array.
func NewList[T any](items []T) List[T] {
	if items == nil {
		items = []T{}
	}
	return List[T]{Items: items, Count: len(items)}
}

// PlanRequest is the body of POST /v1/journeys/plan.
type PlanRequest struct {
	FromStopID string `json:"fromStopId"`
	ToStopID   string `json:"toStopId"`
}

// Validate returns field errors for missing stops.
func (r PlanRequest) Validate() []FieldError {
	var errs []FieldError
	if r.FromStopID == "" {
		errs = append(errs, FieldError{Field: "fromStopId", Message: "is required", Code: CodeRequired})
	}
	if r.ToStopID == "" {
		errs = append(errs, FieldError{Field: "toStopId", Message: "is required", Code: CodeRequired})
	}
	return errs
}

// LanguageRequest is the body of PUT /v1/preferences/language.
type LanguageRequest struct {
	Language string `json:"language"`
}

// SearchRecordRequest is the body of POST /v1/preferences/searches.
type SearchRecordRequest struct {
	Query string `json:"query"`
}

// FocusRequest is the body of PUT /v1/tracking/focus.
type FocusRequest struct {
	BusID   string `json:"busId,omitempty"`
	RouteID string `json:"routeId,omitempty"`
}

// BusStatusRequest is the body of PUT /v1/buses/{busID}/status.
type BusStatusRequest struct {
	Status string `json:"status"`
}

// AdvanceResult is the response to POST /v1/positions/advance.
type AdvanceResult struct {
	Buses       any       `json:"buses"`
	Moved       int       `json:"moved"`
	Arrivals    int       `json:"arrivals"`
	GeneratedAt Timestamp `json:"generatedAt"`
}
