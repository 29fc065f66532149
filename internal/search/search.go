// Package search finds routes and stops by name and lists the buses that
// serve them.
package search

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/nagarbus/nagarbus/internal/network"
)

// ResultType distinguishes route and stop matches.
type ResultType string

// Result types.
const (
	ResultRoute ResultType = "route"
	ResultStop  ResultType = "stop"
)

// Filters narrow the buses attached to each result.
type Filters struct {
	ACOnly         bool
	AccessibleOnly bool

	// Expression is an optional boolean filter over BusEnv, for example
	// `occupancy < capacity / 2 && delay == 0`.
	Expression string
}

// BusEnv is the environment filter expressions are evaluated against.
type BusEnv struct {
	ID           string  `expr:"id"`
	RouteID      string  `expr:"routeId"`
	Number       string  `expr:"number"`
	IsAC         bool    `expr:"isAC"`
	IsAccessible bool    `expr:"isAccessible"`
	Occupancy    int     `expr:"occupancy"`
	Capacity     int     `expr:"capacity"`
	Delay        int     `expr:"delay"`
	Status       string  `expr:"status"`
	Speed        float64 `expr:"speed"`
}

func envOf(b network.Bus) BusEnv {
	return BusEnv{
		ID:           b.ID,
		RouteID:      b.RouteID,
		Number:       b.BusNumber,
		IsAC:         b.IsAC,
		IsAccessible: b.IsAccessible,
		Occupancy:    b.CurrentOccupancy,
		Capacity:     b.Capacity,
		Delay:        b.DelayMinutes,
		Status:       string(b.Status),
		Speed:        b.Speed,
	}
}

// RouteBus is a bus together with the route it runs on.
type RouteBus struct {
	Bus   network.Bus   `json:"bus"`
	Route network.Route `json:"route"`
}

// Result is one route or stop match. Route results carry Route and the
// matching buses on it; stop results carry Stop and every matching bus on
// any route that serves it.
type Result struct {
	Type  ResultType     `json:"type"`
	Route *network.Route `json:"route,omitempty"`
	Stop  *network.Stop  `json:"stop,omitempty"`
	Buses []RouteBus     `json:"buses"`
}

// ExpressionError reports a filter expression that does not compile.
type ExpressionError struct {
	Expression string
	Err        error
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("invalid filter expression %q: %v", e.Expression, e.Err)
}

func (e *ExpressionError) Unwrap() error {
	return e.Err
}

// Search matches query case-insensitively against route numbers and names,
// then against stop names. Results without any bus after filtering are
// dropped. A blank query returns no results.
func Search(query string, filters Filters, snap network.Snapshot) ([]Result, error) {
	match, err := busFilter(filters)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []Result{}, nil
	}

	results := []Result{}
	for _, route := range snap.Routes {
		if !containsFold(q, route.RouteNumber, route.RouteName, route.RouteNameHindi) {
			continue
		}
		var buses []RouteBus
		for _, b := range network.BusesOnRoute(snap.Buses, route.ID) {
			if match(b) {
				buses = append(buses, RouteBus{Bus: b, Route: route})
			}
		}
		if len(buses) == 0 {
			continue
		}
		r := route
		results = append(results, Result{Type: ResultRoute, Route: &r, Buses: buses})
	}

	for _, stop := range snap.Stops {
		if !containsFold(q, stop.Name, stop.NameHindi) {
			continue
		}
		var buses []RouteBus
		for _, route := range snap.Routes {
			if !route.Serves(stop.ID) {
				continue
			}
			for _, b := range network.BusesOnRoute(snap.Buses, route.ID) {
				if match(b) {
					buses = append(buses, RouteBus{Bus: b, Route: route})
				}
			}
		}
		if len(buses) == 0 {
			continue
		}
		s := stop
		results = append(results, Result{Type: ResultStop, Stop: &s, Buses: buses})
	}
	return results, nil
}

// Compile checks a filter expression without running a search.
func Compile(expression string) (*vm.Program, error) {
	program, err := expr.Compile(expression, expr.Env(BusEnv{}), expr.AsBool())
	if err != nil {
		return nil, &ExpressionError{Expression: expression, Err: err}
	}
	return program, nil
}

func busFilter(f Filters) (func(network.Bus) bool, error) {
	var program *vm.Program
	if strings.TrimSpace(f.Expression) != "" {
		p, err := Compile(f.Expression)
		if err != nil {
			return nil, err
		}
		program = p
	}

	return func(b network.Bus) bool {
		if f.ACOnly && !b.IsAC {
			return false
		}
		if f.AccessibleOnly && !b.IsAccessible {
			return false
		}
		if program == nil {
			return true
		}
		out, err := expr.Run(program, envOf(b))
		if err != nil {
			return false
		}
		ok, _ := out.(bool)
		return ok
	}, nil
}

func containsFold(q string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}
