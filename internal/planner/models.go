// Package planner finds direct and single-transfer bus journeys between two stops.
package planner

import (
	"time"

	"github.com/nagarbus/nagarbus/internal/network"
)

// Fares and fixed costs.
const (
	// MinutesPerHop is the flat travel time between consecutive stops.
	MinutesPerHop = 3

	// TransferMinutes is the time allowed to change buses.
	TransferMinutes = 5

	// TransferWalkMeters is the walking distance assumed for a transfer.
	TransferWalkMeters = 100

	// DirectFare is the fare for a journey without transfers.
	DirectFare = 10

	// TransferFare is the flat fare for a journey with one transfer.
	TransferFare = 15

	// MaxOptions is how many options a plan keeps.
	MaxOptions = 3
)

// JourneyPlan is the ranked answer to one planning request.
// Options are ordered best first.
type JourneyPlan struct {
	ID            string        `json:"id"`
	FromStop      network.Stop  `json:"fromStop"`
	ToStop        network.Stop  `json:"toStop"`
	Options       []RouteOption `json:"routes"`
	TotalDuration int           `json:"totalDuration"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// Best returns the fastest option, if any.
func (p JourneyPlan) Best() (RouteOption, bool) {
	if len(p.Options) == 0 {
		return RouteOption{}, false
	}
	return p.Options[0], true
}

// RouteOption is one way of making the journey.
type RouteOption struct {
	ID              string          `json:"id"`
	Buses           []network.Bus   `json:"buses"`
	Routes          []network.Route `json:"routes"`
	Transfers       int             `json:"transfers"`
	TotalDuration   int             `json:"totalDuration"`
	WalkingDistance int             `json:"walkingDistance"`
	EstimatedFare   int             `json:"estimatedFare"`
	Steps           Steps           `json:"steps"`
}
