// Package network holds the static transit reference data (stops and routes)
// and the mutable fleet of buses that move along those routes.
package network

import (
	"slices"
	"time"
)

// Amenity is a facility available at a stop.
type Amenity string

const (
	AmenityShelter         Amenity = "shelter"
	AmenitySeating         Amenity = "seating"
	AmenityDisplayBoard    Amenity = "display_board"
	AmenityWifi            Amenity = "wifi"
	AmenityAccessibility   Amenity = "accessibility"
	AmenityFoodCourt       Amenity = "food_court"
	AmenityStudentDiscount Amenity = "student_discount"
	AmenityLuggageSpace    Amenity = "luggage_space"
)

// IsValid reports whether a is part of the known amenity vocabulary.
func (a Amenity) IsValid() bool {
	switch a {
	case AmenityShelter, AmenitySeating, AmenityDisplayBoard, AmenityWifi,
		AmenityAccessibility, AmenityFoodCourt, AmenityStudentDiscount, AmenityLuggageSpace:
		return true
	}
	return false
}

// BusStatus is the operational status of a bus.
type BusStatus string

const (
	StatusOnTime    BusStatus = "on_time"
	StatusDelayed   BusStatus = "delayed"
	StatusEarly     BusStatus = "early"
	StatusBreakdown BusStatus = "breakdown"
)

// IsValid reports whether s is a known bus status.
func (s BusStatus) IsValid() bool {
	switch s {
	case StatusOnTime, StatusDelayed, StatusEarly, StatusBreakdown:
		return true
	}
	return false
}

// Coordinates is a WGS84 position in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude" groups:"summary,detail"`
	Longitude float64 `json:"longitude" groups:"summary,detail"`
}

// Stop is a fixed boarding location. Stops are immutable once loaded.
type Stop struct {
	ID          string      `json:"id" groups:"summary,detail"`
	Name        string      `json:"name" groups:"summary,detail"`
	NameHindi   string      `json:"nameHindi" groups:"summary,detail"`
	Coordinates Coordinates `json:"coordinates" groups:"summary,detail"`
	Amenities   []Amenity   `json:"amenities" groups:"detail"`
}

// HasAmenity reports whether the stop offers a.
func (s Stop) HasAmenity(a Amenity) bool {
	return slices.Contains(s.Amenities, a)
}

// Route is an ordered, one-directional sequence of stops.
// The order of Stops defines the direction of travel.
type Route struct {
	ID                string `json:"id" groups:"summary,detail"`
	RouteNumber       string `json:"routeNumber" groups:"summary,detail"`
	RouteName         string `json:"routeName" groups:"summary,detail"`
	RouteNameHindi    string `json:"routeNameHindi" groups:"summary,detail"`
	Stops             []Stop `json:"stops" groups:"detail"`
	IsActive          bool   `json:"isActive" groups:"summary,detail"`
	EstimatedDuration int    `json:"estimatedDuration" groups:"summary,detail"`
}

// StopIndex returns the position of the stop with the given ID in the route,
// or -1 if the route does not serve it.
func (r Route) StopIndex(stopID string) int {
	for i, s := range r.Stops {
		if s.ID == stopID {
			return i
		}
	}
	return -1
}

// Serves reports whether the route calls at the stop.
func (r Route) Serves(stopID string) bool {
	return r.StopIndex(stopID) >= 0
}

// StopAt returns the stop at index i and whether i is in range.
func (r Route) StopAt(i int) (Stop, bool) {
	if i < 0 || i >= len(r.Stops) {
		return Stop{}, false
	}
	return r.Stops[i], true
}

// Bus is a vehicle progressing along exactly one route.
// CurrentStopIndex and NextStopIndex index into the owning route's stops and
// are adjacent modulo the stop count.
type Bus struct {
	ID               string      `json:"id" groups:"summary,detail"`
	RouteID          string      `json:"routeId" groups:"summary,detail"`
	BusNumber        string      `json:"busNumber" groups:"summary,detail"`
	CurrentStopIndex int         `json:"currentStopIndex" groups:"detail"`
	NextStopIndex    int         `json:"nextStopIndex" groups:"detail"`
	Coordinates      Coordinates `json:"coordinates" groups:"summary,detail"`
	Speed            float64     `json:"speed" groups:"detail"`
	Capacity         int         `json:"capacity" groups:"detail"`
	CurrentOccupancy int         `json:"currentOccupancy" groups:"detail"`
	IsAC             bool        `json:"isAC" groups:"summary,detail"`
	IsAccessible     bool        `json:"isAccessible" groups:"summary,detail"`
	Status           BusStatus   `json:"status" groups:"summary,detail"`
	DelayMinutes     int         `json:"delayMinutes" groups:"summary,detail"`
	EstimatedArrival time.Time   `json:"estimatedArrival" groups:"summary,detail"`
	LastUpdated      time.Time   `json:"lastUpdated" groups:"detail"`

	// Revision counts stored writes. A save carrying an older revision than
	// the store holds is rejected with ErrStaleBus.
	Revision int64 `json:"-"`
}

// InService reports whether the bus may be offered to riders for planning.
func (b Bus) InService() bool {
	return b.Status != StatusBreakdown
}

// Snapshot is a read-only copy of the whole network at one instant.
type Snapshot struct {
	Stops  []Stop
	Routes []Route
	Buses  []Bus
}

// RouteByID returns the route with the given ID.
func (s Snapshot) RouteByID(id string) (Route, bool) {
	for _, r := range s.Routes {
		if r.ID == id {
			return r, true
		}
	}
	return Route{}, false
}

// StopByID returns the stop with the given ID.
func (s Snapshot) StopByID(id string) (Stop, bool) {
	for _, st := range s.Stops {
		if st.ID == id {
			return st, true
		}
	}
	return Stop{}, false
}

// StopsWithAmenity returns the stops offering a, in load order.
func StopsWithAmenity(stops []Stop, a Amenity) []Stop {
	out := []Stop{}
	for _, s := range stops {
		if s.HasAmenity(a) {
			out = append(out, s)
		}
	}
	return out
}

// BusesOnRoute returns the buses assigned to the route, in fleet order.
func BusesOnRoute(buses []Bus, routeID string) []Bus {
	var out []Bus
	for _, b := range buses {
		if b.RouteID == routeID {
			out = append(out, b)
		}
	}
	return out
}

func cloneRoute(r Route) Route {
	r.Stops = slices.Clone(r.Stops)
	for i := range r.Stops {
		r.Stops[i].Amenities = slices.Clone(r.Stops[i].Amenities)
	}
	return r
}

func cloneStop(s Stop) Stop {
	s.Amenities = slices.Clone(s.Amenities)
	return s
}
