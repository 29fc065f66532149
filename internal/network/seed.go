package network

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/jinzhu/copier"
	"gopkg.in/yaml.v3"
)

//go:embed seed/stops.csv seed/buses.csv seed/routes.yaml
var seedFS embed.FS

// ErrInvalidSeed is returned when reference data is internally inconsistent.
var ErrInvalidSeed = errors.New("invalid network seed")

// Seed is the reference data needed to build a network.
// Buses carry relative arrival offsets until Buses stamps them with a clock.
type Seed struct {
	Stops      []Stop
	Routes     []Route
	buses      []Bus
	etaOffsets []time.Duration
}

type stopRecord struct {
	ID        string  `csv:"id"`
	Name      string  `csv:"name"`
	NameHindi string  `csv:"name_hindi"`
	Latitude  float64 `csv:"latitude"`
	Longitude float64 `csv:"longitude"`
	Amenities string  `csv:"amenities"`
}

type busRecord struct {
	ID               string  `csv:"id"`
	RouteID          string  `csv:"route_id"`
	BusNumber        string  `csv:"bus_number"`
	CurrentStopIndex int     `csv:"current_stop_index"`
	NextStopIndex    int     `csv:"next_stop_index"`
	Latitude         float64 `csv:"latitude"`
	Longitude        float64 `csv:"longitude"`
	Speed            float64 `csv:"speed"`
	Capacity         int     `csv:"capacity"`
	CurrentOccupancy int     `csv:"current_occupancy"`
	IsAC             bool    `csv:"is_ac"`
	IsAccessible     bool    `csv:"is_accessible"`
	Status           string  `csv:"status"`
	DelayMinutes     int     `csv:"delay_minutes"`
	ETAOffsetMinutes int     `csv:"eta_offset_minutes"`
}

type routeFile struct {
	Routes []routeRecord `yaml:"routes"`
}

type routeRecord struct {
	ID                string   `yaml:"id"`
	Number            string   `yaml:"number"`
	Name              string   `yaml:"name"`
	NameHindi         string   `yaml:"nameHindi"`
	Active            bool     `yaml:"active"`
	EstimatedDuration int      `yaml:"estimatedDuration"`
	Stops             []string `yaml:"stops"`
}

// DefaultSeed returns the embedded Kanpur reference network.
func DefaultSeed() (*Seed, error) {
	sub, err := fs.Sub(seedFS, "seed")
	if err != nil {
		return nil, err
	}
	return LoadSeed(sub)
}

// LoadSeed reads stops.csv, routes.yaml and buses.csv from fsys and
// validates that they reference each other consistently.
func LoadSeed(fsys fs.FS) (*Seed, error) {
	stopsRaw, err := fs.ReadFile(fsys, "stops.csv")
	if err != nil {
		return nil, fmt.Errorf("read stops: %w", err)
	}
	var stopRecs []*stopRecord
	if err := gocsv.UnmarshalBytes(stopsRaw, &stopRecs); err != nil {
		return nil, fmt.Errorf("decode stops: %w", err)
	}

	routesRaw, err := fs.ReadFile(fsys, "routes.yaml")
	if err != nil {
		return nil, fmt.Errorf("read routes: %w", err)
	}
	var rf routeFile
	if err := yaml.Unmarshal(routesRaw, &rf); err != nil {
		return nil, fmt.Errorf("decode routes: %w", err)
	}

	busesRaw, err := fs.ReadFile(fsys, "buses.csv")
	if err != nil {
		return nil, fmt.Errorf("read buses: %w", err)
	}
	var busRecs []*busRecord
	if err := gocsv.UnmarshalBytes(busesRaw, &busRecs); err != nil {
		return nil, fmt.Errorf("decode buses: %w", err)
	}

	seed := &Seed{}
	byID := make(map[string]Stop, len(stopRecs))
	for _, rec := range stopRecs {
		stop := Stop{
			ID:          rec.ID,
			Name:        rec.Name,
			NameHindi:   rec.NameHindi,
			Coordinates: Coordinates{Latitude: rec.Latitude, Longitude: rec.Longitude},
			Amenities:   parseAmenities(rec.Amenities),
		}
		if _, dup := byID[stop.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate stop %q", ErrInvalidSeed, stop.ID)
		}
		for _, a := range stop.Amenities {
			if !a.IsValid() {
				return nil, fmt.Errorf("%w: stop %q has unknown amenity %q", ErrInvalidSeed, stop.ID, a)
			}
		}
		byID[stop.ID] = stop
		seed.Stops = append(seed.Stops, stop)
	}

	for _, rec := range rf.Routes {
		route := Route{
			ID:                rec.ID,
			RouteNumber:       rec.Number,
			RouteName:         rec.Name,
			RouteNameHindi:    rec.NameHindi,
			IsActive:          rec.Active,
			EstimatedDuration: rec.EstimatedDuration,
		}
		for _, id := range rec.Stops {
			stop, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("%w: route %q references unknown stop %q", ErrInvalidSeed, rec.ID, id)
			}
			route.Stops = append(route.Stops, cloneStop(stop))
		}
		seed.Routes = append(seed.Routes, route)
	}

	for _, rec := range busRecs {
		var bus Bus
		if err := copier.Copy(&bus, rec); err != nil {
			return nil, fmt.Errorf("decode bus %q: %w", rec.ID, err)
		}
		bus.Coordinates = Coordinates{Latitude: rec.Latitude, Longitude: rec.Longitude}
		bus.Status = BusStatus(rec.Status)
		seed.buses = append(seed.buses, bus)
		seed.etaOffsets = append(seed.etaOffsets, time.Duration(rec.ETAOffsetMinutes)*time.Minute)
	}

	if err := Validate(seed.Stops, seed.Routes, seed.Buses(time.Time{})); err != nil {
		return nil, err
	}
	return seed, nil
}

// Buses materializes the seeded fleet, stamping arrival estimates relative to now.
func (s *Seed) Buses(now time.Time) []Bus {
	buses := make([]Bus, 0, len(s.buses))
	for i, b := range s.buses {
		b.EstimatedArrival = now.Add(s.etaOffsets[i])
		b.LastUpdated = now
		buses = append(buses, b)
	}
	return buses
}

// Validate checks cross references between stops, routes and buses.
func Validate(stops []Stop, routes []Route, buses []Bus) error {
	known := make(map[string]bool, len(stops))
	for _, s := range stops {
		known[s.ID] = true
	}

	routeLen := make(map[string]int, len(routes))
	for _, r := range routes {
		if _, dup := routeLen[r.ID]; dup {
			return fmt.Errorf("%w: duplicate route %q", ErrInvalidSeed, r.ID)
		}
		seen := make(map[string]bool, len(r.Stops))
		for _, s := range r.Stops {
			if !known[s.ID] {
				return fmt.Errorf("%w: route %q references unknown stop %q", ErrInvalidSeed, r.ID, s.ID)
			}
			if seen[s.ID] {
				return fmt.Errorf("%w: route %q visits stop %q twice", ErrInvalidSeed, r.ID, s.ID)
			}
			seen[s.ID] = true
		}
		routeLen[r.ID] = len(r.Stops)
	}

	for _, b := range buses {
		n, ok := routeLen[b.RouteID]
		if !ok {
			return fmt.Errorf("%w: bus %q assigned to unknown route %q", ErrInvalidSeed, b.ID, b.RouteID)
		}
		if b.CurrentStopIndex < 0 || b.CurrentStopIndex >= n || b.NextStopIndex < 0 || b.NextStopIndex >= n {
			return fmt.Errorf("%w: bus %q stop indices out of range", ErrInvalidSeed, b.ID)
		}
		if !b.Status.IsValid() {
			return fmt.Errorf("%w: bus %q has unknown status %q", ErrInvalidSeed, b.ID, b.Status)
		}
	}
	return nil
}

func parseAmenities(raw string) []Amenity {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []Amenity{}
	}
	parts := strings.Split(raw, "|")
	out := make([]Amenity, 0, len(parts))
	for _, p := range parts {
		out = append(out, Amenity(strings.TrimSpace(p)))
	}
	return out
}
