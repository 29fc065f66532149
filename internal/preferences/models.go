// Package preferences stores a rider's language, notification settings,
// favorites and recent history.
package preferences

import (
	"slices"

	"github.com/nagarbus/nagarbus/internal/planner"
)

// Language is a supported interface language.
type Language string

// Supported languages.
const (
	LanguageEnglish  Language = "en"
	LanguageHindi    Language = "hi"
	LanguageRegional Language = "regional"
)

// IsValid reports whether l is a supported language.
func (l Language) IsValid() bool {
	switch l {
	case LanguageEnglish, LanguageHindi, LanguageRegional:
		return true
	}
	return false
}

// History limits.
const (
	MaxRecentSearches = 10
	MaxRecentJourneys = 10
)

// Preferences is the persisted preference record.
type Preferences struct {
	Language       Language      `json:"language"`
	Notifications  Notifications `json:"notifications"`
	RoutePlanner   RoutePlanner  `json:"routePlanner"`
	Favorites      Favorites     `json:"favorites"`
	RecentSearches []string      `json:"recentSearches"`
}

// Notifications holds arrival alert settings.
type Notifications struct {
	Enabled        bool `json:"enabled"`
	ArrivalAlert   bool `json:"arrivalAlert"`
	ArrivalMinutes int  `json:"arrivalMinutes"`
	Vibration      bool `json:"vibration"`
}

// RoutePlanner holds planner settings and journey history.
// RecentJourneys is newest first.
type RoutePlanner struct {
	RecentJourneys      []planner.JourneyPlan `json:"recentJourneys"`
	PreferredRouteTypes []string              `json:"preferredRouteTypes"`
	MaxWalkingDistance  int                   `json:"maxWalkingDistance"`
}

// Favorites holds favorite route and stop identifiers, newest first.
type Favorites struct {
	Routes []string `json:"routes"`
	Stops  []string `json:"stops"`
}

// Default returns the preferences of a new rider.
func Default() Preferences {
	return Preferences{
		Language:       LanguageEnglish,
		Notifications:  DefaultNotifications(),
		RoutePlanner:   DefaultRoutePlanner(),
		Favorites:      Favorites{Routes: []string{}, Stops: []string{}},
		RecentSearches: []string{},
	}
}

// DefaultNotifications returns the default notification settings.
func DefaultNotifications() Notifications {
	return Notifications{
		Enabled:        true,
		ArrivalAlert:   true,
		ArrivalMinutes: 5,
		Vibration:      true,
	}
}

// DefaultRoutePlanner returns the default planner settings.
func DefaultRoutePlanner() RoutePlanner {
	return RoutePlanner{
		RecentJourneys:      []planner.JourneyPlan{},
		PreferredRouteTypes: []string{"fastest"},
		MaxWalkingDistance:  500,
	}
}

// IsFavoriteRoute reports whether id is a favorite route.
func (p Preferences) IsFavoriteRoute(id string) bool {
	return slices.Contains(p.Favorites.Routes, id)
}

// IsFavoriteStop reports whether id is a favorite stop.
func (p Preferences) IsFavoriteStop(id string) bool {
	return slices.Contains(p.Favorites.Stops, id)
}

// Clone returns a copy that shares no slices with p.
// Journey plans are never mutated after creation, so the plans themselves
// are shared.
func (p Preferences) Clone() Preferences {
	out := p
	out.RoutePlanner.RecentJourneys = slices.Clone(p.RoutePlanner.RecentJourneys)
	out.RoutePlanner.PreferredRouteTypes = slices.Clone(p.RoutePlanner.PreferredRouteTypes)
	out.Favorites.Routes = slices.Clone(p.Favorites.Routes)
	out.Favorites.Stops = slices.Clone(p.Favorites.Stops)
	out.RecentSearches = slices.Clone(p.RecentSearches)
	return out.normalized()
}

// normalized replaces nil slices with empty ones so the record always
// encodes arrays, never null.
func (p Preferences) normalized() Preferences {
	if p.RoutePlanner.RecentJourneys == nil {
		p.RoutePlanner.RecentJourneys = []planner.JourneyPlan{}
	}
	if p.RoutePlanner.PreferredRouteTypes == nil {
		p.RoutePlanner.PreferredRouteTypes = []string{}
	}
	if p.Favorites.Routes == nil {
		p.Favorites.Routes = []string{}
	}
	if p.Favorites.Stops == nil {
		p.Favorites.Stops = []string{}
	}
	if p.RecentSearches == nil {
		p.RecentSearches = []string{}
	}
	return p
}

// pushFront returns list with v first, any earlier copy of v removed, and
// at most limit entries.
func pushFront[T any](list []T, v T, same func(a, b T) bool, limit int) []T {
	out := make([]T, 0, min(len(list)+1, limit))
	out = append(out, v)
	for _, item := range list {
		if len(out) == limit {
			break
		}
		if same(item, v) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// toggle removes id from list if present, otherwise prepends it.
func toggle(list []string, id string) []string {
	if i := slices.Index(list, id); i >= 0 {
		return slices.Delete(slices.Clone(list), i, i+1)
	}
	return append([]string{id}, list...)
}
