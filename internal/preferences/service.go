package preferences

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nagarbus/nagarbus/internal/api/models"
	"github.com/nagarbus/nagarbus/internal/planner"
	"github.com/nagarbus/nagarbus/internal/resilience"
)

// DefaultProfile is the profile used when none is configured.
const DefaultProfile = "default"

// ServiceConfig holds configuration for the preferences service.
type ServiceConfig struct {
	// Repository persists the record. Nil keeps preferences in memory only.
	Repository Repository

	// Profile keys the record in the repository. Default: "default"
	Profile string

	// Guard wraps repository writes with breaker and retry. Optional.
	Guard *resilience.Guard

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service owns the in-memory preferences of one profile. Every mutation
// updates memory first and then persists; persistence failures are logged
// and never returned, so memory stays authoritative for the session.
type Service struct {
	repo    Repository
	profile string
	guard   *resilience.Guard
	logger  zerolog.Logger

	mu    sync.Mutex
	prefs Preferences
}

// NewService creates a preferences service holding the defaults until Load
// is called.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Profile == "" {
		cfg.Profile = DefaultProfile
	}
	return &Service{
		repo:    cfg.Repository,
		profile: cfg.Profile,
		guard:   cfg.Guard,
		logger:  cfg.Logger,
		prefs:   Default(),
	}
}

// Profile returns the profile key.
func (s *Service) Profile() string {
	return s.profile
}

// Load replaces the in-memory preferences with the stored record. A missing
// or unreadable record yields the defaults.
func (s *Service) Load(ctx context.Context) Preferences {
	prefs := Default()

	if s.repo != nil {
		data, err := s.repo.Load(ctx, s.profile)
		switch {
		case errors.Is(err, ErrPreferencesNotFound):
			s.logger.Debug().Str("profile", s.profile).Msg("no stored preferences, using defaults")
		case err != nil:
			s.logger.Warn().Err(err).Str("profile", s.profile).Msg("failed to load preferences, using defaults")
		default:
			decoded, err := Decode(data)
			if err != nil {
				s.logger.Warn().Err(err).Str("profile", s.profile).Msg("stored preferences unreadable, using defaults")
			} else {
				prefs = decoded
			}
		}
	}

	s.mu.Lock()
	s.prefs = prefs
	s.mu.Unlock()
	return prefs.Clone()
}

// Get returns a copy of the current preferences.
func (s *Service) Get() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs.Clone()
}

// SetLanguage changes the interface language.
func (s *Service) SetLanguage(ctx context.Context, code string) (Preferences, error) {
	lang := Language(code)
	if !lang.IsValid() {
		return Preferences{}, &ValidationError{Errors: []models.FieldError{
			{Field: "language", Message: "must be one of en, hi, regional", Code: models.CodeInvalid},
		}}
	}
	return s.update(ctx, "set_language", func(p *Preferences) {
		p.Language = lang
	}), nil
}

// AddRecentSearch records a search, most recent first, without duplicates.
func (s *Service) AddRecentSearch(ctx context.Context, text string) (Preferences, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Preferences{}, &ValidationError{Errors: []models.FieldError{
			{Field: "query", Message: "must not be empty", Code: models.CodeRequired},
		}}
	}
	return s.update(ctx, "add_recent_search", func(p *Preferences) {
		p.RecentSearches = pushFront(p.RecentSearches, text, func(a, b string) bool { return a == b }, MaxRecentSearches)
	}), nil
}

// ToggleFavoriteRoute adds or removes a favorite route.
func (s *Service) ToggleFavoriteRoute(ctx context.Context, routeID string) (Preferences, error) {
	if routeID == "" {
		return Preferences{}, &ValidationError{Errors: []models.FieldError{
			{Field: "routeId", Message: "must not be empty", Code: models.CodeRequired},
		}}
	}
	return s.update(ctx, "toggle_favorite_route", func(p *Preferences) {
		p.Favorites.Routes = toggle(p.Favorites.Routes, routeID)
	}), nil
}

// ToggleFavoriteStop adds or removes a favorite stop.
func (s *Service) ToggleFavoriteStop(ctx context.Context, stopID string) (Preferences, error) {
	if stopID == "" {
		return Preferences{}, &ValidationError{Errors: []models.FieldError{
			{Field: "stopId", Message: "must not be empty", Code: models.CodeRequired},
		}}
	}
	return s.update(ctx, "toggle_favorite_stop", func(p *Preferences) {
		p.Favorites.Stops = toggle(p.Favorites.Stops, stopID)
	}), nil
}

// AddRecentJourney records a plan, most recent first, replacing any earlier
// entry with the same id.
func (s *Service) AddRecentJourney(ctx context.Context, plan planner.JourneyPlan) Preferences {
	return s.update(ctx, "add_recent_journey", func(p *Preferences) {
		p.RoutePlanner.RecentJourneys = pushFront(p.RoutePlanner.RecentJourneys, plan,
			func(a, b planner.JourneyPlan) bool { return a.ID == b.ID }, MaxRecentJourneys)
	})
}

// update applies fn to the current preferences and persists the result.
// The lock is held across the write so concurrent updates persist in order.
func (s *Service) update(ctx context.Context, op string, fn func(p *Preferences)) Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.prefs.Clone()
	fn(&next)
	s.prefs = next

	s.persist(ctx, op, next)
	return next.Clone()
}

func (s *Service) persist(ctx context.Context, op string, p Preferences) {
	if s.repo == nil {
		return
	}

	data, err := Encode(p)
	if err != nil {
		s.logger.Error().Err(err).Str("op", op).Msg("failed to encode preferences")
		return
	}

	save := func(ctx context.Context) error {
		return s.repo.Save(ctx, s.profile, data)
	}
	if s.guard != nil {
		err = s.guard.Do(ctx, save)
	} else {
		err = save(ctx)
	}
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("op", op).
			Str("profile", s.profile).
			Msg("failed to persist preferences")
	}
}

// ValidationError represents validation errors.
type ValidationError struct {
	Errors []models.FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed"
}
