package preferences_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagarbus/nagarbus/internal/planner"
	"github.com/nagarbus/nagarbus/internal/preferences"
	"github.com/nagarbus/nagarbus/internal/resilience"
)

type failingRepository struct {
	loadErr error
	saveErr error
	saves   int
}

func (r *failingRepository) Load(context.Context, string) ([]byte, error) {
	return nil, r.loadErr
}

func (r *failingRepository) Save(context.Context, string, []byte) error {
	r.saves++
	return r.saveErr
}

func newService(repo preferences.Repository) *preferences.Service {
	return preferences.NewService(preferences.ServiceConfig{
		Repository: repo,
		Logger:     zerolog.Nop(),
	})
}

func TestDefault(t *testing.T) {
	p := preferences.Default()

	assert.Equal(t, preferences.LanguageEnglish, p.Language)
	assert.Equal(t, preferences.Notifications{Enabled: true, ArrivalAlert: true, ArrivalMinutes: 5, Vibration: true}, p.Notifications)
	assert.Equal(t, []string{"fastest"}, p.RoutePlanner.PreferredRouteTypes)
	assert.Equal(t, 500, p.RoutePlanner.MaxWalkingDistance)
	assert.Empty(t, p.RoutePlanner.RecentJourneys)
	assert.NotNil(t, p.Favorites.Routes)
	assert.NotNil(t, p.RecentSearches)
}

func TestDecode_Backfill(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, p preferences.Preferences)
	}{
		{
			name:  "empty object",
			input: `{}`,
			check: func(t *testing.T, p preferences.Preferences) {
				assert.Equal(t, preferences.Default(), p)
			},
		},
		{
			name:  "language only",
			input: `{"language":"hi"}`,
			check: func(t *testing.T, p preferences.Preferences) {
				assert.Equal(t, preferences.LanguageHindi, p.Language)
				assert.Equal(t, preferences.DefaultNotifications(), p.Notifications)
				assert.Equal(t, preferences.DefaultRoutePlanner(), p.RoutePlanner)
				assert.Equal(t, []string{}, p.Favorites.Stops)
			},
		},
		{
			name:  "null slices become empty",
			input: `{"favorites":{"routes":["route1"],"stops":null},"recentSearches":null}`,
			check: func(t *testing.T, p preferences.Preferences) {
				assert.Equal(t, []string{"route1"}, p.Favorites.Routes)
				assert.Equal(t, []string{}, p.Favorites.Stops)
				assert.Equal(t, []string{}, p.RecentSearches)
			},
		},
		{
			name:  "missing planner fields keep defaults",
			input: `{"routePlanner":{"recentJourneys":[]}}`,
			check: func(t *testing.T, p preferences.Preferences) {
				assert.Equal(t, 500, p.RoutePlanner.MaxWalkingDistance)
				assert.Equal(t, []string{"fastest"}, p.RoutePlanner.PreferredRouteTypes)
			},
		},
		{
			name:  "missing notification fields keep defaults",
			input: `{"notifications":{"arrivalMinutes":8}}`,
			check: func(t *testing.T, p preferences.Preferences) {
				want := preferences.DefaultNotifications()
				want.ArrivalMinutes = 8
				assert.Equal(t, want, p.Notifications)
			},
		},
		{
			name:  "null sub-object keeps defaults",
			input: `{"notifications":null,"language":""}`,
			check: func(t *testing.T, p preferences.Preferences) {
				assert.Equal(t, preferences.DefaultNotifications(), p.Notifications)
				assert.Equal(t, preferences.LanguageEnglish, p.Language)
			},
		},
		{
			name:  "present sub-object kept as stored",
			input: `{"notifications":{"enabled":false,"arrivalAlert":false,"arrivalMinutes":2,"vibration":false}}`,
			check: func(t *testing.T, p preferences.Preferences) {
				assert.Equal(t, preferences.Notifications{ArrivalMinutes: 2}, p.Notifications)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := preferences.Decode([]byte(tt.input))
			require.NoError(t, err)
			tt.check(t, p)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	_, err := preferences.Decode([]byte(`{"language":`))
	assert.Error(t, err)
}

func TestEncode_NeverNull(t *testing.T) {
	data, err := preferences.Encode(preferences.Preferences{Language: preferences.LanguageEnglish})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "null")
}

func TestService_SetLanguage(t *testing.T) {
	repo := preferences.NewInMemoryRepository()
	svc := newService(repo)
	ctx := context.Background()

	p, err := svc.SetLanguage(ctx, "hi")
	require.NoError(t, err)
	assert.Equal(t, preferences.LanguageHindi, p.Language)

	_, err = svc.SetLanguage(ctx, "fr")
	var verr *preferences.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "language", verr.Errors[0].Field)
	assert.Equal(t, preferences.LanguageHindi, svc.Get().Language)

	stored, err := repo.Load(ctx, preferences.DefaultProfile)
	require.NoError(t, err)
	decoded, err := preferences.Decode(stored)
	require.NoError(t, err)
	assert.Equal(t, preferences.LanguageHindi, decoded.Language)
}

func TestService_AddRecentSearch(t *testing.T) {
	svc := newService(preferences.NewInMemoryRepository())
	ctx := context.Background()

	for i := range 12 {
		_, err := svc.AddRecentSearch(ctx, fmt.Sprintf("q%d", i))
		require.NoError(t, err)
	}
	p, err := svc.AddRecentSearch(ctx, "  q5 ")
	require.NoError(t, err)

	require.Len(t, p.RecentSearches, preferences.MaxRecentSearches)
	assert.Equal(t, "q5", p.RecentSearches[0])
	assert.Equal(t, "q11", p.RecentSearches[1])
	assert.Equal(t, 1, countOf(p.RecentSearches, "q5"))

	_, err = svc.AddRecentSearch(ctx, "   ")
	var verr *preferences.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestService_ToggleFavorites(t *testing.T) {
	svc := newService(nil)
	ctx := context.Background()

	_, err := svc.ToggleFavoriteRoute(ctx, "route1")
	require.NoError(t, err)
	p, err := svc.ToggleFavoriteRoute(ctx, "route2")
	require.NoError(t, err)
	assert.Equal(t, []string{"route2", "route1"}, p.Favorites.Routes)
	assert.True(t, p.IsFavoriteRoute("route1"))

	p, err = svc.ToggleFavoriteRoute(ctx, "route1")
	require.NoError(t, err)
	assert.Equal(t, []string{"route2"}, p.Favorites.Routes)

	p, err = svc.ToggleFavoriteStop(ctx, "stop4")
	require.NoError(t, err)
	assert.True(t, p.IsFavoriteStop("stop4"))
	p, err = svc.ToggleFavoriteStop(ctx, "stop4")
	require.NoError(t, err)
	assert.Empty(t, p.Favorites.Stops)

	_, err = svc.ToggleFavoriteStop(ctx, "")
	assert.Error(t, err)
	_, err = svc.ToggleFavoriteRoute(ctx, "")
	assert.Error(t, err)
}

func TestService_AddRecentJourney(t *testing.T) {
	svc := newService(preferences.NewInMemoryRepository())
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := range 11 {
		svc.AddRecentJourney(ctx, planner.JourneyPlan{ID: fmt.Sprintf("journey-%d", i), CreatedAt: now})
	}
	p := svc.AddRecentJourney(ctx, planner.JourneyPlan{ID: "journey-3", TotalDuration: 42, CreatedAt: now})

	journeys := p.RoutePlanner.RecentJourneys
	require.Len(t, journeys, preferences.MaxRecentJourneys)
	assert.Equal(t, "journey-3", journeys[0].ID)
	assert.Equal(t, 42, journeys[0].TotalDuration)
	assert.Equal(t, "journey-10", journeys[1].ID)
	for _, j := range journeys[1:] {
		assert.NotEqual(t, "journey-3", j.ID)
	}
}

func TestService_GetReturnsCopy(t *testing.T) {
	svc := newService(nil)
	_, err := svc.ToggleFavoriteRoute(context.Background(), "route1")
	require.NoError(t, err)

	p := svc.Get()
	p.Favorites.Routes[0] = "tampered"
	p.RecentSearches = append(p.RecentSearches, "x")

	again := svc.Get()
	assert.Equal(t, []string{"route1"}, again.Favorites.Routes)
	assert.Empty(t, again.RecentSearches)
}

func TestService_LoadRoundTrip(t *testing.T) {
	repo := preferences.NewInMemoryRepository()
	ctx := context.Background()

	first := newService(repo)
	_, err := first.SetLanguage(ctx, "regional")
	require.NoError(t, err)
	_, err = first.AddRecentSearch(ctx, "IIT")
	require.NoError(t, err)

	second := newService(repo)
	p := second.Load(ctx)
	assert.Equal(t, preferences.LanguageRegional, p.Language)
	assert.Equal(t, []string{"IIT"}, p.RecentSearches)
}

func TestService_LoadFallsBackToDefaults(t *testing.T) {
	ctx := context.Background()

	t.Run("load error", func(t *testing.T) {
		svc := newService(&failingRepository{loadErr: errors.New("disk on fire")})
		assert.Equal(t, preferences.Default(), svc.Load(ctx))
	})

	t.Run("corrupt record", func(t *testing.T) {
		repo := preferences.NewInMemoryRepository()
		require.NoError(t, repo.Save(ctx, "rider", []byte("not json")))
		svc := preferences.NewService(preferences.ServiceConfig{Repository: repo, Profile: "rider", Logger: zerolog.Nop()})
		assert.Equal(t, preferences.Default(), svc.Load(ctx))
	})

	t.Run("missing record", func(t *testing.T) {
		svc := newService(preferences.NewInMemoryRepository())
		assert.Equal(t, preferences.Default(), svc.Load(ctx))
	})
}

func TestService_PersistFailureIgnored(t *testing.T) {
	repo := &failingRepository{saveErr: errors.New("read-only")}
	cfg := resilience.DefaultGuardConfig("preferences-test")
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = time.Millisecond
	svc := preferences.NewService(preferences.ServiceConfig{
		Repository: repo,
		Guard:      resilience.NewGuard(cfg),
		Logger:     zerolog.Nop(),
	})

	p, err := svc.SetLanguage(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, preferences.LanguageHindi, p.Language)
	assert.Equal(t, preferences.LanguageHindi, svc.Get().Language)
	assert.Equal(t, 3, repo.saves)
}

func TestFileRepository(t *testing.T) {
	repo := preferences.NewFileRepository(t.TempDir())
	ctx := context.Background()

	_, err := repo.Load(ctx, "rider")
	assert.ErrorIs(t, err, preferences.ErrPreferencesNotFound)

	require.NoError(t, repo.Save(ctx, "rider", []byte(`{"language":"hi"}`)))
	data, err := repo.Load(ctx, "rider")
	require.NoError(t, err)
	assert.JSONEq(t, `{"language":"hi"}`, string(data))
}

func countOf(list []string, v string) int {
	n := 0
	for _, s := range list {
		if s == v {
			n++
		}
	}
	return n
}
