package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/nagarbus/nagarbus/internal/app"
	"github.com/nagarbus/nagarbus/internal/network"
	"github.com/nagarbus/nagarbus/internal/preferences"
	"github.com/nagarbus/nagarbus/internal/search"
	"github.com/nagarbus/nagarbus/internal/simulator"
	"github.com/nagarbus/nagarbus/internal/tracking"
)

// session builds a controller over the seed network with file-backed
// preferences. now drives the controller clock.
func session(c *cli.Context, now func() time.Time) (*app.App, error) {
	seed, err := network.DefaultSeed()
	if err != nil {
		return nil, err
	}

	a := app.New(app.Config{
		Network: network.NewService(network.ServiceConfig{
			Repository: network.NewInMemoryRepository(seed.Stops, seed.Routes, seed.Buses(now())),
			Logger:     log.Logger,
		}),
		Preferences: preferences.NewService(preferences.ServiceConfig{
			Repository: preferences.NewFileRepository(c.String("data-dir")),
			Profile:    c.String("profile"),
			Logger:     log.Logger,
		}),
		Random: simulator.NewRand(c.Uint64("seed")),
		Now:    now,
		Logger: log.Logger,
	})
	a.LoadPreferences(c.Context)
	return a, nil
}

func output(c *cli.Context, v any, table func(w io.Writer)) error {
	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	table(tw)
	return tw.Flush()
}

// localized picks the Hindi text when the rider chose Hindi.
func localized(a *app.App, def, hindi string) string {
	if a.Preferences().Language == preferences.LanguageHindi && hindi != "" {
		return hindi
	}
	return def
}

func stopsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stops",
		Usage: "list every stop, favorites marked with " + favoriteMark,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "amenity",
				Usage: "only stops offering this amenity, e.g. wifi or shelter",
			},
		},
		Action: func(c *cli.Context) error {
			amenity := network.Amenity(c.String("amenity"))
			if amenity != "" && !amenity.IsValid() {
				return fmt.Errorf("unknown amenity %q", amenity)
			}
			a, err := session(c, time.Now)
			if err != nil {
				return err
			}
			stops, err := a.Network().Stops(c.Context)
			if err != nil {
				return err
			}
			if amenity != "" {
				stops = network.StopsWithAmenity(stops, amenity)
			}
			prefs := a.Preferences()
			return output(c, stops, func(w io.Writer) {
				fmt.Fprintln(w, "\tID\tNAME\tAMENITIES")
				for _, s := range stops {
					amenities := make([]string, len(s.Amenities))
					for i, am := range s.Amenities {
						amenities[i] = string(am)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						marker(prefs.IsFavoriteStop(s.ID)), s.ID, localized(a, s.Name, s.NameHindi), strings.Join(amenities, ","))
				}
			})
		},
	}
}

const favoriteMark = "★"

func marker(favorite bool) string {
	if favorite {
		return favoriteMark
	}
	return ""
}

func routesCommand() *cli.Command {
	return &cli.Command{
		Name:  "routes",
		Usage: "list every route with its live service updates, favorites marked with " + favoriteMark,
		Action: func(c *cli.Context) error {
			a, err := session(c, time.Now)
			if err != nil {
				return err
			}
			snap, err := a.Snapshot(c.Context)
			if err != nil {
				return err
			}
			prefs := a.Preferences()
			return output(c, snap.Routes, func(w io.Writer) {
				fmt.Fprintln(w, "\tID\tNUMBER\tNAME\tSTOPS\tMINUTES\tSTATUS")
				for _, r := range snap.Routes {
					notices := tracking.ServiceUpdates(network.BusesOnRoute(snap.Buses, r.ID))
					status := make([]string, len(notices))
					for i, n := range notices {
						status[i] = localized(a, n.Message, n.MessageHindi)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
						marker(prefs.IsFavoriteRoute(r.ID)), r.ID, r.RouteNumber, localized(a, r.RouteName, r.RouteNameHindi),
						len(r.Stops), r.EstimatedDuration, strings.Join(status, "; "))
				}
			})
		},
	}
}

func timelineCommand() *cli.Command {
	return &cli.Command{
		Name:      "timeline",
		Usage:     "show where buses are along a route",
		ArgsUsage: "<route-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("timeline needs exactly one route id", 2)
			}
			a, err := session(c, time.Now)
			if err != nil {
				return err
			}
			route, err := a.Network().Route(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			buses, err := a.Network().Buses(c.Context)
			if err != nil {
				return err
			}
			entries := tracking.StopTimeline(route, buses, a.Now())
			return output(c, entries, func(w io.Writer) {
				fmt.Fprintln(w, "#\tSTOP\tSTATUS\tBUS\tETA")
				for _, e := range entries {
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", e.Index+1, localized(a, e.Stop.Name, e.Stop.NameHindi), e.Status, e.BusID, e.ETA)
				}
			})
		},
	}
}

func nearbyCommand() *cli.Command {
	return &cli.Command{
		Name:  "nearby",
		Usage: "list buses in service, nearest first when a location is given",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "lat", Usage: "rider latitude"},
			&cli.Float64Flag{Name: "lng", Usage: "rider longitude"},
			&cli.IntFlag{Name: "limit", Value: tracking.DefaultNearbyLimit, Usage: "maximum buses"},
		},
		Action: func(c *cli.Context) error {
			a, err := session(c, time.Now)
			if err != nil {
				return err
			}
			buses, err := a.Network().Buses(c.Context)
			if err != nil {
				return err
			}
			var location *network.Coordinates
			if c.IsSet("lat") || c.IsSet("lng") {
				if !c.IsSet("lat") || !c.IsSet("lng") {
					return cli.Exit("--lat and --lng go together", 2)
				}
				location = &network.Coordinates{Latitude: c.Float64("lat"), Longitude: c.Float64("lng")}
			}
			nearby := tracking.NearbyBuses(location, buses, c.Int("limit"))
			return output(c, nearby, func(w io.Writer) {
				fmt.Fprintln(w, "BUS\tROUTE\tSTATUS\tDELAY\tDISTANCE")
				for _, n := range nearby {
					dist := "-"
					if n.DistanceKm != nil {
						dist = fmt.Sprintf("%.2f km", *n.DistanceKm)
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", n.Bus.BusNumber, n.Bus.RouteID, n.Bus.Status, n.Bus.DelayMinutes, dist)
				}
			})
		},
	}
}

func planCommand() *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "plan a journey between two stops",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "from", Required: true, Usage: "origin stop id"},
			&cli.StringFlag{Name: "to", Required: true, Usage: "destination stop id"},
		},
		Action: func(c *cli.Context) error {
			a, err := session(c, time.Now)
			if err != nil {
				return err
			}
			plan, err := a.PlanJourney(c.Context, c.String("from"), c.String("to"))
			if err != nil {
				return err
			}
			return output(c, plan, func(w io.Writer) {
				if len(plan.Options) == 0 {
					fmt.Fprintln(w, "no buses connect these stops right now")
					return
				}
				for i, opt := range plan.Options {
					fmt.Fprintf(w, "option %d\t%d min\t%d transfer(s)\tRs %d\n", i+1, opt.TotalDuration, opt.Transfers, opt.EstimatedFare)
					for _, step := range opt.Steps {
						text := step.Text()
						fmt.Fprintf(w, "\t%s\t%d min\n", localized(a, text.Default, text.Hindi), step.Minutes())
					}
				}
			})
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "find routes and stops by name or number",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "ac", Usage: "only air-conditioned buses"},
			&cli.BoolFlag{Name: "accessible", Usage: "only accessible buses"},
			&cli.StringFlag{Name: "filter", Usage: "bus filter expression, e.g. 'delay == 0'"},
		},
		Action: func(c *cli.Context) error {
			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return cli.Exit("search needs a query", 2)
			}
			a, err := session(c, time.Now)
			if err != nil {
				return err
			}
			snap, err := a.Snapshot(c.Context)
			if err != nil {
				return err
			}
			results, err := search.Search(query, search.Filters{
				ACOnly:         c.Bool("ac"),
				AccessibleOnly: c.Bool("accessible"),
				Expression:     c.String("filter"),
			}, snap)
			if err != nil {
				return err
			}
			if _, err := a.AddRecentSearch(c.Context, query); err != nil {
				return err
			}
			return output(c, results, func(w io.Writer) {
				fmt.Fprintln(w, "TYPE\tMATCH\tBUSES")
				for _, r := range results {
					name := ""
					switch r.Type {
					case search.ResultRoute:
						name = r.Route.RouteNumber + " " + localized(a, r.Route.RouteName, r.Route.RouteNameHindi)
					case search.ResultStop:
						name = localized(a, r.Stop.Name, r.Stop.NameHindi)
					}
					numbers := make([]string, len(r.Buses))
					for i, rb := range r.Buses {
						numbers[i] = rb.Bus.BusNumber
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", r.Type, name, strings.Join(numbers, ", "))
				}
			})
		},
	}
}

func simulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "advance the fleet on a simulated clock",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "ticks", Value: 12, Usage: "number of passes"},
			&cli.DurationFlag{Name: "step", Value: simulator.DefaultFocusedInterval, Usage: "simulated time between passes"},
		},
		Action: func(c *cli.Context) error {
			ticks, step := c.Int("ticks"), c.Duration("step")
			if ticks <= 0 || step <= 0 {
				return cli.Exit("--ticks and --step must be positive", 2)
			}

			clock := time.Now()
			a, err := session(c, func() time.Time { return clock })
			if err != nil {
				return err
			}

			type tick struct {
				N        int `json:"tick"`
				Moved    int `json:"moved"`
				Arrivals int `json:"arrivals"`
				Delayed  int `json:"delayed"`
			}
			var (
				passes []tick
				last   simulator.PassResult
			)
			for n := range ticks {
				clock = clock.Add(step)
				last, err = a.AdvanceFleet(c.Context, clock)
				if err != nil {
					return err
				}
				delayed := 0
				for _, b := range last.Buses {
					if b.Status == network.StatusDelayed {
						delayed++
					}
				}
				passes = append(passes, tick{N: n + 1, Moved: last.Moved, Arrivals: last.Arrivals, Delayed: delayed})
			}

			return output(c, map[string]any{"passes": passes, "buses": last.Buses}, func(w io.Writer) {
				fmt.Fprintln(w, "TICK\tMOVED\tARRIVALS\tDELAYED")
				for _, p := range passes {
					fmt.Fprintf(w, "%d\t%d\t%d\t%d\n", p.N, p.Moved, p.Arrivals, p.Delayed)
				}
				fmt.Fprintln(w)
				fmt.Fprintln(w, "BUS\tROUTE\tSTOP\tNEXT\tSTATUS\tDELAY")
				for _, b := range last.Buses {
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%d\n", b.BusNumber, b.RouteID, b.CurrentStopIndex, b.NextStopIndex, b.Status, b.DelayMinutes)
				}
			})
		},
	}
}

func prefsCommand() *cli.Command {
	show := func(c *cli.Context, p preferences.Preferences) error {
		return output(c, p, func(w io.Writer) {
			fmt.Fprintf(w, "language\t%s\n", p.Language)
			fmt.Fprintf(w, "favorite routes\t%s\n", strings.Join(p.Favorites.Routes, ", "))
			fmt.Fprintf(w, "favorite stops\t%s\n", strings.Join(p.Favorites.Stops, ", "))
			fmt.Fprintf(w, "recent searches\t%s\n", strings.Join(p.RecentSearches, ", "))
			fmt.Fprintf(w, "recent journeys\t%d\n", len(p.RoutePlanner.RecentJourneys))
		})
	}
	oneArg := func(name string, fn func(c *cli.Context, a *app.App, arg string) (preferences.Preferences, error)) cli.ActionFunc {
		return func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit(name+" needs exactly one argument", 2)
			}
			a, err := session(c, time.Now)
			if err != nil {
				return err
			}
			p, err := fn(c, a, c.Args().First())
			var verr *preferences.ValidationError
			if errors.As(err, &verr) {
				return cli.Exit(verr.Error(), 2)
			}
			if err != nil {
				return err
			}
			return show(c, p)
		}
	}

	return &cli.Command{
		Name:  "prefs",
		Usage: "show or change rider preferences",
		Action: func(c *cli.Context) error {
			a, err := session(c, time.Now)
			if err != nil {
				return err
			}
			return show(c, a.Preferences())
		},
		Subcommands: []*cli.Command{
			{
				Name:      "language",
				Usage:     "set the interface language (en, hi, regional)",
				ArgsUsage: "<code>",
				Action: oneArg("language", func(c *cli.Context, a *app.App, code string) (preferences.Preferences, error) {
					return a.SetLanguage(c.Context, code)
				}),
			},
			{
				Name:      "favorite-route",
				Usage:     "add or remove a favorite route",
				ArgsUsage: "<route-id>",
				Action: oneArg("favorite-route", func(c *cli.Context, a *app.App, id string) (preferences.Preferences, error) {
					return a.ToggleFavoriteRoute(c.Context, id)
				}),
			},
			{
				Name:      "favorite-stop",
				Usage:     "add or remove a favorite stop",
				ArgsUsage: "<stop-id>",
				Action: oneArg("favorite-stop", func(c *cli.Context, a *app.App, id string) (preferences.Preferences, error) {
					return a.ToggleFavoriteStop(c.Context, id)
				}),
			},
		},
	}
}
