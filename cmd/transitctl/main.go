// Package main provides transitctl, a command line rider for the seeded
// Kanpur network. Preferences are kept in a local directory.
package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

// Version is set at compile time via ldflags.
var Version = "dev"

func main() {
	if os.Getenv("NAGARBUS_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if os.Getenv("NAGARBUS_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.WarnLevel)
	}

	app := &cli.App{
		Name:        "transitctl",
		Usage:       "browse, plan and simulate Kanpur city buses",
		Version:     Version,
		Description: "Runs the rider session locally against the built-in network.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Value:   defaultDataDir(),
				Usage:   "directory holding preference files",
				EnvVars: []string{"NAGARBUS_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "profile",
				Value:   "default",
				Usage:   "preference profile",
				EnvVars: []string{"PREFERENCES_PROFILE"},
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "random seed for the delay model",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print JSON instead of tables",
			},
		},
		Commands: []*cli.Command{
			stopsCommand(),
			routesCommand(),
			timelineCommand(),
			nearbyCommand(),
			planCommand(),
			searchCommand(),
			simulateCommand(),
			prefsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".nagarbus"
	}
	return filepath.Join(dir, "nagarbus")
}
