package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/transitgeo/transitgeo/pkg/live"
	"github.com/transitgeo/transitgeo/pkg/queue"
	"github.com/transitgeo/transitgeo/pkg/routes"
	"github.com/transitgeo/transitgeo/pkg/util"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("TRANSITGEO_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if util.IsTruthy(os.Getenv("TRANSITGEO_DEBUG")) {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "transitgeo",
		Description: "Warsaw public transport geometry - route lines from the timetable API and live vehicle silhouettes",

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML configuration file",
				EnvVars: []string{"TRANSITGEO_CONFIG"},
			},
		},

		Commands: []*cli.Command{
			routes.RegisterCLI(),
			live.RegisterCLI(),
			queue.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
