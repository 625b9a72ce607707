package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"
	"github.com/yukikurage/content-pipeline/internal/logging"
)

func main() {
	app := &cli.Command{
		Name:  "content-pipeline",
		Usage: "Content production pipeline tracker",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			analyticsCommand(),
		},
		// Running without a subcommand starts the API server
		Action: serve,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logging.Logger.Fatalf("application error: %v", err)
	}
}
