package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/yukikurage/content-pipeline/internal/config"
	"github.com/yukikurage/content-pipeline/internal/database"
	"github.com/yukikurage/content-pipeline/internal/logging"
	"github.com/yukikurage/content-pipeline/internal/services"
	"github.com/yukikurage/content-pipeline/internal/utils"
	"gorm.io/gorm"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the HTTP API (default)",
		Action: serve,
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Run database migrations and exit",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, _, err := bootstrap()
			return err
		},
	}
}

func analyticsCommand() *cli.Command {
	return &cli.Command{
		Name:  "analytics",
		Usage: "Print the KPI report as JSON",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "channel",
				Usage: "Channel ID to include (repeatable, default all)",
			},
			&cli.StringSliceFlag{
				Name:  "user",
				Usage: "User ID for the leaderboard (repeatable, default all)",
			},
			&cli.StringFlag{
				Name:  "from",
				Usage: "Window start, YYYY-MM-DD or RFC 3339",
			},
			&cli.StringFlag{
				Name:  "to",
				Usage: "Window end, YYYY-MM-DD or RFC 3339",
			},
		},
		Action: runAnalytics,
	}
}

// bootstrap loads configuration, connects and migrates the database
func bootstrap() (*config.Config, *gorm.DB, error) {
	cfg := config.Load()
	logging.InitLogger(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, db, err := bootstrap()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, db)
	go a.hub.Run(ctx)

	handler, err := a.handler()
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		logging.Logger.WithField("port", cfg.ServerPort).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logging.Logger.Info("shutting down server")
	return server.Shutdown(shutdownCtx)
}

func runAnalytics(ctx context.Context, cmd *cli.Command) error {
	from, err := utils.ParseDate(cmd.String("from"), false)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	to, err := utils.ParseDate(cmd.String("to"), true)
	if err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}

	cfg, db, err := bootstrap()
	if err != nil {
		return err
	}
	a := newApp(cfg, db)

	report, err := a.analytics.GetAnalytics(services.AnalyticsInput{
		ChannelIDs: cmd.StringSlice("channel"),
		UserIDs:    cmd.StringSlice("user"),
		From:       from,
		To:         to,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
