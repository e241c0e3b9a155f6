package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"widgets/internal/autosave"
	"widgets/internal/db"
	httpx "widgets/internal/http"
	"widgets/internal/widget"

	"github.com/spf13/cobra"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and live edit endpoint",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (env HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if flagAddr != "" {
		cfg.HTTPAddr = flagAddr
	}

	gdb, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close(gdb)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.SeedOnStart {
		seeded, err := db.Seed(ctx, &widget.Service{DB: gdb})
		if err != nil {
			return err
		}
		if seeded {
			slog.Info("seeded welcome widget")
		}
	}

	sessions := autosave.NewManager(cfg.EditIdleTimeout,
		autosave.WithDebounce(cfg.SaveDebounce),
		autosave.WithIndicatorDelay(cfg.SaveIndicatorDelay),
	)
	go sessions.Run(ctx, time.Minute)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(cfg, gdb, sessions),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.HTTPAddr, "driver", cfg.DatabaseDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("shutting down")
	sessions.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
