package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pdptw/internal/api"
	"pdptw/internal/config"
)

var envFiles []string // .env files read before the environment

// serveCmd runs the HTTP service
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the solve service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadEnv(envFiles...)
		if !cmd.Flags().Changed("log") {
			if err := setLogLevel(cfg.LogLevel); err != nil {
				return err
			}
		}
		srvDeps, err := api.NewServer(cfg)
		if err != nil {
			return err
		}

		worker := srvDeps.NewWebhookWorker()
		worker.Start()
		defer close(worker.Stop)

		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           srvDeps.Routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errc := make(chan error, 1)
		go func() {
			logrus.WithField("addr", srv.Addr).Info("API listening")
			errc <- srv.ListenAndServe()
		}()
		select {
		case err := <-errc:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
		case <-ctx.Done():
			logrus.Info("shutting down")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("http shutdown")
		}
		srvDeps.Runs.Shutdown()
		return nil
	},
}

func init() {
	serveCmd.Flags().StringSliceVar(&envFiles, "env-file", nil, "Environment files to load (default .env)")
}
