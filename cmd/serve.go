package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/violation-lookup/internal/server"
)

const shutdownTimeout = 10 * time.Second

var (
	servePort   int
	serveNoWarm bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the violation lookup HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initLookup(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		go env.Cache.RunJanitor(ctx, cfg.Cache.CleanupInterval())

		if !serveNoWarm {
			// A failed warm-up is retried by the first lookup.
			go func() {
				if err := env.Session.EnsureReady(ctx); err != nil {
					zap.L().Warn("browser warm-up failed", zap.Error(err))
				}
			}()
		}

		opts := server.Options{
			MaxTargets:  cfg.Batch.MaxTargets,
			CORSOrigins: cfg.Server.CORSOrigins,
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           server.NewRouter(server.NewHandler(env.Service, opts), opts),
			ReadHeaderTimeout: 10 * time.Second,
		}

		shutdownDone := make(chan struct{})
		go func() {
			defer close(shutdownDone)
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		<-shutdownDone

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoWarm, "no-warm", false, "skip launching the browser at startup")
	rootCmd.AddCommand(serveCmd)
}
