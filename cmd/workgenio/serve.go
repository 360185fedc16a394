package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	v1 "workgenio/internal/infrastructure/http/v1"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			return serve(cmd.Context(), a)
		},
	}
	cmd.Flags().String("address", ":8080", "listen address")
	_ = v.BindPFlag("server.address", cmd.Flags().Lookup("address"))
	return cmd
}

func serve(ctx context.Context, a *app) error {
	if !a.cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	router := v1.NewRouter(v1.RouterConfig{
		Logger:    a.log,
		DB:        a.db,
		Driver:    a.cfg.Database.Driver,
		Numbering: a.numbering,
		Guard:     a.guard,
		Purger:    a.purger,
		Gatherer:  a.registry,
	})

	server := &http.Server{
		Addr:              a.cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.log.Infow("server starting", "address", server.Addr, "driver", a.cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.log.Info("server stopped")
	return nil
}
