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

	"github.com/convocatoriaspro/convocatorias/internal/api"
	"github.com/convocatoriaspro/convocatorias/internal/auth"
	"github.com/convocatoriaspro/convocatorias/internal/config"
)

var servePort int

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initEnv(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newHandler(env, cfg),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newHandler wires the API router to env using the server settings in c.
func newHandler(env *appEnv, c *config.Config) http.Handler {
	return api.NewRouter(api.Deps{
		Search:      env.Service,
		Validator:   env.Validator,
		Validations: env.Store,
		Verifier: auth.NewVerifier(auth.Config{
			Secret:         c.Auth.JWTSecret,
			Issuer:         c.Auth.Issuer,
			AllowAnonymous: c.Auth.AllowAnonymous,
			AnonymousID:    c.Auth.AnonymousID,
		}),
	}, api.Options{
		RateLimit:           c.Server.RateLimit,
		RateBurst:           c.Server.RateBurst,
		CORSOrigins:         c.Server.CORSOrigins,
		RequestTimeout:      time.Duration(c.Server.RequestTimeoutSecs) * time.Second,
		ValidateConcurrency: c.Validation.MaxConcurrent,
		ValidateTimeout:     time.Duration(c.Validation.TimeoutSecs) * time.Second,
	})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
