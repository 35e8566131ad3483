package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"medical-files-server/internal/middleware"
	"medical-files-server/internal/routes"
)

// NewServeCommand creates the 'serve' command that runs the HTTP API.
func NewServeCommand(a *app) *cobra.Command {
	var shutdownTimeout time.Duration

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Run the HTTP API",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.bootstrap(cmd.Context())
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              ":" + a.cfg.Port,
				Handler:           a.router(rt),
				ReadHeaderTimeout: 10 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				a.logger.Info("server running", "port", a.cfg.Port, "storage", a.cfg.Storage.Backend, "environment", a.cfg.Environment)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
			}()

			wait := gfshutdown.GracefulShutdown(
				context.Background(),
				shutdownTimeout,
				map[string]gfshutdown.Operation{
					"http-server": func(ctx context.Context) error {
						a.logger.Info("graceful shutdown initiated")
						return srv.Shutdown(ctx)
					},
				},
			)

			select {
			case err := <-serveErr:
				if cerr := rt.Close(); cerr != nil {
					a.logger.Error("failed to release resources", "err", cerr)
				}
				return fmt.Errorf("failed to start server: %w", err)
			case code := <-wait:
				if err := rt.Close(); err != nil {
					a.logger.Error("failed to release resources", "err", err)
				}
				if code != 0 {
					return fmt.Errorf("shutdown completed with exit code %d", code)
				}
				a.logger.Info("shutdown completed")
				return nil
			}
		},
	}
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "time allowed for in-flight requests to finish")

	return cmd
}

// router builds the gin engine with middleware and routes.
func (a *app) router(rt *runtime) *gin.Engine {
	if a.cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(a.logger.With("component", "http")))

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{a.cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, rt.db, a.cfg, rt.service, rt.local, a.logger)
	return router
}
