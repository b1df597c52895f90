package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/jobsearch-cli/internal/api"
	"github.com/sells-group/jobsearch-cli/internal/scheduler"
)

const shutdownGrace = 15 * time.Second

var (
	servePort      int
	serveScheduler bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the job search HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		if serveScheduler {
			sched := scheduler.New(env.Connections, cfg.Scheduler, env.Metrics)
			if err := sched.Start(ctx); err != nil {
				return err
			}
			defer sched.Stop()
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}
		return runServer(ctx, srv)
	},
}

// newRouter exposes env over the HTTP API.
func newRouter(env *appEnv) http.Handler {
	return api.NewServer(api.Deps{
		Registry:    env.Registry,
		Search:      env.Search,
		Connections: env.Connections,
		OAuth:       env.OAuth,
		Matches:     env.Matches,
		Profiles:    env.Store,
		Resumes:     env.Resumes,
		Health:      env.Store,
		Metrics:     env.Metrics,
		CORSOrigins: cfg.Server.CORSOrigins,
	}).Routes()
}

// runServer serves until ctx ends, then drains in-flight requests for up
// to shutdownGrace.
func runServer(ctx context.Context, srv *http.Server) error {
	errs := make(chan error, 1)
	go func() {
		zap.L().Info("serve: listening", zap.String("addr", srv.Addr))
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return eris.Wrap(err, "serve: listen")
	case <-ctx.Done():
	}

	zap.L().Info("serve: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "serve: shutdown")
	}
	return nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveScheduler, "scheduler", false, "also run the token refresh sweep")
	rootCmd.AddCommand(serveCmd)
}
