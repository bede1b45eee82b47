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

	"neti/internal/config"
	"neti/internal/handler"
	"neti/internal/hub"
	"neti/internal/logging"
	"neti/internal/watcher"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scan API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := root.load(false)
			if err != nil {
				return err
			}
			defer log.Close()
			if addr != "" {
				cfg.Server.Addr = addr
			}

			st, err := buildStack(cfg, log, stackOptions{withMetrics: cfg.Metrics.Enabled})
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			var reload func(*handler.RateLimiter)
			if watch && root.loadedPath != "" {
				reload = func(limiter *handler.RateLimiter) {
					reloadConfig(root, log, limiter)
				}
			}
			return serve(ctx, st, root.loadedPath, reload)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&watch, "watch", true, "reload log level and rate limit when the config file changes")
	return cmd
}

// serve runs the HTTP API until ctx is done. A non-nil reload is called
// whenever the file at configPath changes.
func serve(ctx context.Context, st *stack, configPath string, reload func(*handler.RateLimiter)) error {
	cfg, log := st.cfg, st.log
	log.Info("Starting neti server...")
	log.Debug(cfg.Summary())

	st.registry.CheckAll(ctx)
	newPreflight(cfg, log).Run(ctx)

	events := hub.New(log)
	go events.Run(ctx)
	go events.Relay(ctx, st.events)

	limiter := handler.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst, log)
	if reload != nil && configPath != "" {
		w := watcher.New(configPath, func() { reload(limiter) }, log)
		go func() {
			if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Warn("Config: watcher stopped")
			}
		}()
	}

	routerCfg := handler.RouterConfig{
		Mode:    cfg.Server.Mode,
		Limiter: limiter,
		Events:  events,
		Log:     log,
	}
	if st.metrics != nil {
		routerCfg.Metrics = st.metrics.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	router := handler.NewRouter(handler.NewScanHandler(st.scans, st.registry), routerCfg)

	// nmap profiles run for minutes; no WriteTimeout
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":    cfg.Server.Addr,
			"metrics": st.metrics != nil,
		}).Info("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Server forced to shutdown")
		return err
	}
	log.Info("Server stopped")
	return nil
}

// reloadConfig applies the settings that can change without a restart.
// A file that fails to load leaves the running settings untouched.
func reloadConfig(root *rootOptions, log *logging.Logger, limiter *handler.RateLimiter) {
	cfg, _, err := config.LoadFromPath(root.loadedPath)
	if err != nil {
		log.WithError(err).Warn("Config: reload failed, keeping current settings")
		return
	}
	root.applyOverrides(cfg, false)

	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(level)
	}
	limiter.SetLimit(cfg.Server.RateLimit, cfg.Server.RateBurst)

	log.WithFields(logrus.Fields{
		"log_level":  cfg.Log.Level,
		"rate_limit": cfg.Server.RateLimit,
		"rate_burst": cfg.Server.RateBurst,
	}).Info("Config: reloaded")
}
