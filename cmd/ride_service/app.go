package rideservice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"hailo/internal/general/config"
	"hailo/internal/general/jwt"
	"hailo/internal/general/logger"
	"hailo/internal/general/websocket"
	"hailo/internal/software/lifecycle"
	"hailo/internal/software/ride/handler"
	"hailo/internal/software/ride/service"

	"golang.org/x/sync/errgroup"
)

// Run wires the ride service and blocks until ctx is cancelled.
func Run(ctx context.Context, maxConcurrent int) error {
	// set up a new logger and context for ride service with a static request ID for startup logs
	log := logger.New("ride-service")
	ctx = logger.WithRequestID(ctx, "startup-001")

	if err := config.LoadDotEnv(); err != nil {
		log.Error(ctx, "dotenv_load_failed", "Failed to load .env file", err, nil)
		return err
	}

	// load a config from file
	cfg, err := config.LoadFromFile(config.Path())
	if err != nil {
		log.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}
	log.SetLevel(logger.ParseLevel(cfg.Log.Level))

	// open the ride record store
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "store_open_failed", "Failed to open the ride store", err, map[string]any{"driver": cfg.Store.Driver})
		return err
	}
	defer st.close()

	// connect the change notifier
	nb, err := openNotifier(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "notifier_open_failed", "Failed to connect the change notifier", err, map[string]any{"driver": cfg.Notifier.Driver})
		return err
	}
	defer nb.close()

	// set up the JWT manager
	jwtManager, err := jwt.NewManager(cfg.JWT.SecretKey, cfg.JWT.TTL)
	if err != nil {
		log.Error(ctx, "jwt_setup_failed", "Failed to set up the token manager", err, nil)
		return err
	}

	// set up the ride service
	svc := service.NewRideService(log, st.uow, st.rides, st.events, nb.notifier, service.RetryPolicy{
		Attempts:   cfg.Sync.RetryAttempts,
		Backoff:    cfg.Sync.RetryBackoff,
		MaxBackoff: 10 * cfg.Sync.RetryBackoff,
	})

	// set up the socket host; every socket gets its own lifecycle session
	host := websocket.NewHost(log, jwtManager, lifecycle.Deps{
		Service:  svc,
		Notifier: nb.notifier,
		Logger:   log,
		Config: lifecycle.Config{
			PollInterval:    cfg.Sync.PollInterval,
			StalenessWindow: cfg.Sync.StalenessWindow,
		},
	})

	// set up the HTTP handler and its routes
	mux := http.NewServeMux()
	httpHandler := handler.NewRideHTTPHandler(svc, log, jwtManager, host)
	httpHandler.SetHealthCheck(healthCheck(st.ping, nb.ping))
	httpHandler.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Services.RideServicePort),
		Handler:           withConcurrencyLimit(maxConcurrent, mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	log.Info(ctx, "service_started",
		fmt.Sprintf("Ride Service started on port %d", cfg.Services.RideServicePort),
		map[string]any{
			"port":           cfg.Services.RideServicePort,
			"max_concurrent": maxConcurrent,
			"store":          cfg.Store.Driver,
			"notifier":       cfg.Notifier.Driver,
		},
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "http_server_error", "HTTP server terminated with error", err, map[string]any{"port": cfg.Services.RideServicePort})
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info(ctx, "service_stopping", "Starting graceful shutdown", nil)
		if err := srv.Shutdown(shCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
			return err
		}
		return nil
	})

	return g.Wait()
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// It controls how many HTTP requests can be in-progress at the same time.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}: // acquire
			defer func() { <-sem }() // release
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			// client canceled or server is shutting down
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
