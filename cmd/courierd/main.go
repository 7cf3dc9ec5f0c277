// Entry point: loads config, wires module services against whatever backing
// stores are configured, starts the HTTP server and background loops.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"courierd/internal/config"
	httptransport "courierd/internal/http"
	"courierd/internal/infra"
	"courierd/internal/modules/attention"
	"courierd/internal/modules/courier"
	"courierd/internal/modules/dispatch"
	"courierd/internal/modules/location"
	"courierd/internal/modules/order"
	"courierd/internal/modules/tracking"
	"courierd/internal/modules/verification"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Empty DSN or Redis addr means single-node mode on in-memory stores.
	var orderStore order.Store = order.NewMemoryStore()
	var codeStore verification.Store = verification.NewMemoryStore()
	var quickStore dispatch.QuickStore = dispatch.NewMemoryQuickStore()
	locOpts := location.Options{
		StaleAfter: cfg.StaleAfter(),
		Logger:     log,
	}
	courierOpts := courier.Options{
		Expiry:             cfg.SessionExpiry(),
		DefaultRadiusMiles: cfg.Dispatch.DefaultRadiusMiles,
		Logger:             log,
	}

	if cfg.DB.DSN != "" {
		pool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			log.Error("postgres connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		orderStore = order.NewPostgresStore(pool)
		codeStore = verification.NewPostgresStore(pool)
		quickStore = dispatch.NewPostgresQuickStore(pool)
		locOpts.Snapshots = location.NewPostgresSnapshots(pool)
	}

	if cfg.Redis.Addr != "" {
		redisClient := infra.NewRedis(cfg.Redis.Addr)
		presence := courier.NewRedisPresence(redisClient)
		locOpts.Mirror = location.NewRedisMirror(redisClient)
		locOpts.Presence = presence
		courierOpts.Presence = presence
	}

	var verifier infra.TokenVerifier
	if cfg.Firebase.ProjectID != "" {
		verifier, err = infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			log.Error("firebase init failed", "err", err)
			os.Exit(1)
		}
	} else {
		log.Warn("no firebase project configured, auth disabled")
	}

	var routes tracking.RouteETA
	if cfg.Maps.APIKey != "" {
		routes, err = tracking.NewGoogleRoutes(cfg.Maps.APIKey)
		if err != nil {
			log.Error("maps init failed", "err", err)
			os.Exit(1)
		}
	}

	locations := location.NewService(location.NewHub(cfg.Tracking.TrailLength), locOpts)
	couriers := courier.NewService(locations, courierOpts)
	codes := verification.NewService(codeStore)
	orders := order.NewService(orderStore, codes, couriers, log)
	board := dispatch.NewBoard(couriers, locations, orders, quickStore, dispatch.Options{
		Refresh: time.Duration(cfg.Dispatch.RefreshSeconds) * time.Second,
		Logger:  log,
	})
	trackingSvc := tracking.NewService(locations, orders, tracking.NewEstimator(routes, log), log)
	monitor := attention.NewMonitor(orders, attention.Config{
		ReadyAfter: cfg.ReadyAttentionAfter(),
	}, log)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Orders:    orders,
		Couriers:  couriers,
		Locations: locations,
		Board:     board,
		Tracking:  trackingSvc,
		Attention: monitor,
		Verifier:  verifier,
		Logger:    log,
	})

	go couriers.RunReaper(ctx)

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", "err", err)
		}
	}()

	log.Info("courierd listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", "err", err)
		os.Exit(1)
	}
}
