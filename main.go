package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/gilby125/seven-continents/api"
	"github.com/gilby125/seven-continents/config"
	"github.com/gilby125/seven-continents/db"
	"github.com/gilby125/seven-continents/pkg/buildinfo"
	"github.com/gilby125/seven-continents/pkg/cache"
	"github.com/gilby125/seven-continents/pkg/health"
	"github.com/gilby125/seven-continents/pkg/logger"
	"github.com/gilby125/seven-continents/pkg/metrics"
	"github.com/gilby125/seven-continents/pkg/notify"
	"github.com/gilby125/seven-continents/pkg/worker_registry"
	"github.com/gilby125/seven-continents/planner"
	"github.com/gilby125/seven-continents/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:  cfg.LoggingConfig.Level,
		Format: cfg.LoggingConfig.Format,
	})
	log := logger.Default()
	metrics.RegisterDefault()

	// SIGINT/SIGTERM cancel the search; the best routes so far are still reported.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := planner.NewSession(*cfg, log)
	if err := session.Prepare(ctx); err != nil {
		log.Fatal(err, "Failed to prepare airport data")
	}

	switch cfg.Mode {
	case "run":
		err = runOnce(ctx, cfg, session, log)
	case "serve":
		err = serve(ctx, cfg, session, log)
	default:
		err = fmt.Errorf("unknown MODE %q, want run or serve", cfg.Mode)
	}
	if err != nil {
		log.Fatal(err, "Exiting")
	}
}

func runOnce(ctx context.Context, cfg *config.Config, session *planner.Session, log *logger.Logger) error {
	res, err := session.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Print(planner.Summary(res))

	if path := cfg.DataConfig.ResultsFile; path != "" {
		if err := planner.WriteJSON(path, res); err != nil {
			return err
		}
		log.Info("Results written", "path", path, "routes", len(res.Routes))
	}
	return nil
}

func serve(ctx context.Context, cfg *config.Config, session *planner.Session, log *logger.Logger) error {
	hc := health.NewHealthChecker(buildinfo.Version)
	var (
		opts []worker.Option
		cm   *cache.CacheManager
	)

	if cfg.RedisConfig.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisConfig.Host, cfg.RedisConfig.Port),
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to Redis: %w", err)
		}
		cm = cache.NewCacheManager(cache.NewRedisCache(rdb, cfg.RedisConfig.ResultPrefix))
		opts = append(opts,
			worker.WithCache(cm, cfg.RedisConfig.ResultTTL),
			worker.WithRegistry(worker_registry.New(rdb, cfg.RedisConfig.ResultPrefix), 15*time.Second),
		)
		hc.AddChecker(&health.RedisChecker{Client: rdb, Name: "redis"})
	}

	if cfg.PostgresConfig.Enabled {
		pg, err := db.NewPostgresDB(ctx, cfg.PostgresConfig)
		if err != nil {
			return fmt.Errorf("connect to PostgreSQL: %w", err)
		}
		defer pg.Close()
		if err := pg.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize PostgreSQL schema: %w", err)
		}
		opts = append(opts, worker.WithHistory(db.NewRunStore(pg)))
		hc.AddChecker(&health.PostgresChecker{DB: pg, Name: "postgres"})
	}

	if nc := cfg.NotifyConfig; nc.Enabled {
		opts = append(opts, worker.WithNotifier(notify.NewNTFYClient(notify.NTFYConfig{
			ServerURL: nc.ServerURL,
			Topic:     nc.Topic,
			Username:  nc.Username,
			Password:  nc.Password,
			Enabled:   true,
			MinGap:    nc.MinGap,
		})))
	}

	manager := worker.NewManager(session, cfg.WorkerConfig, log, opts...)
	defer manager.Stop()
	hc.AddChecker(&health.PlannerChecker{Runs: manager, Name: "planner"})

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Deps{
		Manager: manager,
		Health:  hc,
		Cache:   cm,
		Auth:    cfg.AuthConfig,
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.HTTPBindAddr, cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("Server starting", "addr", srv.Addr, "version", buildinfo.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("start server: %w", err)
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited properly")
	return nil
}
