// Command relay tails inserts on the notifications collection and publishes
// each one on the realtime bus channel of its recipient.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/auditdesk/auditdesk/handlers"
	"github.com/auditdesk/auditdesk/internal/config"
	"github.com/auditdesk/auditdesk/internal/database"
	"github.com/auditdesk/auditdesk/internal/realtime"
	"github.com/auditdesk/auditdesk/internal/relay"
	"github.com/auditdesk/auditdesk/pkg/logger"
	"github.com/auditdesk/auditdesk/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	if cfg.Redis.Addr() == "" {
		logger.Fatalf("relay needs REDIS_HOST")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()

	mc, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5)
	if err != nil {
		logger.Fatalf("could not connect to MongoDB: %v", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()
	db := mc.Database(cfg.MongoDB.Database)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r := gin.New()
	r.Use(gin.Recovery())
	handlers.RegisterHealth(r, map[string]handlers.Check{
		"mongo": func(ctx context.Context) error { return mc.Ping(ctx, nil) },
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	srv := &http.Server{Addr: ":" + cfg.Server.RelayPort, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("relay http: %v", err)
		}
	}()

	logger.Infof("relay forwarding %s.%s inserts to redis %s", cfg.MongoDB.Database, database.Notifications, cfg.Redis.Addr())
	if err := relay.New(relay.WatchNotifications(db), realtime.NewBus(rdb)).Run(ctx); err != nil {
		logger.Errorf("relay stopped: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
