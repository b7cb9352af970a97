package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/auditdesk/auditdesk/handlers"
	"github.com/auditdesk/auditdesk/internal/audits"
	"github.com/auditdesk/auditdesk/internal/auth"
	"github.com/auditdesk/auditdesk/internal/config"
	"github.com/auditdesk/auditdesk/internal/database"
	"github.com/auditdesk/auditdesk/internal/identity"
	"github.com/auditdesk/auditdesk/internal/notifications"
	"github.com/auditdesk/auditdesk/internal/oidc"
	"github.com/auditdesk/auditdesk/internal/realtime"
	"github.com/auditdesk/auditdesk/internal/sessions"
	"github.com/auditdesk/auditdesk/internal/storage"
	"github.com/auditdesk/auditdesk/internal/stores"
	"github.com/auditdesk/auditdesk/internal/users"
	"github.com/auditdesk/auditdesk/pkg/logger"
	"github.com/auditdesk/auditdesk/pkg/metrics"
	"github.com/auditdesk/auditdesk/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

const (
	mongoAttempts = 5
	sessionTTL    = 30 * 24 * time.Hour
)

func main() {
	// LOG_LEVEL is read again from config below; this covers config errors.
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	logger.Infof("config loaded: backend=%s realm=%s redis=%v minio=%v",
		cfg.Backend.URL, cfg.Backend.Realm, cfg.Redis.Addr() != "", cfg.MinIO.Endpoint != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handlers.Check{}

	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis ping failed (%v); realtime and shared rate limiting are disabled", err)
			_ = rdb.Close()
			rdb = nil
		} else {
			defer rdb.Close()
			checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		}
	}

	mc, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, mongoAttempts)
	if err != nil {
		logger.Fatalf("could not connect to MongoDB: %v", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()
	db := mc.Database(cfg.MongoDB.Database)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		logger.Warnf("ensure indexes: %v", err)
	}
	checks["mongo"] = func(ctx context.Context) error { return mc.Ping(ctx, nil) }

	var photos audits.PhotoStore
	if cfg.MinIO.Endpoint != "" {
		ms, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("minio unavailable (%v); audit photos will be skipped", err)
		} else {
			photos = ms
			checks["minio"] = ms.Ping
		}
	}

	var sessionRepo sessions.Repository
	if rdb != nil {
		sessionRepo = sessions.NewRedisRepository(rdb, "session:", sessionTTL)
		logger.Infof("using Redis for session storage")
	} else {
		sessionRepo = sessions.NewMongoRepository(db.Collection(database.Sessions))
		logger.Infof("using MongoDB for session storage")
	}
	sessionSvc := sessions.NewService(sessionRepo, cfg.Backend.DeviceID)

	var verifier oidc.Verifier
	if cfg.Backend.AllowInsecureToken {
		logger.Warn("enabling insecure token verifier (integration mode)")
		verifier = oidc.NewInsecureVerifier()
	} else if v, err := oidc.NewVerifier(ctx, cfg.Backend.Issuer(), cfg.Backend.ClientID); err != nil {
		logger.Warnf("OIDC discovery failed (%v); identities are read from access tokens", err)
	} else {
		verifier = v
	}

	provider := identity.NewClient(identity.Options{
		BaseURL:      cfg.Backend.URL,
		Realm:        cfg.Backend.Realm,
		ClientID:     cfg.Backend.ClientID,
		ClientSecret: cfg.Backend.ClientSecret,
		Verifier:     verifier,
		Sessions:     sessionSvc,
	})
	defer provider.Close()

	storeSvc := stores.NewService(stores.NewMongoRepository(db.Collection(database.Stores), db.Collection(database.Zones)))
	userSvc := users.NewService(users.NewMongoProfileRepository(db.Collection(database.UserProfiles)), storeSvc)
	auditSvc := audits.NewService(audits.NewMongoRepository(audits.Collections{
		Audits:     db.Collection(database.Audits),
		Responses:  db.Collection(database.AuditResponses),
		Photos:     db.Collection(database.AuditPhotos),
		Categories: db.Collection(database.ChecklistCategories),
		Items:      db.Collection(database.ChecklistItems),
	}), storeSvc, userSvc, photos)

	session := auth.NewStore(provider, userSvc, userSvc)
	defer session.Close()

	var bus realtime.Subscriber
	if rdb != nil {
		bus = realtime.NewBus(rdb)
	}
	feed := notifications.NewFeed(notifications.NewMongoRepository(db.Collection(database.Notifications)), bus)
	defer feed.Close()
	unbind := feed.Bind(session)
	defer unbind()

	// Restores the persisted session and emits INITIAL_SESSION.
	provider.Start(ctx)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	var loginLimit gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			window := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			loginLimit = middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, window)
			logger.Infof("login rate limit: redis (rps=%.2f burst=%d window=%s)", cfg.RateLimit.RPS, cfg.RateLimit.Burst, window)
		} else {
			loginLimit = middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
			logger.Infof("login rate limit: in-process (rps=%.2f burst=%d)", cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		}
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := handlers.NewRouter(handlers.Deps{
		Session:       session,
		Stores:        storeSvc,
		Users:         userSvc,
		Audits:        auditSvc,
		Notifications: feed,
		LoginLimit:    loginLimit,
		Checks:        checks,
		Metrics:       promhttp.Handler(),
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	// No write timeout: notification streams stay open.
	srv := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
	}
	go func() {
		logger.Infof("auditdesk listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("graceful shutdown: %v", err)
	}
}
