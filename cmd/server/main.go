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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/AnshRaj112/mutual-backend/internal/config"
	"github.com/AnshRaj112/mutual-backend/internal/database"
	"github.com/AnshRaj112/mutual-backend/internal/handlers"
	"github.com/AnshRaj112/mutual-backend/internal/logger"
	"github.com/AnshRaj112/mutual-backend/internal/middleware"
	"github.com/AnshRaj112/mutual-backend/internal/notifications"
	"github.com/AnshRaj112/mutual-backend/internal/repositories"
	"github.com/AnshRaj112/mutual-backend/internal/routes"
	"github.com/AnshRaj112/mutual-backend/internal/services"
	"github.com/AnshRaj112/mutual-backend/pkg/utils"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	// Load env
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "mutual-backend"})
	defer log.Sync()
	if envErr != nil {
		log.Debug("no .env file found")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURI, log)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	ledger, store, cleanup, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	var cipher *utils.Cipher
	if cfg.EncryptionKey == "" {
		log.Warn("ENCRYPTION_KEY not set; phone numbers are not kept")
	} else if cipher, err = utils.NewCipher(cfg.EncryptionKey); err != nil {
		return fmt.Errorf("ENCRYPTION_KEY: %w", err)
	}
	if cfg.IdentityPepper == "" {
		log.Warn("IDENTITY_PEPPER not set; identity tokens are unkeyed")
	}
	hasher := utils.NewHasher(cfg.IdentityPepper)

	hub := services.NewNotificationHub(log)
	go hub.RunRedisSubscriber(ctx, redisClient)

	notifier := services.NewNotificationService(store, notifications.NewRedisPublisher(redisClient), log, cfg.StorageTimeout)
	sessions := services.NewSessionManager(redisClient, cfg.JWTSecret, cfg.TokenTTL)
	maintenance := services.NewMaintenanceService(ledger, notifier, services.NewRedisLocker(redisClient), log, services.MaintenanceConfig{
		CreditPeriod: cfg.CreditPeriod,
		Retention:    cfg.Retention,
		Interval:     cfg.MaintenanceInterval,
		Timeout:      cfg.StorageTimeout,
	})
	if cfg.MaintenanceEnabled {
		maintenance.Start(ctx)
		log.Info("maintenance scheduler started", zap.Duration("interval", cfg.MaintenanceInterval))
	}

	limiter := middleware.NewRateLimiter(redisClient, middleware.RateLimitConfig{
		MaxRequests: cfg.RateLimitMax,
		Window:      cfg.RateLimitWindow,
		Block:       cfg.RateLimitBlock,
		TrustProxy:  cfg.TrustProxy,
	}, log)

	h := &handlers.Handlers{
		Users:          services.NewUserService(ledger, hasher, cipher, log, cfg.StorageTimeout),
		Sessions:       sessions,
		Signals:        services.NewSignalService(ledger, hasher, notifier, log, cfg.StorageTimeout),
		Notifications:  notifier,
		Maintenance:    maintenance,
		Hub:            hub,
		Limiter:        limiter,
		AllowedOrigins: cfg.AllowedOrigins,
		Log:            log,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, h, sessions, limiter, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Environment), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStores connects the ledger and the notification store for the configured backend.
func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (repositories.Ledger, notifications.Store, func(), error) {
	if cfg.StoreBackend == config.BackendMemory {
		log.Warn("using in-memory stores; data is lost on restart")
		return repositories.NewMemoryLedger(), notifications.NewMemoryStore(), func() {}, nil
	}

	db, err := database.ConnectPostgres(ctx, cfg.PostgresURI, log)
	if err != nil {
		return nil, nil, nil, err
	}

	mongoClient, mongoDB, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	store := notifications.NewMongoStore(mongoDB)
	if err := store.EnsureIndexes(ctx); err != nil {
		db.Close()
		_ = database.DisconnectMongo(mongoClient)
		return nil, nil, nil, fmt.Errorf("ensure notification indexes: %w", err)
	}

	cleanup := func() {
		if err := database.DisconnectMongo(mongoClient); err != nil {
			log.Warn("mongo disconnect failed", zap.Error(err))
		}
		if err := db.Close(); err != nil {
			log.Warn("postgres close failed", zap.Error(err))
		}
	}
	return repositories.NewPostgresLedger(db), store, cleanup, nil
}

func newRouter(cfg *config.Config, h *handlers.Handlers, sessions middleware.SessionValidator, limiter *middleware.RateLimiter, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Production: SecurityHeaders → HostCheck → GlobalRateLimit → RegisterRateLimit
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(cfg.AllowedHost, cfg.TrustProxy) {
			r.Use(mw)
		}
	}
	r.Use(limiter.Handler)

	routes.SetupRoutes(r, h, sessions, cfg.AdminAPIKey)
	return r
}
