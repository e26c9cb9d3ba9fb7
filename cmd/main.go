package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"pulse/backend/internal/api/handler"
	"pulse/backend/internal/auth"
	"pulse/backend/internal/chathub"
	"pulse/backend/internal/config"
	"pulse/backend/internal/observability"
	"pulse/backend/internal/posts"
	"pulse/backend/internal/storage"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
)

func setupDependencies(ctx context.Context, cfg config.Config) *storage.Service {
	db, err := storage.OpenPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb, err := storage.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	// Analytics is best-effort: the server runs without it.
	var analytics *sqlx.DB
	if mysqlDB, err := storage.OpenMySQL(cfg.MySQLDSN); err != nil {
		log.Printf("Warning: analytics store unavailable, events will not be recorded: %v", err)
	} else if err := storage.NewAnalyticsStore(mysqlDB).Migrate(ctx); err != nil {
		log.Printf("Warning: failed to migrate analytics tables: %v", err)
		mysqlDB.Close()
	} else {
		analytics = mysqlDB
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return storage.NewStorageService(db, rdb, analytics)
}

func main() {
	log.Println("Starting Pulse backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}
	cfg := config.Load()
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	// 1. Stores
	store := setupDependencies(context.Background(), cfg)

	var tracker auth.EventTracker
	if store.Analytics != nil {
		tracker = storage.NewAnalyticsStore(store.Analytics)
	}
	users := storage.NewUserRepository(store.DB)
	presence := storage.NewPresenceStore(store.Redis)
	history := storage.NewHistoryStore(store.Redis, cfg.HistoryLimit)

	// 2. Services
	tokens := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiresIn, cfg.JWTIssuer)
	accounts := auth.NewService(users, tracker, tokens, auth.NewPasswordHasher(config.BcryptCost))

	hub := chathub.NewHub()
	sessions := chathub.NewOrchestrator(hub, presence, history)
	postService := posts.NewService(storage.NewPostRepository(store.DB), storage.NewCache(store.Redis, ""), hub)

	// 3. Routing
	r := gin.Default()
	r.Use(observability.HTTPMetricsMiddleware())

	h := handler.NewHandler(handler.Deps{
		Accounts:      accounts,
		Posts:         postService,
		History:       history,
		Presence:      presence,
		Gate:          chathub.NewGate(tokens),
		Sessions:      sessions,
		AllowedOrigin: cfg.FrontendURL,
		Development:   cfg.IsDevelopment(),
	})
	h.RegisterRoutes(r, accounts)
	r.GET("/metrics", gin.WrapH(observability.Handler()))
	r.NoRoute(handler.NotFound)

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Server running on http://localhost:%s (env: %s)", cfg.Port, cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"pulse-backend": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				// Hijacked websocket connections are not tracked by the
				// server, the hub hangs them up.
				err := server.Shutdown(ctx)
				hub.Shutdown()
				waitForSessions(ctx, hub)
				return errors.Join(err, store.Close())
			},
		},
	)

	exitCode := <-wait
	log.Printf("Server exited with code: %d", exitCode)
	os.Exit(exitCode)
}

// waitForSessions gives closing sessions a chance to mark their users
// offline before the stores go away.
func waitForSessions(ctx context.Context, hub *chathub.Hub) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for hub.Len() > 0 {
		select {
		case <-ctx.Done():
			log.Printf("Warning: %d connections still open at shutdown", hub.Len())
			return
		case <-ticker.C:
		}
	}
}
