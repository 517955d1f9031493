package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/uncord-chat/relay/internal/adminauth"
	"github.com/uncord-chat/relay/internal/api"
	"github.com/uncord-chat/relay/internal/ban"
	"github.com/uncord-chat/relay/internal/bootstrap"
	"github.com/uncord-chat/relay/internal/cache"
	"github.com/uncord-chat/relay/internal/config"
	"github.com/uncord-chat/relay/internal/fanout"
	"github.com/uncord-chat/relay/internal/httputil"
	"github.com/uncord-chat/relay/internal/livepush"
	"github.com/uncord-chat/relay/internal/messagelog"
	"github.com/uncord-chat/relay/internal/platform"
	"github.com/uncord-chat/relay/internal/postgres"
	"github.com/uncord-chat/relay/internal/ratelimit"
	"github.com/uncord-chat/relay/internal/relay"
	"github.com/uncord-chat/relay/internal/relayerr"
	"github.com/uncord-chat/relay/internal/replyresolver"
	"github.com/uncord-chat/relay/internal/resolver"
	"github.com/uncord-chat/relay/internal/room"
	"github.com/uncord-chat/relay/internal/subscription"
	"github.com/uncord-chat/relay/internal/valkey"
)

// Build metadata injected via ldflags at compile time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// server holds the shared dependencies used by route handlers and middleware.
type server struct {
	cfg         *config.Config
	db          *pgxpool.Pool
	rdb         *redis.Client
	roomRepo    room.Repository
	subRepo     subscription.Repository
	banRepo     ban.Repository
	logRepo     messagelog.Repository
	pubsub      *cache.PubSub
	adminSvc    *adminauth.Service
	coordinator *relay.Coordinator
	hub         *livepush.Hub
}

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.IsDevelopment() {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().Timestamp().Logger()
	}

	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", date).
		Str("env", cfg.ServerEnv).
		Msg("Starting relay")

	if cfg.CORSAllowOrigins == "*" {
		log.Warn().Msg("CORS_ALLOW_ORIGINS is set to a wildcard. Set an explicit origin when in production.")
	}

	ctx := context.Background()

	db, err := postgres.Connect(ctx, cfg.StoreURL, cfg.StoreMaxConn, cfg.StoreMinConn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()
	log.Info().Msg("Postgres connected")

	if err := postgres.Migrate(cfg.StoreURL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info().Msg("Database migrations complete")

	rdb, err := valkey.Connect(ctx, cfg.CacheURL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("connect valkey: %w", err)
	}
	defer func() { _ = rdb.Close() }()
	log.Info().Msg("Valkey connected")

	firstRun, err := bootstrap.IsFirstRun(ctx, db)
	if err != nil {
		return fmt.Errorf("check first run: %w", err)
	}
	if firstRun {
		log.Info().Msg("First run detected: no rooms exist yet")
	}

	adminHash, err := bootstrap.HashAdminPassword(cfg)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	// Repositories (Store).
	roomRepo := room.NewPGRepository(db, log.Logger)
	subRepo := subscription.NewPGRepository(db, log.Logger)
	banRepo := ban.NewPGRepository(db, log.Logger)
	logRepo := messagelog.NewPGRepository(db, log.Logger)

	// Cache.
	roomCache := cache.NewRoomCache(rdb)
	subCache := cache.NewSubscriptionCache(rdb)
	rateCounter := cache.NewRateLimiter(rdb)
	sessionStore := cache.NewSessionStore(rdb)
	liveStats := cache.NewLiveStats(rdb)
	pubsub := cache.NewPubSub(rdb, log.Logger)

	// Platform boundary. The real gateway SDK connection is out of scope; RESTClient talks to whatever HTTP bridge
	// fronts the chat platform for this deployment.
	platformClient := platform.NewRESTClient(cfg.PlatformBaseURL, cfg.PlatformToken)

	// Pipeline components.
	res := resolver.New(subRepo, roomRepo, banRepo, roomCache, subCache, log.Logger)
	limiterComponent := ratelimit.New(rateCounter)
	replyRes := replyresolver.New(platformClient)
	engine := fanout.New(platformClient, cfg.FanoutPerRoomConcurrency, cfg.FanoutRetryMax, cfg.FanoutRetryBaseDelay, log.Logger)
	coordinator := relay.New(res, limiterComponent, replyRes, engine, subRepo, logRepo, pubsub, liveStats, platformClient, log.Logger)

	// Admin auth and Live Push Hub.
	adminSvc := adminauth.New(sessionStore, cfg.JWTSecret, cfg.JWTAccessTTL, "uncord-relay", cfg.AdminUsername, adminHash)
	hub := livepush.New(log.Logger)

	// Background subscribers with reconnection.
	subCtx, subCancel := context.WithCancel(ctx)
	defer subCancel()

	go runWithBackoff(subCtx, "cache-invalidation-subscriber", func(ctx context.Context) error {
		return pubsub.SubscribeInvalidation(ctx, func(ctx context.Context, msg cache.InvalidationMessage) error {
			return handleInvalidation(ctx, msg, roomCache, subCache, subRepo)
		})
	})
	go runWithBackoff(subCtx, "live-push-subscriber", func(ctx context.Context) error {
		return pubsub.SubscribeEvents(ctx, func(_ context.Context, event cache.Event) {
			hub.Broadcast(event)
		})
	})

	app := fiber.New(fiber.Config{
		AppName: "uncord-relay",
		// ErrorHandler catches errors returned by handlers that are not already mapped to structured API responses
		// (e.g. Fiber's built-in 404/405).
		ErrorHandler: func(c fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			message := "An internal error occurred"
			code := relayerr.InternalError
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				status = fiberErr.Code
				message = fiberErr.Message
				code = fiberStatusToCode(fiberErr.Code)
			} else {
				log.Error().Err(err).
					Str("method", c.Method()).
					Str("path", c.Path()).
					Msg("Unhandled error")
			}
			return c.Status(status).JSON(httputil.ErrorResponse{
				Error: httputil.ErrorBody{Code: code, Message: message},
			})
		},
	})

	app.Use(requestid.New())
	app.Use(httputil.RequestLogger(log.Logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Split(cfg.CORSAllowOrigins, ","),
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"X-Request-ID"},
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimitAPIRequests,
		Expiration: time.Duration(cfg.RateLimitAPIWindowSeconds) * time.Second,
	}))

	srv := &server{
		cfg: cfg, db: db, rdb: rdb,
		roomRepo: roomRepo, subRepo: subRepo, banRepo: banRepo, logRepo: logRepo,
		pubsub: pubsub, adminSvc: adminSvc, coordinator: coordinator, hub: hub,
	}
	srv.registerRoutes(app)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("Shutting down relay")
		subCancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown error")
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	log.Info().Str("addr", addr).Msg("Relay listening")

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	log.Debug().
		Uint64("alloc_mb", mem.Alloc/1024/1024).
		Uint64("sys_mb", mem.Sys/1024/1024).
		Msg("Runtime memory stats")

	if err := app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func (s *server) registerRoutes(app *fiber.App) {
	requireAdmin := adminauth.RequireAdmin(s.adminSvc)

	health := &api.HealthHandler{DB: s.db, Redis: s.rdb}
	app.Get("/api/v1/health", health.Health)

	authHandler := api.NewAuthHandler(s.adminSvc)
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/logout", authHandler.Logout)

	ingestHandler := api.NewIngestHandler(s.coordinator, log.Logger)
	app.Post("/api/v1/ingest", ingestHandler.Accept)

	livePushHandler := api.NewLivePushHandler(s.hub)
	app.Get("/api/v1/live", requireAdmin, livePushHandler.Upgrade())

	roomHandler := api.NewRoomHandler(s.roomRepo, s.pubsub, log.Logger)
	roomGroup := app.Group("/api/v1/rooms", requireAdmin)
	roomGroup.Get("/", roomHandler.List)
	roomGroup.Post("/", roomHandler.Create)
	roomGroup.Get("/:id", roomHandler.Get)
	roomGroup.Patch("/:id", roomHandler.Update)
	roomGroup.Delete("/:id", roomHandler.Delete)
	roomGroup.Patch("/:id/permissions", roomHandler.UpdatePermissions)

	subHandler := api.NewSubscriptionHandler(s.subRepo, s.roomRepo, s.banRepo, s.pubsub, log.Logger)
	roomGroup.Post("/:id/subscriptions", subHandler.Register)
	roomGroup.Get("/:id/subscriptions", subHandler.List)
	roomGroup.Delete("/:id/subscriptions/:guildID/:channelID", subHandler.Deactivate)

	banHandler := api.NewBanHandler(s.banRepo, log.Logger)
	banGroup := app.Group("/api/v1/bans", requireAdmin)
	banGroup.Get("/", banHandler.List)
	banGroup.Post("/", banHandler.Ban)
	banGroup.Delete("/:guildID", banHandler.Unban)

	logHandler := api.NewMessageLogHandler(s.logRepo, log.Logger)
	roomGroup.Get("/:id/messages", logHandler.ListByRoom)
	roomGroup.Get("/:id/stats", logHandler.StatsForRoom)
	app.Get("/api/v1/stats", requireAdmin, logHandler.Stats)

	// Catch-all handler returns 404 for any request that does not match a defined route. Fiber v3 treats app.Use()
	// middleware as route matches, so without this terminal handler the router considers unmatched requests "handled"
	// and returns the default 200 status with an empty body.
	app.Use(func(_ fiber.Ctx) error {
		return fiber.ErrNotFound
	})
}

// handleInvalidation drops the cached resolution(s) named by msg, in both RoomCache and SubscriptionCache. Either
// RoomID alone is set, dropping every subscription's resolution for that room, or GuildID and ChannelID together drop a
// single pair (the register_channel/deactivate path, per spec.md §4.2's "on subscribe/unsubscribe" invalidation rule
// for the chan:{guild_id}:{channel_id} key).
func handleInvalidation(ctx context.Context, msg cache.InvalidationMessage, roomCache *cache.RoomCache, subCache *cache.SubscriptionCache, subs subscription.Repository) error {
	if msg.RoomID != nil {
		active, err := subs.ListByRoom(ctx, *msg.RoomID, true)
		if err != nil {
			return fmt.Errorf("list subscriptions for invalidation: %w", err)
		}
		roomKeys := make([]string, 0, len(active))
		subKeys := make([]string, 0, len(active))
		for _, sub := range active {
			roomKeys = append(roomKeys, cache.ResolveKey(sub.GuildID, sub.ChannelID))
			subKeys = append(subKeys, cache.SubscriptionKey(sub.GuildID, sub.ChannelID))
		}
		if err := roomCache.DeleteByRoom(ctx, roomKeys); err != nil {
			return err
		}
		return subCache.DeleteByRoom(ctx, subKeys)
	}
	if msg.GuildID != nil && msg.ChannelID != nil {
		if err := roomCache.DeleteExact(ctx, *msg.GuildID, *msg.ChannelID); err != nil {
			return err
		}
		return subCache.DeleteExact(ctx, *msg.GuildID, *msg.ChannelID)
	}
	return nil
}

// runWithBackoff runs fn in a loop, restarting with exponential backoff when it returns a non-nil, non-cancelled
// error. If fn returns nil or context.Canceled the goroutine exits. The delay starts at 1 second and doubles on each
// consecutive failure up to a 2-minute cap.
func runWithBackoff(ctx context.Context, name string, fn func(context.Context) error) {
	const (
		initialDelay = time.Second
		maxDelay     = 2 * time.Minute
	)
	delay := initialDelay
	for {
		if err := fn(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error().Err(err).Str("service", name).Dur("retry_in", delay).
				Msg("Background service stopped, restarting after delay")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, maxDelay)
			continue
		}
		return
	}
}

// fiberStatusToCode maps an HTTP status code from Fiber's built-in errors (404, 405, etc.) to the closest relay error
// code.
func fiberStatusToCode(status int) relayerr.Code {
	switch status {
	case fiber.StatusNotFound:
		return relayerr.NotFound
	case fiber.StatusMethodNotAllowed:
		return relayerr.ValidationError
	case fiber.StatusTooManyRequests:
		return relayerr.RateLimited
	case fiber.StatusServiceUnavailable:
		return relayerr.ServiceUnavailable
	default:
		if status >= 400 && status < 500 {
			return relayerr.ValidationError
		}
		return relayerr.InternalError
	}
}
