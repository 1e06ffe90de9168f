package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/freeeve/warlock/api/internal/auth"
	"github.com/freeeve/warlock/api/internal/config"
	"github.com/freeeve/warlock/api/internal/handler"
	"github.com/freeeve/warlock/api/internal/logger"
	"github.com/freeeve/warlock/api/internal/middleware"
	"github.com/freeeve/warlock/api/internal/repository/postgres"
	redisrepo "github.com/freeeve/warlock/api/internal/repository/redis"
	"github.com/freeeve/warlock/api/internal/service"
)

func main() {
	cfg := config.Load()
	closeLog := logger.Init(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Dev: cfg.DevMode})
	defer closeLog()
	log.Info().Str("databaseURL", cfg.DatabaseURL).Dur("actionTimeout", cfg.ActionTimeout).
		Dur("resultsTimeout", cfg.ResultsTimeout).Dur("reconnectGrace", cfg.ReconnectGrace).Msg("Config loaded")

	gameCfg, err := config.LoadGameConfig(cfg.GameConfigPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.GameConfigPath).Msg("Game config invalid")
	}

	// Database
	db, err := postgres.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()

	// Redis
	redisClient, err := redisrepo.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClient.Close()

	// Keyspace notifications drive round deadlines.
	if err := redisClient.Underlying().ConfigSet(context.Background(), "notify-keyspace-events", "Ex").Err(); err != nil {
		log.Warn().Err(err).Msg("Failed to set Redis keyspace notifications (deadlines fall back to polling)")
	}

	// Repos
	userRepo := postgres.NewUserRepo(db)
	roomRepo := postgres.NewRoomRepo(db)
	roundRepo := postgres.NewRoundRepo(db)
	messageRepo := postgres.NewMessageRepo(db)

	// Auth
	jwtMgr := auth.NewJWTManager(cfg.JWTSecret, auth.WithExpiry(cfg.AccessTTL, cfg.RefreshTTL))
	googleOAuth := auth.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)

	// WebSocket hub
	wsHub := handler.NewHub()

	// Services
	roundSvc := service.NewRoundService(roomRepo, roundRepo, userRepo, redisClient, wsHub, gameCfg)
	roomSvc := service.NewRoomService(roomRepo, userRepo, roundSvc, service.Timeouts{
		Action:  cfg.ActionTimeout,
		Results: cfg.ResultsTimeout,
	})
	actionSvc := service.NewActionService(roundSvc)

	presence := service.NewPresenceTracker(roundSvc, cfg.ReconnectGrace)
	defer presence.Stop()
	wsHub.SetPresenceListener(presence)

	timerListener := service.NewTimerListener(redisClient.Underlying(), roundSvc, roundRepo)

	// Handlers
	authHandler := handler.NewAuthHandler(googleOAuth, jwtMgr, userRepo)
	userHandler := handler.NewUserHandler(userRepo)
	roomHandler := handler.NewRoomHandler(roomSvc, roundSvc)
	actionHandler := handler.NewActionHandler(actionSvc, roundSvc)
	roundHandler := handler.NewRoundHandler(roundSvc)
	messageHandler := handler.NewMessageHandler(messageRepo, roomRepo, roundRepo, wsHub)
	wsHandler := handler.NewWSHandler(wsHub, jwtMgr, roundSvc)

	// Router
	mux := http.NewServeMux()
	authMw := auth.Middleware(jwtMgr)

	// Health
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth (public)
	mux.HandleFunc("GET /auth/google/login", authHandler.GoogleLogin)
	mux.HandleFunc("GET /auth/google/callback", authHandler.GoogleCallback)
	mux.HandleFunc("POST /auth/refresh", authHandler.RefreshToken)
	mux.HandleFunc("GET /auth/dev", authHandler.DevLogin)

	// Protected API routes
	api := http.NewServeMux()
	api.HandleFunc("GET /users/me", userHandler.GetMe)
	api.HandleFunc("PATCH /users/me", userHandler.UpdateMe)
	api.HandleFunc("GET /users/{id}", userHandler.GetUser)
	api.HandleFunc("POST /rooms", roomHandler.CreateRoom)
	api.HandleFunc("GET /rooms", roomHandler.ListRooms)
	api.HandleFunc("GET /rooms/{id}", roomHandler.GetRoom)
	api.HandleFunc("DELETE /rooms/{id}", roomHandler.DeleteRoom)
	api.HandleFunc("POST /rooms/{id}/join", roomHandler.JoinRoom)
	api.HandleFunc("POST /rooms/{id}/leave", roomHandler.LeaveRoom)
	api.HandleFunc("POST /rooms/{id}/character-select", roomHandler.OpenCharacterSelect)
	api.HandleFunc("PUT /rooms/{id}/character", roomHandler.SelectCharacter)
	api.HandleFunc("POST /rooms/{id}/start", roomHandler.StartRoom)
	api.HandleFunc("POST /rooms/{id}/actions", actionHandler.SubmitAction)
	api.HandleFunc("POST /rooms/{id}/ready", actionHandler.MarkReady)
	api.HandleFunc("GET /rooms/{id}/eligibility", actionHandler.Eligibility)
	api.HandleFunc("GET /rooms/{id}/rounds", roundHandler.ListRounds)
	api.HandleFunc("GET /rooms/{id}/rounds/{round}/log", roundHandler.RoundLog)
	api.HandleFunc("GET /rooms/{id}/messages", messageHandler.ListMessages)
	api.HandleFunc("POST /rooms/{id}/messages", messageHandler.SendMessage)

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", authMw(api)))

	// WebSocket (auth via query param, not middleware)
	mux.HandleFunc("GET /api/v1/ws", wsHandler.ServeWS)

	// Apply global middleware
	root := middleware.Chain(mux, middleware.Logger, middleware.Recover, middleware.CORS(cfg.CORSOrigins), middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Rehydrate Redis from Postgres after a restart.
	if err := roundSvc.RecoverActiveRooms(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to recover active rooms (non-fatal)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return timerListener.Listen(ctx)
	})
	eg.Go(func() error {
		return timerListener.Poll(ctx)
	})
	eg.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := eg.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		return
	}
	log.Info().Msg("Server stopped")
}
