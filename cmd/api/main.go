package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/hourbank/hourbank-api/internal/config"
	"github.com/hourbank/hourbank-api/internal/domain/activity"
	"github.com/hourbank/hourbank-api/internal/domain/exchange"
	"github.com/hourbank/hourbank-api/internal/domain/group"
	"github.com/hourbank/hourbank-api/internal/domain/listing"
	"github.com/hourbank/hourbank-api/internal/domain/settings"
	"github.com/hourbank/hourbank-api/internal/domain/user"
	"github.com/hourbank/hourbank-api/internal/domain/wallet"
	"github.com/hourbank/hourbank-api/internal/middleware"
	"github.com/hourbank/hourbank-api/internal/pkg/database"
	"github.com/hourbank/hourbank-api/internal/pkg/jwt"
	"github.com/hourbank/hourbank-api/internal/pkg/logger"
	"github.com/hourbank/hourbank-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
	})

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.ClosePostgres(db)

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to redis")
	}
	defer database.CloseRedis(redisClient)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// Repositories
	userRepo := user.NewRepository(db)
	listingRepo := listing.NewRepository(db)
	walletRepo := wallet.NewRepository(db)
	exchangeRepo := exchange.NewRepository(db)
	groupRepo := group.NewRepository(db)
	activityRepo := activity.NewRepository(db)
	settingsRepo := settings.NewRepository(db, redisClient, workflowDefaults(cfg))

	// Services
	resolver := user.NewResolver(userRepo)
	activityService := activity.NewService(activityRepo, redisClient)
	walletService := wallet.NewService(walletRepo, userRepo, resolver, activityService)
	exchangeService := exchange.NewService(exchangeRepo, listingRepo, walletService, settingsRepo, activityService)
	groupService := group.NewService(groupRepo, userRepo, walletService, activityService)

	// Handlers
	walletHandler := wallet.NewHandler(walletService)
	exchangeHandler := exchange.NewHandler(exchangeService)
	groupHandler := group.NewHandler(groupService)
	activityHandler := activity.NewHandler(activityRepo)

	router := newRouter(cfg, jwtService, walletHandler, exchangeHandler, groupHandler, activityHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server stopped")
}

func newRouter(cfg *config.Config, jwtService *jwt.Service, walletHandler *wallet.Handler, exchangeHandler *exchange.Handler, groupHandler *group.Handler, activityHandler *activity.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	})

	auth := middleware.Auth(jwtService)
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/wallet", walletHandler.Routes(auth))
		r.Mount("/exchanges", exchangeHandler.Routes(auth))
		r.Mount("/group-exchanges", groupHandler.Routes(auth))
		r.Mount("/activity", activityHandler.Routes(auth))
	})

	return r
}

func workflowDefaults(cfg *config.Config) settings.Workflow {
	defaults := settings.DefaultWorkflow()
	defaults.MaxHourVariancePercent = cfg.MaxHourVariancePercent
	defaults.AllowHourAdjustment = cfg.AllowHourAdjustment
	defaults.ConfirmationDeadlineHours = cfg.ConfirmationDeadlineHours
	if min, err := decimal.NewFromString(cfg.MinProposedHours); err == nil {
		defaults.MinProposedHours = min
	}
	if max, err := decimal.NewFromString(cfg.MaxProposedHours); err == nil {
		defaults.MaxProposedHours = max
	}
	return defaults
}
