package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/memegrid/memegrid-api/internal/config"
	"github.com/memegrid/memegrid-api/internal/domain/admin"
	"github.com/memegrid/memegrid-api/internal/domain/auth"
	"github.com/memegrid/memegrid-api/internal/domain/credit"
	"github.com/memegrid/memegrid-api/internal/domain/meme"
	"github.com/memegrid/memegrid-api/internal/domain/payment"
	"github.com/memegrid/memegrid-api/internal/domain/user"
	"github.com/memegrid/memegrid-api/internal/jobs"
	"github.com/memegrid/memegrid-api/internal/middleware"
	"github.com/memegrid/memegrid-api/internal/pkg/ai"
	"github.com/memegrid/memegrid-api/internal/pkg/creem"
	"github.com/memegrid/memegrid-api/internal/pkg/database"
	"github.com/memegrid/memegrid-api/internal/pkg/imaging"
	"github.com/memegrid/memegrid-api/internal/pkg/jwt"
	"github.com/memegrid/memegrid-api/internal/pkg/logger"
	"github.com/memegrid/memegrid-api/internal/pkg/response"
	"github.com/memegrid/memegrid-api/internal/pkg/storage"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	// Database
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer database.ClosePostgres(db)

	// Redis (optional, refresh tokens degrade without it)
	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, refresh tokens disabled")
		redisClient = nil
	}
	defer database.CloseRedis(redisClient)

	// Media storage: R2 in production, local disk for development
	var files storage.Storage
	if cfg.R2AccountID != "" {
		r2, err := storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init R2 storage")
		}
		files = r2
		log.Info().Str("bucket", cfg.R2BucketName).Msg("using R2 storage")
	} else {
		local, err := storage.NewLocalStorage(cfg.LocalStoragePath, cfg.BackendURL+"/media")
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init local storage")
		}
		files = local
		log.Info().Str("path", cfg.LocalStoragePath).Msg("using local storage")
	}

	// Shared services
	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	userRepo := user.NewRepository(db)
	creditService := credit.NewService(db)

	authService := auth.NewService(userRepo, jwtService, redisClient, creditService, auth.SignupGift{
		Enabled:     cfg.InitialCreditsEnabled,
		Amount:      int64(cfg.InitialCreditsAmount),
		ValidDays:   cfg.InitialCreditsValidDays,
		Description: cfg.InitialCreditsDescription,
	})

	// Generation pipeline
	provider := ai.NewGeminiProvider(ai.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GenerationModel,
		Timeout: cfg.GenerationTimeout,
	})
	splitter := imaging.NewSplitter(imaging.Config{
		Rows: cfg.MemeGridRows,
		Cols: cfg.MemeGridCols,
	})
	memeService := meme.NewService(meme.NewRepository(db), creditService, provider, splitter, files, meme.Config{
		Cost:          int64(cfg.MemeGenerationCost),
		Prompt:        cfg.GenerationPrompt,
		MaxUploadSize: cfg.MaxUploadSizeBytes,
	})

	// Payments
	creemClient := creem.NewClient(creem.Config{
		APIKey:      cfg.CreemAPIKey,
		Environment: cfg.CreemEnvironment,
	})
	paymentService := payment.NewService(payment.NewRepository(db), creemClient, creditService, payment.Config{
		Packs:             payment.DefaultPacks(cfg.CreemProductStarter, cfg.CreemProductCreator, cfg.CreemProductStudio),
		CreditsValidDays:  cfg.PurchasedCreditsValidDays,
		CheckoutReturnURL: cfg.FrontendURL + "/billing/success",
	})

	// Handlers
	authHandler := auth.NewHandler(authService)
	creditHandler := credit.NewHandler(creditService)
	memeHandler := meme.NewHandler(memeService, cfg.MaxUploadSizeBytes)
	paymentHandler := payment.NewHandler(paymentService, cfg.CreemWebhookSecret)
	adminCreditHandler := admin.NewCreditHandler(creditService, userRepo)

	authMiddleware := middleware.Auth(jwtService)
	adminMiddleware := middleware.RequireAdmin()

	// Router
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))
	r.Use(chimw.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := db.PingContext(req.Context()); err != nil {
			response.Error(w, http.StatusServiceUnavailable, "UNHEALTHY", "database unreachable")
			return
		}
		response.OK(w, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes(authMiddleware))
		r.Mount("/credits", creditHandler.Routes(authMiddleware))
		r.Mount("/memes", memeHandler.Routes(authMiddleware))
		r.Mount("/payments", paymentHandler.Routes(authMiddleware))
	})

	r.Post("/webhooks/creem", paymentHandler.Webhook)

	r.Route("/api/admin", func(r chi.Router) {
		r.Mount("/", adminCreditHandler.Routes(authMiddleware, adminMiddleware))
	})

	// Locally stored media is served by the API itself
	if cfg.R2AccountID == "" {
		fileServer := http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.LocalStoragePath)))
		r.Get("/media/*", fileServer.ServeHTTP)
	}

	// Background expiry sweep
	sweeper := jobs.NewSweeper(creditService, cfg.SweepSchedule)
	if err := sweeper.Start(); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.SweepSchedule).Msg("failed to start sweeper")
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // generation requests are slow
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	sweeper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
