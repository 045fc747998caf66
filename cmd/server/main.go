package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/moneypots/backend/docs"
	"github.com/moneypots/backend/internal/database"
	mW "github.com/moneypots/backend/internal/middleware"
	"github.com/moneypots/backend/internal/services"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Money Pots API
// @version 1.0
// @description Points ledger and approval workflow for family allowance tracking
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Money Pots API"
	docs.SwaggerInfo.Description = "Points ledger and approval workflow for family allowance tracking"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	ledger := services.NewJarLedgerService(db)
	fulfiller := services.NewFulfiller(ledger)
	notifier := services.NewQueueNotifier(db, redisClient)

	accountService := services.NewAccountService(db)
	transactionService := services.NewTransactionService(db, ledger)
	claimService := services.NewClaimService(db, fulfiller, notifier)
	approvalService := services.NewApprovalService(db, fulfiller, notifier)
	settingsService := services.NewSettingsService(db)
	choreService := services.NewChoreService(db)
	goalService := services.NewGoalService(db, ledger)
	rewardService := services.NewRewardService(db)
	voucherService := services.NewVoucherService(db)
	notificationService := services.NewNotificationService(db)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Static file server for avatars
	r.Handle("/static/avatars/*", http.StripPrefix("/static/avatars/",
		mW.StaticFileServer("./static/avatars")))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			// Accounts
			r.Get("/users", accountService.ListAccounts)
			r.Get("/users/{id}", accountService.GetAccount)
			r.With(mW.RequireParent).Delete("/users/{id}", accountService.DeleteAccount)

			// Requests and approvals. GET /requests/{id} takes a child
			// account id; PUT takes a request id.
			r.Post("/requests", claimService.SubmitClaim)
			r.With(mW.RequireParent).Get("/requests", approvalService.ListFamilyRequests)
			r.Get("/requests/{id}", approvalService.ListChildRequests)
			r.With(mW.RequireParent).Put("/requests/{id}", approvalService.ResolveClaim)
			r.Post("/requests/{id}/messages", approvalService.PostMessage)

			// Transactions
			r.With(mW.RequireParent).Post("/transactions", transactionService.RecordManualTransaction)
			r.Get("/transactions/{userId}", transactionService.ListTransactions)

			// Chores. GET /chores/{id} lists by child account id.
			r.With(mW.RequireParent).Post("/chores", choreService.CreateChore)
			r.Get("/chores/{id}", choreService.ListChores)
			r.Put("/chores/{id}", choreService.UpdateChore)
			r.With(mW.RequireParent).Delete("/chores/{id}", choreService.DeleteChore)

			// Goals. GET /goals/{id} lists by child account id.
			r.With(mW.RequireParent).Post("/goals", goalService.CreateGoal)
			r.Get("/goals/{id}", goalService.ListGoals)
			r.Post("/goals/{id}/contribute", goalService.Contribute)
			r.With(mW.RequireParent).Delete("/goals/{id}", goalService.DeleteGoal)

			// Rewards. GET /rewards/{id} lists by child account id.
			r.With(mW.RequireParent).Post("/rewards", rewardService.CreateReward)
			r.Get("/rewards/{id}", rewardService.ListRewards)
			r.With(mW.RequireParent).Put("/rewards/{id}", rewardService.UpdateReward)
			r.With(mW.RequireParent).Delete("/rewards/{id}", rewardService.DeleteReward)
			r.Get("/rewards/{id}/voucher", voucherService.RewardVoucher)

			// Settings
			r.With(mW.RequireParent).Put("/settings", settingsService.UpdateSettings)
			r.With(mW.RequireParent).Put("/settings/pin", settingsService.SetPin)

			// Notifications
			r.Get("/notifications/{id}", notificationService.ListNotifications)
			r.Put("/notifications/{id}/read", notificationService.MarkRead)
			r.Put("/notifications/read-all", notificationService.MarkAllRead)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
