package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockfolio/internal/config"
	"stockfolio/internal/database"
	"stockfolio/internal/handlers"
	"stockfolio/internal/logger"
	"stockfolio/internal/marketdata"
	"stockfolio/internal/middleware"
	"stockfolio/internal/services"
	"stockfolio/internal/validator"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
)

// @title           Stockfolio API
// @version         1.0
// @description     Stockfolio is a portfolio tracker: record buys and sells, value holdings with live quotes, and break down realized and unrealized profit/loss.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	validator.Register()

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Market-data gateway
	client := marketdata.NewClient(&http.Client{Timeout: 10 * time.Second},
		appConfig.MarketDataBaseURL, appConfig.MarketDataAPIKey)
	gateway := marketdata.NewGateway(client,
		marketdata.WithQuoteTTL(appConfig.QuoteCacheTTL),
		marketdata.WithRequestDelay(appConfig.QuoteRequestDelay))
	defer gateway.Close()

	// Initialize services
	db := dbManager.DB()
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	stockService := services.NewStockService(db, gateway)
	portfolioService := services.NewPortfolioService(db, gateway, stockService)
	profitLossService := services.NewProfitLossService(db)
	historyService := services.NewHistoryService(db, gateway)
	transactionService := services.NewTransactionService(db)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	portfolioHandler := handlers.NewPortfolioHandler(portfolioService, profitLossService, historyService, auditService)
	stockHandler := handlers.NewStockHandler(stockService)
	transactionHandler := handlers.NewTransactionHandler(transactionService)
	opsHandler := handlers.NewOpsHandler(portfolioService)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	// User profile
	protected.GET("/profile", authHandler.GetProfile)

	// Portfolio routes
	portfolio := protected.Group("/portfolio")
	portfolio.POST("/buy", portfolioHandler.Buy)
	portfolio.POST("/sell", portfolioHandler.Sell)
	portfolio.GET("/holdings", portfolioHandler.GetHoldings)
	portfolio.GET("/summary", portfolioHandler.GetSummary)
	portfolio.GET("/sectors", portfolioHandler.GetSectors)
	portfolio.GET("/profit-loss", portfolioHandler.GetProfitLoss)
	portfolio.GET("/history", portfolioHandler.GetHistory)

	// Transaction routes
	transactions := protected.Group("/transactions")
	transactions.GET("", transactionHandler.List)
	transactions.GET("/stats", transactionHandler.Stats)

	// Stock routes
	stocks := protected.Group("/stocks")
	stocks.GET("/search", stockHandler.Search)
	stocks.GET("/:symbol/quote", stockHandler.GetQuote)
	stocks.GET("/:symbol/candles", stockHandler.GetCandles)

	// Ops routes
	ops := v1.Group("/ops")
	ops.Use(middleware.OpsAuthMiddleware(appConfig.OpsAPIKey))
	ops.POST("/reconcile", opsHandler.Reconcile)

	// Scheduled holdings reconciliation
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(appConfig.ReconcileSchedule, func() {
		report, err := portfolioService.ReconcileAllUsers()
		if err != nil {
			log.Errorw("Scheduled reconciliation failed", "error", err)
			return
		}
		log.Infow("Scheduled reconciliation completed", "users_with_mismatches", len(report))
	}); err != nil {
		return fmt.Errorf("failed to schedule reconciliation: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:    ":" + appConfig.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting Stockfolio backend server on port %s", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.Infof("Received signal %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
