package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"stockfolio/internal/handlers"
	"stockfolio/internal/logger"
	"stockfolio/internal/marketdata"
	"stockfolio/internal/middleware"
	"stockfolio/internal/models"
	"stockfolio/internal/services"
	"stockfolio/internal/validator"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// fakeMarket is a deterministic in-process market-data provider. Known
// symbols quote at fixed prices; everything else degrades to a flat
// synthetic quote, matching the gateway's never-fail contract.
type fakeMarket struct {
	prices   map[string]float64
	profiles map[string]marketdata.Profile
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		prices: map[string]float64{
			"AAPL": 150,
			"MSFT": 400,
			"XOM":  110,
		},
		profiles: map[string]marketdata.Profile{
			"AAPL": {Name: "Apple Inc", Sector: "Technology", Exchange: "NASDAQ", Currency: "USD"},
			"MSFT": {Name: "Microsoft Corp", Sector: "Technology", Exchange: "NASDAQ", Currency: "USD"},
			"XOM":  {Name: "Exxon Mobil", Sector: "Energy", Exchange: "NYSE", Currency: "USD"},
		},
	}
}

func (f *fakeMarket) GetQuote(_ context.Context, symbol string) marketdata.Quote {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if price, ok := f.prices[symbol]; ok {
		return marketdata.Quote{Symbol: symbol, Current: price, PrevClose: price, Source: marketdata.QuoteSourceReal}
	}
	return marketdata.Quote{Symbol: symbol, Current: 50, PrevClose: 50, Source: marketdata.QuoteSourceSynthetic}
}

func (f *fakeMarket) GetQuotesBatch(ctx context.Context, symbols []string) map[string]marketdata.Quote {
	quotes := make(map[string]marketdata.Quote, len(symbols))
	for _, symbol := range symbols {
		q := f.GetQuote(ctx, symbol)
		quotes[q.Symbol] = q
	}
	return quotes
}

func (f *fakeMarket) SearchSymbols(_ context.Context, query string) []marketdata.SymbolMatch {
	query = strings.ToUpper(strings.TrimSpace(query))
	var matches []marketdata.SymbolMatch
	for symbol, profile := range f.profiles {
		if strings.HasPrefix(symbol, query) {
			matches = append(matches, marketdata.SymbolMatch{
				Symbol:        symbol,
				DisplaySymbol: symbol,
				Description:   profile.Name,
				Type:          "Common Stock",
			})
		}
	}
	return matches
}

func (f *fakeMarket) GetCandles(_ context.Context, symbol, _ string, from, to int64) (*marketdata.Bars, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	price, ok := f.prices[symbol]
	if !ok {
		return nil, false
	}
	return &marketdata.Bars{
		Opens:      []float64{price - 1, price},
		Highs:      []float64{price + 1, price + 1},
		Lows:       []float64{price - 2, price - 1},
		Closes:     []float64{price, price},
		Volumes:    []int64{1000, 1200},
		Timestamps: []int64{from, to},
	}, true
}

func (f *fakeMarket) Profile(_ context.Context, symbol string) (*marketdata.Profile, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if profile, ok := f.profiles[symbol]; ok {
		return &profile, nil
	}
	return nil, fmt.Errorf("no profile for %s", symbol)
}

var _ services.QuoteProvider = (*fakeMarket)(nil)

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.User{},
		&models.Stock{},
		&models.Holding{},
		&models.Transaction{},
		&models.AuditLog{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)
	market := newFakeMarket()

	// Services
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	stockService := services.NewStockService(db, market)
	portfolioService := services.NewPortfolioService(db, market, stockService)
	profitLossService := services.NewProfitLossService(db)
	historyService := services.NewHistoryService(db, market)
	transactionService := services.NewTransactionService(db)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	portfolioHandler := handlers.NewPortfolioHandler(portfolioService, profitLossService, historyService, auditService)
	stockHandler := handlers.NewStockHandler(stockService)
	transactionHandler := handlers.NewTransactionHandler(transactionService)
	opsHandler := handlers.NewOpsHandler(portfolioService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	// Public auth routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)

	portfolio := protected.Group("/portfolio")
	portfolio.POST("/buy", portfolioHandler.Buy)
	portfolio.POST("/sell", portfolioHandler.Sell)
	portfolio.GET("/holdings", portfolioHandler.GetHoldings)
	portfolio.GET("/summary", portfolioHandler.GetSummary)
	portfolio.GET("/sectors", portfolioHandler.GetSectors)
	portfolio.GET("/profit-loss", portfolioHandler.GetProfitLoss)
	portfolio.GET("/history", portfolioHandler.GetHistory)

	transactions := protected.Group("/transactions")
	transactions.GET("", transactionHandler.List)
	transactions.GET("/stats", transactionHandler.Stats)

	stocks := protected.Group("/stocks")
	stocks.GET("/search", stockHandler.Search)
	stocks.GET("/:symbol/quote", stockHandler.GetQuote)
	stocks.GET("/:symbol/candles", stockHandler.GetCandles)

	ops := v1.Group("/ops")
	ops.Use(middleware.OpsAuthMiddleware("test-ops-key"))
	ops.POST("/reconcile", opsHandler.Reconcile)

	return &testApp{DB: db, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// registerUser registers a new user and returns the access token, refresh token, and user ID.
func (app *testApp) registerUser(t *testing.T, email, password string) (accessToken, refreshToken, userID string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"first_name":"Test","last_name":"User"}`, email, password)
	rec := app.request("POST", "/api/v1/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["token"].(string), result["refresh_token"].(string), user["id"].(string)
}

// loginUser logs in and returns the access and refresh tokens.
func (app *testApp) loginUser(t *testing.T, email, password string) (accessToken, refreshToken string) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	rec := app.request("POST", "/api/v1/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	return result["token"].(string), result["refresh_token"].(string)
}

// buyStock records a purchase and returns the created transaction.
func (app *testApp) buyStock(t *testing.T, token, symbol string, quantity int, price string) map[string]interface{} {
	t.Helper()
	body := fmt.Sprintf(`{"symbol":%q,"quantity":%d,"price":%q}`, symbol, quantity, price)
	rec := app.request("POST", "/api/v1/portfolio/buy", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("buy failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["transaction"].(map[string]interface{})
}

// getHoldings fetches the user's enriched holdings.
func (app *testApp) getHoldings(t *testing.T, token string) []interface{} {
	t.Helper()
	rec := app.request("GET", "/api/v1/portfolio/holdings", "", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("holdings failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["holdings"].([]interface{})
}
