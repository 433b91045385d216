package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"stockfolio/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestStock creates a stock with a unique symbol and the given sector.
func CreateTestStock(t *testing.T, db *gorm.DB, sector string) *models.Stock {
	t.Helper()
	symbol := fmt.Sprintf("TST%d", nextID())
	return CreateTestStockWithSymbol(t, db, symbol, sector)
}

// CreateTestStockWithSymbol creates a stock with the given symbol and sector.
func CreateTestStockWithSymbol(t *testing.T, db *gorm.DB, symbol, sector string) *models.Stock {
	t.Helper()

	if sector == "" {
		sector = models.SectorUnknown
	}
	stock := &models.Stock{
		Symbol:   symbol,
		Name:     fmt.Sprintf("%s Inc", symbol),
		Sector:   sector,
		Exchange: "NASDAQ",
		Currency: "USD",
	}
	if err := db.Create(stock).Error; err != nil {
		t.Fatalf("failed to create test stock: %v", err)
	}
	return stock
}

// CreateTestHolding creates a holding for the user in the given stock.
func CreateTestHolding(t *testing.T, db *gorm.DB, userID string, stock *models.Stock, quantity int64, averageCost string) *models.Holding {
	t.Helper()

	holding := &models.Holding{
		UserID:      userID,
		StockID:     stock.ID,
		Symbol:      stock.Symbol,
		Quantity:    quantity,
		AverageCost: decimal.RequireFromString(averageCost),
	}
	if err := db.Create(holding).Error; err != nil {
		t.Fatalf("failed to create test holding: %v", err)
	}
	return holding
}

// CreateTestTransaction appends a ledger row for the user and stock.
func CreateTestTransaction(t *testing.T, db *gorm.DB, userID string, stock *models.Stock, txType models.TransactionType, quantity int64, price string, executedAt time.Time) *models.Transaction {
	t.Helper()

	txn := &models.Transaction{
		UserID:     userID,
		StockID:    stock.ID,
		Symbol:     stock.Symbol,
		Sector:     stock.Sector,
		Type:       txType,
		Price:      decimal.RequireFromString(price),
		Quantity:   quantity,
		ExecutedAt: executedAt,
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("failed to create test transaction: %v", err)
	}
	return txn
}
