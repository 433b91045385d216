// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// symbolRegex matches exchange tickers like AAPL, BRK.B or VOD.L.
var symbolRegex = regexp.MustCompile(`^[A-Z][A-Z0-9]{0,9}(\.[A-Z]{1,4})?$`)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("transaction_type", validateTransactionType)
		_ = v.RegisterValidation("ticker_symbol", validateTickerSymbol)
		_ = v.RegisterValidation("candle_resolution", validateCandleResolution)
	}
}

func validateTransactionType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "buy", "sell":
		return true
	}
	return false
}

func validateTickerSymbol(fl validator.FieldLevel) bool {
	return symbolRegex.MatchString(fl.Field().String())
}

func validateCandleResolution(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "1", "5", "15", "30", "60", "D", "W", "M":
		return true
	}
	return false
}
