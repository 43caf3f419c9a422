// Package quotes looks up current stock prices. The rest of the server only
// sees the Oracle interface; which implementation backs it is decided by the
// configuration.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// NotFoundError is returned by Lookup when the symbol is not known to the oracle
var NotFoundError = errors.New("Symbol not found")

// UnavailableError is returned when the oracle could not be reached in time
type UnavailableError struct {
	Symbol string
	Err    error
}

func (e UnavailableError) Error() string {
	return fmt.Sprintf("Price lookup for %s is unavailable right now: %v", e.Symbol, e.Err)
}

func (e UnavailableError) Unwrap() error {
	return e.Err
}

// Quote is the current price of a stock
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

//go:generate mockgen -destination=../mocks/mock_oracle.go -package=mocks github.com/delta/finance-server/quotes Oracle

// Oracle gives the current price of a symbol.
//
// Lookup returns NotFoundError for unknown symbols and UnavailableError when
// the price source can't answer.
type Oracle interface {
	Lookup(ctx context.Context, symbol string) (*Quote, error)
}

// NormalizeSymbol trims and upper-cases a ticker so that the same stock is
// always stored under the same symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
