package quotes

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// StaticOracle serves prices from an in-memory table. It backs the dev and
// test stages where no quote API token is configured.
type StaticOracle struct {
	sync.RWMutex
	quotes map[string]Quote
}

// NewStaticOracle returns an oracle serving the given quotes, keyed by symbol
func NewStaticOracle(quotes ...Quote) *StaticOracle {
	o := &StaticOracle{quotes: make(map[string]Quote)}
	for _, q := range quotes {
		o.quotes[NormalizeSymbol(q.Symbol)] = q
	}
	return o
}

// DefaultStaticOracle is the table used when the server runs without a quote API
func DefaultStaticOracle() *StaticOracle {
	return NewStaticOracle(
		Quote{Symbol: "AAPL", Name: "Apple Inc.", Price: decimal.RequireFromString("150.00")},
		Quote{Symbol: "AMZN", Name: "Amazon.com Inc.", Price: decimal.RequireFromString("130.25")},
		Quote{Symbol: "GOOG", Name: "Alphabet Inc.", Price: decimal.RequireFromString("135.50")},
		Quote{Symbol: "MSFT", Name: "Microsoft Corporation", Price: decimal.RequireFromString("330.10")},
		Quote{Symbol: "NFLX", Name: "Netflix Inc.", Price: decimal.RequireFromString("410.75")},
	)
}

// SetPrice adds the symbol or changes its price
func (o *StaticOracle) SetPrice(symbol, name string, price decimal.Decimal) {
	symbol = NormalizeSymbol(symbol)

	o.Lock()
	defer o.Unlock()

	if q, ok := o.quotes[symbol]; ok && name == "" {
		name = q.Name
	}
	o.quotes[symbol] = Quote{Symbol: symbol, Name: name, Price: price}
}

// Remove makes the symbol unknown
func (o *StaticOracle) Remove(symbol string) {
	o.Lock()
	delete(o.quotes, NormalizeSymbol(symbol))
	o.Unlock()
}

func (o *StaticOracle) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, UnavailableError{Symbol: symbol, Err: err}
	}

	o.RLock()
	q, ok := o.quotes[NormalizeSymbol(symbol)]
	o.RUnlock()

	if !ok {
		return nil, NotFoundError
	}
	return &q, nil
}
