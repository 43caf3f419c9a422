package models

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var hundred = decimal.NewFromInt(100)

// Holding is one active position of a user, valued at the current price
type Holding struct {
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Shares       int64           `json:"shares"`
	AvgCost      decimal.Decimal `json:"avg_cost"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Value        decimal.Decimal `json:"value"`
	// Change is the percentage change of CurrentPrice over AvgCost
	Change decimal.Decimal `json:"change"`
	// Stale is set when the oracle no longer knows the symbol and the last
	// traded price was used instead
	Stale bool `json:"stale"`
}

// Portfolio is the valued view of a user's account
type Portfolio struct {
	Holdings []*Holding      `json:"holdings"`
	Cash     decimal.Decimal `json:"cash"`
	Total    decimal.Decimal `json:"total"`
}

type position struct {
	shares    int64
	cost      decimal.Decimal
	lastPrice decimal.Decimal
}

// averageCosts replays the ledger using the average cost method. A purchase
// adds its quantity and cost. A sale removes cost in proportion to the
// quantity sold, leaving the average unchanged.
func averageCosts(transactions []*Transaction) map[string]*position {
	positions := make(map[string]*position)
	for _, t := range transactions {
		p, ok := positions[t.Symbol]
		if !ok {
			p = &position{}
			positions[t.Symbol] = p
		}
		p.lastPrice = t.Price

		if t.IsBuy() {
			p.cost = p.cost.Add(t.Total())
			p.shares += t.Shares
			continue
		}

		sold := -t.Shares
		if p.shares <= 0 {
			continue
		}
		if sold >= p.shares {
			p.shares = 0
			p.cost = decimal.Zero
			continue
		}
		p.cost = p.cost.Sub(p.cost.Mul(decimal.NewFromInt(sold)).Div(decimal.NewFromInt(p.shares)))
		p.shares -= sold
	}
	return positions
}

func percentChange(from, to decimal.Decimal) decimal.Decimal {
	if from.IsZero() {
		return decimal.Zero
	}
	return to.Sub(from).Div(from).Mul(hundred).Round(2)
}

// loadAccount reads the user and their ledger in one database transaction,
// so that cash and holdings describe the same moment.
func loadAccount(userId uint32) (User, []*Transaction, error) {
	tx := getDB().Begin()
	if tx.Error != nil {
		return User{}, nil, tx.Error
	}

	user, err := findUser(tx, userId)
	if err != nil {
		tx.Rollback()
		return User{}, nil, err
	}

	transactions, err := findHistory(tx, userId)
	if err != nil {
		tx.Rollback()
		return User{}, nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return User{}, nil, err
	}

	return user, transactions, nil
}

// GetPortfolio values every active holding of the user at the current price.
//
// Possible outcomes:
//  1. The portfolio is returned, holdings sorted by symbol
//  2. quotes.UnavailableError is returned if any price couldn't be looked up
//     within the configured quote timeout
//  3. Other error is returned (e.g. if the database is unreachable)
func GetPortfolio(ctx context.Context, userId uint32) (*Portfolio, error) {
	var l = logger.WithFields(logrus.Fields{
		"method":       "GetPortfolio",
		"param_userId": userId,
	})

	l.Info("GetPortfolio requested")

	user, transactions, err := loadAccount(userId)
	if err != nil {
		l.Errorf("Failed loading account: %+v", err)
		return nil, err
	}

	// one deadline for all lookups, however many holdings there are
	if timeout := config.QuoteTimeoutDuration(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	portfolio := &Portfolio{
		Holdings: []*Holding{},
		Cash:     user.Cash,
		Total:    user.Cash,
	}

	for symbol, p := range averageCosts(transactions) {
		if p.shares <= 0 {
			continue
		}

		shares := decimal.NewFromInt(p.shares)
		h := &Holding{
			Symbol:  symbol,
			Name:    symbol,
			Shares:  p.shares,
			AvgCost: p.cost.Div(shares).Round(4),
		}

		quote, err := lookupPrice(ctx, symbol)
		switch err.(type) {
		case nil:
			h.Name = quote.Name
			h.CurrentPrice = quote.Price
		case InvalidSymbolError:
			l.Warnf("Oracle doesn't know %s anymore. Using last traded price %s", symbol, p.lastPrice)
			h.CurrentPrice = p.lastPrice
			h.Stale = true
		default:
			l.Errorf("Price lookup for %s failed: %+v", symbol, err)
			return nil, err
		}

		h.Value = h.CurrentPrice.Mul(shares)
		h.Change = percentChange(h.AvgCost, h.CurrentPrice)

		portfolio.Holdings = append(portfolio.Holdings, h)
		portfolio.Total = portfolio.Total.Add(h.Value)
	}

	sort.Slice(portfolio.Holdings, func(i, j int) bool {
		return portfolio.Holdings[i].Symbol < portfolio.Holdings[j].Symbol
	})

	l.Debugf("Valued %d holdings. Total %s", len(portfolio.Holdings), portfolio.Total)

	return portfolio, nil
}
