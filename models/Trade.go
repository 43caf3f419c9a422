package models

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/delta/finance-server/quotes"
)

//
// List of errors
//

// InvalidSymbolError is returned when the price oracle doesn't know the symbol
type InvalidSymbolError struct {
	Symbol string
}

func (e InvalidSymbolError) Error() string {
	return fmt.Sprintf("Invalid symbol %s", e.Symbol)
}

// InvalidSharesError is returned when the number of shares is not a positive integer
type InvalidSharesError struct{}

func (e InvalidSharesError) Error() string {
	return "Invalid shares"
}

// NotEnoughCashError is generated when shares*price is more than the user's cash
type NotEnoughCashError struct{}

func (e NotEnoughCashError) Error() string {
	return "Can't afford"
}

// SymbolNotOwnedError is returned when selling a symbol the user holds none of
type SymbolNotOwnedError struct {
	Symbol string
}

func (e SymbolNotOwnedError) Error() string {
	return fmt.Sprintf("Symbol %s not owned", e.Symbol)
}

// TooManySharesError is returned when selling more shares than held
type TooManySharesError struct {
	Held int64
}

func (e TooManySharesError) Error() string {
	return fmt.Sprintf("Too many shares. You own %d", e.Held)
}

// ParseShares parses a share count coming from a form
func ParseShares(s string) (int64, error) {
	shares, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || shares < 1 {
		return 0, InvalidSharesError{}
	}
	return shares, nil
}

// moneyScale is the number of decimal places the money columns keep
const moneyScale = 4

// lookupPrice asks the oracle for the symbol's price, translating "not found"
// into InvalidSymbolError. The price is rounded to moneyScale so that the
// ledger stores exactly what cash was charged. A price that isn't positive
// after rounding is treated as an unknown symbol.
func lookupPrice(ctx context.Context, symbol string) (*quotes.Quote, error) {
	q, err := priceOracle.Lookup(ctx, symbol)
	switch err.(type) {
	case nil:
		rounded := *q
		rounded.Price = q.Price.Round(moneyScale)
		if !rounded.Price.IsPositive() {
			logger.Warnf("Oracle gave %s a price of %s. Ignoring it", symbol, q.Price)
			return nil, InvalidSymbolError{Symbol: symbol}
		}
		return &rounded, nil
	case quotes.UnavailableError:
		return nil, err
	}
	if err == quotes.NotFoundError {
		return nil, InvalidSymbolError{Symbol: symbol}
	}
	return nil, quotes.UnavailableError{Symbol: symbol, Err: err}
}

// commitLedgerEntry appends transaction to the ledger and sets the user's cash
// to newCash in a single database transaction.
// This function should be called ONLY AFTER lock is obtained on user
func commitLedgerEntry(user *User, transaction *Transaction, newCash decimal.Decimal) error {
	var l = logger.WithFields(logrus.Fields{
		"method":            "commitLedgerEntry",
		"param_user":        user.Id,
		"param_transaction": fmt.Sprintf("%+v", transaction),
	})

	tx := getDB().Begin()
	if tx.Error != nil {
		l.Errorf("Failed starting transaction: %+v", tx.Error)
		return tx.Error
	}

	var errorHelper = func(format string, args ...interface{}) error {
		l.Errorf(format, args...)
		tx.Rollback()
		transaction.Id = 0
		return fmt.Errorf(format, args...)
	}

	if err := insertTransaction(tx, transaction); err != nil {
		return errorHelper("Error creating the transaction. Rolling back. Error: %+v", err)
	}

	l.Debugf("Added transaction to transactions table")

	if err := updateCash(tx, user, newCash); err != nil {
		return errorHelper("Error updating the user's cash. Rolling back. Error: %+v", err)
	}

	if err := tx.Commit().Error; err != nil {
		return errorHelper("Error committing the transaction. Failing. %+v", err)
	}

	user.Cash = newCash

	l.Debugf("Committed. User now has %s", user.Cash)

	return nil
}

// Quote returns the current price of a symbol
func Quote(ctx context.Context, symbol string) (*quotes.Quote, error) {
	symbol = quotes.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, MissingFieldError{Field: "symbol"}
	}
	return lookupPrice(ctx, symbol)
}

// Buy buys shares of symbol for the user at the current price.
//
// The method is thread-safe like other exported methods of this package.
//
// Possible outcomes:
//  1. The purchase is recorded and the ledger entry is returned
//  2. MissingFieldError, InvalidSharesError, InvalidSymbolError or NotEnoughCashError is returned
//  3. quotes.UnavailableError is returned if the price couldn't be looked up
//  4. Other error is returned (e.g. if the database is unreachable)
func Buy(ctx context.Context, userId uint32, symbol string, shares int64) (*Transaction, error) {
	symbol = quotes.NormalizeSymbol(symbol)

	var l = logger.WithFields(logrus.Fields{
		"method":       "Buy",
		"param_userId": userId,
		"param_symbol": symbol,
		"param_shares": shares,
	})

	l.Infof("Buy requested")

	if symbol == "" {
		return nil, MissingFieldError{Field: "symbol"}
	}
	if shares < 1 {
		return nil, InvalidSharesError{}
	}

	quote, err := lookupPrice(ctx, symbol)
	if err != nil {
		l.Debugf("Price lookup failed: %+v", err)
		return nil, err
	}

	l.Debugf("Acquiring exclusive write on user")
	ch, user, err := getUserExclusively(userId)
	if err != nil {
		l.Errorf("Errored: %+v", err)
		return nil, err
	}
	l.Debugf("Acquired")
	defer func() {
		close(ch)
		l.Debugf("Released exclusive write on user")
	}()

	cost := quote.Price.Mul(decimal.NewFromInt(shares))
	if user.Cash.LessThan(cost) {
		l.Debugf("User does not have enough cash. Want %s, Have %s. Failing.", cost, user.Cash)
		return nil, NotEnoughCashError{}
	}

	transaction := makeTransactionRef(userId, symbol, shares, quote.Price)

	if err := commitLedgerEntry(user, transaction, user.Cash.Sub(cost)); err != nil {
		return nil, err
	}

	l.Infof("Bought %d %s @ %s per share. Total cost = %s. New balance: %s", shares, symbol, quote.Price, cost, user.Cash)

	return transaction, nil
}

// Sell sells shares of symbol from the user's holding at the current price.
//
// The method is thread-safe like other exported methods of this package.
// The holding check and the ledger insert happen under the same user lock.
//
// Possible outcomes:
//  1. The sale is recorded and the ledger entry is returned
//  2. MissingFieldError, InvalidSharesError, SymbolNotOwnedError, TooManySharesError or InvalidSymbolError is returned
//  3. quotes.UnavailableError is returned if the price couldn't be looked up
//  4. Other error is returned (e.g. if the database is unreachable)
func Sell(ctx context.Context, userId uint32, symbol string, shares int64) (*Transaction, error) {
	symbol = quotes.NormalizeSymbol(symbol)

	var l = logger.WithFields(logrus.Fields{
		"method":       "Sell",
		"param_userId": userId,
		"param_symbol": symbol,
		"param_shares": shares,
	})

	l.Infof("Sell requested")

	if symbol == "" {
		return nil, MissingFieldError{Field: "symbol"}
	}
	if shares < 1 {
		return nil, InvalidSharesError{}
	}

	l.Debugf("Acquiring exclusive write on user")
	ch, user, err := getUserExclusively(userId)
	if err != nil {
		l.Errorf("Errored: %+v", err)
		return nil, err
	}
	l.Debugf("Acquired")
	defer func() {
		close(ch)
		l.Debugf("Released exclusive write on user")
	}()

	held, err := getSingleStockCount(getDB(), userId, symbol)
	if err != nil {
		return nil, err
	}

	if held <= 0 {
		l.Debugf("User holds no %s", symbol)
		return nil, SymbolNotOwnedError{Symbol: symbol}
	}
	if shares > held {
		l.Debugf("User holds %d, wants to sell %d", held, shares)
		return nil, TooManySharesError{Held: held}
	}

	quote, err := lookupPrice(ctx, symbol)
	if err != nil {
		l.Debugf("Price lookup failed: %+v", err)
		return nil, err
	}

	proceeds := quote.Price.Mul(decimal.NewFromInt(shares))
	transaction := makeTransactionRef(userId, symbol, -shares, quote.Price)

	if err := commitLedgerEntry(user, transaction, user.Cash.Add(proceeds)); err != nil {
		return nil, err
	}

	l.Infof("Sold %d %s @ %s per share. Total = %s. New balance: %s", shares, symbol, quote.Price, proceeds, user.Cash)

	return transaction, nil
}
