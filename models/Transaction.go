package models

import (
	"fmt"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/delta/finance-server/utils"
)

// Transaction is one ledger entry. Shares is positive for a purchase and
// negative for a sale. Entries are never updated or deleted.
type Transaction struct {
	Id     uint32          `gorm:"primary_key;AUTO_INCREMENT" json:"id"`
	Symbol string          `gorm:"column:symbol;not null" json:"symbol"`
	Shares int64           `gorm:"column:shares;not null" json:"shares"`
	Price  decimal.Decimal `gorm:"column:price;type:decimal(20,4);not null" json:"price"`
	Time   time.Time       `gorm:"column:time;not null" json:"time"`
	UserId uint32          `gorm:"column:user_id;not null;index" json:"user_id"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// IsBuy tells whether the entry records a purchase
func (t *Transaction) IsBuy() bool {
	return t.Shares > 0
}

// Total is the cash that changed hands, always positive
func (t *Transaction) Total() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(utils.AbsInt64(t.Shares)))
}

func makeTransactionRef(userId uint32, symbol string, shares int64, price decimal.Decimal) *Transaction {
	return &Transaction{
		UserId: userId,
		Symbol: symbol,
		Shares: shares,
		Price:  price,
		Time:   utils.GetCurrentTime(),
	}
}

// insertTransaction appends an entry to the ledger
func insertTransaction(tx *gorm.DB, transaction *Transaction) error {
	if transaction.Id != 0 {
		return fmt.Errorf("ledger entry %d already exists", transaction.Id)
	}
	return tx.Create(transaction).Error
}

// getSingleStockCount returns the net shares a user holds of a symbol.
// This method is *not* thread-safe.
// The caller is responsible for holding the user's lock.
func getSingleStockCount(db *gorm.DB, userId uint32, symbol string) (int64, error) {
	var l = logger.WithFields(logrus.Fields{
		"method":       "getSingleStockCount",
		"param_userId": userId,
		"param_symbol": symbol,
	})

	l.Debugf("Attempting")

	var stockCount = struct{ Sc int64 }{0}
	sql := "SELECT COALESCE(SUM(shares), 0) AS sc FROM transactions WHERE user_id = ? AND symbol = ?"
	if err := db.Raw(sql, userId, symbol).Scan(&stockCount).Error; err != nil {
		l.Error(err)
		return 0, err
	}

	l.Debugf("Got %d", stockCount.Sc)

	return stockCount.Sc, nil
}

// GetStocksOwned returns the active holdings of a user: symbol to net shares,
// for every symbol where the net is positive.
func GetStocksOwned(userId uint32) (map[string]int64, error) {
	var l = logger.WithFields(logrus.Fields{
		"method":       "GetStocksOwned",
		"param_userId": userId,
	})

	l.Info("GetStocksOwned requested")

	db := getDB()

	sql := "SELECT symbol, SUM(shares) AS shares FROM transactions WHERE user_id = ? GROUP BY symbol HAVING SUM(shares) > 0"
	rows, err := db.Raw(sql, userId).Rows()
	if err != nil {
		l.Error(err)
		return nil, err
	}
	defer rows.Close()

	stocksOwned := make(map[string]int64)
	for rows.Next() {
		var symbol string
		var shares int64
		if err := rows.Scan(&symbol, &shares); err != nil {
			l.Error(err)
			return nil, err
		}
		stocksOwned[symbol] = shares
	}

	if err := rows.Err(); err != nil {
		l.Error(err)
		return nil, err
	}

	return stocksOwned, nil
}

// GetHistory returns every ledger entry of the user, oldest first
func GetHistory(userId uint32) ([]*Transaction, error) {
	var l = logger.WithFields(logrus.Fields{
		"method":       "GetHistory",
		"param_userId": userId,
	})

	l.Info("GetHistory requested")

	return findHistory(getDB(), userId)
}

func findHistory(db *gorm.DB, userId uint32) ([]*Transaction, error) {
	var l = logger.WithFields(logrus.Fields{
		"method":       "findHistory",
		"param_userId": userId,
	})

	var transactions []*Transaction
	if err := db.Where("user_id = ?", userId).Order("id").Find(&transactions).Error; err != nil {
		l.Error(err)
		return nil, err
	}

	l.Debugf("Found %d transactions", len(transactions))

	return transactions, nil
}
