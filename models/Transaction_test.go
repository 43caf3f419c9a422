package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionTotal(t *testing.T) {
	buy := makeTransactionRef(1, "AAPL", 3, dec("10.25"))
	sell := makeTransactionRef(1, "AAPL", -3, dec("10.25"))

	assert.True(t, buy.IsBuy())
	assert.False(t, sell.IsBuy())
	assert.True(t, buy.Total().Equal(dec("30.75")))
	assert.True(t, sell.Total().Equal(dec("30.75")))
	assert.False(t, buy.Time.IsZero())
}

func TestInsertTransaction_Twice(t *testing.T) {
	setupDB(t)
	u := makeUser(t, "alice")

	tr := makeTransactionRef(u.Id, "AAPL", 1, dec("1"))
	require.NoError(t, insertTransaction(getDB(), tr))
	assert.Error(t, insertTransaction(getDB(), tr), "ledger entries are append only")
}

func TestGetHistory(t *testing.T) {
	setupDB(t)
	alice := makeUser(t, "alice")
	bob := makeUser(t, "bob")
	ctx := context.Background()

	_, err := Buy(ctx, alice.Id, "AAPL", 2)
	require.NoError(t, err)
	_, err = Buy(ctx, bob.Id, "MSFT", 1)
	require.NoError(t, err)
	_, err = Sell(ctx, alice.Id, "AAPL", 1)
	require.NoError(t, err)
	_, err = Buy(ctx, alice.Id, "NFLX", 1)
	require.NoError(t, err)

	history, err := GetHistory(alice.Id)
	require.NoError(t, err)
	require.Len(t, history, 3)

	symbols := []string{history[0].Symbol, history[1].Symbol, history[2].Symbol}
	assert.Equal(t, []string{"AAPL", "AAPL", "NFLX"}, symbols)
	assert.Equal(t, []int64{2, -1, 1}, []int64{history[0].Shares, history[1].Shares, history[2].Shares})
	for _, tr := range history {
		assert.Equal(t, alice.Id, tr.UserId)
	}

	count, err := getSingleStockCount(getDB(), alice.Id, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = getSingleStockCount(getDB(), alice.Id, "MSFT")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	owned, err := GetStocksOwned(bob.Id)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"MSFT": 1}, owned)
}
