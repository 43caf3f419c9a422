package models

import (
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/delta/finance-server/quotes"
	"github.com/delta/finance-server/utils"
	testutils "github.com/delta/finance-server/utils/test"
)

var testOracle *quotes.StaticOracle

func TestMain(m *testing.M) {
	conf := utils.GetConfiguration()
	utils.Init(conf)

	testOracle = quotes.DefaultStaticOracle()
	Init(conf, testOracle)

	bcryptCost = bcrypt.MinCost

	os.Exit(m.Run())
}

// setupDB gives the test an empty, migrated database and a fresh price table
func setupDB(t *testing.T) {
	t.Helper()
	testutils.FreshDB(t)
	if err := Migrate(); err != nil {
		t.Fatalf("Migrate failed: %+v", err)
	}

	testOracle = quotes.DefaultStaticOracle()
	priceOracle = testOracle
}

func makeUser(t *testing.T, username string) *User {
	t.Helper()
	u, err := RegisterUser(username, "password1", "password1")
	if err != nil {
		t.Fatalf("RegisterUser(%q) failed: %+v", username, err)
	}
	return u
}

func mustCash(t *testing.T, userId uint32) decimal.Decimal {
	t.Helper()
	u, err := GetUserCopy(userId)
	if err != nil {
		t.Fatalf("GetUserCopy(%d) failed: %+v", userId, err)
	}
	return u.Cash
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
