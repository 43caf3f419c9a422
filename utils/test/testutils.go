// Package testutils holds helpers shared by the tests of the other packages.
// Importing it configures utils with the compiled in test configuration.
package testutils

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"

	"github.com/delta/finance-server/utils"
)

func init() {
	utils.Init(utils.GetConfiguration())
}

// FreshDB drops the shared database handle so that the next utils.GetDB()
// starts from an empty in-memory database. The handle is closed again when
// the test finishes.
func FreshDB(t *testing.T) {
	t.Helper()
	if err := utils.CloseDB(); err != nil {
		t.Fatalf("Failed closing database: %+v", err)
	}
	t.Cleanup(func() { utils.CloseDB() })
}

// AreEqualJSON compares two JSON documents ignoring formatting and key order
func AreEqualJSON(s1, s2 string) (bool, error) {
	var o1 interface{}
	var o2 interface{}

	var err error
	err = json.Unmarshal([]byte(s1), &o1)
	if err != nil {
		return false, fmt.Errorf("Error mashalling string 1 :: %s", err.Error())
	}
	err = json.Unmarshal([]byte(s2), &o2)
	if err != nil {
		return false, fmt.Errorf("Error mashalling string 2 :: %s", err.Error())
	}

	return reflect.DeepEqual(o1, o2), nil
}

// AssertEqual reports whether o1 and o2 marshal to the same JSON
func AssertEqual(t *testing.T, o1, o2 interface{}) bool {
	t.Helper()
	json1, _ := json.Marshal(o1)
	json2, _ := json.Marshal(o2)

	equal, err := AreEqualJSON(string(json1), string(json2))
	if err != nil {
		t.Errorf("Failed comparing %+v and %+v: %s", o1, o2, err)
		return false
	}

	return equal
}
