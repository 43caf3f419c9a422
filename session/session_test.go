package session

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delta/finance-server/utils"
	_ "github.com/delta/finance-server/utils/test"
)

func TestMain(m *testing.M) {
	conf := *utils.GetConfiguration()
	conf.SessionCacheSize = 3
	if err := Init(&conf); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestNewAndLoad(t *testing.T) {
	sess, err := New()
	require.NoError(t, err)
	require.NotEmpty(t, sess.GetID())

	require.NoError(t, sess.Set("UserId", "42"))

	loaded, err := Load(sess.GetID())
	require.NoError(t, err)
	v, ok := loaded.Get("UserId")
	assert.True(t, ok)
	assert.Equal(t, "42", v)

	require.NoError(t, loaded.Delete("UserId"))
	_, ok = sess.Get("UserId")
	assert.False(t, ok)
}

func TestLoad_Unknown(t *testing.T) {
	_, err := Load("")
	assert.Equal(t, NotFoundError, err)

	_, err = Load("no-such-session")
	assert.Equal(t, NotFoundError, err)
}

func TestDestroy(t *testing.T) {
	sess, err := New()
	require.NoError(t, err)
	sess.Set("UserId", "1")

	require.NoError(t, sess.Destroy())

	_, ok := sess.Get("UserId")
	assert.False(t, ok)

	_, err = Load(sess.GetID())
	assert.Equal(t, NotFoundError, err)
}

func TestEviction(t *testing.T) {
	first, err := New()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := New()
		require.NoError(t, err)
	}

	assert.Equal(t, 3, Count())

	_, err = Load(first.GetID())
	assert.Equal(t, NotFoundError, err, "least recently used session should have been evicted")
}

func TestFake(t *testing.T) {
	sess, err := Fake()
	require.NoError(t, err)

	sess.Set("UserId", "7")
	v, _ := sess.Get("UserId")
	assert.Equal(t, "7", v)

	_, err = Load(sess.GetID())
	assert.Equal(t, NotFoundError, err, "fake sessions are not stored")

	sess.Destroy()
	_, ok := sess.Get("UserId")
	assert.False(t, ok)
}

func TestIdsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		sess, err := Fake()
		require.NoError(t, err)
		assert.False(t, seen[sess.GetID()])
		seen[sess.GetID()] = true
	}
}
