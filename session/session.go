// Package session keeps server side sessions in a bounded in-memory LRU
// cache. A session is a small string map addressed by an opaque id that the
// web layer stores in a cookie.
package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/delta/finance-server/utils"
)

// NotFoundError is returned by Load when the id doesn't name a live session
var NotFoundError = errors.New("Session not found")

// Session is a per-client key value store
type Session interface {
	GetID() string
	Get(string) (string, bool)
	Set(string, string) error
	Delete(string) error
	Destroy() error
}

var logger *logrus.Entry

var store *lru.Cache

// Init creates the session store. Once more than config.SessionCacheSize
// sessions exist, the least recently used one is evicted.
func Init(config *utils.Config) error {
	logger = utils.Logger.WithFields(logrus.Fields{
		"module": "session",
	})

	size := config.SessionCacheSize
	if size <= 0 {
		size = 1000
	}

	cache, err := lru.NewWithEvict(size, func(key interface{}, _ interface{}) {
		logger.Debugf("Evicted session %s", key)
	})
	if err != nil {
		return err
	}
	store = cache

	return nil
}

type session struct {
	id    string
	mutex sync.RWMutex
	m     map[string]string
}

func newSession() *session {
	return &session{
		id: uuid.New().String(),
		m:  make(map[string]string),
	}
}

// New creates an empty session and registers it in the store
func New() (Session, error) {
	sess := newSession()
	store.Add(sess.id, sess)

	logger.WithFields(logrus.Fields{
		"method": "New",
	}).Debugf("Created session %s", sess.id)

	return sess, nil
}

// Load returns the live session with the given id
func Load(id string) (Session, error) {
	if id == "" {
		return nil, NotFoundError
	}
	v, ok := store.Get(id)
	if !ok {
		return nil, NotFoundError
	}
	return v.(*session), nil
}

// Count is the number of live sessions
func Count() int {
	return store.Len()
}

func (sess *session) GetID() string {
	return sess.id
}

func (sess *session) Get(k string) (string, bool) {
	sess.mutex.RLock()
	value, ok := sess.m[k]
	sess.mutex.RUnlock()
	return value, ok
}

func (sess *session) Set(k string, v string) error {
	sess.mutex.Lock()
	sess.m[k] = v
	sess.mutex.Unlock()
	return nil
}

func (sess *session) Delete(k string) error {
	sess.mutex.Lock()
	delete(sess.m, k)
	sess.mutex.Unlock()
	return nil
}

// Destroy forgets every key and removes the session from the store, so its
// id can't be loaded again.
func (sess *session) Destroy() error {
	sess.mutex.Lock()
	sess.m = make(map[string]string)
	sess.mutex.Unlock()

	store.Remove(sess.id)
	return nil
}
