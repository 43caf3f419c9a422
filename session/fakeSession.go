package session

import (
	"sync"

	"github.com/google/uuid"
)

// fakeSession is never stored, so Load can't find it. Destroy only clears it.
type fakeSession struct {
	Id    string
	mutex sync.RWMutex
	m     map[string]string
}

// Fake returns a session that lives outside the store. Tests use it to call
// handlers with a prepared session.
func Fake() (Session, error) {
	var sess = &fakeSession{}

	sess.Id = uuid.New().String()
	sess.m = make(map[string]string)

	return sess, nil
}

func (sess *fakeSession) GetID() string {
	return sess.Id
}

func (sess *fakeSession) Get(str string) (string, bool) {
	sess.mutex.RLock()
	value, ok := sess.m[str] // return value if found or ok=false if not found
	sess.mutex.RUnlock()
	return value, ok
}

func (sess *fakeSession) Set(k string, v string) error {
	sess.mutex.Lock()
	sess.m[k] = v
	sess.mutex.Unlock()
	return nil
}

func (sess *fakeSession) Delete(str string) error {
	sess.mutex.Lock()
	delete(sess.m, str)
	sess.mutex.Unlock()
	return nil
}

func (sess *fakeSession) Destroy() error {
	sess.mutex.Lock()
	sess.m = make(map[string]string)
	sess.mutex.Unlock()
	return nil
}
