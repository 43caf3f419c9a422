package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

const flashKey = "flashes"

// flash queues a message to be shown on the next rendered page
func flash(w http.ResponseWriter, r *http.Request, format string, args ...interface{}) {
	sess, err := getSession(w, r)
	if err != nil {
		logger.Errorf("Couldn't get session for flash: %+v", err)
		return
	}

	var flashes []string
	if v, ok := sess.Get(flashKey); ok {
		if err := json.Unmarshal([]byte(v), &flashes); err != nil {
			logger.Errorf("Dropping malformed flashes %q: %+v", v, err)
			flashes = nil
		}
	}
	flashes = append(flashes, fmt.Sprintf(format, args...))

	b, err := json.Marshal(flashes)
	if err != nil {
		logger.Errorf("Failed encoding flashes: %+v", err)
		return
	}
	if err := sess.Set(flashKey, string(b)); err != nil {
		logger.Errorf("Failed storing flashes: %+v", err)
	}
}

// popFlashes returns and forgets the queued messages
func popFlashes(r *http.Request) []string {
	st := stateFromContext(r.Context())
	if st.sess == nil {
		return nil
	}

	v, ok := st.sess.Get(flashKey)
	if !ok {
		return nil
	}
	st.sess.Delete(flashKey)

	var flashes []string
	if err := json.Unmarshal([]byte(v), &flashes); err != nil {
		logger.Errorf("Dropping malformed flashes %q: %+v", v, err)
		return nil
	}
	return flashes
}
