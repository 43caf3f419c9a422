package httpapi

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/delta/finance-server/session"
	"github.com/delta/finance-server/utils"
)

type contextKey int

const requestStateKey contextKey = iota

// requestState is what loadSession attaches to every request. sess is nil
// until the client has a live session.
type requestState struct {
	sess session.Session
}

func stateFromContext(ctx context.Context) *requestState {
	if st, ok := ctx.Value(requestStateKey).(*requestState); ok {
		return st
	}
	return &requestState{}
}

// withSession returns r carrying sess as its session
func withSession(r *http.Request, sess session.Session) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), requestStateKey, &requestState{sess: sess}))
}

// loadSession looks the session cookie up and attaches the session, if any,
// to the request context. Unknown ids are ignored.
func loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := &requestState{}
		if c, err := r.Cookie(config.SessionCookieName); err == nil {
			if sess, err := session.Load(c.Value); err == nil {
				st.sess = sess
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestStateKey, st)))
	})
}

// getSession returns the request's session, creating one and setting the
// cookie if the client has none.
func getSession(w http.ResponseWriter, r *http.Request) (session.Session, error) {
	st := stateFromContext(r.Context())
	if st.sess != nil {
		return st.sess, nil
	}
	return startSession(w, r)
}

// startSession destroys the request's session, if any, and starts a new one.
// Login and registration use it so that a session id is never reused across
// users.
func startSession(w http.ResponseWriter, r *http.Request) (session.Session, error) {
	st := stateFromContext(r.Context())
	if st.sess != nil {
		st.sess.Destroy()
	}

	sess, err := session.New()
	if err != nil {
		return nil, err
	}
	st.sess = sess

	http.SetCookie(w, &http.Cookie{
		Name:     config.SessionCookieName,
		Value:    sess.GetID(),
		Path:     "/",
		HttpOnly: true,
		Secure:   utils.IsProdEnv(),
		SameSite: http.SameSiteLaxMode,
	})

	return sess, nil
}

// endSession destroys the request's session and expires the cookie
func endSession(w http.ResponseWriter, r *http.Request) {
	st := stateFromContext(r.Context())
	if st.sess != nil {
		st.sess.Destroy()
		st.sess = nil
	}

	http.SetCookie(w, &http.Cookie{
		Name:     config.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// userIdFromContext returns the id of the logged in user
func userIdFromContext(ctx context.Context) (uint32, bool) {
	st := stateFromContext(ctx)
	if st.sess == nil {
		return 0, false
	}
	v, ok := st.sess.Get("UserId")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(id), true
}

// loginRequired redirects clients without an authenticated session to /login
func loginRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userIdFromContext(r.Context()); !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// noCache keeps browsers from caching pages that show account data
func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		h.Set("Expires", "0")
		h.Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}

// requestLogFormatter plugs logrus into chi's request logger. Recoverer
// reports panics through the same entries.
type requestLogFormatter struct{}

type requestLogEntry struct {
	l *logrus.Entry
}

func (requestLogFormatter) NewLogEntry(r *http.Request) chimw.LogEntry {
	return &requestLogEntry{
		l: logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}),
	}
}

func (e *requestLogEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	e.l.WithFields(logrus.Fields{
		"status":   status,
		"bytes":    bytes,
		"duration": elapsed.String(),
	}).Info("Served request")
}

func (e *requestLogEntry) Panic(v interface{}, stack []byte) {
	e.l.Errorf("Panic: %+v\n%s", v, stack)
}

// ipRateLimiter hands out one token bucket per client IP. Buckets live in an
// LRU cache so that the number of tracked clients stays bounded.
type ipRateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *lru.Cache
}

const maxTrackedClients = 10000

var loginLimiter *ipRateLimiter

func newIPRateLimiter(perMinute int) (*ipRateLimiter, error) {
	if perMinute <= 0 {
		perMinute = 10
	}
	cache, err := lru.New(maxTrackedClients)
	if err != nil {
		return nil, err
	}
	return &ipRateLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		limiters: cache,
	}, nil
}

func (l *ipRateLimiter) get(ip string) *rate.Limiter {
	if v, ok := l.limiters.Get(ip); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(l.limit, l.burst)
	// another request from the same ip may have raced us here
	if prev, ok, _ := l.limiters.PeekOrAdd(ip, limiter); ok {
		return prev.(*rate.Limiter)
	}
	return limiter
}

// Allow reports whether a request from ip may proceed now
func (l *ipRateLimiter) Allow(ip string) bool {
	return l.get(ip).Allow()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// rateLimited rejects clients that exceed the login attempt rate
func rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !loginLimiter.Allow(ip) {
			logger.WithFields(logrus.Fields{
				"method": "rateLimited",
				"ip":     ip,
			}).Warnf("Too many attempts")
			apologyStatus(w, r, "Too many attempts, try again in a minute", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
