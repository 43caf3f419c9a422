// Package httpapi is the web layer of the server. It maps HTTP routes to the
// models package and renders the results with the templates package.
package httpapi

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/delta/finance-server/utils"
)

var config *utils.Config

var logger *logrus.Entry

// Router serves every route of the site. It is set by Init.
var Router *mux.Router

// Init configures the httpapi package and builds Router
func Init(conf *utils.Config) error {
	config = conf
	logger = utils.Logger.WithFields(logrus.Fields{
		"module": "httpapi",
	})

	limiter, err := newIPRateLimiter(conf.LoginRatePerMinute)
	if err != nil {
		return err
	}
	loginLimiter = limiter

	Router = newRouter()

	return nil
}

// middlewares run on every matched route, outermost first
var middlewares = []mux.MiddlewareFunc{
	chimw.RequestLogger(requestLogFormatter{}),
	chimw.Recoverer,
	noCache,
	loadSession,
}

func newRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(middlewares...)

	get := func(path string, h http.HandlerFunc) {
		r.Handle(path, loginRequired(h)).Methods(http.MethodGet)
	}
	post := func(path string, h http.HandlerFunc) {
		r.Handle(path, loginRequired(h)).Methods(http.MethodPost)
	}

	get("/", handleIndex)
	post("/", handleIndexAction)
	get("/buy", handleBuyForm)
	post("/buy", handleBuy)
	get("/sell", handleSellForm)
	post("/sell", handleSell)
	get("/quote", handleQuoteForm)
	post("/quote", handleQuote)
	get("/quoted", handleQuoted)
	get("/history", handleHistory)
	get("/myprofile", handleMyProfile)
	post("/myprofile", handleMyProfileAction)

	r.HandleFunc("/login", handleLoginForm).Methods(http.MethodGet)
	r.Handle("/login", rateLimited(http.HandlerFunc(handleLogin))).Methods(http.MethodPost)
	r.HandleFunc("/register", handleRegisterForm).Methods(http.MethodGet)
	r.Handle("/register", rateLimited(http.HandlerFunc(handleRegister))).Methods(http.MethodPost)
	r.HandleFunc("/logout", handleLogout).Methods(http.MethodGet)

	// router middlewares only run on matched routes
	r.NotFoundHandler = noCache(loadSession(http.HandlerFunc(handleNotFound)))
	r.MethodNotAllowedHandler = noCache(loadSession(http.HandlerFunc(handleMethodNotAllowed)))

	return r
}
