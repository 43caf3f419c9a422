package httpapi

import (
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/delta/finance-server/models"
	"github.com/delta/finance-server/quotes"
	"github.com/delta/finance-server/templates"
)

// render writes a page with the queued flash messages
func render(w http.ResponseWriter, r *http.Request, name string, data interface{}) {
	_, loggedIn := userIdFromContext(r.Context())

	page := templates.Page{
		LoggedIn: loggedIn,
		Flashes:  popFlashes(r),
		Data:     data,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Render(w, name, page); err != nil {
		apology(w, r, err)
	}
}

func redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusFound)
}

// mustUserId is only called behind loginRequired
func mustUserId(r *http.Request) uint32 {
	userId, _ := userIdFromContext(r.Context())
	return userId
}

//
// Portfolio
//

func handleIndex(w http.ResponseWriter, r *http.Request) {
	portfolio, err := models.GetPortfolio(r.Context(), mustUserId(r))
	if err != nil {
		apology(w, r, err)
		return
	}
	render(w, r, templates.Index, portfolio)
}

// handleIndexAction forwards the buy/sell buttons of the portfolio table
func handleIndexAction(w http.ResponseWriter, r *http.Request) {
	form := parseActionForm(r)

	q := url.Values{}
	q.Set("symbol", form.Symbol)

	switch form.Action {
	case "Buy now":
		redirect(w, r, "/buy?"+q.Encode())
	case "Sell now":
		redirect(w, r, "/sell?"+q.Encode())
	default:
		apology(w, r, InvalidActionError)
	}
}

//
// Trading
//

func handleBuyForm(w http.ResponseWriter, r *http.Request) {
	data := struct{ Symbol string }{quotes.NormalizeSymbol(r.URL.Query().Get("symbol"))}
	render(w, r, templates.Buy, data)
}

func handleBuy(w http.ResponseWriter, r *http.Request) {
	form := parseTradeForm(r)

	if form.Symbol == "" {
		apology(w, r, models.MissingFieldError{Field: "symbol"})
		return
	}

	shares, err := models.ParseShares(form.Shares)
	if err != nil {
		apology(w, r, err)
		return
	}

	transaction, err := models.Buy(r.Context(), mustUserId(r), form.Symbol, shares)
	if err != nil {
		apology(w, r, err)
		return
	}

	flash(w, r, "You have bought %d share(s) of %s for %s per share!",
		transaction.Shares, transaction.Symbol, templates.USD(transaction.Price))
	redirect(w, r, "/")
}

type ownedRow struct {
	Symbol string
	Shares int64
}

func handleSellForm(w http.ResponseWriter, r *http.Request) {
	owned, err := models.GetStocksOwned(mustUserId(r))
	if err != nil {
		apology(w, r, err)
		return
	}

	rows := make([]ownedRow, 0, len(owned))
	for symbol, shares := range owned {
		rows = append(rows, ownedRow{symbol, shares})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })

	data := struct {
		Symbol string
		Owned  []ownedRow
	}{quotes.NormalizeSymbol(r.URL.Query().Get("symbol")), rows}

	render(w, r, templates.Sell, data)
}

func handleSell(w http.ResponseWriter, r *http.Request) {
	form := parseTradeForm(r)

	if form.Symbol == "" {
		apology(w, r, models.MissingFieldError{Field: "symbol"})
		return
	}

	shares, err := models.ParseShares(form.Shares)
	if err != nil {
		apology(w, r, err)
		return
	}

	transaction, err := models.Sell(r.Context(), mustUserId(r), form.Symbol, shares)
	if err != nil {
		apology(w, r, err)
		return
	}

	flash(w, r, "You have sold %d share(s) of %s for %s per share!",
		-transaction.Shares, transaction.Symbol, templates.USD(transaction.Price))
	redirect(w, r, "/")
}

//
// Quotes
//

func handleQuoteForm(w http.ResponseWriter, r *http.Request) {
	render(w, r, templates.Quote, nil)
}

func handleQuote(w http.ResponseWriter, r *http.Request) {
	form := parseQuoteForm(r)

	quote, err := models.Quote(r.Context(), form.Symbol)
	if err != nil {
		apology(w, r, err)
		return
	}

	q := url.Values{}
	q.Set("symbol", quote.Symbol)
	redirect(w, r, "/quoted?"+q.Encode())
}

func handleQuoted(w http.ResponseWriter, r *http.Request) {
	userId := mustUserId(r)

	quote, err := models.Quote(r.Context(), r.URL.Query().Get("symbol"))
	if err != nil {
		apology(w, r, err)
		return
	}

	user, err := models.GetUserCopy(userId)
	if err != nil {
		apology(w, r, err)
		return
	}

	owned, err := models.GetStocksOwned(userId)
	if err != nil {
		apology(w, r, err)
		return
	}

	data := struct {
		Quote *quotes.Quote
		Cash  decimal.Decimal
		Owned int64
	}{quote, user.Cash, owned[quote.Symbol]}

	render(w, r, templates.Quoted, data)
}

func handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := models.GetHistory(mustUserId(r))
	if err != nil {
		apology(w, r, err)
		return
	}
	render(w, r, templates.History, history)
}

//
// Account
//

func handleLoginForm(w http.ResponseWriter, r *http.Request) {
	endSession(w, r)
	render(w, r, templates.Login, nil)
}

func handleLogin(w http.ResponseWriter, r *http.Request) {
	endSession(w, r)

	form := parseLoginForm(r)

	user, err := models.Login(form.Username, form.Password)
	if err != nil {
		if _, ok := err.(models.MissingFieldError); ok {
			apologyStatus(w, r, err.Error(), http.StatusForbidden)
			return
		}
		apology(w, r, err)
		return
	}

	if err := logIn(w, r, user); err != nil {
		apology(w, r, err)
		return
	}

	redirect(w, r, "/")
}

func handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	render(w, r, templates.Register, nil)
}

func handleRegister(w http.ResponseWriter, r *http.Request) {
	form := parseRegisterForm(r)

	user, err := models.RegisterUser(form.Username, form.Password, form.Confirmation)
	if err != nil {
		apology(w, r, err)
		return
	}

	if err := logIn(w, r, user); err != nil {
		apology(w, r, err)
		return
	}

	redirect(w, r, "/")
}

// logIn starts a fresh session for user
func logIn(w http.ResponseWriter, r *http.Request, user *models.User) error {
	sess, err := startSession(w, r)
	if err != nil {
		return err
	}
	if err := sess.Set("UserId", strconv.FormatUint(uint64(user.Id), 10)); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"method":     "logIn",
		"param_user": user.Id,
	}).Debugf("Session successfully set. Session id: %s", sess.GetID())

	return nil
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	endSession(w, r)
	redirect(w, r, "/")
}

func handleMyProfile(w http.ResponseWriter, r *http.Request) {
	user, err := models.GetUserCopy(mustUserId(r))
	if err != nil {
		apology(w, r, err)
		return
	}
	render(w, r, templates.MyProfile, user)
}

func handleMyProfileAction(w http.ResponseWriter, r *http.Request) {
	userId := mustUserId(r)
	form := parseProfileForm(r)

	switch form.Action {
	case "Top Up":
		amount, err := models.ParseTopUp(form.TopUp)
		if err != nil {
			apology(w, r, err)
			return
		}
		if _, err := models.TopUp(userId, amount); err != nil {
			apology(w, r, err)
			return
		}
		flash(w, r, "You have successfully added %s to your cash balance!", templates.USD(decimal.NewFromInt(amount)))

	case "Change Password":
		if err := models.ChangePassword(userId, form.Password, form.Confirmation); err != nil {
			apology(w, r, err)
			return
		}
		flash(w, r, "You have updated your password successfully!")

	default:
		apology(w, r, InvalidActionError)
		return
	}

	redirect(w, r, "/myprofile")
}
