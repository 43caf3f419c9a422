package httpapi

import (
	"net/http"
	"strings"
)

type loginForm struct {
	Username string
	Password string
}

type registerForm struct {
	Username     string
	Password     string
	Confirmation string
}

type tradeForm struct {
	Symbol string
	Shares string
}

type quoteForm struct {
	Symbol string
}

type actionForm struct {
	Action string
	Symbol string
}

type profileForm struct {
	Action       string
	TopUp        string
	Password     string
	Confirmation string
}

// formValue returns the trimmed value of a POST form field
func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.PostFormValue(key))
}

func parseLoginForm(r *http.Request) loginForm {
	return loginForm{
		Username: formValue(r, "username"),
		Password: r.PostFormValue("password"),
	}
}

func parseRegisterForm(r *http.Request) registerForm {
	return registerForm{
		Username:     formValue(r, "username"),
		Password:     r.PostFormValue("password"),
		Confirmation: r.PostFormValue("confirmation"),
	}
}

func parseTradeForm(r *http.Request) tradeForm {
	return tradeForm{
		Symbol: formValue(r, "symbol"),
		Shares: formValue(r, "shares"),
	}
}

func parseQuoteForm(r *http.Request) quoteForm {
	return quoteForm{
		Symbol: formValue(r, "symbol"),
	}
}

func parseActionForm(r *http.Request) actionForm {
	return actionForm{
		Action: formValue(r, "action"),
		Symbol: formValue(r, "symbol"),
	}
}

func parseProfileForm(r *http.Request) profileForm {
	return profileForm{
		Action:       formValue(r, "action"),
		TopUp:        formValue(r, "topup"),
		Password:     r.PostFormValue("password"),
		Confirmation: r.PostFormValue("confirmation"),
	}
}
