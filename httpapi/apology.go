package httpapi

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/delta/finance-server/models"
	"github.com/delta/finance-server/quotes"
	"github.com/delta/finance-server/templates"
)

var InvalidActionError = errors.New("Invalid action")

// statusFor maps an error coming out of models to the status of its apology
// page and the message shown to the user. Unknown errors are internal.
func statusFor(err error) (int, string) {
	switch e := err.(type) {
	case models.MissingFieldError,
		models.InvalidSymbolError,
		models.InvalidSharesError,
		models.NotEnoughCashError,
		models.SymbolNotOwnedError,
		models.TooManySharesError,
		models.TopUpTooSmallError,
		models.InvalidTopUpError:
		return http.StatusBadRequest, e.Error()
	}

	var unavailable quotes.UnavailableError
	if errors.As(err, &unavailable) {
		return http.StatusServiceUnavailable, "Stock prices are unavailable right now. Please try again later"
	}

	switch err {
	case models.AlreadyRegisteredError,
		models.PasswordPolicyError,
		models.PasswordMismatchError,
		InvalidActionError:
		return http.StatusBadRequest, err.Error()
	case models.UnauthorizedError:
		return http.StatusForbidden, err.Error()
	}

	return http.StatusInternalServerError, "Internal server error"
}

// apology renders the apology page for err
func apology(w http.ResponseWriter, r *http.Request, err error) {
	code, message := statusFor(err)
	if code == http.StatusInternalServerError {
		logger.WithFields(logrus.Fields{
			"method": "apology",
			"path":   r.URL.Path,
		}).Errorf("Unexpected error: %+v", err)
	}
	apologyStatus(w, r, message, code)
}

// apologyStatus renders the apology page with the given message and status
func apologyStatus(w http.ResponseWriter, r *http.Request, message string, code int) {
	_, loggedIn := userIdFromContext(r.Context())

	data := struct {
		Code    int
		Message string
	}{code, message}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := templates.Render(w, templates.Apology, templates.Page{LoggedIn: loggedIn, Data: data}); err != nil {
		logger.WithFields(logrus.Fields{
			"method": "apologyStatus",
		}).Errorf("Failed rendering apology: %+v", err)
	}
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	apologyStatus(w, r, "Page not found", http.StatusNotFound)
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	apologyStatus(w, r, "Method not allowed", http.StatusMethodNotAllowed)
}
