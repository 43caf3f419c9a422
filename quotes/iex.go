package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/delta/finance-server/utils"
)

// iexQuote is the subset of the IEX /stock/{symbol}/quote response we use
type iexQuote struct {
	Symbol      string           `json:"symbol"`
	CompanyName string           `json:"companyName"`
	LatestPrice *decimal.Decimal `json:"latestPrice"`
}

// redactor hides the API token in anything that is logged or returned
type redactor struct {
	secrets []string
}

func newRedactor(token string) redactor {
	if token == "" {
		return redactor{}
	}
	return redactor{secrets: []string{url.QueryEscape(token), token}}
}

func (r redactor) String(s string) string {
	for _, secret := range r.secrets {
		s = strings.ReplaceAll(s, secret, "REDACTED")
	}
	return s
}

// Error keeps err's chain for errors.Is and errors.As but prints it redacted
func (r redactor) Error(err error) error {
	if err == nil || len(r.secrets) == 0 {
		return err
	}
	return redactedError{msg: r.String(err.Error()), err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e redactedError) Error() string { return e.msg }
func (e redactedError) Unwrap() error { return e.err }

// retryLogger adapts logrus to retryablehttp.LeveledLogger. Request URLs
// carry the token, so every value goes through the redactor.
type retryLogger struct {
	l      *logrus.Entry
	redact redactor
}

func (r retryLogger) entry(keysAndValues []interface{}) *logrus.Entry {
	fields := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		fields[key] = r.redact.String(fmt.Sprint(keysAndValues[i+1]))
	}
	return r.l.WithFields(fields)
}

func (r retryLogger) Error(msg string, keysAndValues ...interface{}) {
	r.entry(keysAndValues).Error(r.redact.String(msg))
}

func (r retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	r.entry(keysAndValues).Warn(r.redact.String(msg))
}

func (r retryLogger) Info(msg string, keysAndValues ...interface{}) {
	r.entry(keysAndValues).Info(r.redact.String(msg))
}

func (r retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	r.entry(keysAndValues).Debug(r.redact.String(msg))
}

// IEXClient looks prices up on an IEX Cloud compatible HTTP API
type IEXClient struct {
	logger  *logrus.Entry
	redact  redactor
	baseURL string
	token   string
	timeout time.Duration
	client  *retryablehttp.Client
}

// NewIEXClient returns a client for the API at baseURL
// (e.g. https://cloud.iexapis.com/stable). Each Lookup, retries included,
// is bounded by timeout. Transport errors and 5xx answers are retried up to
// retries times.
func NewIEXClient(baseURL, token string, timeout time.Duration, retries int) *IEXClient {
	client := retryablehttp.NewClient()
	client.RetryMax = retries
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second

	c := &IEXClient{
		redact:  newRedactor(token),
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
		client:  client,
	}
	c.setLogger(utils.Logger.WithFields(logrus.Fields{
		"module": "quotes.IEXClient",
	}))

	return c
}

func (c *IEXClient) setLogger(l *logrus.Entry) {
	c.logger = l
	c.client.Logger = retryLogger{l: l, redact: c.redact}
}

func (c *IEXClient) Lookup(ctx context.Context, symbol string) (*Quote, error) {
	symbol = NormalizeSymbol(symbol)

	var l = c.logger.WithFields(logrus.Fields{
		"method":       "Lookup",
		"param_symbol": symbol,
	})

	l.Debugf("Attempting")

	if symbol == "" {
		return nil, NotFoundError
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	addr := fmt.Sprintf("%s/stock/%s/quote?token=%s", c.baseURL, url.PathEscape(symbol), url.QueryEscape(c.token))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, UnavailableError{Symbol: symbol, Err: c.redact.Error(err)}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		err = c.redact.Error(err)
		l.Errorf("Request failed: %+v", err)
		return nil, UnavailableError{Symbol: symbol, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		l.Debugf("Unknown symbol")
		return nil, NotFoundError
	case resp.StatusCode != http.StatusOK:
		l.Errorf("Unexpected status %s", resp.Status)
		return nil, UnavailableError{Symbol: symbol, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	var q iexQuote
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		l.Errorf("Failed decoding response: %+v", err)
		return nil, UnavailableError{Symbol: symbol, Err: err}
	}

	if q.LatestPrice == nil || q.Symbol == "" {
		l.Debugf("Response has no price")
		return nil, NotFoundError
	}

	quote := &Quote{
		Symbol: NormalizeSymbol(q.Symbol),
		Name:   q.CompanyName,
		Price:  *q.LatestPrice,
	}

	l.Debugf("Got %s at %s", quote.Symbol, quote.Price)

	return quote, nil
}
