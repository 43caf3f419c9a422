package quotes

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/delta/finance-server/utils/test"
)

const testBaseURL = "https://iex.test/stable"

func getMockedClient(t *testing.T, retries int) *IEXClient {
	c := NewIEXClient(testBaseURL+"/", "pk_test", time.Second, retries)
	c.client.RetryWaitMin = time.Millisecond
	c.client.RetryWaitMax = time.Millisecond

	httpmock.ActivateNonDefault(c.client.HTTPClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	return c
}

func TestIEXLookup(t *testing.T) {
	c := getMockedClient(t, 0)

	httpmock.RegisterResponder("GET", testBaseURL+"/stock/AAPL/quote",
		httpmock.NewStringResponder(200, `{"symbol":"AAPL","companyName":"Apple Inc.","latestPrice":150.25}`))

	q, err := c.Lookup(context.Background(), " aapl ")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", q.Symbol)
	assert.Equal(t, "Apple Inc.", q.Name)
	assert.True(t, decimal.RequireFromString("150.25").Equal(q.Price), "price = %s", q.Price)

	info := httpmock.GetCallCountInfo()
	assert.Equal(t, 1, info["GET "+testBaseURL+"/stock/AAPL/quote"])
}

func TestIEXLookupUnknownSymbol(t *testing.T) {
	c := getMockedClient(t, 2)

	httpmock.RegisterResponder("GET", testBaseURL+"/stock/NOPE/quote",
		httpmock.NewStringResponder(404, `Unknown symbol`))

	_, err := c.Lookup(context.Background(), "nope")
	assert.Equal(t, NotFoundError, err)
	// 404 is an answer, not a failure
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestIEXLookupNullPrice(t *testing.T) {
	c := getMockedClient(t, 0)

	httpmock.RegisterResponder("GET", testBaseURL+"/stock/ZZZ/quote",
		httpmock.NewStringResponder(200, `{"symbol":"ZZZ","companyName":"","latestPrice":null}`))

	_, err := c.Lookup(context.Background(), "ZZZ")
	assert.Equal(t, NotFoundError, err)
}

func TestIEXLookupEmptySymbol(t *testing.T) {
	c := getMockedClient(t, 0)

	_, err := c.Lookup(context.Background(), "   ")
	assert.Equal(t, NotFoundError, err)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestIEXLookupServerErrorIsRetried(t *testing.T) {
	c := getMockedClient(t, 2)

	httpmock.RegisterResponder("GET", testBaseURL+"/stock/AAPL/quote",
		httpmock.NewStringResponder(503, `try later`))

	_, err := c.Lookup(context.Background(), "AAPL")

	var unavailable UnavailableError
	require.True(t, errors.As(err, &unavailable), "expected UnavailableError, got %+v", err)
	assert.Equal(t, "AAPL", unavailable.Symbol)
	assert.Equal(t, 3, httpmock.GetTotalCallCount())
}

func TestIEXLookupTransportError(t *testing.T) {
	c := getMockedClient(t, 1)

	httpmock.RegisterResponder("GET", testBaseURL+"/stock/AAPL/quote",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := c.Lookup(context.Background(), "AAPL")

	var unavailable UnavailableError
	assert.True(t, errors.As(err, &unavailable), "expected UnavailableError, got %+v", err)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestIEXLookupRecoversAfterRetry(t *testing.T) {
	c := getMockedClient(t, 2)

	calls := 0
	httpmock.RegisterResponder("GET", testBaseURL+"/stock/MSFT/quote",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return httpmock.NewStringResponse(502, "bad gateway"), nil
			}
			return httpmock.NewStringResponse(200, `{"symbol":"MSFT","companyName":"Microsoft Corporation","latestPrice":330.1}`), nil
		})

	q, err := c.Lookup(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("330.1").Equal(q.Price))
	assert.Equal(t, 2, calls)
}

func TestIEXLookupMalformedBody(t *testing.T) {
	c := getMockedClient(t, 0)

	httpmock.RegisterResponder("GET", testBaseURL+"/stock/AAPL/quote",
		httpmock.NewStringResponder(200, `{"symbol":`))

	_, err := c.Lookup(context.Background(), "AAPL")

	var unavailable UnavailableError
	assert.True(t, errors.As(err, &unavailable))
}

func TestIEXLookupNeverLogsToken(t *testing.T) {
	c := getMockedClient(t, 1)

	nullLogger, hook := logtest.NewNullLogger()
	nullLogger.SetLevel(logrus.DebugLevel)
	c.setLogger(nullLogger.WithField("module", "quotes.IEXClient"))

	httpmock.RegisterResponder("GET", testBaseURL+"/stock/AAPL/quote",
		httpmock.NewStringResponder(200, `{"symbol":"AAPL","companyName":"Apple Inc.","latestPrice":150.25}`))
	httpmock.RegisterResponder("GET", testBaseURL+"/stock/MSFT/quote",
		httpmock.NewErrorResponder(errors.New("connection refused")))
	httpmock.RegisterResponder("GET", testBaseURL+"/stock/GOOG/quote",
		httpmock.NewStringResponder(503, `try later`))

	_, err := c.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)

	for _, symbol := range []string{"MSFT", "GOOG"} {
		_, err := c.Lookup(context.Background(), symbol)
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "pk_test", "error for %s", symbol)
	}

	_, err = c.Lookup(context.Background(), "MSFT")
	var unavailable UnavailableError
	assert.True(t, errors.As(err, &unavailable), "redaction keeps the error chain")

	sawRequest := false
	for _, e := range hook.AllEntries() {
		line, err := e.String()
		require.NoError(t, err)
		assert.NotContains(t, line, "pk_test")

		if e.Message == "performing request" {
			sawRequest = true
			assert.Contains(t, e.Data["url"], "token=REDACTED")
		}
	}
	assert.True(t, sawRequest, "requests are logged")
}

func TestStaticOracle(t *testing.T) {
	o := NewStaticOracle(Quote{Symbol: "aapl", Name: "Apple Inc.", Price: decimal.NewFromInt(150)})

	q, err := o.Lookup(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", q.Name)
	assert.True(t, decimal.NewFromInt(150).Equal(q.Price))

	o.SetPrice("aapl", "", decimal.NewFromInt(160))
	q, err = o.Lookup(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", q.Name, "name is kept when not given")
	assert.True(t, decimal.NewFromInt(160).Equal(q.Price))

	o.Remove("AAPL")
	_, err = o.Lookup(context.Background(), "AAPL")
	assert.Equal(t, NotFoundError, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = o.Lookup(ctx, "MSFT")
	var unavailable UnavailableError
	assert.True(t, errors.As(err, &unavailable))
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "BRK.A", NormalizeSymbol("  brk.a\t"))
	assert.Equal(t, "", NormalizeSymbol("   "))
}
