// Package templates renders the HTML pages of the server. Pages are
// embedded in the binary; each one is parsed together with the shared
// layout.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/delta/finance-server/utils"
)

//go:embed html/*.html
var embedded embed.FS

// Page names accepted by Render
const (
	Index     = "index"
	Buy       = "buy"
	Sell      = "sell"
	Quote     = "quote"
	Quoted    = "quoted"
	History   = "history"
	Login     = "login"
	Register  = "register"
	MyProfile = "myprofile"
	Apology   = "apology"
)

var pageNames = []string{Index, Buy, Sell, Quote, Quoted, History, Login, Register, MyProfile, Apology}

// Page is what every template gets as its root object
type Page struct {
	LoggedIn bool
	Flashes  []string
	Data     interface{}
}

var logger *logrus.Entry

var pages = struct {
	sync.RWMutex
	debug bool
	fsys  fs.FS
	m     map[string]*template.Template
}{}

// Init parses all pages. With config.TemplatesDebug set, pages are read
// from ./templates/html on disk and reparsed on every render.
func Init(config *utils.Config) error {
	logger = utils.Logger.WithFields(logrus.Fields{
		"module": "templates",
	})

	pages.Lock()
	defer pages.Unlock()

	pages.debug = config.TemplatesDebug
	pages.fsys = embedded
	if pages.debug {
		pages.fsys = os.DirFS("templates")
	}

	m, err := parseAll(pages.fsys)
	if err != nil {
		return err
	}
	pages.m = m

	logger.Infof("Parsed %d pages (debug=%t)", len(m), pages.debug)

	return nil
}

func parseAll(fsys fs.FS) (map[string]*template.Template, error) {
	m := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(Funcs()).ParseFS(fsys, "html/layout.html", "html/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing page %s: %w", name, err)
		}
		m[name] = t
	}
	return m, nil
}

func lookup(name string) (*template.Template, error) {
	pages.RLock()
	defer pages.RUnlock()

	m := pages.m
	if pages.debug {
		var err error
		if m, err = parseAll(pages.fsys); err != nil {
			return nil, err
		}
	}

	t, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("unknown page %q", name)
	}
	return t, nil
}

// Render writes the named page to w. Nothing is written if executing the
// template fails.
func Render(w io.Writer, name string, page Page) error {
	var l = logger.WithFields(logrus.Fields{
		"method":     "Render",
		"param_name": name,
	})

	t, err := lookup(name)
	if err != nil {
		l.Errorf("Failed: %+v", err)
		return err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, page); err != nil {
		l.Errorf("Failed executing: %+v", err)
		return err
	}

	_, err = buf.WriteTo(w)
	return err
}

// Funcs are the helpers available to every page
func Funcs() template.FuncMap {
	return template.FuncMap{
		"usd":     USD,
		"percent": Percent,
		"abs":     utils.AbsInt64,
		"fmtTime": FormatTime,
	}
}

var usd = money.GetCurrency(money.USD)

// USD formats an amount as dollars, e.g. $1,234.50
func USD(amount decimal.Decimal) string {
	cents := amount.Round(int32(usd.Fraction)).Shift(int32(usd.Fraction))
	return usd.Formatter().Format(cents.IntPart())
}

// Percent formats a percentage with two decimals and an explicit sign
func Percent(p decimal.Decimal) string {
	s := p.StringFixed(2) + "%"
	if p.IsPositive() {
		return "+" + s
	}
	return s
}

// FormatTime renders a ledger timestamp
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
