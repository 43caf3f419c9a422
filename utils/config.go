package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

// Config contains all the configuration options
type Config struct {
	// Environment related options

	// Stage is the current execution environment. Can be one of "prod", "docker", "dev" or "test"
	Stage string

	// Logging related options

	// LogFileName is the name of the log file name. "stdout" logs to the console.
	LogFileName string
	// LogMaxSize is the maximum size(MB) of a log file before it gets rotated
	LogMaxSize int
	// LogLevel determines the log level.
	// Can be one of "debug", "info", "warn", "error"
	LogLevel string

	// Database related options

	// DbDriver is the gorm dialect to use. Can be one of "mysql" or "sqlite3"
	DbDriver string
	// DbUser is the name of the database user
	DbUser string
	// DbPassword is the password of the database user
	DbPassword string
	// DbHost is the host name of the database server
	DbHost string
	// DbName is the name of the database. For sqlite3 it is the file path
	DbName string

	// HTTP Server related options

	// ServerPort is the address to which the HTTP server will bind
	ServerPort string
	// SessionCacheSize is the size of the LRU cache holding sessions
	SessionCacheSize int
	// SessionCookieName is the cookie carrying the session id
	SessionCookieName string
	// LoginRatePerMinute is the number of login/register attempts allowed per client per minute
	LoginRatePerMinute int
	// TemplatesDebug reparses templates on every render
	TemplatesDebug bool

	// Trading related options

	// StartingCash is the cash a newly registered user gets
	StartingCash decimal.Decimal

	// Price lookup related options

	// QuoteBaseURL is the base URL of the IEX compatible quote API.
	// Empty means the static quote table is used.
	QuoteBaseURL string
	// QuoteToken is the API token sent with every quote request
	QuoteToken string
	// QuoteTimeout is the timeout (seconds) of a single price lookup, retries included
	QuoteTimeout int
	// QuoteRetries is the maximum number of retries of a failed price lookup
	QuoteRetries int
}

// QuoteTimeoutDuration returns QuoteTimeout as a time.Duration
func (c *Config) QuoteTimeoutDuration() time.Duration {
	return time.Duration(c.QuoteTimeout) * time.Second
}

// Struct to load configurations of all possible modes i.e dev, docker, prod, test
// Only one of them will be selected based on the environment variable FINANCE_ENV
var allConfigurations = struct {

	// Configuration for environment : dev
	Dev Config

	// Configuration for environment : docker
	Docker Config

	// Configuration for environment : prod
	Prod Config

	// Configuration for environment : test
	Test Config
}{}

// setting config defaults for test, because when running tests
// config.json won't be there most of the time
var config = &Config{
	Stage:              "test",
	LogFileName:        "stdout",
	LogMaxSize:         50,
	LogLevel:           "debug",
	DbDriver:           "sqlite3",
	DbName:             ":memory:",
	ServerPort:         ":8000",
	SessionCacheSize:   1000,
	SessionCookieName:  "session_id",
	LoginRatePerMinute: 1000,
	TemplatesDebug:     false,
	StartingCash:       decimal.NewFromInt(10000),
	QuoteBaseURL:       "",
	QuoteToken:         "",
	QuoteTimeout:       5,
	QuoteRetries:       2,
}

// LoadConfiguration reads the given config file and picks the block matching
// FINANCE_ENV. If the variable is not set, Dev is taken.
func LoadConfiguration(fileName string) error {
	stage, exists := os.LookupEnv("FINANCE_ENV")
	if !exists {
		os.Stderr.WriteString("Set environment variable FINANCE_ENV to one of : Dev, Docker, Prod, Test. Taking Dev as default.\n")
		stage = "Dev"
	}

	configFile, err := os.Open(fileName)
	if err != nil {
		if stage == "Test" {
			return nil // config is already set to default value for test. nothing to do.
		}
		return fmt.Errorf("failed to open %s: %w", fileName, err)
	}
	defer configFile.Close()

	if err := json.NewDecoder(configFile).Decode(&allConfigurations); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	switch stage {
	case "Docker":
		config = &allConfigurations.Docker
	case "Prod":
		config = &allConfigurations.Prod
	case "Test":
		config = &allConfigurations.Test
	default:
		// Take Dev as default
		config = &allConfigurations.Dev
	}

	return nil
}

// GetConfiguration returns the configuration loaded from config.json
func GetConfiguration() *Config {
	return config
}

// Init intializes the utils package. The config is accepted as a parameter for helping with testing.
func Init(config *Config) {
	initDbHelper(config)
	initLogger(config)
}
