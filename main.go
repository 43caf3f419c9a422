package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/delta/finance-server/httpapi"
	"github.com/delta/finance-server/models"
	"github.com/delta/finance-server/quotes"
	"github.com/delta/finance-server/session"
	"github.com/delta/finance-server/templates"
	"github.com/delta/finance-server/utils"
)

func newOracle(config *utils.Config) quotes.Oracle {
	if config.QuoteBaseURL == "" {
		utils.Logger.Warn("QuoteBaseURL not set. Serving prices from the static quote table")
		return quotes.DefaultStaticOracle()
	}
	return quotes.NewIEXClient(config.QuoteBaseURL, config.QuoteToken, config.QuoteTimeoutDuration(), config.QuoteRetries)
}

func main() {
	configFile := flag.String("config", "config.json", "path of the configuration file")
	flag.Parse()

	if err := utils.LoadConfiguration(*configFile); err != nil {
		log.Fatalf("Failed loading configuration: %+v", err)
	}
	config := utils.GetConfiguration()

	utils.Init(config)
	models.Init(config, newOracle(config))

	if err := models.Migrate(); err != nil {
		utils.Logger.Fatalf("Failed migrating database: %+v", err)
	}
	if err := session.Init(config); err != nil {
		utils.Logger.Fatalf("Failed creating session store: %+v", err)
	}
	if err := templates.Init(config); err != nil {
		utils.Logger.Fatalf("Failed parsing templates: %+v", err)
	}
	if err := httpapi.Init(config); err != nil {
		utils.Logger.Fatalf("Failed initializing http api: %+v", err)
	}

	srv := &http.Server{
		Addr:         config.ServerPort,
		Handler:      httpapi.Router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second + config.QuoteTimeoutDuration(),
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		utils.Logger.Infof("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Logger.Fatalf("Server failed: %+v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	utils.Logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		utils.Logger.Errorf("Graceful shutdown failed: %+v", err)
	}

	if err := utils.CloseDB(); err != nil {
		utils.Logger.Errorf("Failed closing database: %+v", err)
	}

	utils.Logger.Info("Server stopped")
}
