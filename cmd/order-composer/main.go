package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestio-app/order-composer/internal/catalog"
	"github.com/gestio-app/order-composer/internal/config"
	"github.com/gestio-app/order-composer/internal/db"
	"github.com/gestio-app/order-composer/internal/draft"
	"github.com/gestio-app/order-composer/internal/handler"
	"github.com/gestio-app/order-composer/internal/order"
	"github.com/gestio-app/order-composer/internal/transport"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "order-composer").Logger()

	log.Info().Msg("Order composer service starting...")

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	dbConn, err := db.New(cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	productRepo := catalog.NewRepository(dbConn.Pool)
	orderRepo := order.NewRepository(dbConn.Pool, productRepo)
	orderSvc := order.NewService(orderRepo)

	drafts := draft.NewStore(func() *catalog.Searcher {
		return catalog.NewSearcher(productRepo, cfg.Search.Debounce, cfg.Search.PageLimit)
	}, cfg.Draft.TTL)
	defer drafts.Close()

	router := transport.NewRouter(
		handler.NewDraftHandler(drafts, productRepo, orderSvc),
		handler.NewProductHandler(productRepo, cfg.Search.PageLimit),
		handler.NewOrderHandler(orderSvc),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
