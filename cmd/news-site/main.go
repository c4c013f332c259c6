package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/shacrom/mmorpg-news/internal/auth"
	"github.com/shacrom/mmorpg-news/internal/config"
	"github.com/shacrom/mmorpg-news/internal/db"
	"github.com/shacrom/mmorpg-news/internal/event"
	"github.com/shacrom/mmorpg-news/internal/metrics"
	"github.com/shacrom/mmorpg-news/internal/news"
	"github.com/shacrom/mmorpg-news/internal/strapi"
	"github.com/shacrom/mmorpg-news/internal/web"
	"github.com/shacrom/mmorpg-news/internal/webhook"
)

const mongoTimeout = 10 * time.Second

func main() {
	// Root context cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.New(os.Stdout, "[news-site] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	cmsMetrics := metrics.NewCMS(reg)

	// CMS client and content service
	httpClient := &http.Client{Timeout: cfg.Timeout}
	client := strapi.NewClient(cfg.StrapiURL, cfg.APIVersion, httpClient, cmsMetrics)
	content := news.NewService(client, cfg.APIVersion, cfg.StrapiURL, news.LocaleByName(cfg.Locale), logger)
	logger.Printf("content service using %s at %s", cfg.APIVersion, client.BaseURL())

	tokens := auth.NewTokenMiddleware(
		client,
		auth.Credentials{Identifier: cfg.StrapiUser, Password: cfg.StrapiPass},
		cfg.CookieName,
		cfg.Production(),
		logger,
	)

	opts := web.Options{
		SiteURL:       cfg.SiteURL,
		Lang:          cfg.Locale,
		AllowedHosts:  cfg.AllowedHosts,
		PageSize:      cfg.PageSize,
		FeaturedLimit: cfg.FeaturedLimit,
		Token:         tokens.Handler,
		Metrics:       metrics.Handler(reg),
	}

	// Optional webhook relay (Mongo + RabbitMQ)
	var mongoClient *mongo.Client
	if cfg.WebhookEnabled {
		mongoClient, err = db.ConnectMongo(ctx, cfg.MongoURI, mongoTimeout)
		if err != nil {
			logger.Fatalf("failed to connect to db: %v", err)
		}

		repo, err := webhook.NewMongoRepository(mongoClient.Database(cfg.MongoDBName), logger)
		if err != nil {
			logger.Fatalf("failed to init delivery repository: %v", err)
		}

		publisher, err := event.NewRabbitPublisher(cfg.RabbitURI, cfg.RabbitExchange, cfg.RabbitRoutingKey, logger)
		if err != nil {
			logger.Fatalf("failed to init rabbit publisher: %v", err)
		}
		defer publisher.Close()

		opts.Webhook = webhook.NewHandler(repo, publisher, cfg.WebhookSecret, logger)
		logger.Println("webhook relay enabled")
	}

	router, err := web.NewRouter(content, opts, logger)
	if err != nil {
		logger.Fatalf("failed to build router: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	// Block until we receive a signal / ctx cancelled
	<-ctx.Done()
	logger.Println("shutdown signal received, shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("HTTP server shutdown error: %v", err)
	}

	if mongoClient != nil {
		if err := mongoClient.Disconnect(shutdownCtx); err != nil {
			logger.Printf("mongo disconnect error: %v", err)
		}
	}

	logger.Println("shutdown complete")
}
