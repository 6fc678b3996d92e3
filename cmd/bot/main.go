package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/smmstore/commerce-bot/internal/bot"
	"github.com/smmstore/commerce-bot/internal/domain"
	"github.com/smmstore/commerce-bot/internal/inventory"
	"github.com/smmstore/commerce-bot/internal/messaging"
	"github.com/smmstore/commerce-bot/internal/orders"
	"github.com/smmstore/commerce-bot/internal/payment"
	"github.com/smmstore/commerce-bot/internal/telegram"
	"github.com/smmstore/commerce-bot/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "commerce-bot", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("commerce-bot", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if err := runtime.Start(); err != nil {
		logger.Error("failed to start runtime instrumentation", "error", err)
		os.Exit(1)
	}

	postgresURL := os.Getenv("POSTGRES_URL")
	if postgresURL == "" {
		logger.Error("POSTGRES_URL environment variable is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	gatewayURL := os.Getenv("PAYMENT_GATEWAY_URL")
	if gatewayURL == "" {
		logger.Error("PAYMENT_GATEWAY_URL environment variable is required")
		os.Exit(1)
	}
	serverKey := os.Getenv("PAYMENT_SERVER_KEY")
	if serverKey == "" {
		logger.Error("PAYMENT_SERVER_KEY environment variable is required")
		os.Exit(1)
	}

	catalog, err := loadCatalog(os.Getenv("CATALOG_PATH"))
	if err != nil {
		logger.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}

	var producer *messaging.Producer
	if kafkaBrokers := os.Getenv("KAFKA_BROKERS"); kafkaBrokers != "" {
		producer = messaging.NewProducer(strings.Split(kafkaBrokers, ","), "order.events")
		defer func() { _ = producer.Close() }()
	}

	metrics, err := telemetry.NewBotMetrics()
	if err != nil {
		logger.Error("failed to create metrics", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	gateway := payment.NewClient(gatewayURL, serverKey, httpClient)

	orderRepo := orders.NewOrderRepository(db)
	unitRepo := inventory.NewInventoryRepository(db)

	factory := func(token string, catalog domain.Catalog) (bot.RunFunc, error) {
		client, err := telegram.NewBotClient(token)
		if err != nil {
			return nil, err
		}

		instanceLogger := logger.With("bot", client.Username())
		sessions := bot.NewSessionStore(30 * time.Minute)
		fulfiller := bot.NewFulfiller(token, orderRepo, unitRepo, client, producerOrNil(producer), metrics, instanceLogger)
		flow := bot.NewFlow(token, catalog, sessions, orderRepo, gateway, client, fulfiller, producerOrNil(producer), metrics, instanceLogger)
		router := bot.NewRouter(flow, client, instanceLogger)

		return func(ctx context.Context) error {
			go sessions.Run(ctx, 5*time.Minute)
			go fulfiller.RunReconciler(ctx, time.Minute)
			for upd := range client.Updates(ctx) {
				go router.Dispatch(ctx, upd)
			}
			return nil
		}, nil
	}

	manager := bot.NewManager(factory, logger)
	defer manager.StopAll()

	for _, token := range splitTokens(os.Getenv("BOT_TOKENS")) {
		if err := manager.Start(token, catalog); err != nil {
			logger.Error("failed to start configured bot", "error", err)
		}
	}

	jobCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()

	sweeper := bot.NewSweeper(orderRepo, time.Minute, logger)
	go sweeper.Run(jobCtx)

	botHandler := bot.NewHandler(manager, catalog, logger)
	inventoryHandler := inventory.NewHandler(unitRepo, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /bots", telemetry.WithHTTPRoute(botHandler.HandleStart))
	mux.HandleFunc("DELETE /bots/{token}", telemetry.WithHTTPRoute(botHandler.HandleStop))
	mux.HandleFunc("GET /bots", telemetry.WithHTTPRoute(botHandler.HandleStatus))
	mux.HandleFunc("POST /inventory/units", telemetry.WithHTTPRoute(inventoryHandler.HandleAddUnit))
	mux.HandleFunc("GET /inventory/availability", telemetry.WithHTTPRoute(inventoryHandler.HandleAvailability))
	mux.Handle("GET /metrics", metricsHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      otelhttp.NewHandler(mux, "admin"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting admin server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

// producerOrNil avoids handing a typed-nil *Producer to interface fields.
func producerOrNil(p *messaging.Producer) bot.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}

func splitTokens(raw string) []string {
	if raw == "" {
		return nil
	}
	var tokens []string
	for _, token := range strings.Split(raw, ",") {
		if token = strings.TrimSpace(token); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func loadCatalog(path string) (domain.Catalog, error) {
	if path == "" {
		path = "catalog.json"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var catalog domain.Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, err
	}
	return catalog, nil
}
