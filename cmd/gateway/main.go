package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/smmstore/commerce-bot/internal/gateway"
	"github.com/smmstore/commerce-bot/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "gateway-sandbox", "0.1.0")
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	serverKey := os.Getenv("PAYMENT_SERVER_KEY")
	if serverKey == "" {
		serverKey = "sandbox"
	}

	var settleAfter time.Duration
	if raw := os.Getenv("AUTO_SETTLE_AFTER"); raw != "" {
		settleAfter, err = time.ParseDuration(raw)
		if err != nil {
			logger.Error("invalid AUTO_SETTLE_AFTER", "error", err)
			os.Exit(1)
		}
	}

	handler := gateway.NewHandler(serverKey, settleAfter, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/charge", telemetry.WithHTTPRoute(handler.HandleCharge))
	mux.HandleFunc("GET /v2/{orderId}/status", telemetry.WithHTTPRoute(handler.HandleStatus))
	mux.HandleFunc("POST /v2/{orderId}/settle", telemetry.WithHTTPRoute(handler.HandleSettle))
	mux.HandleFunc("POST /v2/{orderId}/cancel", telemetry.WithHTTPRoute(handler.HandleCancel))
	mux.HandleFunc("GET /v2/qr/{orderId}", telemetry.WithHTTPRoute(handler.HandleQR))

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      otelhttp.NewHandler(mux, "gateway-sandbox"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting gateway sandbox", "port", port, "auto_settle_after", settleAfter)
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
