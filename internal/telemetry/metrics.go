package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// InitMeterProvider initializes the Prometheus exporter and MeterProvider.
// It returns an http.Handler for the /metrics endpoint and a shutdown function.
func InitMeterProvider(serviceName, serviceVersion string) (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	return promhttp.Handler(), mp.Shutdown, nil
}

// BotMetrics holds the commerce-flow counters. The inventory exhaustion
// counter is the alertable signal for paid-but-unfulfillable orders. A nil
// *BotMetrics is valid and records nothing.
type BotMetrics struct {
	ordersCreated      metric.Int64Counter
	paymentsSettled    metric.Int64Counter
	fulfillments       metric.Int64Counter
	inventoryExhausted metric.Int64Counter
}

func NewBotMetrics() (*BotMetrics, error) {
	meter := otel.Meter("commerce-bot")

	ordersCreated, err := meter.Int64Counter("bot.orders.created",
		metric.WithDescription("Orders created from the conversation flow"))
	if err != nil {
		return nil, err
	}

	paymentsSettled, err := meter.Int64Counter("bot.payments.settled",
		metric.WithDescription("Orders whose gateway payment settled"))
	if err != nil {
		return nil, err
	}

	fulfillments, err := meter.Int64Counter("bot.fulfillments.completed",
		metric.WithDescription("Orders that received an inventory unit"))
	if err != nil {
		return nil, err
	}

	inventoryExhausted, err := meter.Int64Counter("bot.inventory.exhausted",
		metric.WithDescription("Fulfillment attempts that found no available unit"))
	if err != nil {
		return nil, err
	}

	return &BotMetrics{
		ordersCreated:      ordersCreated,
		paymentsSettled:    paymentsSettled,
		fulfillments:       fulfillments,
		inventoryExhausted: inventoryExhausted,
	}, nil
}

func (m *BotMetrics) OrderCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.ordersCreated.Add(ctx, 1)
}

func (m *BotMetrics) PaymentSettled(ctx context.Context) {
	if m == nil {
		return
	}
	m.paymentsSettled.Add(ctx, 1)
}

func (m *BotMetrics) FulfillmentCompleted(ctx context.Context) {
	if m == nil {
		return
	}
	m.fulfillments.Add(ctx, 1)
}

func (m *BotMetrics) InventoryExhausted(ctx context.Context) {
	if m == nil {
		return
	}
	m.inventoryExhausted.Add(ctx, 1)
}
