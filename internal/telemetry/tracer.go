package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ShutdownFunc flushes buffered spans and closes the exporter connection.
type ShutdownFunc func(ctx context.Context) error

// NewTracerProvider samples every span. Without an exporter option spans
// are not shipped anywhere, but they still carry the ids that logs and the
// order history record.
func NewTracerProvider(serviceName string, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	base := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	return sdktrace.NewTracerProvider(append(base, opts...)...)
}

// SetupTracer installs the global TracerProvider and W3C propagators. When
// endpoint is set, spans are batched to an OTLP collector over gRPC.
func SetupTracer(ctx context.Context, serviceName, endpoint string) (*sdktrace.TracerProvider, ShutdownFunc, error) {
	var (
		opts []sdktrace.TracerProviderOption
		conn *grpc.ClientConn
	)
	if endpoint != "" {
		var err error
		conn, err = grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, nil, fmt.Errorf("dial otel collector at %s: %w", endpoint, err)
		}
		exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("create otlp trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := NewTracerProvider(serviceName, opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	shutdown := func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if conn != nil {
			err = errors.Join(err, conn.Close())
		}
		if err != nil {
			return fmt.Errorf("shutdown tracer provider: %w", err)
		}
		return nil
	}
	return tp, shutdown, nil
}
