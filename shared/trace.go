package shared

import (
	"context"
	"io"
	"os"

	"github.com/gofiber/fiber/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const parentContextKey = "parent-trace-context"

type Tracer struct {
	ServiceName  string
	CollectorURL string
	Provider     *sdk.TracerProvider
	tracer       trace.Tracer
}

// NewExporter creates an exporter that just print the span data to stdout.
func NewExporter(w io.Writer) (sdk.SpanExporter, error) {
	return stdouttrace.New(
		stdouttrace.WithWriter(w),
		// Use human-readable output.
		stdouttrace.WithPrettyPrint(),
	)
}

// NewResource returns a resource describing this application.
// Resource describes the entity for which a signals (metrics or traces) are collected.
func NewResource(serviceName string) *resource.Resource {
	r, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("v1.0.0"),
			attribute.String("environment", "local"),
		),
	)
	return r
}

// NewTracerProvider creates a new tracer provider instance. => where the traces are sent to
func NewTracerProvider(serviceName string, collectorURL string) *sdk.TracerProvider {
	exporter, err := NewExporter(os.Stdout)
	if err != nil {
		panic(err)
	}

	tp := sdk.NewTracerProvider(
		sdk.WithBatcher(exporter),
		sdk.WithResource(NewResource(serviceName)),
	)

	return tp
}

func GetDefaultCollectorURL() string {
	return os.Getenv("OTEL_ENDPOINT")
}

func NewTracer(serviceName string, collectorURL string) *Tracer {
	if collectorURL == "" {
		collectorURL = GetDefaultCollectorURL()
	}

	provider := NewTracerProvider(serviceName, collectorURL)
	return &Tracer{
		ServiceName:  serviceName,
		CollectorURL: collectorURL,
		Provider:     provider,
	}
}

func (t *Tracer) Init() {
	otel.SetTracerProvider(t.Provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	t.tracer = otel.Tracer(t.ServiceName)
}

func (t *Tracer) StartSpan(name string, ctx context.Context, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// ParentContextMiddleware extracts the incoming trace context (traceparent
// header) and stores it on the request so handlers can continue the trace.
func ParentContextMiddleware(c *fiber.Ctx) error {
	carrier := propagation.MapCarrier{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		carrier[string(key)] = string(value)
	})

	ctx := otel.GetTextMapPropagator().Extract(context.Background(), carrier)
	c.Locals(parentContextKey, ctx)
	return c.Next()
}

// GetParentContext returns the trace context extracted by
// ParentContextMiddleware, or a fresh background context.
func GetParentContext(c *fiber.Ctx) context.Context {
	if ctx, ok := c.Locals(parentContextKey).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

// InjectAmqpTraceHeader carries the current trace context into AMQP message
// headers so consumers can join the trace.
func InjectAmqpTraceHeader(ctx context.Context) amqp.Table {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := amqp.Table{}
	for key, value := range carrier {
		headers[key] = value
	}
	return headers
}
