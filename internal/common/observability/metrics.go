package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records pipeline metrics through an OpenTelemetry meter
// backed by the Prometheus exporter. The zero value is safe: every record
// method tolerates nil instruments so a failed exporter never breaks the
// request path.
type Observability struct {
	meterProvider    *metric.MeterProvider
	meter            otelmetric.Meter
	documentsCounter otelmetric.Int64Counter
	chunksCounter    otelmetric.Int64Counter
	queriesCounter   otelmetric.Int64Counter
	ingestDuration   otelmetric.Float64Histogram
	queryDuration    otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	documentsCounter, _ := meter.Int64Counter(
		"documents.ingested",
		otelmetric.WithDescription("Number of documents ingested"),
	)

	chunksCounter, _ := meter.Int64Counter(
		"chunks.indexed",
		otelmetric.WithDescription("Number of chunks written to the vector index"),
	)

	queriesCounter, _ := meter.Int64Counter(
		"queries.processed",
		otelmetric.WithDescription("Number of queries processed"),
	)

	ingestDuration, _ := meter.Float64Histogram(
		"ingest.duration",
		otelmetric.WithDescription("Document ingestion duration"),
		otelmetric.WithUnit("ms"),
	)

	queryDuration, _ := meter.Float64Histogram(
		"query.duration",
		otelmetric.WithDescription("Query pipeline duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:    provider,
		meter:            meter,
		documentsCounter: documentsCounter,
		chunksCounter:    chunksCounter,
		queriesCounter:   queriesCounter,
		ingestDuration:   ingestDuration,
		queryDuration:    queryDuration,
	}
}

func (o *Observability) RecordDocumentIngested(ctx context.Context, status string, chunks int) {
	if o.documentsCounter != nil {
		o.documentsCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
	if o.chunksCounter != nil && chunks > 0 {
		o.chunksCounter.Add(ctx, int64(chunks))
	}
}

func (o *Observability) RecordQueryProcessed(ctx context.Context, decision string) {
	if o.queriesCounter != nil {
		o.queriesCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("decision", decision),
		))
	}
}

func (o *Observability) RecordIngestDuration(ctx context.Context, duration time.Duration, status string) {
	if o.ingestDuration != nil {
		o.ingestDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordQueryDuration(ctx context.Context, duration time.Duration, decision string) {
	if o.queryDuration != nil {
		o.queryDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("decision", decision),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
