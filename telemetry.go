package emb3d

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of the converter's spans and metrics.
const TracerName = "github.com/zero-day-ai/emb3d"

// Stage span names.
const (
	SpanIngest   = "emb3d.ingest"
	SpanEnrich   = "emb3d.enrich"
	SpanLink     = "emb3d.link"
	SpanAssemble = "emb3d.assemble"
)

// runMetrics holds the OpenTelemetry instruments of the converter.
type runMetrics struct {
	entitiesCreated metric.Int64Counter
	entitiesMerged  metric.Int64Counter
	edgesAdded      metric.Int64Counter
	edgesDropped    metric.Int64Counter
	pagesEnriched   metric.Int64Counter
}

// newRunMetrics creates the instruments. A nil meter yields nil metrics, and
// every recording method is a no-op on nil.
func newRunMetrics(meter metric.Meter) (*runMetrics, error) {
	if meter == nil {
		return nil, nil
	}

	m := &runMetrics{}
	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&m.entitiesCreated, "emb3d.entities.created", "Canonical records minted"},
		{&m.entitiesMerged, "emb3d.entities.merged", "New versions of existing canonical records"},
		{&m.edgesAdded, "emb3d.edges.added", "Relationships stored"},
		{&m.edgesDropped, "emb3d.edges.dropped", "Relationships dropped as duplicates of an endpoint pair"},
		{&m.pagesEnriched, "emb3d.pages.enriched", "Pages applied to canonical records"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit("1"),
		)
		if err != nil {
			return nil, fmt.Errorf("create %s counter: %w", c.name, err)
		}
		*c.target = counter
	}
	return m, nil
}

// record adds the totals of a finished run.
func (m *runMetrics) record(ctx context.Context, s Stats) {
	if m == nil {
		return
	}
	m.entitiesCreated.Add(ctx, int64(s.Reconcile.Created+s.Reconcile.Recreated))
	m.entitiesMerged.Add(ctx, int64(s.Reconcile.Merged))
	m.edgesAdded.Add(ctx, int64(s.Edges))
	m.edgesDropped.Add(ctx, int64(s.EdgesDropped))
	m.pagesEnriched.Add(ctx, int64(s.PagesEnriched))
}

// startStage opens the span of a pipeline stage.
func (c *Converter) startStage(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endStage records err on span, if any, and ends it.
func endStage(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
