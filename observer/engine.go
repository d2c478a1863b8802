package observer

import (
	"context"
	"strings"
	"time"

	guidesearch "github.com/clinicalrag/guidesearch"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedEngine wraps a guidesearch.Engine with OTEL instrumentation.
// Status and document listing pass through untraced.
type ObservedEngine struct {
	inner *guidesearch.Engine
	inst  *Instruments
}

// WrapEngine returns an instrumented search engine.
func WrapEngine(inner *guidesearch.Engine, inst *Instruments) *ObservedEngine {
	return &ObservedEngine{inner: inner, inst: inst}
}

func (o *ObservedEngine) ListDocuments() ([]guidesearch.DocumentSummary, error) {
	return o.inner.ListDocuments()
}

func (o *ObservedEngine) StatusReport() guidesearch.Status {
	return o.inner.StatusReport()
}

func (o *ObservedEngine) Search(ctx context.Context, query string, topK int) ([]guidesearch.QueryResult, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "search.query", trace.WithAttributes(
		AttrSearchKind.String("semantic"),
		AttrSearchTopK.Int(topK),
	))
	defer span.End()
	start := time.Now()

	results, err := o.inner.Search(ctx, query, topK)
	o.record(ctx, span, "semantic", topK, len(results), nil, time.Since(start), err)
	return results, err
}

func (o *ObservedEngine) SearchDocument(ctx context.Context, document, query string, topK int) ([]guidesearch.QueryResult, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "search.document_query", trace.WithAttributes(
		AttrSearchKind.String("document"),
		AttrSearchTopK.Int(topK),
	))
	defer span.End()
	start := time.Now()

	results, err := o.inner.SearchDocument(ctx, document, query, topK)
	o.record(ctx, span, "document", topK, len(results), nil, time.Since(start), err)
	return results, err
}

func (o *ObservedEngine) SimilarChunks(ctx context.Context, chunkID string, topK int) ([]guidesearch.QueryResult, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "search.similar_chunks", trace.WithAttributes(
		AttrSearchKind.String("similar"),
		AttrSearchTopK.Int(topK),
	))
	defer span.End()
	start := time.Now()

	results, err := o.inner.SimilarChunks(ctx, chunkID, topK)
	o.record(ctx, span, "similar", topK, len(results), nil, time.Since(start), err)
	return results, err
}

func (o *ObservedEngine) ClinicalSearch(ctx context.Context, question string, topK int) (guidesearch.ClinicalAnswer, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "search.clinical_query", trace.WithAttributes(
		AttrSearchKind.String("clinical"),
		AttrSearchTopK.Int(topK),
	))
	defer span.End()
	start := time.Now()

	answer, err := o.inner.ClinicalSearch(ctx, question, topK)
	o.record(ctx, span, "clinical", topK, len(answer.Results), answer.Terms, time.Since(start), err)
	return answer, err
}

func (o *ObservedEngine) record(ctx context.Context, span trace.Span, kind string, topK, n int, terms []string, d time.Duration, err error) {
	durationMs := float64(d.Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(AttrSearchResults.Int(n))
		if len(terms) > 0 {
			span.SetAttributes(AttrSearchTerms.String(strings.Join(terms, ",")))
		}
	}

	o.inst.SearchRequests.Add(ctx, 1, metric.WithAttributes(
		AttrSearchKind.String(kind),
		attribute.String("status", status),
	))
	o.inst.SearchDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrSearchKind.String(kind),
	))
	if err == nil {
		o.inst.SearchResults.Record(ctx, int64(n), metric.WithAttributes(
			AttrSearchKind.String(kind),
		))
	}

	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("search completed"))
	rec.AddAttributes(
		otellog.String("search.kind", kind),
		otellog.Int("search.top_k", topK),
		otellog.Int("search.results", n),
		otellog.Float64("duration_ms", durationMs),
		otellog.String("status", status),
	)
	o.inst.Logger.Emit(ctx, rec)
}
