package document

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("proofd.document")

var (
	// checksTotal counts checks by outcome.
	// Labels: outcome (cached, no_client, ok, stale, error)
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proofd",
		Subsystem: "document",
		Name:      "checks_total",
		Help:      "Total document checks by outcome",
	}, []string{"outcome"})

	// checkDuration measures uncached checks, configuration fetch included.
	checkDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "proofd",
		Subsystem: "document",
		Name:      "check_duration_seconds",
		Help:      "Duration of uncached document checks in seconds",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"outcome"})

	// publishesTotal counts diagnostics publishes.
	// Labels: kind (immediate, delayed)
	publishesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "proofd",
		Subsystem: "document",
		Name:      "publishes_total",
		Help:      "Total diagnostics publishes by kind",
	}, []string{"kind"})

	// hiddenAtCaret counts diagnostics withheld from an immediate publish.
	hiddenAtCaret = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "proofd",
		Subsystem: "document",
		Name:      "hidden_at_caret_total",
		Help:      "Total diagnostics withheld because they touched the caret",
	})
)

func startCheckSpan(ctx context.Context, snap *Snapshot, useCache bool) (context.Context, trace.Span) {
	return tracer.Start(ctx, "document.Session.Check",
		trace.WithAttributes(
			attribute.String("document.uri", snap.URI),
			attribute.String("document.language_id", snap.LanguageID),
			attribute.Int("document.version", snap.Version),
			attribute.Bool("check.use_cache", useCache),
		),
	)
}

func setCheckSpanResult(span trace.Span, outcome string, matches int) {
	span.SetAttributes(
		attribute.String("check.outcome", outcome),
		attribute.Int("check.matches", matches),
	)
}
