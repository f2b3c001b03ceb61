package query

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestFetch_tracesLoadsAndCacheLookups(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	c, _, _ := newTestClient(t)
	key := NewKey(KindDetail, 25)
	load := func(context.Context) (string, error) { return "pikachu", nil }

	ctx, root := tp.Tracer("test").Start(context.Background(), "GET /v1/catalogue/{ref}")
	Fetch(ctx, c, key, load)
	Fetch(ctx, c, key, load)
	root.End()

	spans := exporter.GetSpans()
	var loadSpan, rootSpan *tracetest.SpanStub
	for i := range spans {
		switch spans[i].Name {
		case "query.load":
			loadSpan = &spans[i]
		case "GET /v1/catalogue/{ref}":
			rootSpan = &spans[i]
		}
	}
	if loadSpan == nil || rootSpan == nil {
		t.Fatalf("spans = %+v", spans)
	}
	if loadSpan.Parent.SpanID() != rootSpan.SpanContext.SpanID() {
		t.Error("query.load should be a child of the request span")
	}
	if loadSpan.Status.Code == codes.Error {
		t.Errorf("load status = %+v", loadSpan.Status)
	}

	var outcomes []string
	for _, ev := range rootSpan.Events {
		for _, a := range ev.Attributes {
			if a.Key == "query.cache_outcome" {
				outcomes = append(outcomes, a.Value.AsString())
			}
		}
	}
	if len(outcomes) != 2 || outcomes[0] != "miss" || outcomes[1] != "hit" {
		t.Errorf("cache outcomes = %v, want [miss hit]", outcomes)
	}
}

func TestFetch_failedLoadSpanHasErrorStatus(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	c, _, _ := newTestClient(t)
	res := Fetch(context.Background(), c, NewKey(KindSearch, "missingno"), func(context.Context) (int, error) {
		return 0, transientErr()
	})
	if res.Error == nil {
		t.Fatal("expected error")
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "query.load" || spans[0].Status.Code != codes.Error {
		t.Fatalf("spans = %+v", spans)
	}
}
