package telemetry_test

import (
	"context"
	"testing"

	"github.com/toolbridge/toolbridge/internal/telemetry"
)

func TestQueryID_RoundTrip(t *testing.T) {
	ctx := telemetry.WithQueryID(context.Background(), "q-123")
	got, ok := telemetry.QueryIDFromContext(ctx)
	if !ok || got != "q-123" {
		t.Fatalf("want q-123, got %q (ok=%t)", got, ok)
	}
}

func TestQueryID_Missing(t *testing.T) {
	if _, ok := telemetry.QueryIDFromContext(context.Background()); ok {
		t.Fatal("expected no query ID on fresh context")
	}
}

func TestQueryID_NilContext(t *testing.T) {
	ctx := telemetry.WithQueryID(nil, "q-456")
	got, ok := telemetry.QueryIDFromContext(ctx)
	if !ok || got != "q-456" {
		t.Fatalf("want q-456, got %q (ok=%t)", got, ok)
	}
	if _, ok := telemetry.QueryIDFromContext(nil); ok {
		t.Fatal("expected no query ID from nil context")
	}
}
