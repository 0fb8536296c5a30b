package instrument

import (
	"context"
	"testing"
)

func TestCorrelationID(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		// Arrange
		ctx := SetCorrelationID(context.Background(), "req-123")

		// Act
		got := GetCorrelationID(ctx)

		// Assert
		if got != "req-123" {
			t.Fatalf("GetCorrelationID = %q, want %q", got, "req-123")
		}
	})

	t.Run("MissingReturnsEmpty", func(t *testing.T) {
		if got := GetCorrelationID(context.Background()); got != "" {
			t.Fatalf("GetCorrelationID on bare context = %q, want empty", got)
		}
	})

	t.Run("OverwriteKeepsLatest", func(t *testing.T) {
		ctx := SetCorrelationID(context.Background(), "first")
		ctx = SetCorrelationID(ctx, "second")

		if got := GetCorrelationID(ctx); got != "second" {
			t.Fatalf("GetCorrelationID = %q, want %q", got, "second")
		}
	})
}
