package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

// withCapturedDefault swaps the process logger for one writing to buf and
// restores it when the test ends.
func withCapturedDefault(t *testing.T, buf *bytes.Buffer) {
	t.Helper()
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
}

func TestFromContextCarriesQueryID(t *testing.T) {
	var buf bytes.Buffer
	withCapturedDefault(t, &buf)

	ctx := WithQueryID(context.Background(), "q-123")
	FromContext(ctx).Info("query started")

	if got := buf.String(); !strings.Contains(got, "query_id=q-123") {
		t.Fatalf("log line missing query id: %q", got)
	}
}

func TestFromContextWithoutQueryID(t *testing.T) {
	var buf bytes.Buffer
	withCapturedDefault(t, &buf)

	FromContext(context.Background()).Info("query started")

	if got := buf.String(); strings.Contains(got, "query_id") {
		t.Fatalf("unexpected query id attribute: %q", got)
	}
}
