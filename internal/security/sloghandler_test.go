package security

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer, level slog.Level, literals ...string) *slog.Logger {
	r := NewRedactor()
	for _, l := range literals {
		r.AddLiteral(l)
	}
	inner := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})
	return slog.New(NewRedactingHandler(inner, r))
}

func TestRedactingHandler_MessageAndAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newTestLogger(&buf, slog.LevelDebug, "tok-123")

	logger.Info("got tok-123", "header", "Bearer tok-123", "safe", "visible")

	out := buf.String()
	if strings.Contains(out, "tok-123") {
		t.Errorf("secret in output: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("safe value missing: %s", out)
	}
}

func TestRedactingHandler_WithAttrsAndGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := newTestLogger(&buf, slog.LevelDebug, "pw-456").
		With("password", "pw-456").
		WithGroup("auth")

	logger.Info("attempt",
		slog.Group("request", slog.String("basic", "pw-456"), slog.String("path", "/status")),
		"error", errors.New("rejected pw-456"),
	)

	out := buf.String()
	if strings.Contains(out, "pw-456") {
		t.Errorf("secret in output: %s", out)
	}
	if !strings.Contains(out, "/status") {
		t.Errorf("path missing: %s", out)
	}
}

func TestRedactingHandler_Enabled(t *testing.T) {
	t.Parallel()

	h := NewRedactingHandler(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}), NewRedactor())
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}
