// Package slogtest routes structured logs into the test log, so they only
// show up for failing tests or under -v.
package slogtest

import (
	"log/slog"
	"strings"
	"testing"
)

type writer struct {
	tb testing.TB
}

func (w writer) Write(p []byte) (int, error) {
	w.tb.Helper()
	w.tb.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// New returns a debug-level *slog.Logger tagged with the test name.
func New(tb testing.TB) *slog.Logger {
	h := slog.NewTextHandler(writer{tb: tb}, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(h).With("test", tb.Name())
}
