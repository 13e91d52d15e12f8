package obs

import (
	"log/slog"
	"os"
)

// NewLogger builds the router's structured logger, mirroring the teacher's
// main.go JSON-handler setup. jsonOutput selects machine-readable logs
// (production) over the default text handler (local development).
func NewLogger(jsonOutput bool, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
