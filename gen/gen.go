package gen

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned when no generation endpoint is configured.
// Callers treat it as a per-turn failure, never as fatal.
var ErrNotConfigured = errors.New("generation endpoint not configured")

type Result struct {
	Text     string
	Duration time.Duration
}

// Client is the narrow contract to the external text-generation service.
// Implementations must honor ctx cancellation; the endpoint accepts one
// request at a time, so callers serialize.
type Client interface {
	Generate(ctx context.Context, prompt string) (Result, error)
}
