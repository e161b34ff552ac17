package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/corretor-crm/corretor/pkg/llm"
)

// NewCompleter returns nil when no API key is configured; callers then skip
// AI replies and fall back to templates.
//
//nolint:ireturn
func NewCompleter(ctx context.Context, logger *slog.Logger, cfg llm.Config) llm.Completer {
	client, err := llm.NewClient(cfg)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			logger.WarnContext(ctx, "OPENAI_API_KEY not set, AI replies disabled")
		} else {
			logger.ErrorContext(ctx, "Failed to create LLM client, AI replies disabled", "error", err)
		}

		return nil
	}

	return client
}
