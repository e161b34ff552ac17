package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/corretor-crm/corretor/pkg/persistence"
	"github.com/corretor-crm/corretor/pkg/persistence/file"
	"github.com/corretor-crm/corretor/pkg/persistence/postgresql"
)

// NewPersistence picks the store from the scheme of databaseURL:
// postgres:// or postgresql:// use PostgreSQL, anything else is a file root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgresql persistence: %w", err)
		}

		return p, nil
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	switch scheme {
	case "postgres", "postgresql":
		return "postgresql"
	default:
		return "file"
	}
}
