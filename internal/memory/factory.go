package memory

import (
	"context"
	"strings"
)

// NewStore creates a postgres-backed store when configured, otherwise in-memory.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryStore(), nil
	}
	return NewPostgresStore(ctx, databaseURL)
}

// StoreMode names the backend a DATABASE_URL value selects, for health output.
func StoreMode(databaseURL string) string {
	if strings.TrimSpace(databaseURL) == "" {
		return "in-memory"
	}
	return "postgres"
}
