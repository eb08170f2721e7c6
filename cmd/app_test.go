package cmd

import (
	"context"
	"testing"

	"github.com/verdantlabs/verdant/internal/checkpoint"
	"github.com/verdantlabs/verdant/internal/config"
	"github.com/verdantlabs/verdant/internal/log"
)

func TestCheckpointFallbackOnlyInProduction(t *testing.T) {
	ctx := context.Background()
	logger := log.NewNop()

	// Outside production an unavailable database is a startup error, so
	// misconfiguration surfaces instead of silently losing conversations.
	dev := &config.Config{Environment: config.EnvDevelopment}
	if _, err := buildCheckpoints(ctx, dev, nil, logger); err == nil {
		t.Fatal("development must fail when postgres is unavailable")
	}
	tst := &config.Config{Environment: config.EnvTest}
	if _, err := buildCheckpoints(ctx, tst, nil, logger); err == nil {
		t.Fatal("test environment must fail when postgres is unavailable")
	}

	// Production keeps answering without persistence.
	prod := &config.Config{Environment: config.EnvProduction}
	store, err := buildCheckpoints(ctx, prod, nil, logger)
	if err != nil {
		t.Fatalf("production must degrade, got %v", err)
	}
	if _, ok := store.(*checkpoint.MemoryStore); !ok {
		t.Fatalf("production fallback = %T, want *checkpoint.MemoryStore", store)
	}
}
