package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
)

// Requires a running MongoDB; skipped unless MONGODB_URI is set.
func TestTurnRepository_Integration(t *testing.T) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("Skipping MongoDB integration test - MONGODB_URI not set")
	}

	ctx := context.Background()
	logger, _ := zap.NewDevelopment()

	client, err := Connect(ctx, mongoURI, 5*time.Second, logger)
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	testDB := client.Database("hiya_test")
	defer testDB.Drop(ctx)

	repo := NewTurnRepository(testDB, logger).(*TurnRepository)
	if err := repo.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes failed: %v", err)
	}

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"t1", "t2", "t3"} {
		turn := domain.NewTurn(id, "user-1", domain.SourceText, base.Add(time.Duration(i)*time.Minute))
		turn.Outcome = domain.OutcomeCompleted
		if err := repo.Append(ctx, turn); err != nil {
			t.Fatalf("Append(%s) failed: %v", id, err)
		}
	}

	t.Run("DuplicateRejected", func(t *testing.T) {
		if err := repo.Append(ctx, domain.NewTurn("t1", "user-1", domain.SourceText, base)); err == nil {
			t.Error("Expected duplicate id to fail")
		}
	})

	t.Run("NewestFirst", func(t *testing.T) {
		turns, err := repo.ListByUser(ctx, "user-1", 2)
		if err != nil {
			t.Fatalf("ListByUser failed: %v", err)
		}
		if len(turns) != 2 || turns[0].ID != "t3" || turns[1].ID != "t2" {
			t.Errorf("Unexpected turns: %+v", turns)
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})
}
