package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/seu-repo/hiya-assistant/internal/domain"
	"github.com/seu-repo/hiya-assistant/internal/ports"
)

const turnsCollection = "voice_turns"

// Connect opens a client and verifies the primary is reachable.
func Connect(ctx context.Context, uri string, timeout time.Duration, log *zap.Logger) (*mongo.Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	log.Info("Successfully connected to MongoDB")
	return client, nil
}

// TurnRepository stores the turn audit log as one document per turn,
// keyed by turn id.
type TurnRepository struct {
	collection *mongo.Collection
	log        *zap.Logger
}

func NewTurnRepository(db *mongo.Database, log *zap.Logger) ports.TurnRepository {
	return &TurnRepository{
		collection: db.Collection(turnsCollection),
		log:        log,
	}
}

// EnsureIndexes creates the per-user history index.
func (r *TurnRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "started_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create turn indexes: %w", err)
	}
	return nil
}

func (r *TurnRepository) Append(ctx context.Context, turn *domain.Turn) error {
	if _, err := r.collection.InsertOne(ctx, turn); err != nil {
		return fmt.Errorf("insert turn %s: %w", turn.ID, err)
	}
	return nil
}

func (r *TurnRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Turn, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var turns []domain.Turn
	if err := cursor.All(ctx, &turns); err != nil {
		return nil, err
	}
	return turns, nil
}

func (r *TurnRepository) Ping(ctx context.Context) error {
	return r.collection.Database().Client().Ping(ctx, readpref.Primary())
}
