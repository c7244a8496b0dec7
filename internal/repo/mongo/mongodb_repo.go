package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/tierklinik-dobersberg/logfilter-service/internal/repo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Repository struct {
	opts repo.Options

	client   *mongo.Client
	messages *mongo.Collection
	history  *mongo.Collection
	saved    *mongo.Collection
}

func New(ctx context.Context, uri, dbName string, opts repo.Options) (*Repository, error) {
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to create mongodb client: %w", err)
	}

	if err := cli.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb server: %w", err)
	}

	db := cli.Database(dbName)

	repo := &Repository{
		opts:     opts,
		client:   cli,
		messages: db.Collection("messages"),
		history:  db.Collection("filterHistory"),
		saved:    db.Collection("savedFilters"),
	}

	if err := repo.setup(ctx); err != nil {
		return nil, fmt.Errorf("failed to setup collection: %w", err)
	}

	return repo, nil
}

func (db *Repository) setup(ctx context.Context) error {
	if _, err := db.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "tag", Value: 1}}},
		{Keys: bson.D{{Key: "applicationId", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	if _, err := db.history.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "query", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create filter history index: %w", err)
	}

	if _, err := db.saved.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create saved filter index: %w", err)
	}

	return nil
}

// Close disconnects from the server.
func (db *Repository) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

// Compile-time check
var _ repo.Backend = (*Repository)(nil)

func convertErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return repo.ErrFilterNotFound
	}

	return err
}
