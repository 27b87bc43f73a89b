// Package mongo stores grade-hub documents in MongoDB, one document per
// student, the shape the records had before the relational backends.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dsl-grades/grade-hub/pkg/logger"
	"github.com/dsl-grades/grade-hub/pkg/retry"
)

// Collection names.
const (
	RecordsCollection  = "student_grade"
	IdentityCollection = "student_id_in_db"
	MarkersCollection  = "session_markers"
)

// Config holds MongoDB connection settings.
type Config struct {
	URI             string
	Database        string
	ConnectAttempts int
	Timeout         time.Duration
}

// Client wraps a connected mongo.Client and the grade-hub database.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials MongoDB, waits for a primary and ensures indexes.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.Timeout > 0 {
		opts.SetTimeout(cfg.Timeout)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	err = retry.Do(ctx, func(ctx context.Context) error {
		return client.Ping(ctx, nil)
	}, retry.WithMaxAttempts(cfg.ConnectAttempts), retry.WithLogger(logger.FromContext(ctx), "mongo"))
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	c := &Client{client: client, db: client.Database(cfg.Database)}
	if err := c.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return c, nil
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

func (c *Client) ensureIndexes(ctx context.Context) error {
	_, err := c.db.Collection(IdentityCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "external_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_external_id"),
	})
	if err != nil {
		return fmt.Errorf("mongo: ensure external_id index: %w", err)
	}
	return nil
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
