package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Client struct {
	DB *mongo.Database
}

func New(ctx context.Context, uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := m.Ping(ctx, nil); err != nil {
		_ = m.Disconnect(context.Background())
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates the indexes repositories rely on.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	bookings := c.DB.Collection(bookingsCollection)
	if _, err := bookings.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bsonKeys("listing_id", "status")},
		{Keys: bsonKeys("guest_id")},
		{Keys: bsonKeys("host_id")},
	}); err != nil {
		return err
	}
	payments := c.DB.Collection(paymentsCollection)
	_, err := payments.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bsonKeys("booking_id")},
		{
			Keys: bsonKeys("intent_id"),
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"intent_id": bson.M{"$gt": ""}}),
		},
	})
	return err
}
