package registry

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const defaultMongoCollection = "license_chaser_nodes"

// MongoOption configures a MongoRegistry.
type MongoOption func(*MongoRegistry)

// WithCollectionName sets the MongoDB collection name. Default: "license_chaser_nodes".
func WithCollectionName(name string) MongoOption {
	return func(r *MongoRegistry) {
		r.collectionName = name
	}
}

// MongoRegistry implements Registry using MongoDB.
type MongoRegistry struct {
	collection     *mongo.Collection
	collectionName string
}

// NewMongoRegistry creates a new MongoDB-backed registry.
// It creates the necessary indexes on initialization.
func NewMongoRegistry(ctx context.Context, db *mongo.Database, opts ...MongoOption) (*MongoRegistry, error) {
	r := &MongoRegistry{
		collectionName: defaultMongoCollection,
	}
	for _, opt := range opts {
		opt(r)
	}
	if !validIdentifier.MatchString(r.collectionName) {
		return nil, fmt.Errorf("invalid collection name %q: must match [a-zA-Z_][a-zA-Z0-9_]*", r.collectionName)
	}
	r.collection = db.Collection(r.collectionName)

	if err := r.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return r, nil
}

func (r *MongoRegistry) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "fingerprint", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "product", Value: 1},
				{Key: "last_seen_at", Value: 1},
			},
		},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *MongoRegistry) Register(ctx context.Context, node Node) (*Node, error) {
	now := time.Now()
	filter := bson.M{"fingerprint": node.Fingerprint}
	update := bson.M{
		"$set": bson.M{
			"hostname":        node.Hostname,
			"os":              node.OS,
			"product":         node.Product,
			"major_version":   node.MajorVersion,
			"subscription_id": node.SubscriptionID,
			"last_seen_at":    now,
		},
		"$setOnInsert": bson.M{
			"registered_at": now,
		},
	}

	// ReturnDocument=After keeps registered_at from the first registration.
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	var result Node
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result)
	if err != nil {
		return nil, fmt.Errorf("register node: %w", err)
	}
	return &result, nil
}

func (r *MongoRegistry) Deregister(ctx context.Context, fingerprint string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"fingerprint": fingerprint}); err != nil {
		return fmt.Errorf("deregister node: %w", err)
	}
	return nil
}

func (r *MongoRegistry) Count(ctx context.Context, product string) (int, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"product": product})
	if err != nil {
		return 0, fmt.Errorf("count nodes: %w", err)
	}
	return int(count), nil
}

func (r *MongoRegistry) List(ctx context.Context, product string) ([]Node, error) {
	filter := bson.M{}
	if product != "" {
		filter["product"] = product
	}
	opts := options.Find().SetSort(bson.D{{Key: "registered_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	var nodes []Node
	if err := cursor.All(ctx, &nodes); err != nil {
		return nil, fmt.Errorf("decode nodes: %w", err)
	}
	return nodes, nil
}

func (r *MongoRegistry) Ping(ctx context.Context, fingerprint string) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"fingerprint": fingerprint},
		bson.M{"$set": bson.M{"last_seen_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("ping node: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNodeNotFound
	}
	return nil
}

func (r *MongoRegistry) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	result, err := r.collection.DeleteMany(ctx, bson.M{
		"last_seen_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("prune nodes: %w", err)
	}
	return int(result.DeletedCount), nil
}

func (r *MongoRegistry) Close(_ context.Context) error {
	return nil // caller manages the mongo.Database lifecycle
}
