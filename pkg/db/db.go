package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustland/ting.fm-sub000/pkg/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoClient wraps the MongoDB client and the podcasts collection.
type MongoClient struct {
	mongoClient *mongo.Client
	database    *mongo.Database
	collection  *mongo.Collection
}

// NewMongoClient creates a new database client
func NewMongoClient(connectionString, databaseName, collectionName string) *MongoClient {
	clientOptions := options.Client().ApplyURI(connectionString)
	mongoClient, err := mongo.Connect(context.Background(), clientOptions)
	if err != nil {
		// Return client with nil - error will be caught during Connect()
		return &MongoClient{}
	}

	database := mongoClient.Database(databaseName)
	collection := database.Collection(collectionName)

	return &MongoClient{
		mongoClient: mongoClient,
		database:    database,
		collection:  collection,
	}
}

// Connect establishes connection to MongoDB
func (c *MongoClient) Connect(ctx context.Context) error {
	if c.mongoClient == nil {
		return fmt.Errorf("mongo client not initialized")
	}
	return c.mongoClient.Ping(ctx, nil)
}

// Close closes the MongoDB connection
func (c *MongoClient) Close(ctx context.Context) error {
	if c.mongoClient == nil {
		return nil
	}
	return c.mongoClient.Disconnect(ctx)
}

// Save upserts the podcast keyed by its id field.
func (c *MongoClient) Save(ctx context.Context, p *domain.Podcast) error {
	if c.collection == nil {
		return fmt.Errorf("collection not initialized")
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	filter := bson.M{"id": p.ID}
	update := bson.M{"$set": p}
	opts := options.Update().SetUpsert(true)

	if _, err := c.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("save podcast %s: %w", p.ID, err)
	}
	return nil
}

func (c *MongoClient) Get(ctx context.Context, id string) (*domain.Podcast, error) {
	if c.collection == nil {
		return nil, fmt.Errorf("collection not initialized")
	}

	var p domain.Podcast
	err := c.collection.FindOne(ctx, bson.M{"id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s: %w", id, ErrPodcastNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get podcast %s: %w", id, err)
	}
	return &p, nil
}

func (c *MongoClient) UpdateAudioURL(ctx context.Context, id, audioURL string) error {
	if c.collection == nil {
		return fmt.Errorf("collection not initialized")
	}

	update := bson.M{"$set": bson.M{"audio_url": audioURL, "updated_at": time.Now().UTC()}}
	res, err := c.collection.UpdateOne(ctx, bson.M{"id": id}, update)
	if err != nil {
		return fmt.Errorf("update audio url for %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", id, ErrPodcastNotFound)
	}
	return nil
}
