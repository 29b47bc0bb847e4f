package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"go.pilab.hu/kerja/domain"
)

// SessionsCollection holds one document per issued token.
const SessionsCollection = "auth_sessions"

// MongoStore implements domain.SessionStore on a MongoDB collection, for
// deployments where several instances share the session set.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoStore connects to MongoDB and ensures the token index exists.
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	clientOptions := options.Client().ApplyURI(uri)
	clientOptions.SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB primary: %w", err)
	}

	collection := client.Database(dbName).Collection(SessionsCollection)

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Msg("issue creating indexes for auth_sessions collection (might already exist)")
	}

	return &MongoStore{client: client, collection: collection}, nil
}

// Put upserts the token-to-credential mapping.
func (s *MongoStore) Put(ctx context.Context, token, credential string) error {
	update := bson.M{
		"$set": bson.M{
			"credential": credential,
			"created_at": time.Now().UTC(),
		},
		"$setOnInsert": bson.M{"_id": uuid.NewString()},
	}
	opts := options.UpdateOne().SetUpsert(true)
	if _, err := s.collection.UpdateOne(ctx, bson.M{"token": token}, update, opts); err != nil {
		log.Error().Err(err).Msg("error storing session in MongoDB")
		return err
	}

	return nil
}

// Get returns the credential for token, or domain.ErrSessionNotFound.
func (s *MongoStore) Get(ctx context.Context, token string) (string, error) {
	var session domain.Session
	err := s.collection.FindOne(ctx, bson.M{"token": token}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", domain.ErrSessionNotFound
		}
		log.Error().Err(err).Msg("error getting session from MongoDB")
		return "", err
	}

	return session.Credential, nil
}

// Remove deletes the session. Deleting an absent token is a no-op.
func (s *MongoStore) Remove(ctx context.Context, token string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.M{"token": token}); err != nil {
		log.Error().Err(err).Msg("error deleting session from MongoDB")
		return err
	}

	return nil
}

// Count returns the number of stored sessions, or 0 on error.
func (s *MongoStore) Count(ctx context.Context) int {
	count, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		log.Error().Err(err).Msg("error counting sessions in MongoDB")
		return 0
	}

	return int(count)
}

// Close disconnects the MongoDB client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var _ domain.SessionStore = (*MongoStore)(nil)
