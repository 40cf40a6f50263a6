package mongo

import (
	"context"
	"devecho-server/core"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoStore struct {
	sessions *mongo.Collection
}

// NewStore connects to MongoDB and returns a session store backed by the
// code_sessions collection.
func NewStore(uri string) *mongoStore {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		log.Fatalf("failed to connect to mongodb: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		log.Fatalf("failed to ping mongodb: %v", err)
	}

	db := client.Database("devecho")
	sessions := db.Collection("code_sessions")

	// roomId is the lookup key for every operation and must be unique so the
	// upsert in FindOrCreate has a single winner.
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "roomId", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := sessions.Indexes().CreateOne(ctx, indexModel); err != nil {
		log.Fatalf("failed to create roomId index: %v", err)
	}

	return &mongoStore{sessions: sessions}
}

// FindOrCreate uses FindOneAndUpdate with $setOnInsert and upsert, so the
// create is a single atomic server-side operation.
func (s *mongoStore) FindOrCreate(ctx context.Context, roomID string) (*core.CodeSession, error) {
	defaults := core.NewCodeSession(roomID)

	filter := bson.M{"roomId": roomID}
	update := bson.M{"$setOnInsert": bson.M{
		"roomId":    defaults.RoomID,
		"code":      defaults.Code,
		"summary":   defaults.Summary,
		"createdAt": defaults.CreatedAt,
		"updatedAt": defaults.UpdatedAt,
	}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var session core.CodeSession
	err := s.sessions.FindOneAndUpdate(ctx, filter, update, opts).Decode(&session)
	if err != nil {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "error": err}).Error("Failed to find or create session")
		return nil, fmt.Errorf("find or create session %s: %w", roomID, core.ErrStoreUnavailable)
	}
	return &session, nil
}

func (s *mongoStore) SetCode(ctx context.Context, roomID string, code string) error {
	update := bson.M{"$set": bson.M{"code": code, "updatedAt": time.Now()}}
	if _, err := s.sessions.UpdateOne(ctx, bson.M{"roomId": roomID}, update); err != nil {
		return fmt.Errorf("set code for room %s: %w", roomID, core.ErrStoreUnavailable)
	}
	return nil
}

func (s *mongoStore) SetSummary(ctx context.Context, roomID string, summary string) error {
	update := bson.M{"$set": bson.M{"summary": summary, "updatedAt": time.Now()}}
	if _, err := s.sessions.UpdateOne(ctx, bson.M{"roomId": roomID}, update); err != nil {
		return fmt.Errorf("set summary for room %s: %w", roomID, core.ErrStoreUnavailable)
	}
	return nil
}

func (s *mongoStore) Find(ctx context.Context, roomID string) (*core.CodeSession, error) {
	var session core.CodeSession
	err := s.sessions.FindOne(ctx, bson.M{"roomId": roomID}).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("session for room %s: %w", roomID, core.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("find session %s: %w", roomID, core.ErrStoreUnavailable)
	}
	return &session, nil
}
