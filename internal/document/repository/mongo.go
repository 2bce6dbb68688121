package repository

import (
	"context"
	"fmt"

	"github.com/docflow/docflow/server/internal/document"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepo implements Repository on a MongoDB collection. Documents are keyed
// by an ObjectID hex string so ids stay opaque strings in the domain model.
type MongoRepo struct {
	col *mongo.Collection
}

func NewMongoRepo(col *mongo.Collection) *MongoRepo {
	return &MongoRepo{col: col}
}

// EnsureIndexes creates the unique tracking id index and the lookup indexes
// used by the inbox/outbox queries. Safe to call on every start.
func (m *MongoRepo) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "trackingId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "receiver", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "history.updatedBy", Value: 1}}},
	}
	if _, err := m.col.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("create document indexes: %w", err)
	}
	return nil
}

func (m *MongoRepo) Create(ctx context.Context, doc *document.Document) error {
	if doc.ID == "" {
		doc.ID = primitive.NewObjectID().Hex()
	}
	if _, err := m.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (m *MongoRepo) FindByID(ctx context.Context, id string) (*document.Document, error) {
	var d document.Document
	if err := m.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	return &d, nil
}

func (m *MongoRepo) FindBySender(ctx context.Context, userID string) ([]*document.Document, error) {
	return m.find(ctx, bson.M{"sender": userID})
}

func (m *MongoRepo) FindByReceiver(ctx context.Context, userID string) ([]*document.Document, error) {
	return m.find(ctx, bson.M{"receiver": userID})
}

func (m *MongoRepo) FindByActor(ctx context.Context, userID string) ([]*document.Document, error) {
	return m.find(ctx, bson.M{"$or": bson.A{
		bson.M{"sender": userID},
		bson.M{"history.updatedBy": userID},
	}})
}

func (m *MongoRepo) FindByParticipant(ctx context.Context, userID string) ([]*document.Document, error) {
	return m.find(ctx, bson.M{"$or": bson.A{
		bson.M{"sender": userID},
		bson.M{"receiver": userID},
		bson.M{"history.updatedBy": userID},
	}})
}

// Save replaces the record only when the stored version still matches, so a
// concurrent writer that read the same version loses with ErrStaleVersion.
func (m *MongoRepo) Save(ctx context.Context, doc *document.Document) error {
	next := doc.Clone()
	next.Version = doc.Version + 1
	res, err := m.col.ReplaceOne(ctx, bson.M{"_id": doc.ID, "version": doc.Version}, next)
	if err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := m.col.CountDocuments(ctx, bson.M{"_id": doc.ID})
		if err != nil {
			return fmt.Errorf("count document: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrStaleVersion
	}
	doc.Version = next.Version
	return nil
}

func (m *MongoRepo) find(ctx context.Context, filter bson.M) ([]*document.Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}
	defer cur.Close(ctx)
	out := []*document.Document{}
	for cur.Next(ctx) {
		var d document.Document
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		out = append(out, &d)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}
