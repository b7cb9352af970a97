package sessions

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository provides session persistence operations keyed by device id.
// Get returns (nil, nil) when nothing is stored.
type Repository interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, deviceID string) (*Session, error)
	Delete(ctx context.Context, deviceID string) error
}

// MongoRepository implements Repository using a Mongo collection
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) Save(ctx context.Context, s *Session) error {
	if s.SavedAt.IsZero() {
		s.SavedAt = time.Now().UTC()
	}
	opts := options.Replace().SetUpsert(true)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": s.DeviceID}, s, opts)
	return err
}

func (r *MongoRepository) Get(ctx context.Context, deviceID string) (*Session, error) {
	var s Session
	if err := r.col.FindOne(ctx, bson.M{"_id": deviceID}).Decode(&s); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *MongoRepository) Delete(ctx context.Context, deviceID string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": deviceID})
	return err
}
