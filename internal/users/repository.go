package users

import (
	"context"
	"errors"

	"github.com/auditdesk/auditdesk/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProfileRepository defines persistence operations for user profiles.
// GetByID returns (nil, nil) when no profile row exists.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	List(ctx context.Context) ([]models.Profile, error)
	Insert(ctx context.Context, p *models.Profile) error
	Update(ctx context.Context, p *models.Profile) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// MongoProfileRepository implements ProfileRepository on the user_profiles collection.
type MongoProfileRepository struct {
	col *mongo.Collection
}

func NewMongoProfileRepository(col *mongo.Collection) *MongoProfileRepository {
	return &MongoProfileRepository{col: col}
}

func (r *MongoProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *MongoProfileRepository) List(ctx context.Context) ([]models.Profile, error) {
	cur, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "full_name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := []models.Profile{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoProfileRepository) Insert(ctx context.Context, p *models.Profile) error {
	_, err := r.col.InsertOne(ctx, p)
	return err
}

func (r *MongoProfileRepository) Update(ctx context.Context, p *models.Profile) (bool, error) {
	set := bson.M{
		"email":     p.Email,
		"full_name": p.FullName,
		"role":      p.Role,
	}
	update := bson.M{"$set": set}
	if p.StoreID != nil {
		set["store_id"] = *p.StoreID
	} else {
		update["$unset"] = bson.M{"store_id": ""}
	}
	res, err := r.col.UpdateByID(ctx, p.ID, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *MongoProfileRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
