package stores

import (
	"context"
	"errors"

	"github.com/auditdesk/auditdesk/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository defines persistence operations for stores and zones.
// Get returns (nil, nil) when the store does not exist.
type Repository interface {
	List(ctx context.Context) ([]models.Store, error)
	Get(ctx context.Context, id string) (*models.Store, error)
	Insert(ctx context.Context, s *models.Store) error
	Update(ctx context.Context, s *models.Store) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int64, error)
	Zones(ctx context.Context) ([]models.Zone, error)
}

type MongoRepository struct {
	stores *mongo.Collection
	zones  *mongo.Collection
}

func NewMongoRepository(stores, zones *mongo.Collection) *MongoRepository {
	return &MongoRepository{stores: stores, zones: zones}
}

func (r *MongoRepository) List(ctx context.Context) ([]models.Store, error) {
	cur, err := r.stores.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := []models.Store{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) Get(ctx context.Context, id string) (*models.Store, error) {
	var s models.Store
	if err := r.stores.FindOne(ctx, bson.M{"_id": id}).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *MongoRepository) Insert(ctx context.Context, s *models.Store) error {
	_, err := r.stores.InsertOne(ctx, s)
	return err
}

func (r *MongoRepository) Update(ctx context.Context, s *models.Store) (bool, error) {
	res, err := r.stores.UpdateByID(ctx, s.ID, bson.M{"$set": bson.M{
		"name":    s.Name,
		"address": s.Address,
		"zone_id": s.ZoneID,
	}})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *MongoRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.stores.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *MongoRepository) Count(ctx context.Context) (int64, error) {
	return r.stores.CountDocuments(ctx, bson.M{})
}

func (r *MongoRepository) Zones(ctx context.Context) ([]models.Zone, error) {
	cur, err := r.zones.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	out := []models.Zone{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
