package audits

import (
	"context"
	"errors"

	"github.com/auditdesk/auditdesk/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Filter narrows audit listings. Zero values mean "any".
type Filter struct {
	StoreID string
	Status  models.AuditStatus
	Limit   int64
	// StoreName is a case-insensitive substring of the store name. The
	// service resolves it into StoreIDs; repositories ignore it.
	StoreName string
	// StoreIDs, when non-nil, restricts results to these stores.
	StoreIDs []string
}

// Repository defines persistence for audits, their answers and photos, and
// the checklist they are scored against. Get returns (nil, nil) when missing.
type Repository interface {
	List(ctx context.Context, f Filter) ([]models.Audit, error)
	Count(ctx context.Context, f Filter) (int64, error)
	Get(ctx context.Context, id string) (*models.Audit, error)
	Categories(ctx context.Context) ([]models.ChecklistCategory, error)
	Items(ctx context.Context) ([]models.ChecklistItem, error)
	InsertAudit(ctx context.Context, a *models.Audit) error
	InsertResponses(ctx context.Context, rs []models.AuditResponse) error
	InsertPhoto(ctx context.Context, p *models.AuditPhoto) error
	Responses(ctx context.Context, auditID string) ([]models.AuditResponse, error)
	Photos(ctx context.Context, auditID string) ([]models.AuditPhoto, error)
}

// Collections groups the collections MongoRepository works on.
type Collections struct {
	Audits     *mongo.Collection
	Responses  *mongo.Collection
	Photos     *mongo.Collection
	Categories *mongo.Collection
	Items      *mongo.Collection
}

type MongoRepository struct {
	c Collections
}

func NewMongoRepository(c Collections) *MongoRepository {
	return &MongoRepository{c: c}
}

func (f Filter) query() bson.M {
	q := bson.M{}
	if f.StoreID != "" {
		q["store_id"] = f.StoreID
	}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.StoreIDs != nil {
		q["$and"] = bson.A{bson.M{"store_id": bson.M{"$in": f.StoreIDs}}}
	}
	return q
}

func (r *MongoRepository) List(ctx context.Context, f Filter) ([]models.Audit, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	cur, err := r.c.Audits.Find(ctx, f.query(), opts)
	if err != nil {
		return nil, err
	}
	out := []models.Audit{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) Count(ctx context.Context, f Filter) (int64, error) {
	return r.c.Audits.CountDocuments(ctx, f.query())
}

func (r *MongoRepository) Get(ctx context.Context, id string) (*models.Audit, error) {
	var a models.Audit
	if err := r.c.Audits.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *MongoRepository) Categories(ctx context.Context) ([]models.ChecklistCategory, error) {
	out := []models.ChecklistCategory{}
	if err := findSorted(ctx, r.c.Categories, bson.M{}, "order_index", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) Items(ctx context.Context) ([]models.ChecklistItem, error) {
	out := []models.ChecklistItem{}
	if err := findSorted(ctx, r.c.Items, bson.M{}, "order_index", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) InsertAudit(ctx context.Context, a *models.Audit) error {
	_, err := r.c.Audits.InsertOne(ctx, a)
	return err
}

func (r *MongoRepository) InsertResponses(ctx context.Context, rs []models.AuditResponse) error {
	docs := make([]interface{}, len(rs))
	for i := range rs {
		docs[i] = rs[i]
	}
	_, err := r.c.Responses.InsertMany(ctx, docs)
	return err
}

func (r *MongoRepository) InsertPhoto(ctx context.Context, p *models.AuditPhoto) error {
	_, err := r.c.Photos.InsertOne(ctx, p)
	return err
}

func (r *MongoRepository) Responses(ctx context.Context, auditID string) ([]models.AuditResponse, error) {
	out := []models.AuditResponse{}
	if err := findSorted(ctx, r.c.Responses, bson.M{"audit_id": auditID}, "created_at", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) Photos(ctx context.Context, auditID string) ([]models.AuditPhoto, error) {
	out := []models.AuditPhoto{}
	if err := findSorted(ctx, r.c.Photos, bson.M{"audit_id": auditID}, "created_at", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func findSorted(ctx context.Context, col *mongo.Collection, q bson.M, field string, out interface{}) error {
	cur, err := col.Find(ctx, q, options.Find().SetSort(bson.D{{Key: field, Value: 1}}))
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}
