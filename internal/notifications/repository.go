package notifications

import (
	"context"
	"sort"
	"sync"

	"github.com/auditdesk/auditdesk/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository reads and updates one user's notifications.
type Repository interface {
	ListRecent(ctx context.Context, userID string, limit int64) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) error
}

type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

func (r *MongoRepository) ListRecent(ctx context.Context, userID string, limit int64) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := r.col.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	out := []models.Notification{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead only matches the row when it belongs to userID.
func (r *MongoRepository) MarkRead(ctx context.Context, userID, id string) error {
	_, err := r.col.UpdateOne(ctx, bson.M{"_id": id, "user_id": userID, "read": false}, bson.M{"$set": bson.M{"read": true}})
	return err
}

// MarkAllRead only touches unread rows so read stays monotonic.
func (r *MongoRepository) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.col.UpdateMany(ctx, bson.M{"user_id": userID, "read": false}, bson.M{"$set": bson.M{"read": true}})
	return err
}

// MemoryRepo is an in-memory Repository for tests and local runs.
type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]models.Notification
}

func NewMemoryRepo(seed ...models.Notification) *MemoryRepo {
	m := &MemoryRepo{rows: map[string]models.Notification{}}
	for _, n := range seed {
		m.rows[n.ID] = n
	}
	return m
}

// Add inserts a row as the backend would.
func (m *MemoryRepo) Add(n models.Notification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[n.ID] = n
}

// Get returns a stored row.
func (m *MemoryRepo) Get(id string) (models.Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.rows[id]
	return n, ok
}

func (m *MemoryRepo) ListRecent(ctx context.Context, userID string, limit int64) ([]models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Notification{}
	for _, n := range m.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepo) MarkRead(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.rows[id]; ok && n.UserID == userID {
		n.Read = true
		m.rows[id] = n
	}
	return nil
}

func (m *MemoryRepo) MarkAllRead(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, n := range m.rows {
		if n.UserID == userID && !n.Read {
			n.Read = true
			m.rows[id] = n
		}
	}
	return nil
}
