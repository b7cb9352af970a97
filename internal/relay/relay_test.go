package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/auditdesk/auditdesk/internal/models"
	"github.com/auditdesk/auditdesk/internal/realtime"
	"github.com/auditdesk/auditdesk/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type fakeStream struct {
	docs []bson.Raw
	i    int
	cur  bson.Raw
}

func (s *fakeStream) Next(ctx context.Context) bool {
	if s.i >= len(s.docs) {
		return false
	}
	s.cur = s.docs[s.i]
	s.i++
	return true
}

func (s *fakeStream) Decode(v interface{}) error { return bson.Unmarshal(s.cur, v) }

func (s *fakeStream) ResumeToken() bson.Raw {
	raw, _ := bson.Marshal(bson.M{"_data": s.i})
	return raw
}

func (s *fakeStream) Err() error                      { return nil }
func (s *fakeStream) Close(ctx context.Context) error { return nil }

func insertDoc(t *testing.T, n models.Notification) bson.Raw {
	t.Helper()
	raw, err := bson.Marshal(bson.M{"operationType": "insert", "fullDocument": n})
	require.NoError(t, err)
	return raw
}

func TestRelayForwardsInsertsToRecipientChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	bus := realtime.NewBus(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := bus.Subscribe(ctx, realtime.Filter{Table: "notifications", Event: realtime.Insert, Column: "user_id", Value: "u1"})
	require.NoError(t, err)
	defer sub.Close()

	before := testutil.ToFloat64(metrics.RelayForwarded)
	docs := []bson.Raw{
		insertDoc(t, models.Notification{ID: "n0", UserID: "", Title: "orphan"}),
		insertDoc(t, models.Notification{ID: "n1", UserID: "u1", Title: "Audit completed", Type: models.NotificationAuditCompleted}),
	}
	var opens int
	r := New(func(ctx context.Context, resume bson.Raw) (Stream, error) {
		opens++
		if opens == 1 {
			return &fakeStream{docs: docs}, nil
		}
		return &fakeStream{}, nil
	}, bus)
	r.backoff = 10 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case ev := <-sub.Events():
		var n models.Notification
		require.NoError(t, ev.Decode(&n))
		assert.Equal(t, "n1", n.ID)
		assert.Equal(t, realtime.Insert, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no event forwarded")
	}
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RelayForwarded))
}

// flakyPublisher fails the first publish of each id listed in failOnce.
type flakyPublisher struct {
	mu       sync.Mutex
	failOnce map[string]bool
	ids      []string
}

func (p *flakyPublisher) Publish(ctx context.Context, f realtime.Filter, record interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := record.(models.Notification).ID
	if p.failOnce[id] {
		delete(p.failOnce, id)
		return errors.New("redis unavailable")
	}
	p.ids = append(p.ids, id)
	return nil
}

func TestRelayResumesAfterLastForwardedChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	docs := []bson.Raw{
		insertDoc(t, models.Notification{ID: "n1", UserID: "u1"}),
		insertDoc(t, models.Notification{ID: "n2", UserID: "u1"}),
	}
	pub := &flakyPublisher{failOnce: map[string]bool{"n2": true}}
	var resumes []bson.Raw
	r := New(func(ctx context.Context, resume bson.Raw) (Stream, error) {
		resumes = append(resumes, resume)
		switch len(resumes) {
		case 1:
			return &fakeStream{docs: docs}, nil
		case 2:
			return &fakeStream{docs: docs[1:]}, nil
		}
		cancel()
		return nil, context.Canceled
	}, pub)
	r.backoff = time.Millisecond

	require.NoError(t, r.Run(ctx))
	require.Len(t, resumes, 3)
	assert.Nil(t, resumes[0])
	want, err := bson.Marshal(bson.M{"_data": 1})
	require.NoError(t, err)
	assert.Equal(t, bson.Raw(want), resumes[1])
	assert.Equal(t, []string{"n1", "n2"}, pub.ids)
}
