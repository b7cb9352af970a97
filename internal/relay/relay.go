// Package relay forwards inserted notification rows from the MongoDB change
// stream onto the realtime bus, one channel per recipient.
package relay

import (
	"context"
	"time"

	"github.com/auditdesk/auditdesk/internal/database"
	"github.com/auditdesk/auditdesk/internal/models"
	"github.com/auditdesk/auditdesk/internal/realtime"
	"github.com/auditdesk/auditdesk/pkg/logger"
	"github.com/auditdesk/auditdesk/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Stream is the part of *mongo.ChangeStream the relay reads.
type Stream interface {
	Next(ctx context.Context) bool
	Decode(v interface{}) error
	ResumeToken() bson.Raw
	Err() error
	Close(ctx context.Context) error
}

// Opener opens a change stream, resuming after token when it is non-nil.
type Opener func(ctx context.Context, resumeAfter bson.Raw) (Stream, error)

// Publisher is satisfied by *realtime.Bus.
type Publisher interface {
	Publish(ctx context.Context, f realtime.Filter, record interface{}) error
}

type change struct {
	FullDocument models.Notification `bson:"fullDocument"`
}

// Relay copies notification inserts to the bus until its context ends.
type Relay struct {
	open    Opener
	pub     Publisher
	backoff time.Duration
	log     *logger.Component

	resume bson.Raw
}

func New(open Opener, pub Publisher) *Relay {
	return &Relay{open: open, pub: pub, backoff: 2 * time.Second, log: logger.For("relay")}
}

// WatchNotifications opens insert-only change streams on the notifications
// collection of db.
func WatchNotifications(db *mongo.Database) Opener {
	pipeline := mongo.Pipeline{bson.D{{Key: "$match", Value: bson.D{{Key: "operationType", Value: "insert"}}}}}
	return func(ctx context.Context, resumeAfter bson.Raw) (Stream, error) {
		opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
		if resumeAfter != nil {
			opts.SetResumeAfter(resumeAfter)
		}
		return db.Collection(database.Notifications).Watch(ctx, pipeline, opts)
	}
}

// Run reopens the stream after failures, resuming from the last forwarded
// change. It returns when ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	for {
		err := r.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			r.log.Warnf("change stream stopped: %v; reopening in %s", err, r.backoff)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.backoff):
		}
	}
}

func (r *Relay) runOnce(ctx context.Context) error {
	stream, err := r.open(ctx, r.resume)
	if err != nil {
		return err
	}
	defer stream.Close(context.Background())

	for stream.Next(ctx) {
		var ev change
		if err := stream.Decode(&ev); err != nil {
			r.log.Warnf("skipping undecodable change: %v", err)
			r.resume = stream.ResumeToken()
			continue
		}
		if err := r.forward(ctx, ev.FullDocument); err != nil {
			return err
		}
		r.resume = stream.ResumeToken()
	}
	return stream.Err()
}

func (r *Relay) forward(ctx context.Context, n models.Notification) error {
	if n.UserID == "" {
		r.log.Warnf("notification %s has no recipient, not forwarded", n.ID)
		return nil
	}
	err := r.pub.Publish(ctx, realtime.Filter{
		Table:  database.Notifications,
		Event:  realtime.Insert,
		Column: "user_id",
		Value:  n.UserID,
	}, n)
	if err != nil {
		return err
	}
	metrics.RelayForwarded.Inc()
	r.log.Debugf("forwarded notification %s to %s", n.ID, n.UserID)
	return nil
}
