// Package realtime carries row change events from the relay to desk processes
// over Redis pub/sub. Channels are named after the change they carry:
// realtime:<table>:<event>:<column>=<value>.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/auditdesk/auditdesk/pkg/logger"
	"github.com/redis/go-redis/v9"
)

type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// Filter selects change events by table, event type and one column equality.
type Filter struct {
	Table  string
	Event  EventType
	Column string
	Value  string
}

// Channel is the pub/sub channel carrying events that match f.
func (f Filter) Channel() string {
	return fmt.Sprintf("realtime:%s:%s:%s=%s", f.Table, f.Event, f.Column, f.Value)
}

func (f Filter) validate() error {
	if f.Table == "" || f.Event == "" || f.Column == "" || f.Value == "" {
		return errors.New("realtime filter needs table, event, column and value")
	}
	return nil
}

// Event is one row change. Record holds the new row as JSON.
type Event struct {
	Table  string          `json:"table"`
	Type   EventType       `json:"type"`
	Record json.RawMessage `json:"record"`
}

// Decode unmarshals the row carried by e into v.
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Record, v)
}

// Subscription is a live feed of events. Events is closed after Close or when
// the underlying connection goes away.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Subscriber opens subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, f Filter) (Subscription, error)
}

// Bus publishes and subscribes through Redis.
type Bus struct {
	client *redis.Client
	log    *logger.Component
}

var _ Subscriber = (*Bus)(nil)

func NewBus(client *redis.Client) *Bus {
	return &Bus{client: client, log: logger.For("realtime")}
}

// Publish sends record as a change matching f.
func (b *Bus) Publish(ctx context.Context, f Filter, record interface{}) error {
	if err := f.validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(Event{Table: f.Table, Type: f.Event, Record: raw})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, f.Channel(), payload).Err()
}

// Subscribe returns once the subscription is confirmed by Redis, so events
// published after it returns are not missed.
func (b *Bus) Subscribe(ctx context.Context, f Filter) (Subscription, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	ps := b.client.Subscribe(ctx, f.Channel())
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	s := &redisSubscription{
		ps:     ps,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
		log:    b.log,
	}
	go s.pump(ps.Channel())
	return s, nil
}

type redisSubscription struct {
	ps     *redis.PubSub
	events chan Event
	done   chan struct{}
	once   sync.Once
	log    *logger.Component
}

func (s *redisSubscription) Events() <-chan Event { return s.events }

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func (s *redisSubscription) pump(msgs <-chan *redis.Message) {
	defer close(s.events)
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.log.Warnf("dropping malformed event on %s: %v", msg.Channel, err)
				continue
			}
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}
	}
}
