// Package notifications keeps the signed-in user's notification list current:
// an initial page from the backend plus inserts pushed over the realtime bus.
package notifications

import (
	"context"
	"sync"

	"github.com/auditdesk/auditdesk/internal/apperrors"
	"github.com/auditdesk/auditdesk/internal/auth"
	"github.com/auditdesk/auditdesk/internal/models"
	"github.com/auditdesk/auditdesk/internal/realtime"
	"github.com/auditdesk/auditdesk/pkg/logger"
	"github.com/auditdesk/auditdesk/pkg/metrics"
)

// PageSize is how many of the newest notifications the feed loads.
const PageSize = 50

// IdentitySource reports session changes; *auth.Store satisfies it.
type IdentitySource interface {
	Subscribe(fn func(auth.Snapshot)) (unsubscribe func())
}

// Snapshot is a consistent copy of the feed state.
type Snapshot struct {
	UserID        string                `json:"-"`
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unread_count"`
	Loading       bool                  `json:"loading"`
}

// Feed is the notification list of the current identity. It is safe for
// concurrent use.
type Feed struct {
	repo Repository
	bus  realtime.Subscriber
	log  *logger.Component

	mu      sync.Mutex
	userID  string
	gen     uint64
	items   []models.Notification
	loading bool
	cancel  context.CancelFunc
	sub     realtime.Subscription

	pubMu    sync.Mutex
	wmu      sync.Mutex
	watchers map[int]chan Snapshot
	nextW    int
}

func NewFeed(repo Repository, bus realtime.Subscriber) *Feed {
	return &Feed{
		repo:     repo,
		bus:      bus,
		log:      logger.For("notifications"),
		watchers: map[int]chan Snapshot{},
	}
}

// Bind follows the identity of src until the returned func is called.
func (f *Feed) Bind(src IdentitySource) (unbind func()) {
	unsubscribe := src.Subscribe(func(s auth.Snapshot) {
		f.SetUser(s.UserID())
	})
	return func() {
		unsubscribe()
		f.SetUser("")
	}
}

// SetUser switches the feed to userID; "" tears it down. The previous
// identity's subscription and outstanding load are cancelled and anything
// they deliver afterwards is dropped.
func (f *Feed) SetUser(userID string) {
	f.mu.Lock()
	if userID == f.userID {
		f.mu.Unlock()
		return
	}
	f.teardownLocked()
	f.gen++
	f.userID = userID
	f.items = nil
	if userID == "" {
		f.loading = false
		f.mu.Unlock()
		f.publish()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.loading = true
	gen := f.gen
	f.mu.Unlock()

	f.publish()
	go f.start(ctx, gen, userID)
}

func (f *Feed) teardownLocked() {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	if f.sub != nil {
		_ = f.sub.Close()
		f.sub = nil
	}
}

// Close drops the current identity and stops background work.
func (f *Feed) Close() {
	f.SetUser("")
}

func (f *Feed) start(ctx context.Context, gen uint64, userID string) {
	// Subscribe before loading so rows inserted during the load are not lost.
	if f.bus != nil {
		sub, err := f.bus.Subscribe(ctx, realtime.Filter{
			Table:  "notifications",
			Event:  realtime.Insert,
			Column: "user_id",
			Value:  userID,
		})
		if err != nil {
			if ctx.Err() == nil {
				f.log.Errorf("subscribe for %s: %v", userID, err)
			}
		} else {
			f.mu.Lock()
			if gen != f.gen {
				f.mu.Unlock()
				_ = sub.Close()
				return
			}
			f.sub = sub
			f.mu.Unlock()
			go f.consume(gen, userID, sub)
		}
	}

	list, err := f.repo.ListRecent(ctx, userID, PageSize)

	f.mu.Lock()
	if gen != f.gen {
		f.mu.Unlock()
		return
	}
	if err != nil {
		f.log.Errorf("load notifications for %s: %v", userID, err)
	} else {
		f.items = mergeLive(f.items, list)
	}
	f.loading = false
	f.mu.Unlock()
	f.publish()
}

// mergeLive puts live inserts the loaded page does not contain in front of it.
func mergeLive(live, loaded []models.Notification) []models.Notification {
	have := make(map[string]bool, len(loaded))
	for _, n := range loaded {
		have[n.ID] = true
	}
	out := make([]models.Notification, 0, len(live)+len(loaded))
	for _, n := range live {
		if !have[n.ID] {
			out = append(out, n)
		}
	}
	return append(out, loaded...)
}

func (f *Feed) consume(gen uint64, userID string, sub realtime.Subscription) {
	for ev := range sub.Events() {
		if ev.Type != realtime.Insert {
			continue
		}
		var n models.Notification
		if err := ev.Decode(&n); err != nil {
			f.log.Warnf("undecodable notification: %v", err)
			continue
		}
		if n.UserID != userID {
			continue
		}

		f.mu.Lock()
		if gen != f.gen {
			f.mu.Unlock()
			return
		}
		dup := false
		for _, cur := range f.items {
			if cur.ID == n.ID {
				dup = true
				break
			}
		}
		if !dup {
			f.items = append([]models.Notification{n}, f.items...)
		}
		f.mu.Unlock()

		if !dup {
			metrics.NotificationsReceived.Inc()
			f.publish()
		}
	}
}

// Reload replaces the list with the backend's current page. Use it to
// reconcile after a failed write.
func (f *Feed) Reload(ctx context.Context) error {
	f.mu.Lock()
	gen, userID := f.gen, f.userID
	f.mu.Unlock()
	if userID == "" {
		return nil
	}
	list, err := f.repo.ListRecent(ctx, userID, PageSize)
	if err != nil {
		return apperrors.DataAccess("load notifications", err)
	}
	f.mu.Lock()
	if gen == f.gen {
		f.items = list
		f.loading = false
	}
	f.mu.Unlock()
	f.publish()
	return nil
}

// MarkAsRead flips the notification to read locally, then writes it through.
// A failed write is returned but the local flag is not rolled back. Only
// rows of the current user are written.
func (f *Feed) MarkAsRead(ctx context.Context, id string) error {
	f.mu.Lock()
	userID := f.userID
	if userID == "" {
		f.mu.Unlock()
		return apperrors.New(apperrors.KindNotFound, "no notifications without a signed-in user")
	}
	changed := false
	for i := range f.items {
		if f.items[i].ID == id && !f.items[i].Read {
			f.items[i].Read = true
			changed = true
		}
	}
	f.mu.Unlock()
	if changed {
		f.publish()
	}

	if err := f.repo.MarkRead(ctx, userID, id); err != nil {
		metrics.RemoteWriteFailures.WithLabelValues("mark_notification_read").Inc()
		f.log.Errorf("mark %s read: %v", id, err)
		return apperrors.DataAccess("mark notification read", err)
	}
	return nil
}

// MarkAllAsRead marks every unread notification of the user read. It does
// nothing when nothing is unread, and changes local state only after the
// backend accepted the write.
func (f *Feed) MarkAllAsRead(ctx context.Context) error {
	f.mu.Lock()
	gen, userID := f.gen, f.userID
	unread := map[string]bool{}
	for _, n := range f.items {
		if !n.Read {
			unread[n.ID] = true
		}
	}
	f.mu.Unlock()
	if userID == "" || len(unread) == 0 {
		return nil
	}

	if err := f.repo.MarkAllRead(ctx, userID); err != nil {
		metrics.RemoteWriteFailures.WithLabelValues("mark_all_notifications_read").Inc()
		f.log.Errorf("mark all read for %s: %v", userID, err)
		return apperrors.DataAccess("mark all notifications read", err)
	}

	f.mu.Lock()
	if gen == f.gen {
		for i := range f.items {
			if unread[f.items[i].ID] {
				f.items[i].Read = true
			}
		}
	}
	f.mu.Unlock()
	f.publish()
	return nil
}

// Snapshot returns the current state.
func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := Snapshot{
		UserID:        f.userID,
		Notifications: append([]models.Notification{}, f.items...),
		Loading:       f.loading,
	}
	for _, n := range f.items {
		if !n.Read {
			s.UnreadCount++
		}
	}
	return s
}

func (f *Feed) Notifications() []models.Notification { return f.Snapshot().Notifications }

func (f *Feed) UnreadCount() int { return f.Snapshot().UnreadCount }

func (f *Feed) Loading() bool { return f.Snapshot().Loading }

// Watch streams snapshots until ctx is done. Slow readers only see the latest.
func (f *Feed) Watch(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	f.wmu.Lock()
	id := f.nextW
	f.nextW++
	f.watchers[id] = ch
	f.wmu.Unlock()

	f.pubMu.Lock()
	offer(ch, f.Snapshot())
	f.pubMu.Unlock()

	go func() {
		<-ctx.Done()
		f.pubMu.Lock()
		f.wmu.Lock()
		delete(f.watchers, id)
		f.wmu.Unlock()
		close(ch)
		f.pubMu.Unlock()
	}()
	return ch
}

func (f *Feed) publish() {
	f.pubMu.Lock()
	defer f.pubMu.Unlock()
	s := f.Snapshot()
	metrics.NotificationsUnread.Set(float64(s.UnreadCount))

	f.wmu.Lock()
	chans := make([]chan Snapshot, 0, len(f.watchers))
	for _, ch := range f.watchers {
		chans = append(chans, ch)
	}
	f.wmu.Unlock()
	for _, ch := range chans {
		offer(ch, s)
	}
}

// offer replaces whatever is buffered in ch with s.
func offer(ch chan Snapshot, s Snapshot) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
