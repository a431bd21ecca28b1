package dashboard

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Event is one push notification sent to every connected dashboard client:
// threat-detected, policy-changed, or health-changed, per SPEC_FULL.md §6.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Broadcaster fans scan/policy/health events out to every websocket client
// connected at /events. It implements internal/ipc's EventPublisher
// interface structurally, so internal/ipc never imports this package.
//
// Grounded on internal/websocket/handler.go's per-connection goroutine
// model, simplified from a bidirectional proxy to a single fan-out: each
// subscriber gets its own buffered channel and a writer goroutine, so one
// slow dashboard tab can never block a scan from completing.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
	nowFunc     func() time.Time
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
		nowFunc:     time.Now,
	}
}

// Publish fans event out to every currently-connected client. When a
// subscriber's buffer is full the event is dropped for that subscriber
// (with a warning log) rather than blocking the caller; the subscriber
// stays connected — this is a best-effort notification stream, not the
// authoritative record (that's internal/policystore's threat history and
// internal/report's audit trail).
func (b *Broadcaster) Publish(eventType string, payload any) {
	evt := Event{Type: eventType, Timestamp: b.nowFunc(), Payload: payload}

	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- evt:
		default:
			slog.Warn("dashboard event dropped, subscriber too slow", "event_type", eventType)
		}
	}
}

// subscribe registers a new client channel and returns an unsubscribe func.
func (b *Broadcaster) subscribe() (chan Event, func()) {
	ch := make(chan Event, 32)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subscribers, ch)
		b.mu.Unlock()
		close(ch)
	}
}

// SubscriberCount reports how many dashboard clients are currently
// connected.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// serveEvents upgrades r to a websocket and streams events to it until the
// connection drops or ctx is cancelled, mirroring the accept/defer-close
// shape of internal/websocket/handler.go's ServeHTTP.
func (b *Broadcaster) serveEvents(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Error("dashboard: failed to accept events websocket", "error", err)
		return
	}
	defer conn.CloseNow()

	ch, unsubscribe := b.subscribe()
	defer unsubscribe()

	slog.Debug("dashboard event subscriber connected")
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "server shutting down")
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, evt)
			cancel()
			if err != nil {
				slog.Debug("dashboard: event subscriber write failed, disconnecting", "error", err)
				return
			}
		}
	}
}
