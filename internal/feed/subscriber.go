package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	ws "github.com/coder/websocket"
	"github.com/sethvargo/go-retry"
)

const pingInterval = 30 * time.Second

// State is the lifecycle of one subscription.
type State int

const (
	Unsubscribed State = iota
	Subscribing
	Active
)

func (s State) String() string {
	switch s {
	case Subscribing:
		return "subscribing"
	case Active:
		return "active"
	default:
		return "unsubscribed"
	}
}

// Event is one row-level mutation pushed by the store, already filtered to
// the subscribed scope. Consumers reload the whole collection rather than
// patching fields: events may arrive coalesced or out of order.
type Event struct {
	Type       string `json:"type"`
	Collection string `json:"collection"`
	Action     string `json:"action"`
	ID         string `json:"id,omitempty"`
}

// Handler receives change events. It runs on the subscriber's goroutine.
type Handler func(Event)

// Subscriber maintains one long-lived change-feed connection for a single
// (scope, collection) pair. On connection loss it redials with capped
// backoff until cancelled.
type Subscriber struct {
	baseURL    string
	scope      string
	collection string
	handler    Handler
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSubscriber creates an unsubscribed subscriber. httpClient may be nil.
func NewSubscriber(baseURL, scope, collection string, handler Handler, httpClient *http.Client, logger *slog.Logger) *Subscriber {
	return &Subscriber{
		baseURL:    baseURL,
		scope:      scope,
		collection: collection,
		handler:    handler,
		httpClient: httpClient,
		logger:     logger,
	}
}

// State returns the current lifecycle state.
func (s *Subscriber) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Subscriber) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Subscribe starts the connection loop. It returns immediately; the
// subscription dials and redials in the background until Unsubscribe.
func (s *Subscriber) Subscribe(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.state = Subscribing
	s.mu.Unlock()

	go s.run(ctx)
}

// Unsubscribe tears the connection down and blocks until the read loop has
// exited, so no event is delivered after it returns.
func (s *Subscriber) Unsubscribe() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	s.setState(Unsubscribed)
}

func (s *Subscriber) feedURL() string {
	q := url.Values{"fam": {s.scope}, "collection": {s.collection}}
	return fmt.Sprintf("%s/api/changes?%s", s.baseURL, q.Encode())
}

func (s *Subscriber) run(ctx context.Context) {
	defer close(s.done)
	defer s.setState(Unsubscribed)

	for {
		conn, err := s.dial(ctx)
		if err != nil {
			// Only a cancelled context ends the dial loop.
			return
		}

		s.setState(Active)
		s.readPump(ctx, conn)
		conn.Close(ws.StatusNormalClosure, "")

		if ctx.Err() != nil {
			return
		}
		s.setState(Subscribing)
		s.logger.Warn("change feed disconnected, redialing",
			"collection", s.collection, "fam", s.scope)
	}
}

// dial connects with capped fibonacci backoff until it succeeds or ctx ends.
func (s *Subscriber) dial(ctx context.Context) (*ws.Conn, error) {
	var conn *ws.Conn
	backoff := retry.WithCappedDuration(30*time.Second, retry.NewFibonacci(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, _, err := ws.Dial(ctx, s.feedURL(), &ws.DialOptions{HTTPClient: s.httpClient})
		if err != nil {
			s.logger.Debug("change feed dial failed",
				"collection", s.collection, "error", err)
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// readPump reads events until the connection drops or ctx is cancelled. It
// also pings periodically to detect stale connections.
func (s *Subscriber) readPump(ctx context.Context, conn *ws.Conn) {
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.Ping(pingCtx); err != nil {
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Warn("change feed: bad event", "error", err)
			continue
		}
		if ev.Collection == "" {
			ev.Collection = s.collection
		}
		s.handler(ev)
	}
}
