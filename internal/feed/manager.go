package feed

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
)

// Config holds change-feed connection settings.
type Config struct {
	// BaseURL of the remote store, e.g. "https://store.example".
	BaseURL string
	// HTTPClient overrides the websocket dial transport when set.
	HTTPClient *http.Client
}

// Manager owns the active subscriptions for one device: at most one per
// collection at any time. Switching scope tears every old subscription down
// before dialing the new ones, so no stale-scope event is ever delivered.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	scope string
	subs  map[string]*Subscriber
}

func NewManager(cfg Config, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger,
		subs:   make(map[string]*Subscriber),
	}
}

// Scope returns the currently subscribed scope, or "".
func (m *Manager) Scope() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scope
}

// State returns the state of the subscription for a collection.
func (m *Manager) State(collection string) State {
	m.mu.Lock()
	sub := m.subs[collection]
	m.mu.Unlock()

	if sub == nil {
		return Unsubscribed
	}
	return sub.State()
}

// Switch subscribes the given collections under scope, replacing whatever
// was active before. Teardown of the old scope completes before the first
// new dial starts.
func (m *Manager) Switch(ctx context.Context, scope string, collections []string, handler Handler) {
	m.mu.Lock()
	old := m.subs
	m.subs = make(map[string]*Subscriber, len(collections))
	m.scope = scope
	m.mu.Unlock()

	for _, sub := range old {
		sub.Unsubscribe()
	}

	for _, collection := range collections {
		sub := NewSubscriber(m.cfg.BaseURL, scope, collection, handler, m.cfg.HTTPClient, m.logger)
		sub.Subscribe(ctx)

		m.mu.Lock()
		m.subs[collection] = sub
		m.mu.Unlock()
	}
}

// Close tears down every subscription and blocks until all read loops exit.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := m.subs
	m.subs = make(map[string]*Subscriber)
	m.scope = ""
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}
