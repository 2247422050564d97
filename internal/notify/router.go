// Package notify is the device's notification delivery router. It runs in a
// persistent background context, independent of any foreground view: push
// payloads come in, platform notifications go out, and a tap routes the
// user to the deep-linked view.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"time"

	"github.com/NicoCorMar13/planing-familiar/internal/metrics"
	"github.com/NicoCorMar13/planing-familiar/internal/push"
)

// Fallbacks for payloads with missing fields. A push that reaches the
// device is always shown, whatever its shape.
const (
	defaultTitle = "Notificación"
	defaultURL   = "./"
	defaultTag   = "planing"
)

const handleTimeout = 10 * time.Second

// Notification is what the platform renders to the user.
type Notification struct {
	Title string
	Body  string
	Tag   string
	// URL is the deep link opened when the user taps the notification.
	URL string
}

// Notifier renders a notification on the device.
type Notifier interface {
	Show(ctx context.Context, n Notification) error
}

// Window is one open application window.
type Window interface {
	Focus(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
}

// Windows enumerates and opens application windows.
type Windows interface {
	List(ctx context.Context) ([]Window, error)
	Open(ctx context.Context, url string) (Window, error)
}

// Router is the background actor handling push delivery and notification
// interaction. Errors are logged and swallowed: there is no user present to
// address them, and the persistent context must never crash.
type Router struct {
	origin   *url.URL
	notifier Notifier
	windows  Windows
	logger   *slog.Logger

	events chan func(context.Context)
	done   chan struct{}
}

// NewRouter creates a router. origin is the application origin used to
// resolve relative deep links.
func NewRouter(origin string, notifier Notifier, windows Windows, logger *slog.Logger) (*Router, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, err
	}
	return &Router{
		origin:   u,
		notifier: notifier,
		windows:  windows,
		logger:   logger,
		events:   make(chan func(context.Context), 16),
		done:     make(chan struct{}),
	}, nil
}

// Run is the message-handling loop. Each event runs to completion on a
// context detached from ctx's cancellation (the waitUntil guard): shutdown
// waits for the in-flight render rather than tearing it down.
func (r *Router) Run(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case handle := <-r.events:
			evCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), handleTimeout)
			handle(evCtx)
			cancel()
		case <-ctx.Done():
			return
		}
	}
}

// Done is closed when the loop has exited.
func (r *Router) Done() <-chan struct{} {
	return r.done
}

// HandlePush enqueues an incoming push payload for rendering.
func (r *Router) HandlePush(data []byte) {
	r.enqueue(func(ctx context.Context) {
		r.showPush(ctx, data)
	})
}

// HandleClick enqueues a notification interaction: dismiss, then focus an
// already-open window on the deep link, or open a new one.
func (r *Router) HandleClick(n Notification) {
	r.enqueue(func(ctx context.Context) {
		r.routeClick(ctx, n)
	})
}

func (r *Router) enqueue(handle func(context.Context)) {
	select {
	case r.events <- handle:
	case <-r.done:
		r.logger.Warn("notify: event after shutdown dropped")
	}
}

func (r *Router) showPush(ctx context.Context, data []byte) {
	var payload push.Payload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			// Render with defaults anyway.
			r.logger.Warn("notify: bad push payload", "error", err)
			payload = push.Payload{}
		}
	}

	n := Notification{
		Title: payload.Title,
		Body:  payload.Body,
		Tag:   payload.Tag,
		URL:   payload.URL,
	}
	if n.Title == "" {
		n.Title = defaultTitle
	}
	if n.Tag == "" {
		n.Tag = defaultTag
	}
	if n.URL == "" {
		n.URL = defaultURL
	}

	if err := r.notifier.Show(ctx, n); err != nil {
		r.logger.Error("notify: show notification", "error", err)
		return
	}
	metrics.NotificationsShownTotal.Inc()
}

// routeClick picks the first enumerated window. The choice is arbitrary but
// deterministic; it matches how the original enumerated open clients.
func (r *Router) routeClick(ctx context.Context, n Notification) {
	target := r.resolve(n.URL)

	wins, err := r.windows.List(ctx)
	if err != nil {
		r.logger.Error("notify: list windows", "error", err)
		wins = nil
	}

	if len(wins) > 0 {
		win := wins[0]
		if err := win.Focus(ctx); err != nil {
			r.logger.Error("notify: focus window", "error", err)
		}
		if err := win.Navigate(ctx, target); err != nil {
			r.logger.Error("notify: navigate window", "error", err)
		}
		return
	}

	if _, err := r.windows.Open(ctx, target); err != nil {
		r.logger.Error("notify: open window", "error", err)
	}
}

// resolve turns the payload URL into an absolute URL on the app origin.
func (r *Router) resolve(raw string) string {
	if raw == "" {
		raw = defaultURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return r.origin.String()
	}
	return r.origin.ResolveReference(u).String()
}
