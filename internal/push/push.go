package push

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/NicoCorMar13/planing-familiar/internal/remote"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrPermissionDenied is returned when the user declines the notification
// permission prompt. The feature stays off; the rest of the app is
// unaffected.
var ErrPermissionDenied = errors.New("notification permission denied")

// ErrUnsupportedPlatform is returned when the platform has no push
// capability at all.
var ErrUnsupportedPlatform = errors.New("platform does not support push")

// Payload is the JSON carried by a push message.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Platform is the push capability boundary of the device: permission
// prompts and endpoint issuance live behind it.
type Platform interface {
	// Supported reports whether the platform can deliver push at all.
	Supported() bool
	// RequestPermission prompts the user. False means declined.
	RequestPermission(ctx context.Context) (bool, error)
	// Subscribe obtains an endpoint/key bundle from the push service,
	// bound to the given application server key.
	Subscribe(ctx context.Context, applicationServerKey string) (*webpush.Subscription, error)
}

// Config holds push registration settings.
type Config struct {
	// BackendURL is the notification backend base URL.
	BackendURL string
	// ApplicationServerKey is the fixed VAPID public key.
	ApplicationServerKey string
	DeviceID             string
	HTTPClient           *http.Client
}

// Manager drives the permission/subscription handshake and registers the
// resulting endpoint with the backend, tagged with scope and device id so
// fan-out can exclude the originator.
type Manager struct {
	platform   Platform
	cfg        Config
	httpClient *http.Client
}

func NewManager(platform Platform, cfg Config) *Manager {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Manager{platform: platform, cfg: cfg, httpClient: httpClient}
}

type subscribeRequest struct {
	Fam          string               `json:"fam"`
	DeviceID     string               `json:"deviceId"`
	Subscription webpush.Subscription `json:"subscription"`
}

// Enable runs the full handshake. Safe to call again after a failure or to
// refresh a registration: the backend keeps one subscription per
// (device, scope) and replaces on conflict.
func (m *Manager) Enable(ctx context.Context, scope string) error {
	if scope == "" {
		return remote.ErrMissingScope
	}
	if !m.platform.Supported() {
		return ErrUnsupportedPlatform
	}

	granted, err := m.platform.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("request permission: %w", err)
	}
	if !granted {
		return ErrPermissionDenied
	}

	sub, err := m.platform.Subscribe(ctx, m.cfg.ApplicationServerKey)
	if err != nil {
		return fmt.Errorf("platform subscribe: %w", err)
	}

	return m.register(ctx, scope, sub)
}

func (m *Manager) register(ctx context.Context, scope string, sub *webpush.Subscription) error {
	body, err := json.Marshal(subscribeRequest{
		Fam:          scope,
		DeviceID:     m.cfg.DeviceID,
		Subscription: *sub,
	})
	if err != nil {
		return fmt.Errorf("marshal subscription: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BackendURL+"/api/subscribe", bytes.NewReader(body))
	if err != nil {
		return &remote.Error{Op: "push subscribe", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return &remote.Error{Op: "push subscribe", Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return &remote.Error{Op: "push subscribe", Status: resp.StatusCode}
	}
	return nil
}

// GenerateSubscriptionKeys creates the client half of a push subscription:
// an ECDH P-256 public key (p256dh) and a 16-byte auth secret, both
// base64url without padding.
func GenerateSubscriptionKeys() (p256dh, auth string, err error) {
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate ECDH key: %w", err)
	}

	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		return "", "", fmt.Errorf("generate auth secret: %w", err)
	}

	p256dh = base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes())
	auth = base64.RawURLEncoding.EncodeToString(secret)
	return p256dh, auth, nil
}
