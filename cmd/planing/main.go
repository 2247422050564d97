package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NicoCorMar13/planing-familiar/internal/database"
	"github.com/NicoCorMar13/planing-familiar/internal/logging"
	"github.com/NicoCorMar13/planing-familiar/internal/notify"
	"github.com/NicoCorMar13/planing-familiar/internal/push"
	"github.com/NicoCorMar13/planing-familiar/internal/session"
	"github.com/NicoCorMar13/planing-familiar/internal/store"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Optional: local overrides for development.
	godotenv.Load()

	logger := logging.Setup(os.Getenv("PLANING_LOG_LEVEL"), os.Getenv("PLANING_LOG_FORMAT"))

	storeURL := os.Getenv("PLANING_STORE_URL")
	if storeURL == "" {
		slog.Error("PLANING_STORE_URL is required")
		os.Exit(1)
	}

	backendURL := os.Getenv("PLANING_BACKEND_URL")
	if backendURL == "" {
		backendURL = storeURL
	}

	appOrigin := os.Getenv("PLANING_APP_ORIGIN")
	if appOrigin == "" {
		appOrigin = storeURL
	}

	dbPath := os.Getenv("PLANING_DB_PATH")
	if dbPath == "" {
		dbPath = "planing.db"
	}

	agentAddr := os.Getenv("PLANING_AGENT_ADDR")
	if agentAddr == "" {
		agentAddr = "localhost:8765"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	identity := store.NewIdentityStore(db)
	deviceID, err := identity.DeviceID()
	if err != nil {
		slog.Error("resolve device id", "error", err)
		os.Exit(1)
	}

	fam, err := resolveFamilyCode(identity)
	if err != nil {
		slog.Error("resolve family code", "error", err,
			"hint", "set PLANING_FAM, e.g. "+store.SuggestFamilyCode())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess := session.New(session.Config{
		StoreURL: storeURL,
		DeviceID: deviceID,
		MonthKey: os.Getenv("PLANING_MONTH"),
		Snapshot: store.NewShoppingStore(db),
		Logger:   logger,
	})
	if err := sess.Open(ctx, fam); err != nil {
		slog.Error("open session", "fam", fam, "error", err)
		os.Exit(1)
	}
	defer sess.Close()

	if raw := os.Getenv("PLANING_START_URL"); raw != "" {
		if target, ok := sess.HandleDeepLink(raw); ok {
			slog.Info("applied start deep link", "day", target.Day, "view", target.View)
		}
	}

	router, err := notify.NewRouter(appOrigin, &logNotifier{logger: logger}, &deepLinkWindows{sess: sess}, logger)
	if err != nil {
		slog.Error("create notification router", "error", err)
		os.Exit(1)
	}
	go router.Run(ctx)

	httpServer := &http.Server{
		Addr:              agentAddr,
		Handler:           agentMux(router),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		slog.Info("agent endpoint listening", "addr", agentAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("agent endpoint error", "error", err)
			os.Exit(1)
		}
	}()

	enablePush(ctx, backendURL, deviceID, fam, agentAddr)

	slog.Info("agent running", "fam", fam, "device", deviceID, "store", storeURL)
	<-ctx.Done()

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	select {
	case <-router.Done():
	case <-shutdownCtx.Done():
	}
}

// resolveFamilyCode prefers the environment, persisting it for next start,
// and falls back to the stored code.
func resolveFamilyCode(identity *store.IdentityStore) (string, error) {
	if fam := os.Getenv("PLANING_FAM"); fam != "" {
		if err := identity.SetFamilyCode(fam); err != nil {
			return "", err
		}
		return fam, nil
	}

	fam, err := identity.FamilyCode()
	if err != nil {
		return "", err
	}
	if fam == "" {
		return "", errors.New("no family code configured")
	}
	return fam, nil
}

// agentMux serves the device's local endpoint: incoming push deliveries and
// prometheus metrics.
func agentMux(router *notify.Router) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/push", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		router.HandlePush(body)
		w.WriteHeader(http.StatusCreated)
	})
	return mux
}

// enablePush registers this device's /push endpoint with the notification
// backend. Push is optional: without a VAPID key the agent still syncs.
func enablePush(ctx context.Context, backendURL, deviceID, fam, agentAddr string) {
	vapidKey := os.Getenv("PLANING_VAPID_PUBLIC_KEY")
	if vapidKey == "" {
		slog.Info("push disabled: PLANING_VAPID_PUBLIC_KEY not set")
		return
	}

	endpoint := os.Getenv("PLANING_PUSH_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://" + agentAddr + "/push"
	}

	mgr := push.NewManager(&agentPlatform{endpoint: endpoint}, push.Config{
		BackendURL:           backendURL,
		ApplicationServerKey: vapidKey,
		DeviceID:             deviceID,
	})
	if err := mgr.Enable(ctx, fam); err != nil {
		slog.Warn("push registration failed", "error", err)
		return
	}
	slog.Info("push enabled", "endpoint", endpoint)
}

// agentPlatform implements the push capability for the headless agent: the
// operator configuring an endpoint is the permission grant, and the
// subscription keys are generated locally.
type agentPlatform struct {
	endpoint string
}

func (p *agentPlatform) Supported() bool { return true }

func (p *agentPlatform) RequestPermission(ctx context.Context) (bool, error) {
	return true, nil
}

func (p *agentPlatform) Subscribe(ctx context.Context, applicationServerKey string) (*webpush.Subscription, error) {
	p256dh, auth, err := push.GenerateSubscriptionKeys()
	if err != nil {
		return nil, err
	}
	return &webpush.Subscription{
		Endpoint: p.endpoint,
		Keys:     webpush.Keys{P256dh: p256dh, Auth: auth},
	}, nil
}

// logNotifier renders notifications to the agent's log.
type logNotifier struct {
	logger *slog.Logger
}

func (n *logNotifier) Show(ctx context.Context, notification notify.Notification) error {
	n.logger.Info("notification",
		"title", notification.Title,
		"body", notification.Body,
		"tag", notification.Tag,
		"url", notification.URL)
	return nil
}

// deepLinkWindows routes notification taps into the running session instead
// of a browser window.
type deepLinkWindows struct {
	sess *session.Session
}

func (w *deepLinkWindows) List(ctx context.Context) ([]notify.Window, error) {
	return nil, nil
}

func (w *deepLinkWindows) Open(ctx context.Context, url string) (notify.Window, error) {
	w.sess.HandleDeepLink(url)
	return sessionWindow{sess: w.sess}, nil
}

type sessionWindow struct {
	sess *session.Session
}

func (w sessionWindow) Focus(ctx context.Context) error { return nil }

func (w sessionWindow) Navigate(ctx context.Context, url string) error {
	w.sess.HandleDeepLink(url)
	return nil
}
