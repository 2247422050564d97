package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NicoCorMar13/planing-familiar/internal/feed"
	"github.com/NicoCorMar13/planing-familiar/internal/model"
	"github.com/NicoCorMar13/planing-familiar/internal/push"

	webpush "github.com/SherClockHolmes/webpush-go"
	ws "github.com/coder/websocket"
)

// fakeStore is an in-memory stand-in for the remote store and notification
// backend: REST endpoints per collection, a websocket change feed, push
// subscription registration, and webpush fan-out that excludes the
// originating device.
type fakeStore struct {
	t   *testing.T
	srv *httptest.Server

	vapidPrivate string
	vapidPublic  string

	mu       sync.Mutex
	planning map[string]map[string]string        // fam → day → value
	shopping map[string][]model.ShoppingItem     // fam → items
	budgets  map[string]map[string]float64       // fam → month → initial
	expenses map[string][]model.Expense          // fam → expenses
	subs     map[string]webpush.Subscription     // fam+"|"+deviceID → bundle
	feeds    map[string][]*ws.Conn               // fam+"|"+collection → conns
	hits     map[string]int                      // path → request count
	nextID   int
}

func newFakeStore(t *testing.T) *fakeStore {
	t.Helper()

	private, public, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	fs := &fakeStore{
		t:            t,
		vapidPrivate: private,
		vapidPublic:  public,
		planning:     make(map[string]map[string]string),
		shopping:     make(map[string][]model.ShoppingItem),
		budgets:      make(map[string]map[string]float64),
		expenses:     make(map[string][]model.Expense),
		subs:         make(map[string]webpush.Subscription),
		feeds:        make(map[string][]*ws.Conn),
		hits:         make(map[string]int),
	}
	fs.srv = httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeStore) newID(prefix string) string {
	fs.nextID++
	return fmt.Sprintf("%s-%d", prefix, fs.nextID)
}

func (fs *fakeStore) hitCount(path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.hits[path]
}

func (fs *fakeStore) handle(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	fs.hits[r.URL.Path]++
	fs.mu.Unlock()

	switch r.URL.Path {
	case "/api/changes":
		fs.handleChanges(w, r)
	case "/api/planning":
		fs.handlePlanning(w, r)
	case "/api/update":
		fs.handleUpdate(w, r)
	case "/api/shopping":
		fs.handleShopping(w, r)
	case "/api/shopping/check":
		fs.handleShoppingCheck(w, r)
	case "/api/shopping/clear":
		fs.handleShoppingClear(w, r)
	case "/api/budget":
		fs.handleBudget(w, r)
	case "/api/expenses":
		fs.handleExpenses(w, r)
	case "/api/expenses/delete":
		fs.handleExpenseDelete(w, r)
	case "/api/expenses/clear":
		fs.handleExpensesClear(w, r)
	case "/api/subscribe":
		fs.handleSubscribe(w, r)
	default:
		http.NotFound(w, r)
	}
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

// --- change feed ---

func (fs *fakeStore) handleChanges(w http.ResponseWriter, r *http.Request) {
	fam := r.URL.Query().Get("fam")
	collection := r.URL.Query().Get("collection")
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}

	key := fam + "|" + collection
	fs.mu.Lock()
	fs.feeds[key] = append(fs.feeds[key], conn)
	fs.mu.Unlock()

	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			fs.mu.Lock()
			conns := fs.feeds[key]
			for i, c := range conns {
				if c == conn {
					fs.feeds[key] = append(conns[:i], conns[i+1:]...)
					break
				}
			}
			fs.mu.Unlock()
			return
		}
	}
}

// broadcast must be called with fs.mu NOT held.
func (fs *fakeStore) broadcast(fam, collection, action, id string) {
	data, _ := json.Marshal(feed.Event{Collection: collection, Action: action, ID: id})

	fs.mu.Lock()
	conns := append([]*ws.Conn(nil), fs.feeds[fam+"|"+collection]...)
	fs.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, conn := range conns {
		conn.Write(ctx, ws.MessageText, data)
	}
}

// feedCount reports connected feed subscribers for (fam, collection).
func (fs *fakeStore) feedCount(fam, collection string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.feeds[fam+"|"+collection])
}

func (fs *fakeStore) waitFeeds(t *testing.T, fam string, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		ready := true
		for _, collection := range model.Collections {
			if fs.feedCount(fam, collection) < want {
				ready = false
				break
			}
		}
		if ready {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %d feed subscribers on %q", want, fam)
}

// --- push subscriptions and fan-out ---

func (fs *fakeStore) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fam          string               `json:"fam"`
		DeviceID     string               `json:"deviceId"`
		Subscription webpush.Subscription `json:"subscription"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fs.mu.Lock()
	fs.subs[req.Fam+"|"+req.DeviceID] = req.Subscription
	fs.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

// fanout pushes to every subscription in scope except the originator's.
func (fs *fakeStore) fanout(fam, originDevice string, payload push.Payload) {
	data, _ := json.Marshal(payload)

	fs.mu.Lock()
	var targets []webpush.Subscription
	for key, sub := range fs.subs {
		subFam, device, _ := strings.Cut(key, "|")
		if subFam == fam && device != originDevice {
			targets = append(targets, sub)
		}
	}
	fs.mu.Unlock()

	for _, sub := range targets {
		resp, err := webpush.SendNotification(data, &sub, &webpush.Options{
			Subscriber:      "mailto:test@example.com",
			VAPIDPublicKey:  fs.vapidPublic,
			VAPIDPrivateKey: fs.vapidPrivate,
			TTL:             60,
		})
		if err != nil {
			fs.t.Logf("fanout: %v", err)
			continue
		}
		resp.Body.Close()
	}
}

// --- planning ---

func (fs *fakeStore) handlePlanning(w http.ResponseWriter, r *http.Request) {
	fam := r.URL.Query().Get("fam")
	fs.mu.Lock()
	data := make(map[string]string, len(fs.planning[fam]))
	for day, value := range fs.planning[fam] {
		data[day] = value
	}
	fs.mu.Unlock()
	writeData(w, data)
}

func (fs *fakeStore) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fam      string `json:"fam"`
		Dia      string `json:"dia"`
		Value    string `json:"value"`
		URL      string `json:"url"`
		DeviceID string `json:"deviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fs.mu.Lock()
	if fs.planning[req.Fam] == nil {
		fs.planning[req.Fam] = make(map[string]string)
	}
	fs.planning[req.Fam][req.Dia] = req.Value
	fs.mu.Unlock()

	w.WriteHeader(http.StatusOK)
	fs.broadcast(req.Fam, model.CollectionPlanning, "updated", req.Dia)
	fs.fanout(req.Fam, req.DeviceID, push.Payload{
		Title: "Planing actualizado",
		Body:  req.Dia + ": " + req.Value,
		URL:   req.URL,
	})
}

// --- shopping ---

func (fs *fakeStore) handleShopping(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		fam := r.URL.Query().Get("fam")
		fs.mu.Lock()
		items := append([]model.ShoppingItem(nil), fs.shopping[fam]...)
		fs.mu.Unlock()
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		})
		writeData(w, items)
		return
	}

	var req struct {
		Fam      string `json:"fam"`
		Text     string `json:"text"`
		URL      string `json:"url"`
		DeviceID string `json:"deviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fs.mu.Lock()
	item := model.ShoppingItem{
		ID:        fs.newID("srv"),
		Scope:     req.Fam,
		Label:     req.Text,
		CreatedAt: time.Now().UTC(),
	}
	fs.shopping[req.Fam] = append(fs.shopping[req.Fam], item)
	fs.mu.Unlock()

	writeData(w, item)
	fs.broadcast(req.Fam, model.CollectionShopping, "created", item.ID)
	fs.fanout(req.Fam, req.DeviceID, push.Payload{
		Title: "Lista de la compra",
		Body:  req.Text,
		URL:   req.URL,
	})
}

func (fs *fakeStore) handleShoppingCheck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fam      string `json:"fam"`
		ID       string `json:"id"`
		Checked  bool   `json:"checked"`
		DeviceID string `json:"deviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fs.mu.Lock()
	for i := range fs.shopping[req.Fam] {
		if fs.shopping[req.Fam][i].ID == req.ID {
			fs.shopping[req.Fam][i].Checked = req.Checked
			break
		}
	}
	fs.mu.Unlock()

	w.WriteHeader(http.StatusOK)
	fs.broadcast(req.Fam, model.CollectionShopping, "updated", req.ID)
}

func (fs *fakeStore) handleShoppingClear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fam      string `json:"fam"`
		DeviceID string `json:"deviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Fam == "" {
		http.Error(w, "unscoped delete", http.StatusBadRequest)
		return
	}

	fs.mu.Lock()
	kept := fs.shopping[req.Fam][:0]
	for _, item := range fs.shopping[req.Fam] {
		if !item.Checked {
			kept = append(kept, item)
		}
	}
	fs.shopping[req.Fam] = kept
	fs.mu.Unlock()

	w.WriteHeader(http.StatusOK)
	fs.broadcast(req.Fam, model.CollectionShopping, "deleted", "")
}

// --- budget ---

func (fs *fakeStore) handleBudget(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		fam := r.URL.Query().Get("fam")
		month := r.URL.Query().Get("month")
		fs.mu.Lock()
		initial, ok := fs.budgets[fam][month]
		fs.mu.Unlock()
		if !ok {
			writeData(w, nil)
			return
		}
		writeData(w, model.BudgetMonth{Scope: fam, MonthKey: month, Initial: initial})
		return
	}

	var req struct {
		Fam      string  `json:"fam"`
		Month    string  `json:"month"`
		Initial  float64 `json:"initial"`
		DeviceID string  `json:"deviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fs.mu.Lock()
	if fs.budgets[req.Fam] == nil {
		fs.budgets[req.Fam] = make(map[string]float64)
	}
	fs.budgets[req.Fam][req.Month] = req.Initial
	fs.mu.Unlock()

	w.WriteHeader(http.StatusOK)
	fs.broadcast(req.Fam, model.CollectionBudget, "updated", req.Month)
}

// --- expenses ---

func (fs *fakeStore) handleExpenses(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		fam := r.URL.Query().Get("fam")
		month := r.URL.Query().Get("month")
		fs.mu.Lock()
		var out []model.Expense
		for _, e := range fs.expenses[fam] {
			if e.MonthKey == month {
				out = append(out, e)
			}
		}
		fs.mu.Unlock()
		writeData(w, out)
		return
	}

	var req struct {
		Fam      string  `json:"fam"`
		Month    string  `json:"month"`
		Place    string  `json:"place"`
		Amount   float64 `json:"amount"`
		DeviceID string  `json:"deviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fs.mu.Lock()
	expense := model.Expense{
		ID:        fs.newID("exp"),
		Scope:     req.Fam,
		MonthKey:  req.Month,
		Place:     req.Place,
		Amount:    req.Amount,
		CreatedAt: time.Now().UTC(),
	}
	fs.expenses[req.Fam] = append(fs.expenses[req.Fam], expense)
	fs.mu.Unlock()

	writeData(w, expense)
	fs.broadcast(req.Fam, model.CollectionExpenses, "created", expense.ID)
}

func (fs *fakeStore) handleExpenseDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fam      string `json:"fam"`
		ID       string `json:"id"`
		DeviceID string `json:"deviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fs.mu.Lock()
	for i, e := range fs.expenses[req.Fam] {
		if e.ID == req.ID {
			fs.expenses[req.Fam] = append(fs.expenses[req.Fam][:i], fs.expenses[req.Fam][i+1:]...)
			break
		}
	}
	fs.mu.Unlock()

	w.WriteHeader(http.StatusOK)
	fs.broadcast(req.Fam, model.CollectionExpenses, "deleted", req.ID)
}

func (fs *fakeStore) handleExpensesClear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fam      string `json:"fam"`
		Month    string `json:"month"`
		DeviceID string `json:"deviceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Fam == "" || req.Month == "" {
		http.Error(w, "unscoped delete", http.StatusBadRequest)
		return
	}

	fs.mu.Lock()
	kept := fs.expenses[req.Fam][:0]
	for _, e := range fs.expenses[req.Fam] {
		if e.MonthKey != req.Month {
			kept = append(kept, e)
		}
	}
	fs.expenses[req.Fam] = kept
	fs.mu.Unlock()

	w.WriteHeader(http.StatusOK)
	fs.broadcast(req.Fam, model.CollectionExpenses, "deleted", "")
}
