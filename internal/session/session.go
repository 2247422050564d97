// Package session holds the coordinating controller for one device: it owns
// the per-collection caches, the remote clients, and the change-feed
// subscriptions for the currently open scope. Every user action flows
// through here: optimistic cache mutation first, tagged remote write second,
// convergence via full reload on the next change event.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/NicoCorMar13/planing-familiar/internal/cache"
	"github.com/NicoCorMar13/planing-familiar/internal/deeplink"
	"github.com/NicoCorMar13/planing-familiar/internal/feed"
	"github.com/NicoCorMar13/planing-familiar/internal/metrics"
	"github.com/NicoCorMar13/planing-familiar/internal/model"
	"github.com/NicoCorMar13/planing-familiar/internal/remote"
	"github.com/NicoCorMar13/planing-familiar/internal/store"

	"github.com/google/uuid"
)

const reloadTimeout = 15 * time.Second

// Config holds session wiring.
type Config struct {
	// StoreURL is the remote store base URL (REST + change feed).
	StoreURL string
	DeviceID string
	// MonthKey selects the tracked budget month; empty means the current
	// month.
	MonthKey string
	// HTTPClient overrides the transport for both REST and feed dials.
	HTTPClient *http.Client
	// Snapshot persists the shopping list locally for offline startup.
	// Optional.
	Snapshot *store.ShoppingStore
	Logger   *slog.Logger
}

// Session is the controller. Create with New, then Open a scope. All
// methods are safe for the agent's event goroutines.
type Session struct {
	cfg    Config
	logger *slog.Logger

	mealPlanClient *remote.MealPlanClient
	shoppingClient *remote.ShoppingClient
	budgetClient   *remote.BudgetClient
	feed           *feed.Manager

	mealPlan    *cache.MealPlanCache
	shopping    *cache.ShoppingCache
	budget      *cache.BudgetCache
	highlighter *deeplink.Highlighter

	mu      sync.Mutex
	scope   string
	editing map[string]bool
}

func New(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	monthKey := cfg.MonthKey
	if monthKey == "" {
		monthKey = model.MonthKey(time.Now())
	}

	client := remote.NewClient(remote.Config{
		BaseURL:    cfg.StoreURL,
		DeviceID:   cfg.DeviceID,
		HTTPClient: cfg.HTTPClient,
	})

	return &Session{
		cfg:            cfg,
		logger:         cfg.Logger,
		mealPlanClient: remote.NewMealPlanClient(client),
		shoppingClient: remote.NewShoppingClient(client),
		budgetClient:   remote.NewBudgetClient(client),
		feed: feed.NewManager(feed.Config{
			BaseURL:    cfg.StoreURL,
			HTTPClient: cfg.HTTPClient,
		}, cfg.Logger),
		mealPlan:    cache.NewMealPlanCache(),
		shopping:    cache.NewShoppingCache(),
		budget:      cache.NewBudgetCache(monthKey),
		highlighter: deeplink.NewHighlighter(0),
		editing:     make(map[string]bool),
	}
}

// MealPlan exposes the meal-plan view state.
func (s *Session) MealPlan() *cache.MealPlanCache { return s.mealPlan }

// Shopping exposes the shopping-list view state.
func (s *Session) Shopping() *cache.ShoppingCache { return s.shopping }

// Budget exposes the budget view state.
func (s *Session) Budget() *cache.BudgetCache { return s.budget }

// Highlighter exposes the deep-link highlight state.
func (s *Session) Highlighter() *deeplink.Highlighter { return s.highlighter }

// Scope returns the currently open scope, or "".
func (s *Session) Scope() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// Open switches the session to a scope: loads the offline snapshot, pulls
// authoritative state, and subscribes the change feed. Re-opening with a
// new scope tears the old subscriptions down first; writes already in
// flight for the old scope are allowed to finish and their results are
// discarded by the next reload.
func (s *Session) Open(ctx context.Context, scope string) error {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return remote.ErrMissingScope
	}

	s.mu.Lock()
	s.scope = scope
	s.editing = make(map[string]bool)
	s.mu.Unlock()

	if s.cfg.Snapshot != nil {
		if items, err := s.cfg.Snapshot.List(scope); err != nil {
			s.logger.Warn("load shopping snapshot", "error", err)
		} else if len(items) > 0 {
			s.shopping.Reconcile(items)
		}
	}

	if err := s.ReloadAll(ctx); err != nil {
		return err
	}

	s.feed.Switch(ctx, scope, model.Collections, s.onChange)
	return nil
}

// Close tears down the change-feed subscriptions. The caches keep their
// last state for a final render.
func (s *Session) Close() {
	s.feed.Close()
	s.highlighter.Stop()
}

// onChange runs on a feed goroutine. Any event means our view of that
// collection may be stale, so reload it wholesale; patching individual
// fields would be wrong under coalesced or reordered events.
func (s *Session) onChange(ev feed.Event) {
	metrics.FeedEventsTotal.WithLabelValues(ev.Collection).Inc()

	ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
	defer cancel()

	var err error
	switch ev.Collection {
	case model.CollectionPlanning:
		err = s.ReloadMealPlan(ctx)
	case model.CollectionShopping:
		err = s.ReloadShopping(ctx)
	case model.CollectionBudget, model.CollectionExpenses:
		err = s.ReloadBudget(ctx)
	default:
		s.logger.Warn("change event for unknown collection", "collection", ev.Collection)
		return
	}
	if err != nil {
		// The next event retries naturally; reads are safe to re-run.
		s.logger.Error("reload after change event", "collection", ev.Collection, "error", err)
	}
}

func (s *Session) remoteFail(err error) error {
	if err != nil {
		metrics.RemoteErrorsTotal.Inc()
	}
	return err
}

// --- Meal plan ---

// BeginEditDay marks a day as mid-edit; reloads leave it alone until
// EndEditDay.
func (s *Session) BeginEditDay(day string) {
	s.mu.Lock()
	s.editing[day] = true
	s.mu.Unlock()
}

// EndEditDay clears the mid-edit mark.
func (s *Session) EndEditDay(day string) {
	s.mu.Lock()
	delete(s.editing, day)
	s.mu.Unlock()
}

func (s *Session) isEditing(day string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editing[day]
}

// SaveDay stores the meal-plan value for one day: cache first, then the
// upsert keyed on (scope, day). The write carries the day's deep link so
// other devices land on it from the notification.
func (s *Session) SaveDay(ctx context.Context, day, value string) error {
	scope := s.Scope()
	if scope == "" {
		return remote.ErrMissingScope
	}
	if !model.ValidDay(day) {
		return &ValidationError{Field: "day", Reason: "unknown day label"}
	}

	s.mealPlan.SetDay(day, value)
	s.EndEditDay(day)
	metrics.MutationsTotal.WithLabelValues(model.CollectionPlanning).Inc()

	deepLink := "/?dia=" + url.QueryEscape(day)
	return s.remoteFail(s.mealPlanClient.Upsert(ctx, scope, day, value, deepLink))
}

// ReloadMealPlan replaces the cache from the store, skipping mid-edit days.
func (s *Session) ReloadMealPlan(ctx context.Context) error {
	scope := s.Scope()
	if scope == "" {
		return remote.ErrMissingScope
	}

	entries, err := s.mealPlanClient.List(ctx, scope)
	if err != nil {
		return s.remoteFail(err)
	}
	metrics.ReloadsTotal.WithLabelValues(model.CollectionPlanning).Inc()
	s.mealPlan.Reconcile(entries, s.isEditing)
	return nil
}

// --- Shopping list ---

// AddShoppingItem inserts an item optimistically under a local id, then
// trades it for the server record on confirmation. On failure the
// optimistic item stays visible until the next reload; the error is the
// caller's to surface.
func (s *Session) AddShoppingItem(ctx context.Context, label string) (*model.ShoppingItem, error) {
	scope := s.Scope()
	if scope == "" {
		return nil, remote.ErrMissingScope
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, &ValidationError{Field: "label", Reason: "must not be blank"}
	}

	local := model.ShoppingItem{
		ID:        "local-" + uuid.NewString(),
		Scope:     scope,
		Label:     label,
		CreatedAt: time.Now().UTC(),
	}
	s.shopping.Insert(local)
	metrics.MutationsTotal.WithLabelValues(model.CollectionShopping).Inc()

	item, err := s.shoppingClient.Insert(ctx, scope, label, "/?view=compra")
	if err != nil {
		return nil, s.remoteFail(err)
	}
	s.shopping.Replace(local.ID, *item)
	return item, nil
}

// ToggleShoppingItem flips an item's checked flag.
func (s *Session) ToggleShoppingItem(ctx context.Context, id string, checked bool) error {
	scope := s.Scope()
	if scope == "" {
		return remote.ErrMissingScope
	}

	s.shopping.SetChecked(id, checked)
	metrics.MutationsTotal.WithLabelValues(model.CollectionShopping).Inc()
	return s.remoteFail(s.shoppingClient.SetChecked(ctx, scope, id, checked))
}

// ClearCheckedItems purges every checked item in scope. A list with no
// checked items is a no-op that never reaches the store.
func (s *Session) ClearCheckedItems(ctx context.Context) error {
	scope := s.Scope()
	if scope == "" {
		return remote.ErrMissingScope
	}

	if removed := s.shopping.RemoveChecked(); removed == 0 {
		return nil
	}
	metrics.MutationsTotal.WithLabelValues(model.CollectionShopping).Inc()
	return s.remoteFail(s.shoppingClient.DeleteChecked(ctx, scope, "/?view=compra"))
}

// ReloadShopping replaces the cache from the store and refreshes the
// offline snapshot.
func (s *Session) ReloadShopping(ctx context.Context) error {
	scope := s.Scope()
	if scope == "" {
		return remote.ErrMissingScope
	}

	items, err := s.shoppingClient.List(ctx, scope)
	if err != nil {
		return s.remoteFail(err)
	}
	metrics.ReloadsTotal.WithLabelValues(model.CollectionShopping).Inc()
	s.shopping.Reconcile(items)

	if s.cfg.Snapshot != nil {
		if err := s.cfg.Snapshot.Replace(scope, items); err != nil {
			s.logger.Warn("persist shopping snapshot", "error", err)
		}
	}
	return nil
}

// --- Budget ---

// SetMonthBudget upserts the month's initial budget, keyed on
// (scope, month).
func (s *Session) SetMonthBudget(ctx context.Context, amount float64) error {
	scope := s.Scope()
	if scope == "" {
		return remote.ErrMissingScope
	}
	if amount < 0 {
		return &ValidationError{Field: "budget", Reason: "must not be negative"}
	}

	s.budget.SetInitial(amount)
	metrics.MutationsTotal.WithLabelValues(model.CollectionBudget).Inc()
	return s.remoteFail(s.budgetClient.UpsertMonth(ctx, scope, s.budget.MonthKey(), amount, "/?view=presupuesto"))
}

// AddExpense records an expense for the tracked month.
func (s *Session) AddExpense(ctx context.Context, place string, amount float64) (*model.Expense, error) {
	scope := s.Scope()
	if scope == "" {
		return nil, remote.ErrMissingScope
	}
	place = strings.TrimSpace(place)
	if place == "" {
		return nil, &ValidationError{Field: "place", Reason: "must not be blank"}
	}
	if amount <= 0 {
		return nil, &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}

	local := model.Expense{
		ID:        "local-" + uuid.NewString(),
		Scope:     scope,
		MonthKey:  s.budget.MonthKey(),
		Place:     place,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	s.budget.AddExpense(local)
	metrics.MutationsTotal.WithLabelValues(model.CollectionExpenses).Inc()

	expense, err := s.budgetClient.InsertExpense(ctx, scope, local.MonthKey, place, amount, "/?view=presupuesto")
	if err != nil {
		return nil, s.remoteFail(err)
	}
	s.budget.ReplaceExpense(local.ID, *expense)
	return expense, nil
}

// DeleteExpense removes one expense.
func (s *Session) DeleteExpense(ctx context.Context, id string) error {
	scope := s.Scope()
	if scope == "" {
		return remote.ErrMissingScope
	}

	s.budget.RemoveExpense(id)
	metrics.MutationsTotal.WithLabelValues(model.CollectionExpenses).Inc()
	return s.remoteFail(s.budgetClient.DeleteExpense(ctx, scope, id))
}

// ClearMonthExpenses purges every expense for the tracked month and scope.
func (s *Session) ClearMonthExpenses(ctx context.Context) error {
	scope := s.Scope()
	if scope == "" {
		return remote.ErrMissingScope
	}

	s.budget.ClearExpenses()
	metrics.MutationsTotal.WithLabelValues(model.CollectionExpenses).Inc()
	return s.remoteFail(s.budgetClient.DeleteMonthExpenses(ctx, scope, s.budget.MonthKey()))
}

// ReloadBudget replaces the month row and expense list from the store.
func (s *Session) ReloadBudget(ctx context.Context) error {
	scope := s.Scope()
	if scope == "" {
		return remote.ErrMissingScope
	}

	month, err := s.budgetClient.GetMonth(ctx, scope, s.budget.MonthKey())
	if err != nil {
		return s.remoteFail(err)
	}
	expenses, err := s.budgetClient.ListExpenses(ctx, scope, s.budget.MonthKey())
	if err != nil {
		return s.remoteFail(err)
	}

	metrics.ReloadsTotal.WithLabelValues(model.CollectionBudget).Inc()
	s.budget.ReconcileMonth(month)
	s.budget.ReconcileExpenses(expenses)
	return nil
}

// ReloadAll pulls every collection. The first error aborts; reads are safe
// to retry by calling again.
func (s *Session) ReloadAll(ctx context.Context) error {
	if err := s.ReloadMealPlan(ctx); err != nil {
		return err
	}
	if err := s.ReloadShopping(ctx); err != nil {
		return err
	}
	return s.ReloadBudget(ctx)
}

// HandleDeepLink applies a startup URL: the parsed target is highlighted
// for a bounded duration.
func (s *Session) HandleDeepLink(rawURL string) (deeplink.Target, bool) {
	target, ok := deeplink.Parse(rawURL)
	if !ok {
		return deeplink.Target{}, false
	}

	if target.Day != "" {
		s.highlighter.Highlight(target.Day)
	} else {
		s.highlighter.Highlight(target.View)
	}
	return target, true
}
