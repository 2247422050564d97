package remote

import (
	"context"
	"fmt"
	"net/url"

	"github.com/NicoCorMar13/planing-familiar/internal/model"
)

// BudgetClient reads and writes the monthly budget and its expenses. Budget
// rows are keyed by (scope, month); expenses carry server-assigned ids.
type BudgetClient struct {
	c *Client
}

func NewBudgetClient(c *Client) *BudgetClient {
	return &BudgetClient{c: c}
}

type budgetMonthResponse struct {
	Data *model.BudgetMonth `json:"data"`
}

// GetMonth returns the budget row for (scope, monthKey), or nil if the
// household has not set one yet.
func (b *BudgetClient) GetMonth(ctx context.Context, scope, monthKey string) (*model.BudgetMonth, error) {
	if scope == "" {
		return nil, ErrMissingScope
	}
	if !model.ValidMonthKey(monthKey) {
		return nil, fmt.Errorf("budget get: bad month key %q", monthKey)
	}

	var resp budgetMonthResponse
	q := url.Values{"fam": {scope}, "month": {monthKey}}
	if err := b.c.get(ctx, "budget get", "/api/budget", q, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

type upsertMonthRequest struct {
	Fam      string  `json:"fam"`
	Month    string  `json:"month"`
	Initial  float64 `json:"initial"`
	URL      string  `json:"url"`
	DeviceID string  `json:"deviceId"`
}

// UpsertMonth sets the initial budget for a month. Conflict key is
// (scope, month): repeated calls overwrite the single row.
func (b *BudgetClient) UpsertMonth(ctx context.Context, scope, monthKey string, initial float64, deepLink string) error {
	if scope == "" {
		return ErrMissingScope
	}
	if !model.ValidMonthKey(monthKey) {
		return fmt.Errorf("budget upsert: bad month key %q", monthKey)
	}

	req := upsertMonthRequest{Fam: scope, Month: monthKey, Initial: initial, URL: deepLink, DeviceID: b.c.deviceID}
	return b.c.post(ctx, "budget upsert", "/api/budget", req, nil)
}

type expenseListResponse struct {
	Data []model.Expense `json:"data"`
}

type expenseResponse struct {
	Data model.Expense `json:"data"`
}

func (b *BudgetClient) ListExpenses(ctx context.Context, scope, monthKey string) ([]model.Expense, error) {
	if scope == "" {
		return nil, ErrMissingScope
	}
	if !model.ValidMonthKey(monthKey) {
		return nil, fmt.Errorf("expenses list: bad month key %q", monthKey)
	}

	var resp expenseListResponse
	q := url.Values{"fam": {scope}, "month": {monthKey}}
	if err := b.c.get(ctx, "expenses list", "/api/expenses", q, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

type insertExpenseRequest struct {
	Fam      string  `json:"fam"`
	Month    string  `json:"month"`
	Place    string  `json:"place"`
	Amount   float64 `json:"amount"`
	URL      string  `json:"url"`
	DeviceID string  `json:"deviceId"`
}

func (b *BudgetClient) InsertExpense(ctx context.Context, scope, monthKey, place string, amount float64, deepLink string) (*model.Expense, error) {
	if scope == "" {
		return nil, ErrMissingScope
	}
	if !model.ValidMonthKey(monthKey) {
		return nil, fmt.Errorf("expense insert: bad month key %q", monthKey)
	}

	req := insertExpenseRequest{Fam: scope, Month: monthKey, Place: place, Amount: amount, URL: deepLink, DeviceID: b.c.deviceID}
	var resp expenseResponse
	if err := b.c.post(ctx, "expense insert", "/api/expenses", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

type deleteExpenseRequest struct {
	Fam      string `json:"fam"`
	ID       string `json:"id"`
	DeviceID string `json:"deviceId"`
}

func (b *BudgetClient) DeleteExpense(ctx context.Context, scope, id string) error {
	if scope == "" {
		return ErrMissingScope
	}
	if id == "" {
		return fmt.Errorf("expense delete: missing id")
	}

	req := deleteExpenseRequest{Fam: scope, ID: id, DeviceID: b.c.deviceID}
	return b.c.post(ctx, "expense delete", "/api/expenses/delete", req, nil)
}

type clearExpensesRequest struct {
	Fam      string `json:"fam"`
	Month    string `json:"month"`
	DeviceID string `json:"deviceId"`
}

// DeleteMonthExpenses bulk-deletes every expense for (scope, monthKey).
// Both predicate parts are required; a malformed predicate fails closed
// rather than deleting a wider set.
func (b *BudgetClient) DeleteMonthExpenses(ctx context.Context, scope, monthKey string) error {
	if scope == "" {
		return ErrMissingScope
	}
	if !model.ValidMonthKey(monthKey) {
		return fmt.Errorf("expenses clear: bad month key %q", monthKey)
	}

	req := clearExpensesRequest{Fam: scope, Month: monthKey, DeviceID: b.c.deviceID}
	return b.c.post(ctx, "expenses clear", "/api/expenses/clear", req, nil)
}
