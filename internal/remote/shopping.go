package remote

import (
	"context"
	"net/url"

	"github.com/NicoCorMar13/planing-familiar/internal/model"
)

// ShoppingClient reads and writes the shopping list collection. Item ids
// are always server-assigned.
type ShoppingClient struct {
	c *Client
}

func NewShoppingClient(c *Client) *ShoppingClient {
	return &ShoppingClient{c: c}
}

type shoppingListResponse struct {
	Data []model.ShoppingItem `json:"data"`
}

type shoppingItemResponse struct {
	Data model.ShoppingItem `json:"data"`
}

// List returns the scope's items, newest first.
func (s *ShoppingClient) List(ctx context.Context, scope string) ([]model.ShoppingItem, error) {
	if scope == "" {
		return nil, ErrMissingScope
	}

	var resp shoppingListResponse
	q := url.Values{"fam": {scope}}
	if err := s.c.get(ctx, "shopping list", "/api/shopping", q, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

type insertItemRequest struct {
	Fam      string `json:"fam"`
	Text     string `json:"text"`
	URL      string `json:"url"`
	DeviceID string `json:"deviceId"`
}

// Insert creates an item and returns the server record (id, timestamp).
// Not safe to retry blindly: a timed-out request may still have inserted.
func (s *ShoppingClient) Insert(ctx context.Context, scope, label, deepLink string) (*model.ShoppingItem, error) {
	if scope == "" {
		return nil, ErrMissingScope
	}

	req := insertItemRequest{Fam: scope, Text: label, URL: deepLink, DeviceID: s.c.deviceID}
	var resp shoppingItemResponse
	if err := s.c.post(ctx, "shopping insert", "/api/shopping", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

type setCheckedRequest struct {
	Fam      string `json:"fam"`
	ID       string `json:"id"`
	Checked  bool   `json:"checked"`
	DeviceID string `json:"deviceId"`
}

// SetChecked replaces the checked flag of one item. Idempotent.
func (s *ShoppingClient) SetChecked(ctx context.Context, scope, id string, checked bool) error {
	if scope == "" {
		return ErrMissingScope
	}

	req := setCheckedRequest{Fam: scope, ID: id, Checked: checked, DeviceID: s.c.deviceID}
	return s.c.post(ctx, "shopping check", "/api/shopping/check", req, nil)
}

type clearCheckedRequest struct {
	Fam      string `json:"fam"`
	URL      string `json:"url"`
	DeviceID string `json:"deviceId"`
}

// DeleteChecked bulk-deletes the items that are both in scope and checked.
// The predicate is carried explicitly so the store never operates on a
// superset; a blank scope fails closed here before any request is made.
func (s *ShoppingClient) DeleteChecked(ctx context.Context, scope, deepLink string) error {
	if scope == "" {
		return ErrMissingScope
	}

	req := clearCheckedRequest{Fam: scope, URL: deepLink, DeviceID: s.c.deviceID}
	return s.c.post(ctx, "shopping clear", "/api/shopping/clear", req, nil)
}
