package remote

import (
	"context"
	"net/url"

	"github.com/NicoCorMar13/planing-familiar/internal/model"
)

// MealPlanClient reads and writes the weekly plan collection. The store
// keys entries by (scope, day); concurrent writes to the same day resolve
// last-writer-wins at the store, with no versioning or merge.
type MealPlanClient struct {
	c *Client
}

func NewMealPlanClient(c *Client) *MealPlanClient {
	return &MealPlanClient{c: c}
}

type planningResponse struct {
	Data map[string]string `json:"data"`
}

// List returns one entry per known day, in display order. Days the store
// has no value for come back with an empty Value, so callers can reconcile
// wholesale without special-casing absent rows.
func (m *MealPlanClient) List(ctx context.Context, scope string) ([]model.MealPlanEntry, error) {
	if scope == "" {
		return nil, ErrMissingScope
	}

	var resp planningResponse
	q := url.Values{"fam": {scope}}
	if err := m.c.get(ctx, "planning list", "/api/planning", q, &resp); err != nil {
		return nil, err
	}

	entries := make([]model.MealPlanEntry, 0, len(model.Days))
	for _, day := range model.Days {
		entries = append(entries, model.MealPlanEntry{
			Scope: scope,
			Day:   day,
			Value: resp.Data[day],
		})
	}
	return entries, nil
}

type updateDayRequest struct {
	Fam      string `json:"fam"`
	Dia      string `json:"dia"`
	Value    string `json:"value"`
	URL      string `json:"url"`
	DeviceID string `json:"deviceId"`
}

// Upsert writes the value for one day. Repeated calls with the same
// (scope, day) overwrite rather than duplicate. deepLink is the URL other
// devices land on when they tap the resulting notification.
func (m *MealPlanClient) Upsert(ctx context.Context, scope, day, value, deepLink string) error {
	if scope == "" {
		return ErrMissingScope
	}

	req := updateDayRequest{
		Fam:      scope,
		Dia:      day,
		Value:    value,
		URL:      deepLink,
		DeviceID: m.c.deviceID,
	}
	return m.c.post(ctx, "planning upsert", "/api/update", req, nil)
}
