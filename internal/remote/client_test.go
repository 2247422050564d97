package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, DeviceID: "dev-1", HTTPClient: srv.Client()})
}

func TestRequestsCarryDeviceID(t *testing.T) {
	var gotHeader string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Device-ID")
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{}})
	}))

	if _, err := NewMealPlanClient(c).List(context.Background(), "fam_1"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if gotHeader != "dev-1" {
		t.Errorf("X-Device-ID = %q, want %q", gotHeader, "dev-1")
	}
}

func TestListMissingScope(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the store")
	}))

	_, err := NewMealPlanClient(c).List(context.Background(), "")
	if !errors.Is(err, ErrMissingScope) {
		t.Fatalf("err = %v, want ErrMissingScope", err)
	}
	if _, err := NewShoppingClient(c).List(context.Background(), ""); !errors.Is(err, ErrMissingScope) {
		t.Fatalf("shopping err = %v, want ErrMissingScope", err)
	}
}

func TestServerFailureIsRemoteError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := NewShoppingClient(c).List(context.Background(), "fam_1")
	var remoteErr *Error
	if !errors.As(err, &remoteErr) {
		t.Fatalf("err = %v, want *remote.Error", err)
	}
	if remoteErr.Status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", remoteErr.Status)
	}
}

func TestTransportFailureIsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on
	c := NewClient(Config{BaseURL: srv.URL, DeviceID: "dev-1"})

	_, err := NewShoppingClient(c).List(context.Background(), "fam_1")
	var remoteErr *Error
	if !errors.As(err, &remoteErr) {
		t.Fatalf("err = %v, want *remote.Error", err)
	}
	if remoteErr.Status != 0 {
		t.Errorf("status = %d, want 0 for transport failure", remoteErr.Status)
	}
}

func TestMealPlanListFillsAllDays(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("fam"); got != "fam_1" {
			t.Errorf("fam = %q, want fam_1", got)
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"Lunes": "Pasta"}})
	}))

	entries, err := NewMealPlanClient(c).List(context.Background(), "fam_1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 7 {
		t.Fatalf("expected 7 entries, got %d", len(entries))
	}
	if entries[0].Day != "Lunes" || entries[0].Value != "Pasta" {
		t.Errorf("entries[0] = %+v, want Lunes/Pasta", entries[0])
	}
	if entries[6].Day != "Domingo" || entries[6].Value != "" {
		t.Errorf("entries[6] = %+v, want empty Domingo", entries[6])
	}
}

func TestMealPlanUpsertBody(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))

	err := NewMealPlanClient(c).Upsert(context.Background(), "fam_1", "Lunes", "Pizza", "/?dia=Lunes")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	want := map[string]string{"fam": "fam_1", "dia": "Lunes", "value": "Pizza", "url": "/?dia=Lunes", "deviceId": "dev-1"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("body[%q] = %v, want %q", k, got[k], v)
		}
	}
}

func TestShoppingInsertReturnsServerRecord(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"id": "srv-42", "fam": "fam_1", "text": "milk", "checked": false,
		}})
	}))

	item, err := NewShoppingClient(c).Insert(context.Background(), "fam_1", "milk", "/?view=compra")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if item.ID != "srv-42" {
		t.Errorf("id = %q, want server-assigned %q", item.ID, "srv-42")
	}
	if item.Label != "milk" {
		t.Errorf("label = %q, want %q", item.Label, "milk")
	}
}

func TestDeleteCheckedFailsClosedWithoutScope(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unscoped bulk delete must not reach the store")
	}))

	err := NewShoppingClient(c).DeleteChecked(context.Background(), "", "")
	if !errors.Is(err, ErrMissingScope) {
		t.Fatalf("err = %v, want ErrMissingScope", err)
	}
}
