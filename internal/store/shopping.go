package store

import (
	"database/sql"
	"fmt"

	"github.com/NicoCorMar13/planing-familiar/internal/model"
)

// ShoppingStore keeps a local snapshot of the last authoritative shopping
// list per scope, so the agent can present something before the first
// remote reload completes.
type ShoppingStore struct {
	db *sql.DB
}

func NewShoppingStore(db *sql.DB) *ShoppingStore {
	return &ShoppingStore{db: db}
}

func scanSnapshotItem(scanner interface{ Scan(...any) error }) (*model.ShoppingItem, error) {
	var item model.ShoppingItem
	var checked int
	err := scanner.Scan(&item.ID, &item.Scope, &item.Label, &checked, &item.CreatedAt)
	if err != nil {
		return nil, err
	}
	item.Checked = checked != 0
	return &item, nil
}

// List returns the snapshot for a scope, newest first.
func (s *ShoppingStore) List(scope string) ([]model.ShoppingItem, error) {
	rows, err := s.db.Query(
		`SELECT id, fam, label, checked, created_at FROM shopping_snapshot
		 WHERE fam = ? ORDER BY created_at DESC, id ASC`,
		scope,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshot: %w", err)
	}
	defer rows.Close()

	var items []model.ShoppingItem
	for rows.Next() {
		item, err := scanSnapshotItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Replace swaps the stored snapshot for a scope with the given items.
func (s *ShoppingStore) Replace(scope string, items []model.ShoppingItem) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM shopping_snapshot WHERE fam = ?`, scope); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}

	for _, item := range items {
		checked := 0
		if item.Checked {
			checked = 1
		}
		_, err := tx.Exec(
			`INSERT INTO shopping_snapshot (id, fam, label, checked, created_at) VALUES (?, ?, ?, ?, ?)`,
			item.ID, scope, item.Label, checked, item.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert snapshot item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}
