package model

import "time"

type ShoppingItem struct {
	ID        string    `json:"id"`
	Scope     string    `json:"fam"`
	Label     string    `json:"text"`
	Checked   bool      `json:"checked"`
	CreatedAt time.Time `json:"created_at"`
}
