package model

import (
	"fmt"
	"regexp"
	"time"
)

var monthKeyRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// MonthKey returns the "YYYY-MM" key for t.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// ValidMonthKey reports whether key has the "YYYY-MM" form.
func ValidMonthKey(key string) bool {
	return monthKeyRe.MatchString(key)
}

// BudgetMonth is the planned budget for one month. One row per
// (scope, month key); writes upsert on that key.
type BudgetMonth struct {
	Scope     string    `json:"fam"`
	MonthKey  string    `json:"month"`
	Initial   float64   `json:"initial"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Expense struct {
	ID        string    `json:"id"`
	Scope     string    `json:"fam"`
	MonthKey  string    `json:"month"`
	Place     string    `json:"place"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// FormatEUR renders an amount with two decimals and the euro suffix,
// e.g. "50.00 €".
func FormatEUR(amount float64) string {
	return fmt.Sprintf("%.2f €", amount)
}
