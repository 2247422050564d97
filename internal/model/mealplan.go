package model

import "time"

// Days holds the seven day-of-week labels, in display order. Meal-plan
// entries are keyed by these exact strings.
var Days = []string{"Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado", "Domingo"}

// ValidDay reports whether d is one of the seven day labels.
func ValidDay(d string) bool {
	for _, day := range Days {
		if day == d {
			return true
		}
	}
	return false
}

// MealPlanEntry is one day of the weekly plan. At most one entry exists per
// (scope, day); concurrent writes resolve last-writer-wins at the store.
type MealPlanEntry struct {
	Scope     string    `json:"fam"`
	Day       string    `json:"dia"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
