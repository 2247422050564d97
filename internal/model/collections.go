package model

// Collection names, as used by the change feed and the remote store.
const (
	CollectionPlanning = "planning"
	CollectionShopping = "shopping"
	CollectionBudget   = "budget"
	CollectionExpenses = "expenses"
)

// Collections lists every family-scoped collection the client syncs.
var Collections = []string{
	CollectionPlanning,
	CollectionShopping,
	CollectionBudget,
	CollectionExpenses,
}
