package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// SortedCategories flattens a category map into a slice ordered by amount
// descending, then name.
func SortedCategories(m map[string]decimal.Decimal) []CategoryAmount {
	out := make([]CategoryAmount, 0, len(m))
	for name, amount := range m {
		out = append(out, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// PersonBalance is the derived lending balance with one person.
type PersonBalance struct {
	Person  Person          `json:"person"`
	Balance decimal.Decimal `json:"balance"`
	Settled bool            `json:"settled"`
}

// Balances sums lending records per person. A zero or negative balance is
// settled. People are returned in input order.
func Balances(people []Person, records []LendingRecord) []PersonBalance {
	sums := make(map[string]decimal.Decimal, len(people))
	for _, r := range records {
		sums[r.PersonID] = sums[r.PersonID].Add(r.Amount)
	}
	out := make([]PersonBalance, 0, len(people))
	for _, p := range people {
		bal := sums[p.ID]
		out = append(out, PersonBalance{Person: p, Balance: bal, Settled: !bal.IsPositive()})
	}
	return out
}
