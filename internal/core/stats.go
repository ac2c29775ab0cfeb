package core

import "sort"

// DefaultTrendWindow bounds the recent-activity trend series.
const DefaultTrendWindow = 7

type (
	// CategoryTotal represents spending aggregated by category name.
	CategoryTotal struct {
		Category string `json:"category"`
		Total    Money  `json:"total"`
	}

	// TrendPoint is one entry of the recent-activity series: the weekday
	// label of a transaction and its expense magnitude (zero for income).
	TrendPoint struct {
		Day    string `json:"day"`
		Date   Date   `json:"date"`
		Amount Money  `json:"amount"`
	}

	// Summary is the compact totals view derived from the ledger.
	Summary struct {
		TotalBalance Money `json:"total_balance"`
		TotalIncome  Money `json:"total_income"`
		TotalExpense Money `json:"total_expense"`
	}
)

// TotalIncome sums the amounts of all income transactions.
func TotalIncome(txs []Transaction) Money {
	var cents int64
	for _, t := range txs {
		if t.Type == Income {
			cents += t.Amount.Cents
		}
	}
	return Money{Cents: cents}
}

// TotalExpense sums the amounts of all expense transactions. The result is
// a non-negative magnitude; callers apply sign or color, not this function.
func TotalExpense(txs []Transaction) Money {
	var cents int64
	for _, t := range txs {
		if t.Type == Expense {
			cents += t.Amount.Cents
		}
	}
	return Money{Cents: cents}
}

// TotalBalance is income minus expense. It may be negative.
func TotalBalance(txs []Transaction) Money {
	return Money{Cents: TotalIncome(txs).Cents - TotalExpense(txs).Cents}
}

// Summarize computes all three totals in one pass over the snapshot.
func Summarize(txs []Transaction) Summary {
	income := TotalIncome(txs)
	expense := TotalExpense(txs)
	return Summary{
		TotalBalance: Money{Cents: income.Cents - expense.Cents},
		TotalIncome:  income,
		TotalExpense: expense,
	}
}

// CategoryBreakdown groups expense transactions by category and returns the
// per-category totals sorted descending by amount. Income is excluded: this
// is a spending-by-category view. Ties keep first-encounter order.
func CategoryBreakdown(txs []Transaction) []CategoryTotal {
	totals := make(map[string]int64)
	order := make([]string, 0)
	for _, t := range txs {
		if t.Type != Expense {
			continue
		}
		if _, seen := totals[t.Category]; !seen {
			order = append(order, t.Category)
		}
		totals[t.Category] += t.Amount.Cents
	}

	out := make([]CategoryTotal, 0, len(order))
	for _, cat := range order {
		out = append(out, CategoryTotal{Category: cat, Total: Money{Cents: totals[cat]}})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total.Cents > out[j].Total.Cents
	})
	return out
}

// RecentTrend returns the last window transactions sorted ascending by date,
// each mapped to its weekday label and expense magnitude. Income entries
// contribute a zero value at their date slot instead of being dropped, so
// the series keeps one point per transaction rather than one per calendar
// day. If window is not positive, DefaultTrendWindow applies.
func RecentTrend(txs []Transaction, window int) []TrendPoint {
	if window <= 0 {
		window = DefaultTrendWindow
	}

	sorted := SortByDateAsc(txs)
	if len(sorted) > window {
		sorted = sorted[len(sorted)-window:]
	}

	out := make([]TrendPoint, 0, len(sorted))
	for _, t := range sorted {
		amount := Money{}
		if t.Type == Expense {
			amount = t.Amount
		}
		out = append(out, TrendPoint{
			Day:    t.Date.Weekday().String()[:3],
			Date:   t.Date,
			Amount: amount,
		})
	}
	return out
}

// SortByDateAsc returns a copy sorted oldest first (trend order).
func SortByDateAsc(txs []Transaction) []Transaction {
	out := append([]Transaction(nil), txs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date.Time)
	})
	return out
}

// SortByDateDesc returns a copy sorted newest first (history display order).
func SortByDateDesc(txs []Transaction) []Transaction {
	out := append([]Transaction(nil), txs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[j].Date.Before(out[i].Date.Time)
	})
	return out
}
