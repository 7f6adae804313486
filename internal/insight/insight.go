// Package insight derives dashboard figures from the local finance state.
package insight

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/finsync/internal/finance"
)

// minBaseline is the number of other expenses in a category needed before
// one of them can be called unusual.
const minBaseline = 3

var two = decimal.NewFromInt(2)

type Source interface {
	Transactions() []finance.Transaction
	Budgets() []finance.Budget
}

type Service struct {
	src Source
	now func() time.Time
}

func NewService(src Source) *Service {
	return &Service{src: src, now: time.Now}
}

type Usage struct {
	BudgetID  string          `json:"budget_id"`
	Category  string          `json:"category"`
	Period    finance.Period  `json:"period"`
	Start     time.Time       `json:"start"`
	End       time.Time       `json:"end"`
	Limit     decimal.Decimal `json:"limit"`
	Spent     decimal.Decimal `json:"spent"`
	Remaining decimal.Decimal `json:"remaining"`
	Over      bool            `json:"over"`
}

type Anomaly struct {
	Transaction finance.Transaction `json:"transaction"`
	Mean        decimal.Decimal     `json:"mean"`
	Threshold   decimal.Decimal     `json:"threshold"`
}

// BudgetUsage reports every budget for the period containing at. A zero at
// means now.
func (s *Service) BudgetUsage(at time.Time) []Usage {
	if at.IsZero() {
		at = s.now()
	}

	return BudgetUsage(s.src.Budgets(), s.src.Transactions(), at)
}

func (s *Service) Anomalies() []Anomaly {
	return Anomalies(s.src.Transactions())
}

// PeriodBounds returns the half-open window [start, end) of period p that
// contains at. Weeks start on Monday.
func PeriodBounds(p finance.Period, at time.Time) (time.Time, time.Time) {
	y, m, d := at.Date()

	if p == finance.PeriodWeekly {
		offset := (int(at.Weekday()) + 6) % 7
		start := time.Date(y, m, d-offset, 0, 0, 0, 0, at.Location())

		return start, start.AddDate(0, 0, 7)
	}

	start := time.Date(y, m, 1, 0, 0, 0, 0, at.Location())

	return start, start.AddDate(0, 1, 0)
}

func BudgetUsage(budgets []finance.Budget, txs []finance.Transaction, at time.Time) []Usage {
	out := make([]Usage, 0, len(budgets))

	for _, b := range budgets {
		period := b.Period
		if !period.Valid() {
			period = finance.PeriodMonthly
		}

		start, end := PeriodBounds(period, at)
		spent := decimal.Zero

		for _, t := range txs {
			if t.Type != finance.TypeExpense || t.Category != b.Category {
				continue
			}

			if t.Date.Before(start) || !t.Date.Before(end) {
				continue
			}

			spent = spent.Add(t.Amount)
		}

		limit := b.EffectiveLimit()

		out = append(out, Usage{
			BudgetID:  b.ID,
			Category:  b.Category,
			Period:    period,
			Start:     start,
			End:       end,
			Limit:     limit,
			Spent:     spent,
			Remaining: limit.Sub(spent),
			Over:      spent.GreaterThan(limit),
		})
	}

	return out
}

// Anomalies flags expenses above the mean plus two sample standard
// deviations of the other expenses in the same category. Results are sorted
// by date, newest first, then by id.
func Anomalies(txs []finance.Transaction) []Anomaly {
	byCategory := make(map[string][]finance.Transaction)

	for _, t := range txs {
		if t.Type == finance.TypeExpense {
			byCategory[t.Category] = append(byCategory[t.Category], t)
		}
	}

	var out []Anomaly

	for _, group := range byCategory {
		if len(group) <= minBaseline {
			continue
		}

		for i, t := range group {
			baseline := make([]decimal.Decimal, 0, len(group)-1)

			for j, other := range group {
				if j != i {
					baseline = append(baseline, other.Amount)
				}
			}

			mean, variance := meanVariance(baseline)
			diff := t.Amount.Sub(mean)

			if !diff.IsPositive() || diff.Mul(diff).LessThanOrEqual(variance.Mul(decimal.NewFromInt(4))) {
				continue
			}

			stddev := decimal.NewFromFloat(math.Sqrt(variance.InexactFloat64()))

			out = append(out, Anomaly{
				Transaction: t,
				Mean:        mean.Round(2),
				Threshold:   mean.Add(stddev.Mul(two)).Round(2),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Transaction, out[j].Transaction
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}

		return a.ID < b.ID
	})

	return out
}

func meanVariance(xs []decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	n := decimal.NewFromInt(int64(len(xs)))
	mean := decimal.Sum(decimal.Zero, xs...).Div(n)

	sq := decimal.Zero
	for _, x := range xs {
		d := x.Sub(mean)
		sq = sq.Add(d.Mul(d))
	}

	return mean, sq.Div(n.Sub(decimal.NewFromInt(1)))
}
