package finance

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid")
)

// Type represents the type of transaction (income or expense).
type Type string

const (
	TypeIncome  Type = "income"
	TypeExpense Type = "expense"
)

func (t Type) Valid() bool {
	return t == TypeIncome || t == TypeExpense
}

// Period is the window a budget limit applies to.
type Period string

const (
	PeriodMonthly Period = "monthly"
	PeriodWeekly  Period = "weekly"
)

func (p Period) Valid() bool {
	return p == PeriodMonthly || p == PeriodWeekly
}

// Transaction represents a financial transaction.
type Transaction struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        Type            `json:"type"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Budget caps spending in a category per period.
//
// LimitAmount mirrors Limit; older records may only carry one of the two.
type Budget struct {
	ID          string          `json:"id"`
	Category    string          `json:"category"`
	Limit       decimal.Decimal `json:"limit"`
	LimitAmount decimal.Decimal `json:"limit_amount"`
	Period      Period          `json:"period"`
}

// EffectiveLimit prefers Limit and falls back to LimitAmount when Limit is zero.
func (b Budget) EffectiveLimit() decimal.Decimal {
	if b.Limit.IsZero() && !b.LimitAmount.IsZero() {
		return b.LimitAmount
	}

	return b.Limit
}

type CreateParams struct {
	Amount      decimal.Decimal
	Type        Type
	Category    string
	Description string
	Date        time.Time
}

func (p CreateParams) validate() error {
	if !p.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalid)
	}

	if !p.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalid, p.Type)
	}

	if p.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalid)
	}

	return nil
}

type BudgetParams struct {
	Category string
	Limit    decimal.Decimal
	Period   Period
}

func (p BudgetParams) validate() error {
	if p.Category == "" {
		return fmt.Errorf("%w: category is required", ErrInvalid)
	}

	if !p.Limit.IsPositive() {
		return fmt.Errorf("%w: limit must be positive", ErrInvalid)
	}

	if !p.Period.Valid() {
		return fmt.Errorf("%w: unknown period %q", ErrInvalid, p.Period)
	}

	return nil
}

// ListFilter narrows ListTransactions. Nil fields match everything.
// Dates are inclusive and compared by calendar day.
type ListFilter struct {
	Type      *Type
	Category  *string
	StartDate *time.Time
	EndDate   *time.Time
}

func (f ListFilter) match(t Transaction) bool {
	if f.Type != nil && t.Type != *f.Type {
		return false
	}

	if f.Category != nil && t.Category != *f.Category {
		return false
	}

	day := t.Date.Format(time.DateOnly)

	if f.StartDate != nil && day < f.StartDate.Format(time.DateOnly) {
		return false
	}

	if f.EndDate != nil && day > f.EndDate.Format(time.DateOnly) {
		return false
	}

	return true
}
