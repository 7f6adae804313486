package finance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/finsync/internal/finance"
)

type transactionResponse struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        finance.Type    `json:"type"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
}

func toResponse(tx finance.Transaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		Amount:      tx.Amount,
		Type:        tx.Type,
		Category:    tx.Category,
		Description: tx.Description,
		Date:        tx.Date.Format(time.DateOnly),
		CreatedAt:   tx.CreatedAt,
	}
}

func toResponseList(txs []finance.Transaction) []transactionResponse {
	resp := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		resp[i] = toResponse(tx)
	}

	return resp
}

type budgetResponse struct {
	ID       string          `json:"id"`
	Category string          `json:"category"`
	Limit    decimal.Decimal `json:"limit"`
	Period   finance.Period  `json:"period"`
}

func toBudgetResponse(b finance.Budget) budgetResponse {
	return budgetResponse{
		ID:       b.ID,
		Category: b.Category,
		Limit:    b.EffectiveLimit(),
		Period:   b.Period,
	}
}

func toBudgetResponseList(budgets []finance.Budget) []budgetResponse {
	resp := make([]budgetResponse, len(budgets))
	for i, b := range budgets {
		resp[i] = toBudgetResponse(b)
	}

	return resp
}
