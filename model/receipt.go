package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt is what a successful checkout hands back to the register.
type Receipt struct {
	SaleID     int64           `json:"sale_id"`
	Reference  string          `json:"reference"`
	Lines      []SaleLine      `json:"items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tax        decimal.Decimal `json:"tax"`
	Total      decimal.Decimal `json:"total"`
	Tendered   decimal.Decimal `json:"tendered"`
	Change     decimal.Decimal `json:"change"`
	Shortfalls []Shortfall     `json:"shortfalls,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
