package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sale is immutable once written together with its lines.
type Sale struct {
	ID              int64           `json:"id"`
	Reference       string          `json:"reference"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	CustomerPayment decimal.Decimal `json:"customer_payment"`
	ChangeAmount    decimal.Decimal `json:"change_amount"`
	CreatedAt       time.Time       `json:"created_at"`
	Lines           []SaleLine      `json:"items,omitempty"`
}

type SaleLine struct {
	SaleID     int64           `json:"sale_id"`
	ProductID  int64           `json:"product_id"`
	Name       string          `json:"name,omitempty"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// SaleDraft is what the checkout committer hands to storage.
type SaleDraft struct {
	Reference       string
	TotalAmount     decimal.Decimal
	CustomerPayment decimal.Decimal
	ChangeAmount    decimal.Decimal
	Lines           []SaleLine
}

// Shortfall records units sold beyond the persisted on-hand quantity.
type Shortfall struct {
	ProductID int64 `json:"product_id"`
	Requested int   `json:"requested"`
	Available int   `json:"available"`
}

// CommitResult is returned by storage after a sale is written.
type CommitResult struct {
	Sale       Sale
	Shortfalls []Shortfall
	// Replayed is set when the reference had already been committed.
	Replayed bool
}

type SalesSummary struct {
	TotalSales     int             `json:"total_sales"`
	TotalItemsSold int             `json:"total_items_sold"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	AverageSale    decimal.Decimal `json:"average_sale"`
	TodayRevenue   decimal.Decimal `json:"today_revenue"`
}

type TopProduct struct {
	ProductID     int64           `json:"product_id"`
	ProductName   string          `json:"product_name"`
	TotalQuantity int             `json:"total_quantity"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
}

// OversellPolicy decides what a commit does when a line sells more units than
// are persisted on hand.
type OversellPolicy string

const (
	// OversellClamp floors the product at zero and reports the shortfall.
	OversellClamp OversellPolicy = "clamp"
	// OversellReject rolls the whole commit back with ErrInsufficientStock.
	OversellReject OversellPolicy = "reject"
)

func (p OversellPolicy) Valid() bool { return p == OversellClamp || p == OversellReject }
