package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockStatus is derived from on-hand quantity and the low-stock threshold.
type StockStatus string

const (
	StatusInStock    StockStatus = "in-stock"
	StatusLowStock   StockStatus = "low-stock"
	StatusOutOfStock StockStatus = "out-of-stock"
)

// StatusFor returns the status a product with qty units on hand should carry.
func StatusFor(qty, lowStockThreshold int) StockStatus {
	switch {
	case qty <= 0:
		return StatusOutOfStock
	case qty <= lowStockThreshold:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

type Product struct {
	ID           int64           `json:"id"`
	Barcode      string          `json:"barcode"`
	Name         string          `json:"name"`
	CategoryID   *int64          `json:"category_id,omitempty"`
	CategoryName string          `json:"category,omitempty"`
	Quantity     int             `json:"quantity"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Status       StockStatus     `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type SupplierStatus string

const (
	SupplierActive   SupplierStatus = "active"
	SupplierInactive SupplierStatus = "inactive"
)

type Supplier struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	ContactPerson string         `json:"contact_person,omitempty"`
	Email         string         `json:"email,omitempty"`
	Phone         string         `json:"phone,omitempty"`
	Address       string         `json:"address,omitempty"`
	Status        SupplierStatus `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
}

// MovementType classifies a stock_movements row.
type MovementType string

const (
	MovementIn         MovementType = "in"
	MovementOut        MovementType = "out"
	MovementAdjustment MovementType = "adjustment"
	MovementSale       MovementType = "sale"
)

type StockMovement struct {
	ID        int64        `json:"id"`
	ProductID int64        `json:"product_id"`
	Product   string       `json:"product_name,omitempty"`
	Type      MovementType `json:"type"`
	Quantity  int          `json:"quantity"`
	Reason    string       `json:"reason"`
	CreatedAt time.Time    `json:"created_at"`
}
