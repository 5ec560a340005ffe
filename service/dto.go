package service

import (
	"strings"
	"time"

	"retail-pos/cart"
	models "retail-pos/model"

	"github.com/shopspring/decimal"
)

type ProductRequest struct {
	Barcode      string          `json:"barcode"`
	Name         string          `json:"name"`
	CategoryID   *int64          `json:"category_id,omitempty"`
	Quantity     int             `json:"quantity"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
}

func (r *ProductRequest) validate() error {
	r.Barcode = strings.TrimSpace(r.Barcode)
	r.Name = strings.TrimSpace(r.Name)
	switch {
	case r.Barcode == "":
		return models.Invalid("barcode is required")
	case r.Name == "":
		return models.Invalid("name is required")
	case r.Quantity < 0:
		return models.Invalid("quantity must be >= 0")
	case r.CostPrice.IsNegative():
		return models.Invalid("cost_price must be >= 0")
	case r.SellingPrice.IsNegative():
		return models.Invalid("selling_price must be >= 0")
	}
	return nil
}

type SupplierRequest struct {
	Name          string                `json:"name"`
	ContactPerson string                `json:"contact_person"`
	Email         string                `json:"email"`
	Phone         string                `json:"phone"`
	Address       string                `json:"address"`
	Status        models.SupplierStatus `json:"status"`
}

func (r *SupplierRequest) validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return models.Invalid("name is required")
	}
	if r.Status == "" {
		r.Status = models.SupplierActive
	}
	if r.Status != models.SupplierActive && r.Status != models.SupplierInactive {
		return models.Invalid("status must be active or inactive")
	}
	return nil
}

type RegisterRequest struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

type TokenDTO struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Role      models.Role `json:"role"`
}

// CartDTO is the register's view of a session.
type CartDTO struct {
	SessionID     string          `json:"session_id"`
	State         cart.State      `json:"state"`
	Items         []cart.Line     `json:"items"`
	ItemCount     int             `json:"item_count"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	FailureReason string          `json:"failure_reason,omitempty"`
	Receipt       *models.Receipt `json:"receipt,omitempty"`
}

func toCartDTO(s *cart.Session) CartDTO {
	t := s.Totals()
	return CartDTO{
		SessionID:     s.ID,
		State:         s.State,
		Items:         s.Lines,
		ItemCount:     s.ItemCount(),
		Subtotal:      t.Subtotal,
		Tax:           t.Tax,
		Total:         t.Total,
		FailureReason: s.FailureReason,
		Receipt:       s.Receipt,
	}
}

type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

type AlertDTO struct {
	ProductID int64              `json:"product_id"`
	Name      string             `json:"name"`
	Barcode   string             `json:"barcode"`
	Quantity  int                `json:"quantity"`
	Type      models.StockStatus `json:"type"`
	Severity  AlertSeverity      `json:"severity"`
}

func alertFor(p models.Product) AlertDTO {
	sev := SeverityLow
	switch {
	case p.Quantity <= 0:
		sev = SeverityHigh
	case p.Quantity <= 5:
		sev = SeverityMedium
	}
	return AlertDTO{
		ProductID: p.ID,
		Name:      p.Name,
		Barcode:   p.Barcode,
		Quantity:  p.Quantity,
		Type:      p.Status,
		Severity:  sev,
	}
}
