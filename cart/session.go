// Package cart holds the register-side state of one checkout: the lines a
// cashier has scanned, their running totals and where the transaction is in
// its lifecycle.
package cart

import (
	"fmt"
	"time"

	models "retail-pos/model"

	"github.com/shopspring/decimal"
)

// State of a single checkout transaction.
type State string

const (
	StateIdle       State = "idle"
	StateBuilding   State = "building"
	StateCommitting State = "committing"
	StateCommitted  State = "committed"
	StateFailed     State = "failed"
)

// ErrSessionClosed is returned when mutating a session that is committing or
// already finished.
var ErrSessionClosed = fmt.Errorf("session closed: %w", models.ErrConflict)

// Line is one product in the cart. UnitPrice is the selling price at the time
// the product was first scanned.
type Line struct {
	ProductID int64           `json:"product_id"`
	Barcode   string          `json:"barcode"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
}

// Totals are derived from the lines on every read.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// ProductLookup resolves a barcode against the cached catalog.
type ProductLookup interface {
	ByBarcode(barcode string) (models.Product, bool)
}

// Session is the cart of one register transaction. It is a plain value that
// callers load, mutate and save; it is not safe for concurrent use.
type Session struct {
	ID            string          `json:"id"`
	Lines         []Line          `json:"lines"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	State         State           `json:"state"`
	FailureReason string          `json:"failure_reason,omitempty"`
	// Reference identifies the sale this session commits as. It is minted
	// once, on the first commit attempt, and reused by every later attempt.
	Reference string          `json:"reference,omitempty"`
	Receipt   *models.Receipt `json:"receipt,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewSession returns an empty session in the Idle state.
func NewSession(id string, taxRate decimal.Decimal) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		Lines:     []Line{},
		TaxRate:   taxRate,
		State:     StateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Open reports whether the cart can still be mutated.
func (s *Session) Open() bool {
	return s.State == StateIdle || s.State == StateBuilding
}

// AddByBarcode adds one unit of the product with the given barcode. The stock
// gate only applies to this call: quantities set later are not checked
// against on-hand stock.
func (s *Session) AddByBarcode(products ProductLookup, barcode string) error {
	if !s.Open() {
		return ErrSessionClosed
	}
	p, ok := products.ByBarcode(barcode)
	if !ok {
		return fmt.Errorf("barcode %q: %w", barcode, models.ErrNotFound)
	}
	if p.Quantity <= 0 {
		return fmt.Errorf("%s: %w", p.Name, models.ErrOutOfStock)
	}

	if i := s.index(p.ID); i >= 0 {
		s.Lines[i].Quantity++
		s.Lines[i].Total = lineTotal(s.Lines[i].UnitPrice, s.Lines[i].Quantity)
	} else {
		s.Lines = append(s.Lines, Line{
			ProductID: p.ID,
			Barcode:   p.Barcode,
			Name:      p.Name,
			UnitPrice: p.SellingPrice,
			Quantity:  1,
			Total:     p.SellingPrice,
		})
	}
	s.touch()
	return nil
}

// SetLineQuantity sets the quantity of a line; zero removes it.
func (s *Session) SetLineQuantity(productID int64, qty int) error {
	if !s.Open() {
		return ErrSessionClosed
	}
	if qty < 0 {
		return models.Invalid("quantity must be >= 0")
	}
	i := s.index(productID)
	if i < 0 {
		return fmt.Errorf("line %d: %w", productID, models.ErrNotFound)
	}
	if qty == 0 {
		s.removeAt(i)
	} else {
		s.Lines[i].Quantity = qty
		s.Lines[i].Total = lineTotal(s.Lines[i].UnitPrice, qty)
	}
	s.touch()
	return nil
}

// RemoveLine drops the line for productID if present.
func (s *Session) RemoveLine(productID int64) error {
	if !s.Open() {
		return ErrSessionClosed
	}
	if i := s.index(productID); i >= 0 {
		s.removeAt(i)
	}
	s.touch()
	return nil
}

// Clear empties the cart.
func (s *Session) Clear() error {
	if !s.Open() {
		return ErrSessionClosed
	}
	s.Lines = []Line{}
	s.touch()
	return nil
}

// Totals computes subtotal, tax and total. Tax is rounded to cents once, on
// the subtotal, so total equals subtotal * (1 + rate) only to within half a
// cent: a 0.05 subtotal at 8% has zero tax.
func (s *Session) Totals() Totals {
	subtotal := decimal.Zero
	for _, l := range s.Lines {
		subtotal = subtotal.Add(l.Total)
	}
	tax := subtotal.Mul(s.TaxRate).Round(2)
	return Totals{Subtotal: subtotal, Tax: tax, Total: subtotal.Add(tax)}
}

// ItemCount is the number of units across all lines.
func (s *Session) ItemCount() int {
	n := 0
	for _, l := range s.Lines {
		n += l.Quantity
	}
	return n
}

// BeginCommit moves a non-empty Building cart to Committing and assigns the
// sale reference from newRef unless one was assigned by an earlier attempt.
func (s *Session) BeginCommit(newRef func() string) error {
	if s.State != StateBuilding {
		return ErrSessionClosed
	}
	s.State = StateCommitting
	if s.Reference == "" {
		s.Reference = newRef()
	}
	s.touch()
	return nil
}

// InDoubt reports whether an earlier commit attempt may have reached the
// database: the session is Committing and already carries its reference.
func (s *Session) InDoubt() bool {
	return s.State == StateCommitting && s.Reference != ""
}

// MarkCommitted is terminal; the lines are cleared and the receipt kept.
func (s *Session) MarkCommitted(r models.Receipt) {
	s.State = StateCommitted
	s.Receipt = &r
	s.Lines = []Line{}
	s.FailureReason = ""
	s.UpdatedAt = time.Now().UTC()
}

// MarkFailed is terminal; the lines are kept for inspection.
func (s *Session) MarkFailed(reason string) {
	s.State = StateFailed
	s.FailureReason = reason
	s.UpdatedAt = time.Now().UTC()
}

func (s *Session) index(productID int64) int {
	for i := range s.Lines {
		if s.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Session) removeAt(i int) {
	s.Lines = append(s.Lines[:i], s.Lines[i+1:]...)
}

// touch recomputes the state from the line count and bumps UpdatedAt.
func (s *Session) touch() {
	if len(s.Lines) == 0 {
		s.State = StateIdle
	} else if s.State == StateIdle {
		s.State = StateBuilding
	}
	s.UpdatedAt = time.Now().UTC()
}

func lineTotal(price decimal.Decimal, qty int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty)))
}
