// Package checkout turns a cart session into a persisted sale.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"retail-pos/cart"
	models "retail-pos/model"
	"retail-pos/obs"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SaleWriter persists a sale, its lines and the inventory decrement as one
// unit. A draft whose Reference was already committed must return the
// existing sale with Replayed set instead of writing again.
type SaleWriter interface {
	CommitSale(ctx context.Context, draft models.SaleDraft) (models.CommitResult, error)
}

type Committer struct {
	writer     SaleWriter
	retry      RetryConfig
	transient  func(error) bool
	newRef     func() string
	checkpoint func(context.Context, *cart.Session) error
}

type Option func(*Committer)

// WithRetry enables re-attempting commits that fail with an error for which
// transient returns true.
func WithRetry(cfg RetryConfig, transient func(error) bool) Option {
	return func(c *Committer) {
		c.retry = cfg
		c.transient = transient
	}
}

// WithReferenceFunc overrides how checkout references are minted.
func WithReferenceFunc(f func() string) Option {
	return func(c *Committer) { c.newRef = f }
}

// WithCheckpoint persists the Committing session, with its reference, before
// the sale is written. If the final save of a committed session is lost, the
// stored session is still Committing and the next attempt replays the sale
// instead of writing a second one.
func WithCheckpoint(save func(context.Context, *cart.Session) error) Option {
	return func(c *Committer) { c.checkpoint = save }
}

func NewCommitter(w SaleWriter, opts ...Option) *Committer {
	c := &Committer{
		writer: w,
		retry:  RetryConfig{MaxAttempts: 1},
		newRef: uuid.NewString,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Commit validates the session and writes it as a sale.
//
// Empty carts and short payments fail before any write and leave the session
// as it was. A rejected over-sell rolls back and returns the session to
// Building. Any other write failure marks the session Failed. A session left
// Committing by an earlier attempt is resumed under its existing reference.
func (c *Committer) Commit(ctx context.Context, s *cart.Session, tendered decimal.Decimal) (models.Receipt, error) {
	ctx, span := obs.Tracer("checkout").Start(ctx, "checkout.Commit")
	defer span.End()
	span.SetAttributes(
		attribute.String("pos.session_id", s.ID),
		attribute.Int("pos.lines", len(s.Lines)),
	)

	if len(s.Lines) == 0 {
		return models.Receipt{}, models.ErrEmptyCart
	}
	totals := s.Totals()
	if tendered.LessThan(totals.Total) {
		return models.Receipt{}, fmt.Errorf("%w: tendered %s, total %s",
			models.ErrInsufficientPayment, tendered.StringFixed(2), totals.Total.StringFixed(2))
	}
	if s.InDoubt() {
		obs.Logger.Warn("checkout_resumed", "session_id", s.ID, "reference", s.Reference)
	} else {
		if err := s.BeginCommit(c.newRef); err != nil {
			return models.Receipt{}, err
		}
		if c.checkpoint != nil {
			if err := c.checkpoint(ctx, s); err != nil {
				// nothing was written; the cart stays editable
				s.State = cart.StateBuilding
				if !errors.Is(err, models.ErrPersistence) {
					err = fmt.Errorf("%w: %w", models.ErrPersistence, err)
				}
				return models.Receipt{}, err
			}
		}
	}

	draft := models.SaleDraft{
		Reference:       s.Reference,
		TotalAmount:     totals.Total,
		CustomerPayment: tendered,
		ChangeAmount:    tendered.Sub(totals.Total),
		Lines:           make([]models.SaleLine, 0, len(s.Lines)),
	}
	for _, l := range s.Lines {
		draft.Lines = append(draft.Lines, models.SaleLine{
			ProductID:  l.ProductID,
			Name:       l.Name,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
			TotalPrice: l.Total,
		})
	}
	span.SetAttributes(attribute.String("pos.reference", draft.Reference))

	var res models.CommitResult
	err := retry(ctx, c.retry, c.transient, func(attempt int) error {
		var err error
		res, err = c.writer.CommitSale(ctx, draft)
		if err != nil && attempt < c.retry.MaxAttempts && c.transient != nil && c.transient(err) {
			obs.Logger.Warn("checkout_retry", "reference", draft.Reference, "attempt", attempt, "error", err)
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, models.ErrInsufficientStock) {
			// rolled back; the cashier can fix quantities and retry
			s.State = cart.StateBuilding
			return models.Receipt{}, err
		}
		s.MarkFailed(err.Error())
		obs.Logger.Error("checkout_failed", "session_id", s.ID, "reference", draft.Reference, "error", err)
		if !errors.Is(err, models.ErrPersistence) {
			err = fmt.Errorf("%w: %w", models.ErrPersistence, err)
		}
		return models.Receipt{}, err
	}

	paid, change := tendered, draft.ChangeAmount
	if res.Replayed {
		// the stored sale is authoritative for what was paid
		paid, change = res.Sale.CustomerPayment, res.Sale.ChangeAmount
	}
	receipt := models.Receipt{
		SaleID:     res.Sale.ID,
		Reference:  draft.Reference,
		Lines:      append([]models.SaleLine(nil), draft.Lines...),
		Subtotal:   totals.Subtotal,
		Tax:        totals.Tax,
		Total:      totals.Total,
		Tendered:   paid,
		Change:     change,
		Shortfalls: res.Shortfalls,
		CreatedAt:  res.Sale.CreatedAt,
	}
	for i := range receipt.Lines {
		receipt.Lines[i].SaleID = res.Sale.ID
	}
	s.MarkCommitted(receipt)

	for _, sf := range res.Shortfalls {
		obs.Logger.Warn("stock_clamped",
			"sale_id", res.Sale.ID,
			"product_id", sf.ProductID,
			"requested", sf.Requested,
			"available", sf.Available,
		)
	}
	obs.Logger.Info("checkout_committed",
		"session_id", s.ID,
		"sale_id", res.Sale.ID,
		"reference", draft.Reference,
		"total", totals.Total.StringFixed(2),
		"change", draft.ChangeAmount.StringFixed(2),
		"replayed", res.Replayed,
	)
	span.SetAttributes(attribute.Int64("pos.sale_id", res.Sale.ID))
	return receipt, nil
}
