package store

import (
	"context"
	"database/sql"
	"strconv"

	models "retail-pos/model"
)

const (
	queryLockQuantity = `SELECT quantity FROM products WHERE id = $1 FOR UPDATE`
	querySetQuantity  = `UPDATE products SET quantity = $1, status = $2 WHERE id = $3`
	queryInsertMove   = `INSERT INTO stock_movements (product_id, type, quantity, reason) VALUES ($1, $2, $3, $4)`
	queryListMoves    = `SELECT m.id, m.product_id, p.name, m.type, m.quantity, m.reason, m.created_at
		FROM stock_movements m JOIN products p ON p.id = m.product_id
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $1`
	queryListLowStock = `SELECT ` + productColumns + `
		FROM products p LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.quantity <= $1
		ORDER BY p.quantity, p.id`
)

// AdjustStock applies delta to the on-hand quantity, flooring at zero, and
// records the movement with its reason.
func (s *PostgresStore) AdjustStock(ctx context.Context, productID int64, delta int, reason string) (models.Product, error) {
	kind := "product " + strconv.FormatInt(productID, 10)

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.Product{}, translate("store.AdjustStock", kind, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var current int
	if err := tx.QueryRowContext(ctx, queryLockQuantity, productID).Scan(&current); err != nil {
		return models.Product{}, translate("store.AdjustStock", kind, err)
	}
	next := current + delta
	if next < 0 {
		next = 0
	}
	if _, err := tx.ExecContext(ctx, querySetQuantity, next, string(models.StatusFor(next, s.LowStockThreshold)), productID); err != nil {
		return models.Product{}, translate("store.AdjustStock", kind, err)
	}

	mt := models.MovementAdjustment
	switch {
	case delta > 0:
		mt = models.MovementIn
	case delta < 0:
		mt = models.MovementOut
	}
	if _, err := tx.ExecContext(ctx, queryInsertMove, productID, string(mt), next-current, reason); err != nil {
		return models.Product{}, translate("store.AdjustStock", "stock_movements", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Product{}, translate("store.AdjustStock", kind, err)
	}
	committed = true
	return s.GetProduct(ctx, productID)
}

func (s *PostgresStore) ListStockMovements(ctx context.Context, limit int) ([]models.StockMovement, error) {
	rows, err := s.DB.QueryContext(ctx, queryListMoves, limit)
	if err != nil {
		return nil, translate("store.ListStockMovements", "stock_movements", err)
	}
	defer rows.Close()
	out := []models.StockMovement{}
	for rows.Next() {
		var (
			m  models.StockMovement
			mt string
		)
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Product, &mt, &m.Quantity, &m.Reason, &m.CreatedAt); err != nil {
			return nil, translate("store.ListStockMovements", "stock_movements", err)
		}
		m.Type = models.MovementType(mt)
		out = append(out, m)
	}
	return out, translate("store.ListStockMovements", "stock_movements", rows.Err())
}

// ListLowStock returns products at or below the low-stock threshold.
func (s *PostgresStore) ListLowStock(ctx context.Context) ([]models.Product, error) {
	return s.queryProducts(ctx, "store.ListLowStock", queryListLowStock, s.LowStockThreshold)
}

// decrement locks a product row inside tx and takes sold units off it.
// Under OversellClamp the quantity floors at zero and the missing units are
// returned as a shortfall; under OversellReject it fails.
func (s *PostgresStore) decrement(ctx context.Context, tx *sql.Tx, productID int64, sold int, reference string) (*models.Shortfall, error) {
	kind := "product " + strconv.FormatInt(productID, 10)

	var current int
	if err := tx.QueryRowContext(ctx, queryLockQuantity, productID).Scan(&current); err != nil {
		return nil, translate("store.CommitSale", kind, err)
	}

	var shortfall *models.Shortfall
	next := current - sold
	if next < 0 {
		if s.Oversell == models.OversellReject {
			return nil, &insufficientStockError{productID: productID, requested: sold, available: current}
		}
		shortfall = &models.Shortfall{ProductID: productID, Requested: sold, Available: current}
		next = 0
	}
	if _, err := tx.ExecContext(ctx, querySetQuantity, next, string(models.StatusFor(next, s.LowStockThreshold)), productID); err != nil {
		return nil, translate("store.CommitSale", kind, err)
	}
	if _, err := tx.ExecContext(ctx, queryInsertMove, productID, string(models.MovementSale), next-current, "sale "+reference); err != nil {
		return nil, translate("store.CommitSale", "stock_movements", err)
	}
	return shortfall, nil
}

type insufficientStockError struct {
	productID            int64
	requested, available int
}

func (e *insufficientStockError) Error() string {
	return "product " + strconv.FormatInt(e.productID, 10) + ": " + models.ErrInsufficientStock.Error() +
		" (requested " + strconv.Itoa(e.requested) + ", available " + strconv.Itoa(e.available) + ")"
}

func (e *insufficientStockError) Unwrap() error { return models.ErrInsufficientStock }
