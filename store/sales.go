package store

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strconv"
	"time"

	models "retail-pos/model"

	"github.com/shopspring/decimal"
)

const (
	querySaleByReference = `SELECT id, reference, total_amount, customer_payment, change_amount, created_at FROM sales WHERE reference = $1`
	queryInsertSale      = `INSERT INTO sales (reference, total_amount, customer_payment, change_amount) VALUES ($1, $2, $3, $4) RETURNING id, created_at`
	queryInsertSaleItem  = `INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, total_price) VALUES ($1, $2, $3, $4, $5)`
	queryListSales       = `SELECT id, reference, total_amount, customer_payment, change_amount, created_at FROM sales ORDER BY created_at DESC, id DESC LIMIT $1`
	queryGetSale         = `SELECT id, reference, total_amount, customer_payment, change_amount, created_at FROM sales WHERE id = $1`
	querySaleItems       = `SELECT si.sale_id, si.product_id, COALESCE(p.name, ''), si.quantity, si.unit_price, si.total_price
		FROM sale_items si LEFT JOIN products p ON p.id = si.product_id
		WHERE si.sale_id = $1 ORDER BY si.id`
	querySalesTotals  = `SELECT COUNT(*), COALESCE(SUM(total_amount), 0) FROM sales`
	queryItemsSold    = `SELECT COALESCE(SUM(quantity), 0) FROM sale_items`
	queryRevenueSince = `SELECT COALESCE(SUM(total_amount), 0) FROM sales WHERE created_at >= $1`
	queryTopProducts  = `SELECT si.product_id, COALESCE(p.name, 'Unknown Product'), SUM(si.quantity), SUM(si.total_price)
		FROM sale_items si LEFT JOIN products p ON p.id = si.product_id
		GROUP BY si.product_id, p.name
		ORDER BY SUM(si.total_price) DESC
		LIMIT $1`
)

// CommitSale writes the sale, its lines and the inventory decrement in one
// transaction. Product rows are locked in id order so concurrent registers
// cannot lose each other's decrements or deadlock on each other. A reference
// that is already present returns the stored sale untouched.
func (s *PostgresStore) CommitSale(ctx context.Context, draft models.SaleDraft) (models.CommitResult, error) {
	var res models.CommitResult

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return res, translate("store.CommitSale", "sales", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	existing, err := scanSale(tx.QueryRowContext(ctx, querySaleByReference, draft.Reference))
	switch {
	case err == nil:
		res.Sale = existing
		res.Replayed = true
		return res, nil
	case !errors.Is(err, sql.ErrNoRows):
		return res, translate("store.CommitSale", "sales", err)
	}

	sale := models.Sale{
		Reference:       draft.Reference,
		TotalAmount:     draft.TotalAmount,
		CustomerPayment: draft.CustomerPayment,
		ChangeAmount:    draft.ChangeAmount,
	}
	if err := tx.QueryRowContext(ctx, queryInsertSale,
		draft.Reference, draft.TotalAmount, draft.CustomerPayment, draft.ChangeAmount,
	).Scan(&sale.ID, &sale.CreatedAt); err != nil {
		return res, translate("store.CommitSale", "sales", err)
	}

	stmt, err := tx.PrepareContext(ctx, queryInsertSaleItem)
	if err != nil {
		return res, translate("store.CommitSale", "sale_items", err)
	}
	defer stmt.Close()

	sold := map[int64]int{}
	for _, l := range draft.Lines {
		if _, err := stmt.ExecContext(ctx, sale.ID, l.ProductID, l.Quantity, l.UnitPrice, l.TotalPrice); err != nil {
			return res, translate("store.CommitSale", "sale_items", err)
		}
		line := l
		line.SaleID = sale.ID
		sale.Lines = append(sale.Lines, line)
		sold[l.ProductID] += l.Quantity
	}

	ids := make([]int64, 0, len(sold))
	for id := range sold {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		sf, err := s.decrement(ctx, tx, id, sold[id], draft.Reference)
		if err != nil {
			return res, err
		}
		if sf != nil {
			res.Shortfalls = append(res.Shortfalls, *sf)
		}
	}

	if err := tx.Commit(); err != nil {
		return res, translate("store.CommitSale", "sales", err)
	}
	committed = true
	res.Sale = sale
	return res, nil
}

func scanSale(r rowScanner) (models.Sale, error) {
	var sale models.Sale
	err := r.Scan(&sale.ID, &sale.Reference, &sale.TotalAmount, &sale.CustomerPayment, &sale.ChangeAmount, &sale.CreatedAt)
	return sale, err
}

func (s *PostgresStore) ListSales(ctx context.Context, limit int) ([]models.Sale, error) {
	rows, err := s.DB.QueryContext(ctx, queryListSales, limit)
	if err != nil {
		return nil, translate("store.ListSales", "sales", err)
	}
	defer rows.Close()
	out := []models.Sale{}
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, translate("store.ListSales", "sales", err)
		}
		out = append(out, sale)
	}
	return out, translate("store.ListSales", "sales", rows.Err())
}

func (s *PostgresStore) GetSale(ctx context.Context, id int64) (models.Sale, error) {
	kind := "sale " + strconv.FormatInt(id, 10)
	sale, err := scanSale(s.DB.QueryRowContext(ctx, queryGetSale, id))
	if err != nil {
		return sale, translate("store.GetSale", kind, err)
	}

	rows, err := s.DB.QueryContext(ctx, querySaleItems, id)
	if err != nil {
		return sale, translate("store.GetSale", "sale_items", err)
	}
	defer rows.Close()
	sale.Lines = []models.SaleLine{}
	for rows.Next() {
		var l models.SaleLine
		if err := rows.Scan(&l.SaleID, &l.ProductID, &l.Name, &l.Quantity, &l.UnitPrice, &l.TotalPrice); err != nil {
			return sale, translate("store.GetSale", "sale_items", err)
		}
		sale.Lines = append(sale.Lines, l)
	}
	return sale, translate("store.GetSale", "sale_items", rows.Err())
}

// SalesSummary aggregates all sales; TodayRevenue counts those at or after
// since.
func (s *PostgresStore) SalesSummary(ctx context.Context, since time.Time) (models.SalesSummary, error) {
	var sum models.SalesSummary
	if err := s.DB.QueryRowContext(ctx, querySalesTotals).Scan(&sum.TotalSales, &sum.TotalRevenue); err != nil {
		return sum, translate("store.SalesSummary", "sales", err)
	}
	if err := s.DB.QueryRowContext(ctx, queryItemsSold).Scan(&sum.TotalItemsSold); err != nil {
		return sum, translate("store.SalesSummary", "sale_items", err)
	}
	if err := s.DB.QueryRowContext(ctx, queryRevenueSince, since).Scan(&sum.TodayRevenue); err != nil {
		return sum, translate("store.SalesSummary", "sales", err)
	}
	sum.AverageSale = decimal.Zero
	if sum.TotalSales > 0 {
		sum.AverageSale = sum.TotalRevenue.Div(decimal.NewFromInt(int64(sum.TotalSales))).Round(2)
	}
	return sum, nil
}

func (s *PostgresStore) TopProducts(ctx context.Context, limit int) ([]models.TopProduct, error) {
	rows, err := s.DB.QueryContext(ctx, queryTopProducts, limit)
	if err != nil {
		return nil, translate("store.TopProducts", "sale_items", err)
	}
	defer rows.Close()
	out := []models.TopProduct{}
	for rows.Next() {
		var tp models.TopProduct
		if err := rows.Scan(&tp.ProductID, &tp.ProductName, &tp.TotalQuantity, &tp.TotalRevenue); err != nil {
			return nil, translate("store.TopProducts", "sale_items", err)
		}
		out = append(out, tp)
	}
	return out, translate("store.TopProducts", "sale_items", rows.Err())
}
