package store

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	models "retail-pos/model"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ProductInput is the writable part of a product row.
type ProductInput struct {
	Barcode      string
	Name         string
	CategoryID   *int64
	Quantity     int
	CostPrice    decimal.Decimal
	SellingPrice decimal.Decimal
}

// PostgresStore is a Store backed by Postgres.
type PostgresStore struct {
	DB *sql.DB
	// LowStockThreshold drives the derived product status.
	LowStockThreshold int
	// Oversell decides how CommitSale treats lines larger than on-hand stock.
	Oversell models.OversellPolicy
}

func NewPostgresStore(dsn string, lowStockThreshold int, oversell models.OversellPolicy) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{DB: db, LowStockThreshold: lowStockThreshold, Oversell: oversell}, nil
}

func (s *PostgresStore) Close() error { return s.DB.Close() }

func (s *PostgresStore) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

const productColumns = `p.id, p.barcode, p.name, p.category_id, c.name, p.quantity, p.cost_price, p.selling_price, p.created_at`

const (
	queryListProducts = `SELECT ` + productColumns + `
		FROM products p LEFT JOIN categories c ON c.id = p.category_id
		ORDER BY p.id`
	queryGetProduct = `SELECT ` + productColumns + `
		FROM products p LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1`
	queryGetProductByBarcode = `SELECT ` + productColumns + `
		FROM products p LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.barcode = $1`
	queryInsertProduct = `INSERT INTO products (barcode, name, category_id, quantity, cost_price, selling_price, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	queryUpdateProduct = `UPDATE products SET barcode=$1, name=$2, category_id=$3, quantity=$4, cost_price=$5, selling_price=$6, status=$7
		WHERE id=$8`
	queryDeleteProduct  = `DELETE FROM products WHERE id=$1`
	queryListCategories = `SELECT id, name FROM categories ORDER BY name`
	queryInsertCategory = `INSERT INTO categories (name) VALUES ($1) RETURNING id`
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanProduct reads one productColumns row; the status is derived from the
// quantity so a changed threshold applies immediately.
func (s *PostgresStore) scanProduct(r rowScanner) (models.Product, error) {
	var (
		p        models.Product
		category sql.NullInt64
		catName  sql.NullString
	)
	if err := r.Scan(&p.ID, &p.Barcode, &p.Name, &category, &catName, &p.Quantity, &p.CostPrice, &p.SellingPrice, &p.CreatedAt); err != nil {
		return p, err
	}
	if category.Valid {
		id := category.Int64
		p.CategoryID = &id
	}
	p.CategoryName = catName.String
	p.Status = models.StatusFor(p.Quantity, s.LowStockThreshold)
	return p, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.queryProducts(ctx, "store.ListProducts", queryListProducts)
}

func (s *PostgresStore) queryProducts(ctx context.Context, op, query string, args ...interface{}) ([]models.Product, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(op, "products", err)
	}
	defer rows.Close()

	out := []models.Product{}
	for rows.Next() {
		p, err := s.scanProduct(rows)
		if err != nil {
			return nil, translate(op, "products", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(op, "products", err)
	}
	return out, nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	p, err := s.scanProduct(s.DB.QueryRowContext(ctx, queryGetProduct, id))
	if err != nil {
		return p, translate("store.GetProduct", "product "+strconv.FormatInt(id, 10), err)
	}
	return p, nil
}

func (s *PostgresStore) GetProductByBarcode(ctx context.Context, barcode string) (models.Product, error) {
	p, err := s.scanProduct(s.DB.QueryRowContext(ctx, queryGetProductByBarcode, barcode))
	if err != nil {
		return p, translate("store.GetProductByBarcode", "barcode "+barcode, err)
	}
	return p, nil
}

func (s *PostgresStore) CreateProduct(ctx context.Context, in ProductInput) (models.Product, error) {
	var id int64
	err := s.DB.QueryRowContext(ctx, queryInsertProduct,
		in.Barcode, in.Name, nullableID(in.CategoryID), in.Quantity, in.CostPrice, in.SellingPrice,
		string(models.StatusFor(in.Quantity, s.LowStockThreshold)),
	).Scan(&id)
	if err != nil {
		return models.Product{}, translate("store.CreateProduct", "products", err)
	}
	return s.GetProduct(ctx, id)
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, id int64, in ProductInput) (models.Product, error) {
	res, err := s.DB.ExecContext(ctx, queryUpdateProduct,
		in.Barcode, in.Name, nullableID(in.CategoryID), in.Quantity, in.CostPrice, in.SellingPrice,
		string(models.StatusFor(in.Quantity, s.LowStockThreshold)), id,
	)
	if err != nil {
		return models.Product{}, translate("store.UpdateProduct", "products", err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return models.Product{}, translate("store.UpdateProduct", "product "+strconv.FormatInt(id, 10), sql.ErrNoRows)
	}
	return s.GetProduct(ctx, id)
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.DB.ExecContext(ctx, queryDeleteProduct, id)
	if err != nil {
		return translate("store.DeleteProduct", "product "+strconv.FormatInt(id, 10), err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return translate("store.DeleteProduct", "product "+strconv.FormatInt(id, 10), sql.ErrNoRows)
	}
	return nil
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.DB.QueryContext(ctx, queryListCategories)
	if err != nil {
		return nil, translate("store.ListCategories", "categories", err)
	}
	defer rows.Close()
	out := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, translate("store.ListCategories", "categories", err)
		}
		out = append(out, c)
	}
	return out, translate("store.ListCategories", "categories", rows.Err())
}

func (s *PostgresStore) CreateCategory(ctx context.Context, name string) (models.Category, error) {
	c := models.Category{Name: name}
	if err := s.DB.QueryRowContext(ctx, queryInsertCategory, name).Scan(&c.ID); err != nil {
		return models.Category{}, translate("store.CreateCategory", "categories", err)
	}
	return c, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
