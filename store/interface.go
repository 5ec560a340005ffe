package store

import (
	"context"
	"time"

	models "retail-pos/model"
)

// Store is the catalog, sales and user persistence the service runs on.
type Store interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (models.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (models.Product, error)
	CreateProduct(ctx context.Context, in ProductInput) (models.Product, error)
	UpdateProduct(ctx context.Context, id int64, in ProductInput) (models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, name string) (models.Category, error)

	AdjustStock(ctx context.Context, productID int64, delta int, reason string) (models.Product, error)
	ListStockMovements(ctx context.Context, limit int) ([]models.StockMovement, error)
	ListLowStock(ctx context.Context) ([]models.Product, error)

	ListSuppliers(ctx context.Context) ([]models.Supplier, error)
	CreateSupplier(ctx context.Context, in SupplierInput) (models.Supplier, error)
	UpdateSupplier(ctx context.Context, id int64, in SupplierInput) (models.Supplier, error)

	CommitSale(ctx context.Context, draft models.SaleDraft) (models.CommitResult, error)
	ListSales(ctx context.Context, limit int) ([]models.Sale, error)
	GetSale(ctx context.Context, id int64) (models.Sale, error)
	SalesSummary(ctx context.Context, since time.Time) (models.SalesSummary, error)
	TopProducts(ctx context.Context, limit int) ([]models.TopProduct, error)

	CreateUser(ctx context.Context, email, passwordHash string, role models.Role) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	CountUsers(ctx context.Context) (int, error)

	Ping(ctx context.Context) error
	Close() error
}
