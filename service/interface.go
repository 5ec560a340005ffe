package service

import (
	"context"

	"retail-pos/auth"
	models "retail-pos/model"

	"github.com/shopspring/decimal"
)

type ServiceInterface interface {
	// catalog
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (models.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (models.Product, error)
	CreateProduct(ctx context.Context, req ProductRequest) (models.Product, error)
	UpdateProduct(ctx context.Context, id int64, req ProductRequest) (models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, name string) (models.Category, error)

	// stock
	UpdateStock(ctx context.Context, productID int64, delta int, reason string) (models.Product, error)
	ListStockMovements(ctx context.Context, limit int) ([]models.StockMovement, error)
	ListAlerts(ctx context.Context) ([]AlertDTO, error)

	// suppliers
	ListSuppliers(ctx context.Context) ([]models.Supplier, error)
	CreateSupplier(ctx context.Context, req SupplierRequest) (models.Supplier, error)
	UpdateSupplier(ctx context.Context, id int64, req SupplierRequest) (models.Supplier, error)

	// register
	OpenSession(ctx context.Context) (CartDTO, error)
	GetCart(ctx context.Context, sessionID string) (CartDTO, error)
	AddToCart(ctx context.Context, sessionID, barcode string) (CartDTO, error)
	SetCartQuantity(ctx context.Context, sessionID string, productID int64, qty int) (CartDTO, error)
	RemoveFromCart(ctx context.Context, sessionID string, productID int64) (CartDTO, error)
	ClearCart(ctx context.Context, sessionID string) (CartDTO, error)
	CloseSession(ctx context.Context, sessionID string) error
	Checkout(ctx context.Context, sessionID string, tendered decimal.Decimal) (models.Receipt, error)

	// reports
	SalesSummary(ctx context.Context) (models.SalesSummary, error)
	TopProducts(ctx context.Context, limit int) ([]models.TopProduct, error)
	ListSales(ctx context.Context, limit int) ([]models.Sale, error)
	GetSale(ctx context.Context, id int64) (models.Sale, error)

	// auth
	Register(ctx context.Context, req RegisterRequest, actor *auth.Claims) (models.User, error)
	Login(ctx context.Context, email, password string) (TokenDTO, error)
	Authenticate(token string) (*auth.Claims, error)

	Ready(ctx context.Context) error
}
