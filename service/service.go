package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"retail-pos/auth"
	"retail-pos/cart"
	"retail-pos/checkout"
	models "retail-pos/model"
	"retail-pos/obs"
	"retail-pos/session"
	"retail-pos/store"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	defaultTopLimit  = 5

	// lockStripes bounds the per-session lock set; sessions hashing to the
	// same stripe serialize against each other.
	lockStripes = 64
)

type Options struct {
	TaxRate       decimal.Decimal
	CommitterOpts []checkout.Option
	NewSessionID  func() string
	Now           func() time.Time
}

type Service struct {
	store     store.Store
	sessions  session.Store
	cache     *cart.ProductCache
	committer *checkout.Committer
	issuer    *auth.Issuer
	taxRate   decimal.Decimal
	newID     func() string
	now       func() time.Time

	locks [lockStripes]sync.Mutex
}

func NewService(st store.Store, sessions session.Store, issuer *auth.Issuer, opts Options) *Service {
	s := &Service{
		store:     st,
		sessions:  sessions,
		cache:     cart.NewProductCache(st),
		committer: checkout.NewCommitter(st, append(opts.CommitterOpts, checkout.WithCheckpoint(sessions.Save))...),
		issuer:    issuer,
		taxRate:   opts.TaxRate,
		newID:     opts.NewSessionID,
		now:       opts.Now,
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Warm loads the barcode cache. Callers may skip it; the first scan loads lazily.
func (s *Service) Warm(ctx context.Context) error {
	return s.cache.Refresh(ctx)
}

func (s *Service) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// refreshCache is best effort; a stale snapshot is corrected on the next write.
func (s *Service) refreshCache(ctx context.Context) {
	if err := s.cache.Refresh(ctx); err != nil {
		obs.Logger.Warn("catalog_refresh_failed", "error", err)
	}
}

// ---- catalog ----

func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.store.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id int64) (models.Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, req ProductRequest) (models.Product, error) {
	if err := req.validate(); err != nil {
		return models.Product{}, err
	}
	p, err := s.store.CreateProduct(ctx, req.input())
	if err != nil {
		return models.Product{}, err
	}
	s.refreshCache(ctx)
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req ProductRequest) (models.Product, error) {
	if err := req.validate(); err != nil {
		return models.Product{}, err
	}
	p, err := s.store.UpdateProduct(ctx, id, req.input())
	if err != nil {
		return models.Product{}, err
	}
	s.refreshCache(ctx)
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.refreshCache(ctx)
	return nil
}

func (s *Service) GetProductByBarcode(ctx context.Context, barcode string) (models.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return models.Product{}, models.Invalid("barcode is required")
	}
	return s.store.GetProductByBarcode(ctx, barcode)
}

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *Service) CreateCategory(ctx context.Context, name string) (models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Category{}, models.Invalid("name is required")
	}
	return s.store.CreateCategory(ctx, name)
}

func (r ProductRequest) input() store.ProductInput {
	return store.ProductInput{
		Barcode:      r.Barcode,
		Name:         r.Name,
		CategoryID:   r.CategoryID,
		Quantity:     r.Quantity,
		CostPrice:    r.CostPrice,
		SellingPrice: r.SellingPrice,
	}
}

// ---- stock ----

func (s *Service) UpdateStock(ctx context.Context, productID int64, delta int, reason string) (models.Product, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.Product{}, models.Invalid("reason is required")
	}
	if delta == 0 {
		return models.Product{}, models.Invalid("delta must be non-zero")
	}
	p, err := s.store.AdjustStock(ctx, productID, delta, reason)
	if err != nil {
		return models.Product{}, err
	}
	obs.Logger.Info("stock_adjusted", "product_id", productID, "delta", delta, "quantity", p.Quantity, "reason", reason)
	s.refreshCache(ctx)
	return p, nil
}

func (s *Service) ListStockMovements(ctx context.Context, limit int) ([]models.StockMovement, error) {
	return s.store.ListStockMovements(ctx, clampLimit(limit, defaultListLimit))
}

func (s *Service) ListAlerts(ctx context.Context) ([]AlertDTO, error) {
	ps, err := s.store.ListLowStock(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]AlertDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, alertFor(p))
	}
	return out, nil
}

// ---- suppliers ----

func (s *Service) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	return s.store.ListSuppliers(ctx)
}

func (s *Service) CreateSupplier(ctx context.Context, req SupplierRequest) (models.Supplier, error) {
	if err := req.validate(); err != nil {
		return models.Supplier{}, err
	}
	return s.store.CreateSupplier(ctx, req.input())
}

func (s *Service) UpdateSupplier(ctx context.Context, id int64, req SupplierRequest) (models.Supplier, error) {
	if err := req.validate(); err != nil {
		return models.Supplier{}, err
	}
	return s.store.UpdateSupplier(ctx, id, req.input())
}

func (r SupplierRequest) input() store.SupplierInput {
	return store.SupplierInput{
		Name:          r.Name,
		ContactPerson: r.ContactPerson,
		Email:         r.Email,
		Phone:         r.Phone,
		Address:       r.Address,
		Status:        r.Status,
	}
}

// ---- register ----

// lockForSession acquires the process-local lock for one register session.
// Returns unlock func.
func (s *Service) lockForSession(id string) func() {
	m := &s.locks[xxhash.Sum64String(id)%lockStripes]
	m.Lock()
	return func() { m.Unlock() }
}

// withSession runs fn on the stored session under its lock and saves the
// result when fn succeeds.
func (s *Service) withSession(ctx context.Context, id string, fn func(*cart.Session) error) (CartDTO, error) {
	if id == "" {
		return CartDTO{}, models.Invalid("session id is required")
	}
	unlock := s.lockForSession(id)
	defer unlock()

	sess, err := s.sessions.Load(ctx, id)
	if err != nil {
		return CartDTO{}, err
	}
	if err := fn(sess); err != nil {
		return CartDTO{}, err
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return CartDTO{}, err
	}
	return toCartDTO(sess), nil
}

func (s *Service) OpenSession(ctx context.Context) (CartDTO, error) {
	sess := cart.NewSession(s.newID(), s.taxRate)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return CartDTO{}, err
	}
	obs.Logger.Info("session_opened", "session_id", sess.ID)
	return toCartDTO(sess), nil
}

func (s *Service) GetCart(ctx context.Context, sessionID string) (CartDTO, error) {
	if sessionID == "" {
		return CartDTO{}, models.Invalid("session id is required")
	}
	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return CartDTO{}, err
	}
	return toCartDTO(sess), nil
}

func (s *Service) AddToCart(ctx context.Context, sessionID, barcode string) (CartDTO, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return CartDTO{}, models.Invalid("barcode is required")
	}
	if s.cache.LoadedAt().IsZero() {
		if err := s.cache.Refresh(ctx); err != nil {
			return CartDTO{}, err
		}
	}
	return s.withSession(ctx, sessionID, func(sess *cart.Session) error {
		return sess.AddByBarcode(s.cache, barcode)
	})
}

func (s *Service) SetCartQuantity(ctx context.Context, sessionID string, productID int64, qty int) (CartDTO, error) {
	return s.withSession(ctx, sessionID, func(sess *cart.Session) error {
		return sess.SetLineQuantity(productID, qty)
	})
}

func (s *Service) RemoveFromCart(ctx context.Context, sessionID string, productID int64) (CartDTO, error) {
	return s.withSession(ctx, sessionID, func(sess *cart.Session) error {
		return sess.RemoveLine(productID)
	})
}

func (s *Service) ClearCart(ctx context.Context, sessionID string) (CartDTO, error) {
	return s.withSession(ctx, sessionID, func(sess *cart.Session) error {
		return sess.Clear()
	})
}

// CloseSession abandons a register session. A session whose checkout may
// already have reached the database cannot be closed; re-post the checkout.
func (s *Service) CloseSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return models.Invalid("session id is required")
	}
	unlock := s.lockForSession(sessionID)
	defer unlock()

	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.InDoubt() {
		return fmt.Errorf("%w: checkout in progress", models.ErrConflict)
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	obs.Logger.Info("session_closed", "session_id", sessionID, "state", sess.State)
	return nil
}

// Checkout commits the session as a sale. The session is saved whatever the
// outcome so a Failed state survives the request.
func (s *Service) Checkout(ctx context.Context, sessionID string, tendered decimal.Decimal) (models.Receipt, error) {
	if sessionID == "" {
		return models.Receipt{}, models.Invalid("session id is required")
	}
	if tendered.IsNegative() {
		return models.Receipt{}, models.Invalid("payment must be >= 0")
	}
	unlock := s.lockForSession(sessionID)
	defer unlock()

	sess, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return models.Receipt{}, err
	}
	receipt, err := s.committer.Commit(ctx, sess, tendered)
	// A lost save leaves the stored session Committing with its reference,
	// so re-posting the checkout replays the sale rather than writing again.
	if serr := s.sessions.Save(ctx, sess); serr != nil {
		obs.Logger.Error("session_save_failed", "session_id", sessionID, "state", sess.State, "error", serr)
	}
	if err != nil {
		return models.Receipt{}, err
	}
	s.refreshCache(ctx)
	return receipt, nil
}

// ---- reports ----

func (s *Service) SalesSummary(ctx context.Context) (models.SalesSummary, error) {
	now := s.now()
	y, m, d := now.Date()
	return s.store.SalesSummary(ctx, time.Date(y, m, d, 0, 0, 0, 0, now.Location()))
}

func (s *Service) TopProducts(ctx context.Context, limit int) ([]models.TopProduct, error) {
	return s.store.TopProducts(ctx, clampLimit(limit, defaultTopLimit))
}

func (s *Service) ListSales(ctx context.Context, limit int) ([]models.Sale, error) {
	return s.store.ListSales(ctx, clampLimit(limit, defaultListLimit))
}

func (s *Service) GetSale(ctx context.Context, id int64) (models.Sale, error) {
	return s.store.GetSale(ctx, id)
}

func clampLimit(limit, def int) int {
	switch {
	case limit <= 0:
		return def
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}

// ---- auth ----

// Register creates a user. The first user of an empty store becomes admin
// without credentials; after that only an admin may register users.
func (s *Service) Register(ctx context.Context, req RegisterRequest, actor *auth.Claims) (models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return models.User{}, models.Invalid("valid email is required")
	}
	if len(req.Password) < auth.MinPasswordLength {
		return models.User{}, models.Invalid("password must be at least %d characters", auth.MinPasswordLength)
	}
	role := req.Role
	if role == "" {
		role = models.RoleWorker
	}
	if !role.Valid() {
		return models.User{}, models.Invalid("role must be admin or worker")
	}

	n, err := s.store.CountUsers(ctx)
	if err != nil {
		return models.User{}, err
	}
	switch {
	case n == 0:
		role = models.RoleAdmin
	case actor == nil:
		return models.User{}, models.ErrUnauthorized
	case !auth.Allows(actor.Role, models.RoleAdmin):
		return models.User{}, models.ErrForbidden
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return models.User{}, err
	}
	u, err := s.store.CreateUser(ctx, email, hash, role)
	if err != nil {
		return models.User{}, err
	}
	obs.Logger.Info("user_registered", "user_id", u.ID, "role", u.Role, "bootstrap", n == 0)
	return u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (TokenDTO, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, models.ErrNotFound) {
		return TokenDTO{}, fmt.Errorf("%w: invalid credentials", models.ErrUnauthorized)
	}
	if err != nil {
		return TokenDTO{}, err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return TokenDTO{}, fmt.Errorf("%w: invalid credentials", models.ErrUnauthorized)
	}
	token, exp, err := s.issuer.Issue(u)
	if err != nil {
		return TokenDTO{}, err
	}
	return TokenDTO{Token: token, ExpiresAt: exp, Role: u.Role}, nil
}

func (s *Service) Authenticate(token string) (*auth.Claims, error) {
	return s.issuer.Parse(token)
}
