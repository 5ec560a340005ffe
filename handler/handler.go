package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	models "retail-pos/model"
	"retail-pos/obs"
	"retail-pos/service"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// Handler is the HTTP layer that talks to service.Service
type Handler struct {
	svc service.ServiceInterface
}

// NewHandler returns a Handler instance
func NewHandler(s service.ServiceInterface) *Handler {
	return &Handler{svc: s}
}

// RegisterRoutes registers all routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	admin, worker := models.RoleAdmin, models.RoleWorker

	// Health
	r.HandleFunc("/healthz", h.Health).Methods("GET")
	r.HandleFunc("/readyz", h.Ready).Methods("GET")

	// Auth
	r.HandleFunc("/auth/register", h.Register).Methods("POST")
	r.HandleFunc("/auth/login", h.Login).Methods("POST")

	// Catalog
	r.HandleFunc("/products", h.protect(worker, h.ListProducts)).Methods("GET")
	r.HandleFunc("/products", h.protect(admin, h.CreateProduct)).Methods("POST")
	r.HandleFunc("/products/{id:[0-9]+}", h.protect(worker, h.GetProduct)).Methods("GET")
	r.HandleFunc("/products/barcode/{barcode}", h.protect(worker, h.GetProductByBarcode)).Methods("GET")
	r.HandleFunc("/products/{id:[0-9]+}", h.protect(admin, h.UpdateProduct)).Methods("PUT")
	r.HandleFunc("/products/{id:[0-9]+}", h.protect(admin, h.DeleteProduct)).Methods("DELETE")
	r.HandleFunc("/categories", h.protect(worker, h.ListCategories)).Methods("GET")
	r.HandleFunc("/categories", h.protect(admin, h.CreateCategory)).Methods("POST")

	// Stock
	r.HandleFunc("/stock/adjust", h.protect(worker, h.UpdateStock)).Methods("POST")
	r.HandleFunc("/stock/movements", h.protect(worker, h.ListStockMovements)).Methods("GET")
	r.HandleFunc("/stock/alerts", h.protect(worker, h.ListAlerts)).Methods("GET")

	// Suppliers
	r.HandleFunc("/suppliers", h.protect(admin, h.ListSuppliers)).Methods("GET")
	r.HandleFunc("/suppliers", h.protect(admin, h.CreateSupplier)).Methods("POST")
	r.HandleFunc("/suppliers/{id:[0-9]+}", h.protect(admin, h.UpdateSupplier)).Methods("PUT")

	// Register
	r.HandleFunc("/sessions", h.protect(worker, h.OpenSession)).Methods("POST")
	r.HandleFunc("/sessions/{sid}", h.protect(worker, h.GetCart)).Methods("GET")
	r.HandleFunc("/sessions/{sid}", h.protect(worker, h.CloseSession)).Methods("DELETE")
	r.HandleFunc("/sessions/{sid}/scan", h.protect(worker, h.AddToCart)).Methods("POST")
	r.HandleFunc("/sessions/{sid}/lines/{id:[0-9]+}", h.protect(worker, h.SetCartQuantity)).Methods("PUT")
	r.HandleFunc("/sessions/{sid}/lines/{id:[0-9]+}", h.protect(worker, h.RemoveFromCart)).Methods("DELETE")
	r.HandleFunc("/sessions/{sid}/clear", h.protect(worker, h.ClearCart)).Methods("POST")
	r.HandleFunc("/sessions/{sid}/checkout", h.protect(worker, h.Checkout)).Methods("POST")

	// Reports
	r.HandleFunc("/reports/summary", h.protect(admin, h.SalesSummary)).Methods("GET")
	r.HandleFunc("/reports/top-products", h.protect(admin, h.TopProducts)).Methods("GET")
	r.HandleFunc("/sales", h.protect(admin, h.ListSales)).Methods("GET")
	r.HandleFunc("/sales/{id:[0-9]+}", h.protect(admin, h.GetSale)).Methods("GET")
}

// --- request shapes ---
type nameReq struct {
	Name string `json:"name"`
}

type adjustStockReq struct {
	ProductID int64  `json:"product_id"`
	Delta     int    `json:"delta"`
	Reason    string `json:"reason"`
}

type scanReq struct {
	Barcode string `json:"barcode"`
}

type quantityReq struct {
	Quantity int `json:"quantity"`
}

type checkoutReq struct {
	Payment decimal.Decimal `json:"payment"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// --- helpers ---
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// statusFor maps an error to its HTTP status and kind label.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrOutOfStock):
		return http.StatusConflict, "out_of_stock"
	case errors.Is(err, models.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, models.ErrEmptyCart):
		return http.StatusBadRequest, "empty_cart"
	case errors.Is(err, models.ErrInsufficientPayment):
		return http.StatusUnprocessableEntity, "insufficient_payment"
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	default:
		return http.StatusInternalServerError, "persistence"
	}
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code, kind := statusFor(err)
	details := err.Error()
	if code == http.StatusInternalServerError {
		obs.Logger.Error("request_failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
		details = "internal error"
	}
	writeJSON(w, code, errorBody{Error: kind, Details: details})
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.Invalid("invalid json")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, models.Invalid("invalid %s", name)
	}
	return id, nil
}

func queryLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, models.Invalid("limit must be a non-negative integer")
	}
	return n, nil
}

// --- Handler ---

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ready(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Register handles POST /auth/register. The token is optional so the first
// user can bootstrap the store.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	claims, err := h.authenticate(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var req service.RegisterRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	u, err := h.svc.Register(r.Context(), req, claims)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// Login handles POST /auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	tok, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

// ListProducts handles GET /products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ListProducts(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	p, err := h.svc.GetProduct(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetProductByBarcode handles GET /products/barcode/{barcode}
func (h *Handler) GetProductByBarcode(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProductByBarcode(r.Context(), mux.Vars(r)["barcode"])
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreateProduct handles POST /products
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req service.ProductRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var req service.ProductRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	p, err := h.svc.UpdateProduct(r.Context(), id, req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if err := h.svc.DeleteProduct(r.Context(), id); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.svc.ListCategories(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req nameReq
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	c, err := h.svc.CreateCategory(r.Context(), req.Name)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// UpdateStock handles POST /stock/adjust
// body: { "product_id": 1, "delta": -2, "reason": "damaged" }
func (h *Handler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockReq
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	if req.ProductID <= 0 {
		writeErr(w, r, models.Invalid("product_id required"))
		return
	}
	p, err := h.svc.UpdateStock(r.Context(), req.ProductID, req.Delta, req.Reason)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) ListStockMovements(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	ms, err := h.svc.ListStockMovements(r.Context(), limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	as, err := h.svc.ListAlerts(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, as)
}

func (h *Handler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	ss, err := h.svc.ListSuppliers(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ss)
}

func (h *Handler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req service.SupplierRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	s, err := h.svc.CreateSupplier(r.Context(), req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *Handler) UpdateSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var req service.SupplierRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	s, err := h.svc.UpdateSupplier(r.Context(), id, req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// OpenSession handles POST /sessions
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.OpenSession(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GetCart handles GET /sessions/{sid}
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCart(r.Context(), mux.Vars(r)["sid"])
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CloseSession handles DELETE /sessions/{sid}
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.CloseSession(r.Context(), mux.Vars(r)["sid"]); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddToCart handles POST /sessions/{sid}/scan
// body: { "barcode": "4006381333931" }
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req scanReq
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	c, err := h.svc.AddToCart(r.Context(), mux.Vars(r)["sid"], req.Barcode)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// SetCartQuantity handles PUT /sessions/{sid}/lines/{id}
// body: { "quantity": 3 }
func (h *Handler) SetCartQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	var req quantityReq
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	c, err := h.svc.SetCartQuantity(r.Context(), mux.Vars(r)["sid"], id, req.Quantity)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// RemoveFromCart handles DELETE /sessions/{sid}/lines/{id}
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	c, err := h.svc.RemoveFromCart(r.Context(), mux.Vars(r)["sid"], id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.ClearCart(r.Context(), mux.Vars(r)["sid"])
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Checkout handles POST /sessions/{sid}/checkout
// body: { "payment": "30.00" }
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := decode(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	receipt, err := h.svc.Checkout(r.Context(), mux.Vars(r)["sid"], req.Payment)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func (h *Handler) SalesSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.SalesSummary(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	ps, err := h.svc.TopProducts(r.Context(), limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	ss, err := h.svc.ListSales(r.Context(), limit)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ss)
}

func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeErr(w, r, err)
		return
	}
	s, err := h.svc.GetSale(r.Context(), id)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
