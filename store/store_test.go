package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	models "retail-pos/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// decArg matches a NUMERIC argument by value rather than by its string form.
type decArg string

func (d decArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	got, err := decimal.NewFromString(s)
	if err != nil {
		return false
	}
	return got.Equal(decimal.RequireFromString(string(d)))
}

var productCols = []string{"id", "barcode", "name", "category_id", "category", "quantity", "cost_price", "selling_price", "created_at"}

func newMockStore(t *testing.T, policy models.OversellPolicy) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &PostgresStore{DB: db, LowStockThreshold: 10, Oversell: policy}, mock
}

func TestListProducts_DerivesStatus(t *testing.T) {
	s, mock := newMockStore(t, models.OversellClamp)
	now := time.Now()

	rows := sqlmock.NewRows(productCols).
		AddRow(int64(1), "111", "Mouse", int64(3), "Peripherals", 25, "4.50", "10.00", now).
		AddRow(int64(2), "222", "Cable", nil, nil, 4, "1.00", "5.00", now).
		AddRow(int64(3), "333", "Dock", nil, nil, 0, "40.00", "80.00", now)
	mock.ExpectQuery(regexp.QuoteMeta(queryListProducts)).WillReturnRows(rows)

	got, err := s.ListProducts(context.Background())
	if err != nil {
		t.Fatalf("ListProducts failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 products, got %d", len(got))
	}
	if got[0].Status != models.StatusInStock || got[1].Status != models.StatusLowStock || got[2].Status != models.StatusOutOfStock {
		t.Fatalf("unexpected statuses: %s %s %s", got[0].Status, got[1].Status, got[2].Status)
	}
	if got[0].CategoryID == nil || *got[0].CategoryID != 3 || got[0].CategoryName != "Peripherals" {
		t.Fatalf("unexpected category mapping: %+v", got[0])
	}
	if got[1].CategoryID != nil {
		t.Fatalf("expected nil category for NULL column")
	}
	if !got[0].SellingPrice.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("unexpected price %s", got[0].SellingPrice)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetProductByBarcode_NotFound(t *testing.T) {
	s, mock := newMockStore(t, models.OversellClamp)
	mock.ExpectQuery(regexp.QuoteMeta(queryGetProductByBarcode)).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(productCols))

	if _, err := s.GetProductByBarcode(context.Background(), "nope"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateProduct_DuplicateBarcode(t *testing.T) {
	s, mock := newMockStore(t, models.OversellClamp)
	mock.ExpectQuery(regexp.QuoteMeta(queryInsertProduct)).
		WithArgs("111", "Mouse", nil, 5, decArg("4.5"), decArg("10"), "low-stock").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := s.CreateProduct(context.Background(), ProductInput{
		Barcode: "111", Name: "Mouse", Quantity: 5,
		CostPrice: decimal.RequireFromString("4.50"), SellingPrice: decimal.RequireFromString("10.00"),
	})
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteProduct_NoRowsAndReferenced(t *testing.T) {
	s, mock := newMockStore(t, models.OversellClamp)

	mock.ExpectExec(regexp.QuoteMeta(queryDeleteProduct)).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := s.DeleteProduct(context.Background(), 5); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta(queryDeleteProduct)).
		WithArgs(int64(6)).
		WillReturnError(&pq.Error{Code: "23503"})
	if err := s.DeleteProduct(context.Background(), 6); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAdjustStock_ClampsAtZero(t *testing.T) {
	s, mock := newMockStore(t, models.OversellClamp)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(queryLockQuantity)).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta(querySetQuantity)).
		WithArgs(0, "out-of-stock", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(queryInsertMove)).
		WithArgs(int64(4), "out", -3, "damaged").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta(queryGetProduct)).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(int64(4), "444", "Hub", nil, nil, 0, "1", "2", time.Now()))

	p, err := s.AdjustStock(context.Background(), 4, -10, "damaged")
	if err != nil {
		t.Fatalf("AdjustStock failed: %v", err)
	}
	if p.Quantity != 0 || p.Status != models.StatusOutOfStock {
		t.Fatalf("unexpected product %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAdjustStock_UnknownProductRollsBack(t *testing.T) {
	s, mock := newMockStore(t, models.OversellClamp)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(queryLockQuantity)).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"quantity"}))
	mock.ExpectRollback()

	if _, err := s.AdjustStock(context.Background(), 9, 1, "count"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func exampleDraft() models.SaleDraft {
	d := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	return models.SaleDraft{
		Reference:       "ref-1",
		TotalAmount:     d("27.00"),
		CustomerPayment: d("30.00"),
		ChangeAmount:    d("3.00"),
		Lines: []models.SaleLine{
			{ProductID: 2, Quantity: 1, UnitPrice: d("5.00"), TotalPrice: d("5.00")},
			{ProductID: 1, Quantity: 2, UnitPrice: d("10.00"), TotalPrice: d("20.00")},
		},
	}
}

var saleCols = []string{"id", "reference", "total_amount", "customer_payment", "change_amount", "created_at"}

// expectSaleHeader sets up begin, the replay lookup and the sale + line inserts.
func expectSaleHeader(mock sqlmock.Sqlmock, createdAt time.Time) {
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(querySaleByReference)).
		WithArgs("ref-1").
		WillReturnRows(sqlmock.NewRows(saleCols))
	mock.ExpectQuery(regexp.QuoteMeta(queryInsertSale)).
		WithArgs("ref-1", decArg("27"), decArg("30"), decArg("3")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(77), createdAt))
	mock.ExpectPrepare(regexp.QuoteMeta(queryInsertSaleItem))
	mock.ExpectExec(regexp.QuoteMeta(queryInsertSaleItem)).
		WithArgs(int64(77), int64(2), 1, decArg("5"), decArg("5")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(queryInsertSaleItem)).
		WithArgs(int64(77), int64(1), 2, decArg("10"), decArg("20")).
		WillReturnResult(sqlmock.NewResult(2, 1))
}

func TestCommitSale_SuccessDecrementsInIDOrder(t *testing.T) {
	s, mock := newMockStore(t, models.OversellClamp)
	createdAt := time.Now()
	expectSaleHeader(mock, createdAt)

	// product 1 first regardless of line order
	mock.ExpectQuery(regexp.QuoteMeta(queryLockQuantity)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(30))
	mock.ExpectExec(regexp.QuoteMeta(querySetQuantity)).
		WithArgs(28, "in-stock", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(queryInsertMove)).
		WithArgs(int64(1), "sale", -2, "sale ref-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta(queryLockQuantity)).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(5))
	mock.ExpectExec(regexp.QuoteMeta(querySetQuantity)).
		WithArgs(4, "low-stock", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(queryInsertMove)).
		WithArgs(int64(2), "sale", -1, "sale ref-1").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	res, err := s.CommitSale(context.Background(), exampleDraft())
	if err != nil {
		t.Fatalf("CommitSale failed: %v", err)
	}
	if res.Sale.ID != 77 || res.Replayed || len(res.Sale.Lines) != 2 || len(res.Shortfalls) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !res.Sale.TotalAmount.Equal(decimal.RequireFromString("27")) || !res.Sale.CreatedAt.Equal(createdAt) {
		t.Fatalf("unexpected sale header: %+v", res.Sale)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCommitSale_ClampRecordsShortfall(t *testing.T) {
	s, mock := newMockStore(t, models.OversellClamp)
	expectSaleHeader(mock, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta(queryLockQuantity)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta(querySetQuantity)).
		WithArgs(0, "out-of-stock", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(queryInsertMove)).
		WithArgs(int64(1), "sale", -1, "sale ref-1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta(queryLockQuantity)).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(20))
	mock.ExpectExec(regexp.QuoteMeta(querySetQuantity)).
		WithArgs(19, "in-stock", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(queryInsertMove)).
		WithArgs(int64(2), "sale", -1, "sale ref-1").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	res, err := s.CommitSale(context.Background(), exampleDraft())
	if err != nil {
		t.Fatalf("CommitSale failed: %v", err)
	}
	want := models.Shortfall{ProductID: 1, Requested: 2, Available: 1}
	if len(res.Shortfalls) != 1 || res.Shortfalls[0] != want {
		t.Fatalf("unexpected shortfalls: %+v", res.Shortfalls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCommitSale_RejectRollsBackEverything(t *testing.T) {
	s, mock := newMockStore(t, models.OversellReject)
	expectSaleHeader(mock, time.Now())

	mock.ExpectQuery(regexp.QuoteMeta(queryLockQuantity)).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(1))
	mock.ExpectRollback()

	_, err := s.CommitSale(context.Background(), exampleDraft())
	if !errors.Is(err, models.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCommitSale_ReplayReturnsExisting(t *testing.T) {
	s, mock := newMockStore(t, models.OversellClamp)
	createdAt := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(querySaleByReference)).
		WithArgs("ref-1").
		WillReturnRows(sqlmock.NewRows(saleCols).AddRow(int64(12), "ref-1", "27.00", "30.00", "3.00", createdAt))
	mock.ExpectRollback()

	res, err := s.CommitSale(context.Background(), exampleDraft())
	if err != nil {
		t.Fatalf("CommitSale failed: %v", err)
	}
	if !res.Replayed || res.Sale.ID != 12 {
		t.Fatalf("expected replay of sale 12, got %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCommitSale_InsertFailureIsPersistenceError(t *testing.T) {
	s, mock := newMockStore(t, models.OversellClamp)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(querySaleByReference)).
		WithArgs("ref-1").
		WillReturnRows(sqlmock.NewRows(saleCols))
	mock.ExpectQuery(regexp.QuoteMeta(queryInsertSale)).
		WillReturnError(&pq.Error{Code: "40001"})
	mock.ExpectRollback()

	_, err := s.CommitSale(context.Background(), exampleDraft())
	if !errors.Is(err, models.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if !IsTransient(err) {
		t.Fatalf("serialization failure should be transient: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("boom"), false},
		{driver.ErrBadConn, true},
		{&pq.Error{Code: "40P01"}, true},
		{&pq.Error{Code: "23505"}, false},
		{sql.ErrNoRows, false},
	}
	for _, c := range cases {
		if got := IsTransient(c.err); got != c.want {
			t.Fatalf("IsTransient(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestSalesSummary(t *testing.T) {
	s, mock := newMockStore(t, models.OversellClamp)
	since := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(querySalesTotals)).
		WillReturnRows(sqlmock.NewRows([]string{"count", "sum"}).AddRow(3, "100.00"))
	mock.ExpectQuery(regexp.QuoteMeta(queryItemsSold)).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(11))
	mock.ExpectQuery(regexp.QuoteMeta(queryRevenueSince)).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("27.00"))

	sum, err := s.SalesSummary(context.Background(), since)
	if err != nil {
		t.Fatalf("SalesSummary failed: %v", err)
	}
	if sum.TotalSales != 3 || sum.TotalItemsSold != 11 {
		t.Fatalf("unexpected counts %+v", sum)
	}
	if !sum.AverageSale.Equal(decimal.RequireFromString("33.33")) || !sum.TodayRevenue.Equal(decimal.RequireFromString("27")) {
		t.Fatalf("unexpected amounts avg=%s today=%s", sum.AverageSale, sum.TodayRevenue)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestTopProducts(t *testing.T) {
	s, mock := newMockStore(t, models.OversellClamp)
	mock.ExpectQuery(regexp.QuoteMeta(queryTopProducts)).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "name", "qty", "revenue"}).
			AddRow(int64(1), "Mouse", 10, "100.00").
			AddRow(int64(2), "Unknown Product", 3, "15.00"))

	got, err := s.TopProducts(context.Background(), 5)
	if err != nil {
		t.Fatalf("TopProducts failed: %v", err)
	}
	if len(got) != 2 || got[0].ProductName != "Mouse" || got[0].TotalQuantity != 10 {
		t.Fatalf("unexpected top products %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetSale_WithLines(t *testing.T) {
	s, mock := newMockStore(t, models.OversellClamp)
	mock.ExpectQuery(regexp.QuoteMeta(queryGetSale)).
		WithArgs(int64(77)).
		WillReturnRows(sqlmock.NewRows(saleCols).AddRow(int64(77), "ref-1", "27.00", "30.00", "3.00", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta(querySaleItems)).
		WithArgs(int64(77)).
		WillReturnRows(sqlmock.NewRows([]string{"sale_id", "product_id", "name", "quantity", "unit_price", "total_price"}).
			AddRow(int64(77), int64(1), "Mouse", 2, "10.00", "20.00").
			AddRow(int64(77), int64(2), "Cable", 1, "5.00", "5.00"))

	sale, err := s.GetSale(context.Background(), 77)
	if err != nil {
		t.Fatalf("GetSale failed: %v", err)
	}
	lineSum := decimal.Zero
	for _, l := range sale.Lines {
		lineSum = lineSum.Add(l.TotalPrice)
	}
	// tax is applied once at sale level
	if !lineSum.Equal(decimal.RequireFromString("25")) || len(sale.Lines) != 2 {
		t.Fatalf("unexpected lines %+v", sale.Lines)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateAndFindUser(t *testing.T) {
	s, mock := newMockStore(t, models.OversellClamp)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(queryInsertUser)).
		WithArgs("a@shop.test", "hash", "admin").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), now))
	mock.ExpectQuery(regexp.QuoteMeta(queryUserByEmail)).
		WithArgs("a@shop.test").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "created_at"}).
			AddRow(int64(1), "a@shop.test", "hash", "admin", now))
	mock.ExpectQuery(regexp.QuoteMeta(queryUserByEmail)).
		WithArgs("b@shop.test").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "created_at"}))

	if _, err := s.CreateUser(context.Background(), "a@shop.test", "hash", models.RoleAdmin); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	u, err := s.GetUserByEmail(context.Background(), "a@shop.test")
	if err != nil || u.Role != models.RoleAdmin {
		t.Fatalf("unexpected user %+v %v", u, err)
	}
	if _, err := s.GetUserByEmail(context.Background(), "b@shop.test"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
