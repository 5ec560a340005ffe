package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	models "retail-pos/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

var supplierCols = []string{"id", "name", "contact_person", "email", "phone", "address", "status", "created_at"}

func TestListSuppliers(t *testing.T) {
	s, mock := newMockStore(t, models.OversellClamp)
	now := time.Now()

	rows := sqlmock.NewRows(supplierCols).
		AddRow(int64(1), "Acme", "Ann", "ann@acme.test", "555-0100", "1 Main St", "active", now).
		AddRow(int64(2), "Globex", "", "", "", "", "inactive", now)
	mock.ExpectQuery(regexp.QuoteMeta(queryListSuppliers)).WillReturnRows(rows)

	got, err := s.ListSuppliers(context.Background())
	if err != nil {
		t.Fatalf("ListSuppliers failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 suppliers, got %d", len(got))
	}
	if got[0].ContactPerson != "Ann" || got[0].Status != models.SupplierActive || got[1].Status != models.SupplierInactive {
		t.Fatalf("unexpected suppliers %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateSupplier(t *testing.T) {
	s, mock := newMockStore(t, models.OversellClamp)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(queryInsertSupplier)).
		WithArgs("Acme", "Ann", "ann@acme.test", "555-0100", "1 Main St", "active").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), now))

	sp, err := s.CreateSupplier(context.Background(), SupplierInput{
		Name:          "Acme",
		ContactPerson: "Ann",
		Email:         "ann@acme.test",
		Phone:         "555-0100",
		Address:       "1 Main St",
		Status:        models.SupplierActive,
	})
	if err != nil {
		t.Fatalf("CreateSupplier failed: %v", err)
	}
	if sp.ID != 7 || sp.Name != "Acme" || !sp.CreatedAt.Equal(now) {
		t.Fatalf("unexpected supplier %+v", sp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateSupplier_CheckViolation(t *testing.T) {
	s, mock := newMockStore(t, models.OversellClamp)
	mock.ExpectQuery(regexp.QuoteMeta(queryInsertSupplier)).
		WillReturnError(&pq.Error{Code: "23514"})

	_, err := s.CreateSupplier(context.Background(), SupplierInput{Name: "Acme", Status: "paused"})
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUpdateSupplier(t *testing.T) {
	s, mock := newMockStore(t, models.OversellClamp)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta(queryUpdateSupplier)).
		WithArgs("Acme Ltd", "Bob", "", "", "", "inactive", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(queryGetSupplier)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(supplierCols).
			AddRow(int64(3), "Acme Ltd", "Bob", "", "", "", "inactive", now))

	sp, err := s.UpdateSupplier(context.Background(), 3, SupplierInput{
		Name:          "Acme Ltd",
		ContactPerson: "Bob",
		Status:        models.SupplierInactive,
	})
	if err != nil {
		t.Fatalf("UpdateSupplier failed: %v", err)
	}
	if sp.ID != 3 || sp.Name != "Acme Ltd" || sp.Status != models.SupplierInactive {
		t.Fatalf("unexpected supplier %+v", sp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateSupplier_NotFound(t *testing.T) {
	s, mock := newMockStore(t, models.OversellClamp)
	mock.ExpectExec(regexp.QuoteMeta(queryUpdateSupplier)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := s.UpdateSupplier(context.Background(), 99, SupplierInput{Name: "Ghost", Status: models.SupplierActive})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListStockMovements(t *testing.T) {
	s, mock := newMockStore(t, models.OversellClamp)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "product_id", "name", "type", "quantity", "reason", "created_at"}).
		AddRow(int64(2), int64(1), "Mouse", "sale", -2, "sale ref-1", now).
		AddRow(int64(1), int64(1), "Mouse", "in", 10, "delivery", now.Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta(queryListMoves)).WithArgs(int64(20)).WillReturnRows(rows)

	got, err := s.ListStockMovements(context.Background(), 20)
	if err != nil {
		t.Fatalf("ListStockMovements failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 movements, got %d", len(got))
	}
	if got[0].Type != models.MovementSale || got[0].Quantity != -2 || got[0].Product != "Mouse" {
		t.Fatalf("unexpected movement %+v", got[0])
	}
	if got[1].Type != models.MovementIn || got[1].Reason != "delivery" {
		t.Fatalf("unexpected movement %+v", got[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListStockMovements_QueryError(t *testing.T) {
	s, mock := newMockStore(t, models.OversellClamp)
	mock.ExpectQuery(regexp.QuoteMeta(queryListMoves)).WillReturnError(errors.New("connection refused"))

	if _, err := s.ListStockMovements(context.Background(), 5); !errors.Is(err, models.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}
