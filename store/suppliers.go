package store

import (
	"context"
	"database/sql"
	"strconv"

	models "retail-pos/model"
)

// SupplierInput is the writable part of a supplier row.
type SupplierInput struct {
	Name          string
	ContactPerson string
	Email         string
	Phone         string
	Address       string
	Status        models.SupplierStatus
}

const (
	querySupplierColumns = `id, name, contact_person, email, phone, address, status, created_at`
	queryListSuppliers   = `SELECT ` + querySupplierColumns + ` FROM suppliers ORDER BY name`
	queryGetSupplier     = `SELECT ` + querySupplierColumns + ` FROM suppliers WHERE id = $1`
	queryInsertSupplier  = `INSERT INTO suppliers (name, contact_person, email, phone, address, status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`
	queryUpdateSupplier = `UPDATE suppliers SET name=$1, contact_person=$2, email=$3, phone=$4, address=$5, status=$6
		WHERE id=$7`
)

func scanSupplier(r rowScanner) (models.Supplier, error) {
	var (
		sp     models.Supplier
		status string
	)
	err := r.Scan(&sp.ID, &sp.Name, &sp.ContactPerson, &sp.Email, &sp.Phone, &sp.Address, &status, &sp.CreatedAt)
	sp.Status = models.SupplierStatus(status)
	return sp, err
}

func (s *PostgresStore) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	rows, err := s.DB.QueryContext(ctx, queryListSuppliers)
	if err != nil {
		return nil, translate("store.ListSuppliers", "suppliers", err)
	}
	defer rows.Close()
	out := []models.Supplier{}
	for rows.Next() {
		sp, err := scanSupplier(rows)
		if err != nil {
			return nil, translate("store.ListSuppliers", "suppliers", err)
		}
		out = append(out, sp)
	}
	return out, translate("store.ListSuppliers", "suppliers", rows.Err())
}

func (s *PostgresStore) CreateSupplier(ctx context.Context, in SupplierInput) (models.Supplier, error) {
	sp := models.Supplier{
		Name:          in.Name,
		ContactPerson: in.ContactPerson,
		Email:         in.Email,
		Phone:         in.Phone,
		Address:       in.Address,
		Status:        in.Status,
	}
	err := s.DB.QueryRowContext(ctx, queryInsertSupplier,
		in.Name, in.ContactPerson, in.Email, in.Phone, in.Address, string(in.Status),
	).Scan(&sp.ID, &sp.CreatedAt)
	if err != nil {
		return models.Supplier{}, translate("store.CreateSupplier", "suppliers", err)
	}
	return sp, nil
}

func (s *PostgresStore) UpdateSupplier(ctx context.Context, id int64, in SupplierInput) (models.Supplier, error) {
	kind := "supplier " + strconv.FormatInt(id, 10)
	res, err := s.DB.ExecContext(ctx, queryUpdateSupplier,
		in.Name, in.ContactPerson, in.Email, in.Phone, in.Address, string(in.Status), id,
	)
	if err != nil {
		return models.Supplier{}, translate("store.UpdateSupplier", kind, err)
	}
	if ra, _ := res.RowsAffected(); ra == 0 {
		return models.Supplier{}, translate("store.UpdateSupplier", kind, sql.ErrNoRows)
	}
	sp, err := scanSupplier(s.DB.QueryRowContext(ctx, queryGetSupplier, id))
	return sp, translate("store.UpdateSupplier", kind, err)
}
