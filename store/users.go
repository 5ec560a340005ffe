package store

import (
	"context"

	models "retail-pos/model"
)

const (
	queryInsertUser  = `INSERT INTO users (email, password_hash, role) VALUES ($1, $2, $3) RETURNING id, created_at`
	queryUserByEmail = `SELECT id, email, password_hash, role, created_at FROM users WHERE email = $1`
	queryCountUsers  = `SELECT COUNT(*) FROM users`
)

func (s *PostgresStore) CreateUser(ctx context.Context, email, passwordHash string, role models.Role) (models.User, error) {
	u := models.User{Email: email, PasswordHash: passwordHash, Role: role}
	if err := s.DB.QueryRowContext(ctx, queryInsertUser, email, passwordHash, string(role)).Scan(&u.ID, &u.CreatedAt); err != nil {
		return models.User{}, translate("store.CreateUser", "users", err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var (
		u    models.User
		role string
	)
	err := s.DB.QueryRowContext(ctx, queryUserByEmail, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.CreatedAt)
	if err != nil {
		return models.User{}, translate("store.GetUserByEmail", "user", err)
	}
	u.Role = models.Role(role)
	return u, nil
}

func (s *PostgresStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, queryCountUsers).Scan(&n)
	return n, translate("store.CountUsers", "users", err)
}
