package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/bazaarhq/storefront-api/internal/models"
)

// AdministratorRepository reads the admin directory. Administrators are
// provisioned out of band; the only write this service performs is
// UpdateLastLogin.
type AdministratorRepository struct {
	db *sqlx.DB
}

func NewAdministratorRepository(db *sqlx.DB) *AdministratorRepository {
	return &AdministratorRepository{db: db}
}

func (r *AdministratorRepository) GetByEmail(ctx context.Context, email string) (*models.Administrator, error) {
	var admin models.Administrator
	err := r.db.GetContext(ctx, &admin, `
		SELECT id, email, password_hash, name, role, permissions, is_active, two_factor_enabled, last_login_at, created_at, updated_at
		FROM administrators
		WHERE LOWER(email) = LOWER($1)
	`, email)
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *AdministratorRepository) GetByID(ctx context.Context, id string) (*models.Administrator, error) {
	var admin models.Administrator
	err := r.db.GetContext(ctx, &admin, `
		SELECT id, email, password_hash, name, role, permissions, is_active, two_factor_enabled, last_login_at, created_at, updated_at
		FROM administrators
		WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

// GetPasswordHash returns the stored bcrypt hash for an email. Used only by
// the local identity backend.
func (r *AdministratorRepository) GetPasswordHash(ctx context.Context, email string) (string, error) {
	var hash string
	err := r.db.GetContext(ctx, &hash, `
		SELECT password_hash FROM administrators WHERE LOWER(email) = LOWER($1)
	`, email)
	if err != nil {
		return "", err
	}
	return hash, nil
}

// UpdateLastLogin stamps last_login_at for a successful login.
func (r *AdministratorRepository) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE administrators SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1
	`, id)
	return err
}

// List returns all administrators ordered by email.
func (r *AdministratorRepository) List(ctx context.Context) ([]models.Administrator, error) {
	admins := []models.Administrator{}
	err := r.db.SelectContext(ctx, &admins, `
		SELECT id, email, password_hash, name, role, permissions, is_active, two_factor_enabled, last_login_at, created_at, updated_at
		FROM administrators
		ORDER BY email
	`)
	if err != nil {
		return nil, err
	}
	return admins, nil
}
