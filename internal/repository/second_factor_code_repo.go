package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

// SecondFactorCodeRepository manages short-lived single-use verification
// codes.
type SecondFactorCodeRepository struct {
	db *sqlx.DB
}

func NewSecondFactorCodeRepository(db *sqlx.DB) *SecondFactorCodeRepository {
	return &SecondFactorCodeRepository{db: db}
}

// ConsumeIfValid atomically marks an unused, unexpired code matching
// (administratorID, code) as used. The conditional UPDATE is the whole
// concurrency story: two racing attempts on the same code can never both see
// used = false, so at most one returns true.
func (r *SecondFactorCodeRepository) ConsumeIfValid(ctx context.Context, administratorID, code string) (bool, error) {
	var id string
	err := r.db.GetContext(ctx, &id, `
		UPDATE second_factor_codes
		SET used = TRUE
		WHERE administrator_id = $1
		  AND code = $2
		  AND used = FALSE
		  AND expires_at > NOW()
		RETURNING id
	`, administratorID, code)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Create stores a fresh code with the given lifetime.
func (r *SecondFactorCodeRepository) Create(ctx context.Context, administratorID, code string, ttl time.Duration) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO second_factor_codes (administrator_id, code, expires_at)
		VALUES ($1, $2, $3)
	`, administratorID, code, time.Now().Add(ttl))
	return err
}
