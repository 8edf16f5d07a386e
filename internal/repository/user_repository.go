package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/auth-gateway/internal/models"
)

const userColumns = "id, email, name, picture, refresh_token, last_login, created_at, updated_at"

// UserRepository provides database access for user records.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// Upsert creates a user on first login or overwrites name, picture and the
// stored refresh token on subsequent logins, bumping last_login. The
// unconditional overwrite is what keeps at most one valid refresh token per
// user; the single statement delegates atomicity to Postgres.
func (r *UserRepository) Upsert(ctx context.Context, email string, name, picture *string, refreshToken string) (*models.User, error) {
	const query = `INSERT INTO users (id, email, name, picture, refresh_token, last_login, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $6)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name,
			picture = EXCLUDED.picture,
			refresh_token = EXCLUDED.refresh_token,
			last_login = EXCLUDED.last_login,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + userColumns

	now := time.Now().UTC()
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, uuid.NewString(), email, name, picture, refreshToken, now); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &user, nil
}
