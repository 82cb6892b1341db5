package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/modern-blog/internal/database"
	"github.com/modern-blog/internal/models"
)

const userColumns = `id, username, email, password_hash, first_name, last_name, bio, role, created_at, updated_at`

// userRepo is the concrete implementation of UserRepository
type userRepo struct {
	db *database.DB
}

// NewUserRepo creates a new user repository
func NewUserRepo(db *database.DB) UserRepository {
	return &userRepo{db: db}
}

// Create inserts a new account, claiming an admin slot for administrators
func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO users (` + userColumns + `)
			VALUES (:id, :username, :email, :password_hash, :first_name, :last_name, :bio, :role, :created_at, :updated_at)
		`
		if _, err := tx.NamedExecContext(ctx, query, user); err != nil {
			return mapError(err)
		}

		if user.Role != models.RoleAdministrator {
			return nil
		}

		// Locked slots belong to registrations still in flight and are skipped
		var slot int
		err := tx.QueryRowxContext(ctx, `
			UPDATE admin_slots SET account_id = $1, claimed_at = NOW()
			WHERE slot = (
				SELECT slot FROM admin_slots
				WHERE account_id IS NULL
				ORDER BY slot
				LIMIT 1
				FOR UPDATE SKIP LOCKED
			)
			RETURNING slot
		`, user.ID).Scan(&slot)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoAdminSlot
		}
		if err != nil {
			return fmt.Errorf("failed to claim admin slot: %w", err)
		}
		return nil
	})
}

// GetByID retrieves an account by ID
func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves an account by email, case-insensitively
func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email))
}

func (r *userRepo) getOne(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, query, arg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ExistsByEmailOrUsername checks whether either identifier is taken
func (r *userRepo) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM users WHERE email = $1 OR username = $2)",
		strings.ToLower(email), username,
	)
	return exists, err
}

// UpdateProfile replaces the editable profile fields
func (r *userRepo) UpdateProfile(ctx context.Context, id string, p *models.ProfileUpdate) (*models.User, error) {
	query := `
		UPDATE users SET first_name = $2, last_name = $3, bio = $4, updated_at = $5
		WHERE id = $1
		RETURNING ` + userColumns

	var user models.User
	err := r.db.GetContext(ctx, &user, query, id, p.FirstName, p.LastName, p.Bio, time.Now())
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdatePasswordHash replaces the stored credential hash
func (r *userRepo) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1",
		id, hash, time.Now(),
	)
	return err
}

// List returns all accounts, newest first
func (r *userRepo) List(ctx context.Context) ([]*models.User, error) {
	users := []*models.User{}
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	return users, err
}

// CountAdmins returns the number of administrator accounts
func (r *userRepo) CountAdmins(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM users WHERE role = $1", models.RoleAdministrator)
	return count, err
}
