package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"otp_expense_tracker/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository stores identities and their outstanding challenge.
// Find methods return (nil, nil) when nothing matches.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByPhone(ctx context.Context, phone string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
}

type userRepository struct {
	db PgxIface
}

// NewUserRepository creates a Postgres-backed UserRepository
func NewUserRepository(db PgxIface) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id::text, name, phone, email, is_verified, otp_code_hash, otp_expires_at, created_at`

// Create inserts a new user, assigning its id
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	codeHash, expiresAt := challengeColumns(user.Challenge)

	sql := `INSERT INTO users (id, name, phone, email, is_verified, otp_code_hash, otp_expires_at, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, sql, user.ID, user.Name, user.Phone, user.Email, user.IsVerified, codeHash, expiresAt, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create user: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByPhone retrieves a user by phone number
func (r *userRepository) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	sql := `SELECT ` + userColumns + ` FROM users WHERE phone = $1`
	user, err := scanUser(r.db.QueryRow(ctx, sql, phone))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by phone: %w", err)
	}
	return user, nil
}

// FindByID retrieves a user by id. Ids that are not UUIDs match nothing.
func (r *userRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	sql := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRow(ctx, sql, id))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// Update overwrites the mutable fields of the user (last write wins)
func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	codeHash, expiresAt := challengeColumns(user.Challenge)

	sql := `UPDATE users
            SET name = $1, email = $2, is_verified = $3, otp_code_hash = $4, otp_expires_at = $5
            WHERE id = $6`
	cmdTag, err := r.db.Exec(ctx, sql, user.Name, user.Email, user.IsVerified, codeHash, expiresAt, user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to update user: %w", ErrDuplicate)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("failed to update user %s: %w", user.ID, ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		user      model.User
		codeHash  *string
		expiresAt *time.Time
	)
	err := row.Scan(&user.ID, &user.Name, &user.Phone, &user.Email, &user.IsVerified, &codeHash, &expiresAt, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if codeHash != nil && expiresAt != nil {
		user.Challenge = &model.Challenge{CodeHash: *codeHash, ExpiresAt: *expiresAt}
	}
	return &user, nil
}

func challengeColumns(ch *model.Challenge) (*string, *time.Time) {
	if ch == nil {
		return nil, nil
	}
	return &ch.CodeHash, &ch.ExpiresAt
}
