package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/notehub/gatekeeper/internal/domain"
)

const userColumns = `id, provider_id, host, email, username, display_name, avatar_url,
		       password_hash, active, created_at, updated_at`

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, "id", id)
}

func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "email", email)
}

func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, "username", username)
}

func (r *PostgresUserRepository) FindByProviderID(ctx context.Context, providerID string) (*domain.User, error) {
	return r.findOne(ctx, "provider_id", providerID)
}

func (r *PostgresUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email)
}

func (r *PostgresUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username)
}

func (r *PostgresUserRepository) Create(ctx context.Context, input domain.CreateUserInput) (*domain.User, error) {
	query := `
		INSERT INTO users (provider_id, host, email, username, display_name, avatar_url, password_hash, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query,
		toNullString(input.ProviderID),
		string(input.Host),
		input.Email,
		input.Username,
		toNullStringValue(input.DisplayName),
		toNullStringValue(input.AvatarURL),
		toNullStringValue(input.PasswordHash),
		input.Active,
	))
	if isUniqueViolation(err) {
		return nil, domain.ErrAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return user, nil
}

func (r *PostgresUserRepository) Activate(ctx context.Context, id string) error {
	return r.update(ctx, `UPDATE users SET active = TRUE, updated_at = NOW() WHERE id = $1`, id)
}

func (r *PostgresUserRepository) SetPassword(ctx context.Context, id string, passwordHash string) error {
	return r.update(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
}

func (r *PostgresUserRepository) SetEmail(ctx context.Context, id string, email string) error {
	return r.update(ctx, `UPDATE users SET email = $2, updated_at = NOW() WHERE id = $1`, id, email)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, column, value string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + column + ` = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *PostgresUserRepository) exists(ctx context.Context, query string, arg string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PostgresUserRepository) update(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	var providerID, displayName, avatarURL, passwordHash sql.NullString
	var host string

	err := row.Scan(
		&user.ID,
		&providerID,
		&host,
		&user.Email,
		&user.Username,
		&displayName,
		&avatarURL,
		&passwordHash,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.ProviderID = fromNullStringPtr(providerID)
	user.Host = domain.Host(host)
	user.DisplayName = fromNullString(displayName)
	user.AvatarURL = fromNullString(avatarURL)
	user.PasswordHash = fromNullString(passwordHash)

	return &user, nil
}

var _ domain.UserRepository = (*PostgresUserRepository)(nil)
