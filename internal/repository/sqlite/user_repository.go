package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"attire-api/internal/domain"
	"attire-api/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE COLLATE NOCASE,
	phone TEXT NOT NULL,
	gender TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	password_changed_at DATETIME NULL,
	password_reset_token TEXT NULL,
	password_reset_expires DATETIME NULL,
	active INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_users_reset_token ON users (password_reset_token);
`

const selectUser = `
SELECT id, name, email, phone, gender, password_hash, password_changed_at,
	password_reset_token, password_reset_expires, active, created_at, updated_at
FROM users
`

type UserRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

var _ repository.UserRepository = (*UserRepository)(nil)

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	now := r.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, name, email, phone, gender, password_hash, password_changed_at, active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.Phone,
		string(user.Gender),
		user.PasswordHash,
		nullTime(user.PasswordChangedAt),
		user.Active,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert user: %w", repository.ErrDuplicateEmail)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUser+`WHERE email = ?`, email)
	return scanUser(row)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUser+`WHERE id = ?`, id)
	return scanUser(row)
}

func (r *UserRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUser+`WHERE password_reset_token = ?`, tokenHash)
	user, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	// expiry is checked here rather than in SQL since DATETIME values are stored as text
	if !user.HasPendingReset(now) {
		return nil, repository.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, patch repository.ProfilePatch) (*domain.User, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET name = ?, email = ?, phone = ?, gender = ?, updated_at = ?
WHERE id = ?`,
		patch.Name,
		patch.Email,
		patch.Phone,
		string(patch.Gender),
		r.now().UTC(),
		id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("update user profile: %w", repository.ErrDuplicateEmail)
		}
		return nil, fmt.Errorf("update user profile: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET password_hash = ?, password_changed_at = ?,
	password_reset_token = NULL, password_reset_expires = NULL, updated_at = ?
WHERE id = ?`,
		passwordHash,
		changedAt.UTC(),
		r.now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	return expectOneRow(res)
}

func (r *UserRepository) ConsumeResetToken(ctx context.Context, id, tokenHash, passwordHash string, changedAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET password_hash = ?, password_changed_at = ?,
	password_reset_token = NULL, password_reset_expires = NULL, updated_at = ?
WHERE id = ? AND password_reset_token = ?`,
		passwordHash,
		changedAt.UTC(),
		r.now().UTC(),
		id,
		tokenHash,
	)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	return expectOneRow(res)
}

func (r *UserRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET password_reset_token = ?, password_reset_expires = ?, updated_at = ?
WHERE id = ?`,
		tokenHash,
		expiresAt.UTC(),
		r.now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	return expectOneRow(res)
}

func (r *UserRepository) ClearResetToken(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users SET password_reset_token = NULL, password_reset_expires = NULL, updated_at = ?
WHERE id = ?`,
		r.now().UTC(),
		id,
	)
	if err != nil {
		return fmt.Errorf("clear reset token: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user         domain.User
		gender       string
		changedAt    sql.NullTime
		resetToken   sql.NullString
		resetExpires sql.NullTime
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Phone,
		&gender,
		&user.PasswordHash,
		&changedAt,
		&resetToken,
		&resetExpires,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	user.Gender = domain.Gender(gender)
	if changedAt.Valid {
		t := changedAt.Time
		user.PasswordChangedAt = &t
	}
	if resetToken.Valid {
		v := resetToken.String
		user.PasswordResetToken = &v
	}
	if resetExpires.Valid {
		t := resetExpires.Time
		user.PasswordResetExpires = &t
	}
	return &user, nil
}
