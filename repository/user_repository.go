package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"intelligencePlatform/models"
)

var (
	// ErrConstraintViolation is returned when an insert collides with an existing username.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrNotFound is returned by updates that match no user.
	ErrNotFound = errors.New("user not found")
)

type UserRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewUserRepository(db DBTX, logger *zap.Logger) *UserRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserRepository{db: db, logger: logger}
}

// Create inserts a new user. An empty role defaults to 'user'.
// A username that already exists yields ErrConstraintViolation; the existing row is never touched.
func (r *UserRepository) Create(ctx context.Context, username, passwordHash, role string) (*models.User, error) {
	if role == "" {
		role = models.RoleUser
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO users (username, password_hash, role) VALUES (?, ?, ?)`, username, passwordHash, role)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username %q already exists", ErrConstraintViolation, username)
		}
		r.logger.Error("failed to create user", zap.Error(err), zap.String("username", username))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		r.logger.Error("failed to get last insert id", zap.Error(err))
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return &models.User{ID: id, Username: username, PasswordHash: passwordHash, Role: role}, nil
}

// GetByUsername returns the full record including the password hash, or nil when absent.
// The match is exact and case-sensitive.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, `SELECT id, username, password_hash, role FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("failed to get user by username", zap.Error(err), zap.String("username", username))
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, `SELECT id, username, role FROM users WHERE id = ?`, id).Scan(&u.ID, &u.Username, &u.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("failed to get user by id", zap.Error(err), zap.Int64("id", id))
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) Exists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, username).Scan(&exists)
	if err != nil {
		r.logger.Error("failed to check username existence", zap.Error(err), zap.String("username", username))
		return false, fmt.Errorf("failed to check username existence: %w", err)
	}
	return exists, nil
}

// List returns every user ordered by username. Password hashes are not selected.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	return r.list(ctx, `SELECT id, username, role FROM users ORDER BY username`, false)
}

// ListWithHashes is the privileged variant of List that also returns password hashes.
func (r *UserRepository) ListWithHashes(ctx context.Context) ([]models.User, error) {
	return r.list(ctx, `SELECT id, username, role, password_hash FROM users ORDER BY username`, true)
}

func (r *UserRepository) list(ctx context.Context, query string, withHash bool) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("failed to query users", zap.Error(err))
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	out := []models.User{}
	for rows.Next() {
		var u models.User
		dest := []any{&u.ID, &u.Username, &u.Role}
		if withHash {
			dest = append(dest, &u.PasswordHash)
		}
		if err := rows.Scan(dest...); err != nil {
			r.logger.Error("failed to scan user", zap.Error(err))
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating users", zap.Error(err))
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return out, nil
}

// patchColumns maps each UserPatch field to its column. Column names only ever come from here.
var patchColumns = []struct {
	column string
	value  func(models.UserPatch) *string
}{
	{column: "password_hash", value: func(p models.UserPatch) *string { return p.PasswordHash }},
	{column: "role", value: func(p models.UserPatch) *string { return p.Role }},
}

// Update applies the non-nil fields of patch to the given username.
// An empty patch is a no-op. ErrNotFound is returned when no row matches.
func (r *UserRepository) Update(ctx context.Context, username string, patch models.UserPatch) error {
	if patch.Empty() {
		return nil
	}
	sets := make([]string, 0, len(patchColumns))
	args := make([]any, 0, len(patchColumns)+1)
	for _, c := range patchColumns {
		if v := c.value(patch); v != nil {
			sets = append(sets, c.column+" = ?")
			args = append(args, *v)
		}
	}
	args = append(args, username)

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE username = ?`
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to update user", zap.Error(err), zap.String("username", username))
		return fmt.Errorf("failed to update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		r.logger.Error("failed to get rows affected", zap.Error(err))
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, username)
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	return r.Update(ctx, username, models.UserPatch{PasswordHash: &passwordHash})
}

func (r *UserRepository) UpdateRole(ctx context.Context, username, role string) error {
	return r.Update(ctx, username, models.UserPatch{Role: &role})
}

// Delete removes the user. Deleting an unknown username is not an error.
func (r *UserRepository) Delete(ctx context.Context, username string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username); err != nil {
		r.logger.Error("failed to delete user", zap.Error(err), zap.String("username", username))
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
