package repository

import (
	"context"
	"database/sql"

	"intelligencePlatform/models"
)

// DBTX is the execute/query surface of the relational store.
// *sql.DB and *sql.Tx both satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UserRepositoryI defines operations on User entities.
type UserRepositoryI interface {
	Create(ctx context.Context, username, passwordHash, role string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Exists(ctx context.Context, username string) (bool, error)
	List(ctx context.Context) ([]models.User, error)
	ListWithHashes(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, username string, patch models.UserPatch) error
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	UpdateRole(ctx context.Context, username, role string) error
	Delete(ctx context.Context, username string) error
}

var _ UserRepositoryI = (*UserRepository)(nil)
