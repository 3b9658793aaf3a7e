package service

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"intelligencePlatform/internal/auth"
	"intelligencePlatform/internal/legacy"
	"intelligencePlatform/models"
	"intelligencePlatform/repository"
)

var (
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrUnknownUser        = errors.New("unknown user")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingCredentials = errors.New("username and password are required")
)

// UserRepository is the interface that wraps the credential store operations the service needs
type UserRepository interface {
	// Method Create inserts a new user. A username collision must fail with
	// repository.ErrConstraintViolation and never overwrite the existing row.
	Create(ctx context.Context, username, passwordHash, role string) (*models.User, error)
	// Method GetByUsername returns the full record, or nil when no such user exists.
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Exists(ctx context.Context, username string) (bool, error)
	List(ctx context.Context) ([]models.User, error)
	// Method UpdatePassword and UpdateRole return repository.ErrNotFound for an unknown username.
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	UpdateRole(ctx context.Context, username, role string) error
	// Method Delete is idempotent.
	Delete(ctx context.Context, username string) error
}

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Verify never fails; malformed hashes read as a mismatch.
	Verify(plaintext, hash string) bool
}

// Result is what the presentation layer receives from every boundary call.
// On a successful login Message carries the user's role.
type Result struct {
	Success bool
	Message string
}

func ok(msg string) Result { return Result{Success: true, Message: msg} }
func declined(msg string) Result { return Result{Success: false, Message: msg} }

// AuthService composes the credential store and the hasher into the account operations.
type AuthService struct {
	users  UserRepository
	hasher PasswordHasher
	logger *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users UserRepository, hasher PasswordHasher, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{users: users, hasher: hasher, logger: logger}
}

// CreateUser hashes password and stores a new user. An empty role defaults to "user".
//
// ErrDuplicateUsername is returned both when the pre-check finds the name and when a
// concurrent registration wins the race to the insert.
func (s *AuthService) CreateUser(ctx context.Context, username, password, role string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if role == "" {
		role = models.RoleUser
	} else if !models.KnownRole(role) {
		s.logger.Warn("registering user with non-standard role", zap.String("username", username), zap.String("role", role))
	}

	exists, err := s.users.Exists(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateUsername
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Create(ctx, username, hash, role)
	if err != nil {
		if errors.Is(err, repository.ErrConstraintViolation) {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	s.logger.Info("user registered", zap.String("username", username), zap.String("role", role))
	return u, nil
}

// Authenticate checks username and password against the store and returns the user on success.
// It returns ErrUnknownUser or ErrInvalidCredentials for the two kinds of failed login.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUnknownUser
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Register creates an account. Registration does not log the user in.
func (s *AuthService) Register(ctx context.Context, username, password, role string) Result {
	_, err := s.CreateUser(ctx, username, password, role)
	switch {
	case err == nil:
		return ok(fmt.Sprintf("User '%s' registered successfully!", username))
	case errors.Is(err, ErrMissingCredentials):
		return declined("Username and password are required.")
	case errors.Is(err, ErrDuplicateUsername):
		return declined(fmt.Sprintf("Username '%s' already exists.", username))
	default:
		s.logger.Error("registration failed", zap.Error(err), zap.String("username", username))
		return declined(fmt.Sprintf("Registration error: %v", err))
	}
}

// Login verifies the credentials. On success the Result message is the user's role and
// the returned session is authenticated; on any failure the session stays anonymous.
func (s *AuthService) Login(ctx context.Context, username, password string) (Result, auth.Session) {
	u, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return s.credentialsFailed("Login", username, err), auth.Anonymous()
	}
	s.logger.Info("user logged in", zap.String("username", u.Username))
	return ok(u.Role), auth.Session{Authenticated: true, Username: u.Username, Role: u.Role}
}

// credentialsFailed maps an Authenticate error to a Result. label prefixes unexpected failures.
func (s *AuthService) credentialsFailed(label, username string, err error) Result {
	switch {
	case errors.Is(err, ErrMissingCredentials):
		return declined("Username and password are required.")
	case errors.Is(err, ErrUnknownUser):
		return declined("Username not found.")
	case errors.Is(err, ErrInvalidCredentials):
		s.logger.Info("credentials rejected", zap.String("op", label), zap.String("username", username))
		return declined("Invalid password.")
	default:
		s.logger.Error("credential check failed", zap.String("op", label), zap.Error(err), zap.String("username", username))
		return declined(fmt.Sprintf("%s error: %v", label, err))
	}
}

// Logout always succeeds and returns the anonymous session.
func (s *AuthService) Logout(sess auth.Session) (Result, auth.Session) {
	if sess.Authenticated {
		s.logger.Info("user logged out", zap.String("username", sess.Username))
	}
	return ok("Logged out."), auth.Anonymous()
}

// Exists reports whether username is registered. Store failures read as false.
func (s *AuthService) Exists(ctx context.Context, username string) bool {
	exists, err := s.users.Exists(ctx, username)
	if err != nil {
		s.logger.Error("existence check failed", zap.Error(err), zap.String("username", username))
		return false
	}
	return exists
}

// ChangePassword re-hashes and stores a new password for username.
func (s *AuthService) ChangePassword(ctx context.Context, username, newPassword string) Result {
	if username == "" || newPassword == "" {
		return declined("Username and password are required.")
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return declined(fmt.Sprintf("Password change error: %v", err))
	}
	if err := s.users.UpdatePassword(ctx, username, hash); err != nil {
		return s.updateFailed("password change", username, err)
	}
	s.logger.Info("password changed", zap.String("username", username))
	return ok(fmt.Sprintf("Password for '%s' updated.", username))
}

// ChangeOwnPassword replaces username's password once currentPassword checks out.
func (s *AuthService) ChangeOwnPassword(ctx context.Context, username, currentPassword, newPassword string) Result {
	if _, err := s.Authenticate(ctx, username, currentPassword); err != nil {
		return s.credentialsFailed("Password change", username, err)
	}
	return s.ChangePassword(ctx, username, newPassword)
}

// ChangeRole sets a new role for username.
func (s *AuthService) ChangeRole(ctx context.Context, username, role string) Result {
	if username == "" || role == "" {
		return declined("Username and role are required.")
	}
	if !models.KnownRole(role) {
		s.logger.Warn("assigning non-standard role", zap.String("username", username), zap.String("role", role))
	}
	if err := s.users.UpdateRole(ctx, username, role); err != nil {
		return s.updateFailed("role change", username, err)
	}
	s.logger.Info("role changed", zap.String("username", username), zap.String("role", role))
	return ok(fmt.Sprintf("Role for '%s' set to '%s'.", username, role))
}

func (s *AuthService) updateFailed(op, username string, err error) Result {
	if errors.Is(err, repository.ErrNotFound) {
		return declined("Username not found.")
	}
	s.logger.Error(op+" failed", zap.Error(err), zap.String("username", username))
	return declined(fmt.Sprintf("Update error: %v", err))
}

// DeleteUser removes username. Deleting an unknown user succeeds.
func (s *AuthService) DeleteUser(ctx context.Context, username string) Result {
	if err := s.users.Delete(ctx, username); err != nil {
		s.logger.Error("delete failed", zap.Error(err), zap.String("username", username))
		return declined(fmt.Sprintf("Delete error: %v", err))
	}
	s.logger.Info("user deleted", zap.String("username", username))
	return ok(fmt.Sprintf("User '%s' deleted.", username))
}

// ListUsers returns all users without their password hashes.
func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

// MigrateLegacyFile copies users from the flat legacy file into the store and returns
// how many were added. A missing file migrates nothing. Usernames already present are
// skipped silently and malformed lines are logged and skipped, so running it twice is safe.
func (s *AuthService) MigrateLegacyFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Info("legacy users file not found, nothing to migrate", zap.String("path", path))
			return 0, nil
		}
		return 0, fmt.Errorf("open legacy users file: %w", err)
	}
	defer f.Close()

	migrated := 0
	err = legacy.Scan(f, func(rec legacy.Record, parseErr error) error {
		if parseErr != nil {
			s.logger.Warn("skipping malformed legacy record", zap.String("path", path), zap.Int("line", rec.Line), zap.Error(parseErr))
			return nil
		}
		if _, err := s.users.Create(ctx, rec.Username, rec.PasswordHash, rec.Role); err != nil {
			if errors.Is(err, repository.ErrConstraintViolation) {
				return nil
			}
			return fmt.Errorf("migrate line %d: %w", rec.Line, err)
		}
		migrated++
		return nil
	})
	if err != nil {
		return migrated, err
	}
	s.logger.Info("legacy users migrated", zap.String("path", path), zap.Int("count", migrated))
	return migrated, nil
}
