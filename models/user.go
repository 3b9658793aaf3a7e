package models

// Roles are coarse capability labels stored alongside a credential.
// The credential store does not enforce them.
const (
	RoleUser    = "user"
	RoleAnalyst = "analyst"
	RoleAdmin   = "admin"
)

// User represents a platform account.
// It maps to the `users` table in SQLite.
type User struct {
	ID           int64  `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	PasswordHash string `db:"password_hash" json:"-"` // never serialized
	Role         string `db:"role" json:"role"`
}

// UserPatch is a partial update of a user record. Nil fields are left untouched.
type UserPatch struct {
	PasswordHash *string
	Role         *string
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.PasswordHash == nil && p.Role == nil
}

// KnownRole reports whether r is one of the roles the platform ships with.
func KnownRole(r string) bool {
	switch r {
	case RoleUser, RoleAnalyst, RoleAdmin:
		return true
	default:
		return false
	}
}
