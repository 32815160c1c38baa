package session

import "time"

// User is the public profile of an authenticated user. It never carries
// password material.
type User struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Avatar   string  `json:"avatar,omitempty"`
	Roles    RoleSet `json:"role"`
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.Roles = u.Roles.Clone()
	return &out
}

// Merge overlays the non-empty fields of confirmed onto u and returns the result.
// Roles are replaced only when confirmed carries some.
func (u User) Merge(confirmed User) User {
	if confirmed.ID != "" {
		u.ID = confirmed.ID
	}
	if confirmed.Username != "" {
		u.Username = confirmed.Username
	}
	if confirmed.Avatar != "" {
		u.Avatar = confirmed.Avatar
	}
	if confirmed.Roles.Len() > 0 {
		u.Roles = confirmed.Roles.Clone()
	}
	return u
}

// Patch is a partial profile update. Nil fields are left untouched.
type Patch struct {
	Username *string `json:"username,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Username == nil && p.Avatar == nil
}

// Record is the durable, redacted form of a session: token, user and expiry.
// Whether the record is authenticated is never stored; it is re-derived on load.
type Record struct {
	Token     string
	User      *User
	ExpiresAt time.Time
}

// IsZero reports whether the record holds nothing worth restoring.
func (r Record) IsZero() bool {
	return r.Token == "" && r.User == nil && r.ExpiresAt.IsZero()
}

// Usable reports whether the record carries a token that has not expired at now.
func (r Record) Usable(now time.Time) bool {
	return r.Token != "" && !r.ExpiresAt.IsZero() && now.Before(r.ExpiresAt)
}

// Equal compares two records, ignoring role order.
func (r Record) Equal(other Record) bool {
	if r.Token != other.Token || !r.ExpiresAt.Equal(other.ExpiresAt) {
		return false
	}
	if (r.User == nil) != (other.User == nil) {
		return false
	}
	if r.User == nil {
		return true
	}
	a, b := r.User, other.User
	return a.ID == b.ID && a.Username == b.Username && a.Avatar == b.Avatar && a.Roles.Equal(b.Roles)
}
