package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/session"
)

// ErrUsernameTaken is returned when a create or rename collides with a live user.
var ErrUsernameTaken = errors.New("username already taken")

// Querier is the query(sql, params) capability the directory depends on.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLDirectory implements authstate.UserDirectory over the auth table.
type SQLDirectory struct {
	db  Querier
	now func() time.Time
}

var _ authstate.UserDirectory = (*SQLDirectory)(nil)

// New returns a directory issuing queries through db.
func New(db Querier) *SQLDirectory {
	return &SQLDirectory{db: db, now: time.Now}
}

const selectColumns = "SELECT id, username, password, avatar, role FROM auth"

// FindByUsername returns the live user with username together with its
// password hash.
func (d *SQLDirectory) FindByUsername(ctx context.Context, username string) (authstate.UserRecord, error) {
	rows, err := d.queryUsers(ctx, selectColumns+" WHERE username = ? AND deleted_time IS NULL LIMIT 2", username)
	if err != nil {
		return authstate.UserRecord{}, err
	}
	if len(rows) != 1 {
		return authstate.UserRecord{}, authstate.ErrUserNotFound
	}
	return rows[0], nil
}

// LookupActive resolves the user named by a verified token. It succeeds only
// when exactly one live row matches both id and username.
func (d *SQLDirectory) LookupActive(ctx context.Context, id, username string) (session.User, error) {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return session.User{}, authstate.ErrUserNotFound
	}
	rows, err := d.queryUsers(ctx, selectColumns+" WHERE id = ? AND username = ? AND deleted_time IS NULL LIMIT 2", numericID, username)
	if err != nil {
		return session.User{}, err
	}
	if len(rows) != 1 {
		return session.User{}, authstate.ErrUserNotFound
	}
	return rows[0].Profile, nil
}

// UpdateProfile applies patch to the live user id and returns the stored result.
func (d *SQLDirectory) UpdateProfile(ctx context.Context, id string, patch session.Patch) (session.User, error) {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return session.User{}, authstate.ErrUserNotFound
	}

	if !patch.Empty() {
		sets := make([]string, 0, 3)
		args := make([]any, 0, 4)
		if patch.Username != nil {
			name := strings.TrimSpace(*patch.Username)
			if name == "" {
				return session.User{}, fmt.Errorf("%w: username must not be empty", authstate.ErrInvalidProfile)
			}
			sets = append(sets, "username = ?")
			args = append(args, name)
		}
		if patch.Avatar != nil {
			sets = append(sets, "avatar = ?")
			args = append(args, *patch.Avatar)
		}
		sets = append(sets, "updated_time = ?")
		args = append(args, d.now().UTC().Format(time.RFC3339), numericID)

		res, err := d.db.ExecContext(ctx,
			"UPDATE auth SET "+strings.Join(sets, ", ")+" WHERE id = ? AND deleted_time IS NULL", args...)
		if err != nil {
			if isUniqueViolation(err) {
				return session.User{}, ErrUsernameTaken
			}
			return session.User{}, fmt.Errorf("updating profile: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return session.User{}, authstate.ErrUserNotFound
		}
	}

	rows, err := d.queryUsers(ctx, selectColumns+" WHERE id = ? AND deleted_time IS NULL", numericID)
	if err != nil {
		return session.User{}, err
	}
	if len(rows) != 1 {
		return session.User{}, authstate.ErrUserNotFound
	}
	return rows[0].Profile, nil
}

// CreateUser inserts a live user and returns its profile.
func (d *SQLDirectory) CreateUser(ctx context.Context, username, passwordHash, avatar string, roles session.RoleSet) (session.User, error) {
	now := d.now().UTC().Format(time.RFC3339)
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO auth (username, password, avatar, role, created_time, updated_time) VALUES (?, ?, ?, ?, ?, ?)`,
		username, passwordHash, avatar, roles.String(), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return session.User{}, ErrUsernameTaken
		}
		return session.User{}, fmt.Errorf("creating user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return session.User{}, fmt.Errorf("creating user: %w", err)
	}
	return session.User{
		ID:       strconv.FormatInt(id, 10),
		Username: username,
		Avatar:   avatar,
		Roles:    session.NewRoleSet(roles...),
	}, nil
}

// SoftDelete marks the user deleted. Deleted users no longer authenticate.
func (d *SQLDirectory) SoftDelete(ctx context.Context, id string) error {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return authstate.ErrUserNotFound
	}
	res, err := d.db.ExecContext(ctx,
		"UPDATE auth SET deleted_time = ? WHERE id = ? AND deleted_time IS NULL",
		d.now().UTC().Format(time.RFC3339), numericID)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return authstate.ErrUserNotFound
	}
	return nil
}

// Count returns the number of live users.
func (d *SQLDirectory) Count(ctx context.Context) (int, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT COUNT(*) FROM auth WHERE deleted_time IS NULL")
	if err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	defer rows.Close()
	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("counting users: %w", err)
		}
	}
	return n, rows.Err()
}

func (d *SQLDirectory) queryUsers(ctx context.Context, query string, args ...any) ([]authstate.UserRecord, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var out []authstate.UserRecord
	for rows.Next() {
		var (
			id       int64
			rec      authstate.UserRecord
			avatar   sql.NullString
			roleText sql.NullString
		)
		if err := rows.Scan(&id, &rec.Profile.Username, &rec.PasswordHash, &avatar, &roleText); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		rec.Profile.ID = strconv.FormatInt(id, 10)
		rec.Profile.Avatar = avatar.String
		rec.Profile.Roles = session.ParseRoles(roleText.String)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return out, nil
}
