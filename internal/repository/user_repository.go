package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newdeli/backoffice/internal/model"
)

// UserRepo persists users and their tenant memberships.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id, email, name, password_hash, active_tenant_id, is_platform_admin, created_at, updated_at"

// Create inserts u, assigning an id and timestamps when they are unset.
// A taken email yields ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?,?,?,?,?,?,?,?)",
		u.ID, u.Email, u.Name, nullString(u.PasswordHash), nullString(u.ActiveTenantID),
		u.IsPlatformAdmin, u.CreatedAt, u.UpdatedAt)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID fetches a user by id together with its memberships.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

// GetByEmail fetches a user by normalized email together with its memberships.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (*model.User, error) {
	var (
		u      model.User
		hash   sql.NullString
		active sql.NullString
	)
	err := r.DB.QueryRowContext(ctx, q, arg).Scan(
		&u.ID, &u.Email, &u.Name, &hash, &active, &u.IsPlatformAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	u.PasswordHash = hash.String
	u.ActiveTenantID = active.String

	rows, err := r.DB.QueryContext(ctx,
		"SELECT tenant_id, role, created_at FROM memberships WHERE user_id=? ORDER BY created_at, tenant_id", u.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			m    model.Membership
			role string
		)
		if err := rows.Scan(&m.TenantID, &role, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = model.Role(role)
		u.Memberships = append(u.Memberships, m)
	}
	return &u, rows.Err()
}

// UpdateName sets the display name.
func (r *UserRepo) UpdateName(ctx context.Context, id, name string) error {
	return r.exec1(ctx, "UPDATE users SET name=?, updated_at=? WHERE id=?", name, time.Now().UTC(), id)
}

// SetPassword stores a new bcrypt hash.
func (r *UserRepo) SetPassword(ctx context.Context, id, hash string) error {
	return r.exec1(ctx, "UPDATE users SET password_hash=?, updated_at=? WHERE id=?", hash, time.Now().UTC(), id)
}

// SetActiveTenant moves the login hint.  An empty tenantID clears it.
func (r *UserRepo) SetActiveTenant(ctx context.Context, id, tenantID string) error {
	return r.exec1(ctx, "UPDATE users SET active_tenant_id=?, updated_at=? WHERE id=?",
		nullString(tenantID), time.Now().UTC(), id)
}

// exec1 runs an UPDATE keyed by id and reports ErrNotFound when the row is
// missing.  MySQL reports zero affected rows for no-op updates too, so a
// second lookup tells the two apart.
func (r *UserRepo) exec1(ctx context.Context, q string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var one int
	id := args[len(args)-1]
	if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=?", id).Scan(&one); err != nil {
		return notFound(err)
	}
	return nil
}

// AddMembership links userID to the scope's tenant with role.  An existing
// membership for the pair yields ErrDuplicate.
func (r *UserRepo) AddMembership(ctx context.Context, s Scope, userID string, role model.Role) error {
	if err := s.check(); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO memberships (user_id, tenant_id, role, created_at) VALUES (?,?,?,?)",
		userID, s.tenantID, string(role), time.Now().UTC())
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// Member returns userID's membership in the scope's tenant.  Users that
// exist but are not members are reported as ErrNotFound.
func (r *UserRepo) Member(ctx context.Context, s Scope, userID string) (*model.Member, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	var (
		m    model.Member
		role string
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT u.id, u.name, u.email, m.role
		   FROM memberships m JOIN users u ON u.id = m.user_id
		  WHERE m.tenant_id=? AND m.user_id=? LIMIT 1`,
		s.tenantID, userID).Scan(&m.UserID, &m.Name, &m.Email, &role)
	if err != nil {
		return nil, notFound(err)
	}
	m.Role = model.Role(role)
	return &m, nil
}

// Members lists the scope's tenant members ordered by join time.
func (r *UserRepo) Members(ctx context.Context, s Scope) ([]model.Member, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT u.id, u.name, u.email, m.role
		   FROM memberships m JOIN users u ON u.id = m.user_id
		  WHERE m.tenant_id=? ORDER BY m.created_at, u.email`, s.tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Member{}
	for rows.Next() {
		var (
			m    model.Member
			role string
		)
		if err := rows.Scan(&m.UserID, &m.Name, &m.Email, &role); err != nil {
			return nil, err
		}
		m.Role = model.Role(role)
		out = append(out, m)
	}
	return out, rows.Err()
}

// RoleCounts returns the number of members per role in the scope's tenant.
func (r *UserRepo) RoleCounts(ctx context.Context, s Scope) (map[model.Role]int, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT role, COUNT(*) FROM memberships WHERE tenant_id=? GROUP BY role", s.tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[model.Role]int{}
	for rows.Next() {
		var (
			role string
			n    int
		)
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		out[model.Role(role)] = n
	}
	return out, rows.Err()
}

// SetRole changes userID's role in the scope's tenant.
func (r *UserRepo) SetRole(ctx context.Context, s Scope, userID string, role model.Role) error {
	if err := s.check(); err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE memberships SET role=? WHERE tenant_id=? AND user_id=?", string(role), s.tenantID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.Member(ctx, s, userID); err != nil {
			return err
		}
	}
	return nil
}

// RemoveMembership deletes userID's membership in the scope's tenant.  When
// the user's active tenant pointed there, the pointer moves to the oldest
// remaining membership or is cleared, in the same transaction.
func (r *UserRepo) RemoveMembership(ctx context.Context, s Scope, userID string) error {
	if err := s.check(); err != nil {
		return err
	}
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM memberships WHERE tenant_id=? AND user_id=?", s.tenantID, userID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}

		var active sql.NullString
		if err := tx.QueryRowContext(ctx,
			"SELECT active_tenant_id FROM users WHERE id=? FOR UPDATE", userID).Scan(&active); err != nil {
			return notFound(err)
		}
		if active.String != s.tenantID {
			return nil
		}

		var next sql.NullString
		err = tx.QueryRowContext(ctx,
			"SELECT tenant_id FROM memberships WHERE user_id=? ORDER BY created_at, tenant_id LIMIT 1",
			userID).Scan(&next)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE users SET active_tenant_id=?, updated_at=? WHERE id=?", next, time.Now().UTC(), userID)
		return err
	})
}
