// Package sqlxrepos implements the repositories on Postgres via sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/mekesim/backend/core"
	"github.com/mekesim/backend/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Username     string    `db:"username"`
	Email        string    `db:"email"`
	IsActive     bool      `db:"is_active"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    null.Time `db:"created_at"`
	UpdatedAt    null.Time `db:"updated_at"`
	LastLogin    null.Time `db:"last_login"`
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
		LastLogin:    r.LastLogin.Time,
	}
}

// trapNoRowsErr swaps sql.ErrNoRows for the domain sentinel.
func trapNoRowsErr(err, sentinel error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return sentinel
	}
	return err
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	exclIDs := make([]string, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		exclIDs = append(exclIDs, usr.ID)
	}

	check := func(column, value string, sentinel error) error {
		if value == "" {
			return nil
		}
		query := `SELECT EXISTS (SELECT 1 FROM "user" WHERE ` + column + ` = ? AND id NOT IN (?))`
		args := []interface{}{value, exclIDs}
		if len(exclIDs) == 0 {
			query = `SELECT EXISTS (SELECT 1 FROM "user" WHERE ` + column + ` = ?)`
			args = args[:1]
		}
		query, inArgs, err := sqlx.In(query, args...)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		var exists bool
		if err := repo.db.GetContext(ctx, &exists, repo.db.Rebind(query), inArgs...); err != nil {
			return errors.Wrap(err, "checking uniqueness")
		}
		if exists {
			return sentinel
		}
		return nil
	}

	if err := check("username", username, user.ErrUsernameExists); err != nil {
		return err
	}
	return check("email", email, user.ErrEmailExists)
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	query := `
		INSERT INTO "user" (id, name, username, email, is_active, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := repo.db.ExecContext(ctx, query,
		usr.ID, usr.Name, usr.Username, usr.Email, usr.IsActive, usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		where string
		args  []interface{}
	)
	switch {
	case filter.ID != "":
		where, args = "id = $1", []interface{}{filter.ID}
	case filter.Username != "":
		where, args = "username = $1", []interface{}{filter.Username}
	case filter.Email != "":
		where, args = "email = $1", []interface{}{filter.Email}
	case filter.UsernameOrEmail != "":
		where, args = "(username = $1 OR email = $1)", []interface{}{filter.UsernameOrEmail}
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM "user" WHERE `+where, args...)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return row.toUser(), nil
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter *user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	query := `SELECT u.* FROM "user" u`
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "?"
	}

	if filter != nil && !filter.IsEmpty() {
		if filter.Role != "" {
			query += ` LEFT JOIN user_profile p ON p.user_id = u.id`
			if filter.Role == user.RoleRegular {
				// a missing profile row is a regular account
				where = append(where, `COALESCE(p.role, 'regular') = `+arg(filter.Role))
			} else {
				where = append(where, `p.role = `+arg(filter.Role))
			}
		}
		if filter.Search != "" {
			pattern := "%" + filter.Search + "%"
			where = append(where, `(u.name ILIKE `+arg(pattern)+` OR u.username ILIKE `+arg(pattern)+` OR u.email ILIKE `+arg(pattern)+`)`)
		}
		if filter.IsActive != nil {
			where = append(where, `u.is_active = `+arg(*filter.IsActive))
		}
		if !filter.CreatedFrom.IsZero() {
			where = append(where, `u.created_at >= `+arg(filter.CreatedFrom))
		}
		if !filter.CreatedTo.IsZero() {
			where = append(where, `u.created_at <= `+arg(filter.CreatedTo))
		}
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY ` + orderBy("u.", "created_at DESC", map[string]bool{"created_at": true, "username": true}, ordering...)

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

// orderBy renders the first allowed ordering, or the fallback.
func orderBy(prefix, fallback string, allowed map[string]bool, ordering ...core.DBOrdering) string {
	if len(ordering) > 0 && allowed[ordering[0].Field] {
		return prefix + ordering[0].String()
	}
	return prefix + fallback
}

// UpdateUser only writes the fields that are set; zero values leave the
// stored column untouched.
func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	var (
		set  []string
		args []interface{}
	)
	setArg := func(clause string, v interface{}) {
		set = append(set, clause)
		args = append(args, v)
	}

	if usr.Name != "" {
		setArg("name = ?", usr.Name)
	}
	if usr.Username != "" {
		setArg("username = ?", usr.Username)
	}
	if usr.Email != "" {
		setArg("email = ?", usr.Email)
	}
	if usr.PasswordHash != nil {
		setArg("password_hash = ?", usr.PasswordHash)
	}
	if isActive != nil {
		setArg("is_active = ?", *isActive)
	}
	if !usr.LastLogin.IsZero() {
		setArg("last_login = ?", usr.LastLogin)
	}
	if !usr.UpdatedAt.IsZero() {
		setArg("updated_at = ?", usr.UpdatedAt)
	}
	if len(set) == 0 {
		return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	}

	args = append(args, usr.ID)
	query := `UPDATE "user" SET ` + strings.Join(set, ", ") + ` WHERE id = ?`
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
}

func (repo *userRepository) GetProfile(ctx context.Context, userID string) (user.Profile, error) {
	var prof user.Profile
	query := `SELECT user_id, role, vip_expiry, avatar FROM user_profile WHERE user_id = $1`
	if err := repo.db.QueryRowContext(ctx, query, userID).
		Scan(&prof.UserID, &prof.Role, &prof.VIPExpiry, &prof.Avatar); err != nil {
		return user.Profile{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return prof, nil
}

func (repo *userRepository) UpsertProfile(ctx context.Context, prof user.Profile) (user.Profile, error) {
	query := `
		INSERT INTO user_profile (user_id, role, vip_expiry, avatar)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET role = $2, vip_expiry = $3, avatar = $4`
	if _, err := repo.db.ExecContext(ctx, query, prof.UserID, prof.Role, prof.VIPExpiry, prof.Avatar); err != nil {
		return user.Profile{}, errors.Wrap(err, "upserting profile")
	}
	return prof, nil
}
