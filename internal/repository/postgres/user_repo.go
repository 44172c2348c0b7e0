package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"competition-voting/internal/domain/user"
)

const userColumns = `id, full_name, email, password_hash, role, created_at, updated_at`

type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	query := `
        INSERT INTO users (id, full_name, email, password_hash, role)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at, updated_at
    `
	u.ID = uuid.New()
	err := r.db.QueryRowxContext(ctx, query, u.ID, u.FullName, u.Email, u.PasswordHash, string(u.Role)).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		return unavailable(err)
	}
	return nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	u := &user.User{}
	err := r.db.GetContext(ctx, u, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if err != nil {
		return nil, userErr(err)
	}
	return u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u := &user.User{}
	err := r.db.GetContext(ctx, u, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, userErr(err)
	}
	return u, nil
}

func (r *UserRepo) List(ctx context.Context) ([]user.User, error) {
	usersList := []user.User{}
	if err := r.db.SelectContext(ctx, &usersList, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`); err != nil {
		return nil, unavailable(err)
	}
	return usersList, nil
}

func (r *UserRepo) UpdateRole(ctx context.Context, id uuid.UUID, role user.Role) (*user.User, error) {
	u := &user.User{}
	err := r.db.GetContext(ctx, u, `
        UPDATE users SET role = $1, updated_at = now()
        WHERE id = $2
        RETURNING `+userColumns, string(role), id)
	if err != nil {
		return nil, userErr(err)
	}
	return u, nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, u *user.User) error {
	err := r.db.GetContext(ctx, u, `
        UPDATE users SET full_name = $1, email = $2, password_hash = $3, updated_at = now()
        WHERE id = $4
        RETURNING `+userColumns, u.FullName, u.Email, u.PasswordHash, u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		return userErr(err)
	}
	return nil
}

// Delete takes back the votes the user cast before the cascade removes
// them, so counters of surviving options stay equal to their vote rows.
func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable(err)
	}
	defer func() { _ = tx.Rollback() }()

	var locked uuid.UUID
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, id); err != nil {
		return userErr(err)
	}

	_, err = tx.ExecContext(ctx, `
        UPDATE options o
        SET vote_count = o.vote_count - v.cnt, updated_at = now()
        FROM (
            SELECT option_id, COUNT(*) AS cnt
            FROM votes WHERE user_id = $1
            GROUP BY option_id
        ) v
        WHERE o.id = v.option_id
    `, id)
	if err != nil {
		return unavailable(err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return unavailable(err)
	}

	return unavailable(tx.Commit())
}

func (r *UserRepo) HasAdmin(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM users WHERE role = $1)`, string(user.RoleAdmin))
	return exists, unavailable(err)
}

func userErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return user.ErrUserNotFound
	}
	return unavailable(err)
}
