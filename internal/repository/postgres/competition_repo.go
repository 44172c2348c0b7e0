package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"competition-voting/internal/domain/competition"
	"competition-voting/internal/domain/user"
)

const (
	competitionColumns = `id, title, description, start_time, end_time, is_active, owner_id, created_at, updated_at`
	optionColumns      = `id, competition_id, name, description, image_url, vote_count, created_at, updated_at`
)

type CompetitionRepo struct {
	db *sqlx.DB
}

func NewCompetitionRepo(db *sqlx.DB) *CompetitionRepo {
	return &CompetitionRepo{db: db}
}

func (r *CompetitionRepo) Create(ctx context.Context, c *competition.Competition) error {
	query := `
        INSERT INTO competitions (id, title, description, start_time, end_time, is_active, owner_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at, updated_at
    `
	c.ID = uuid.New()
	err := r.db.QueryRowxContext(ctx, query,
		c.ID,
		c.Title,
		c.Description,
		c.StartTime,
		c.EndTime,
		c.IsActive,
		c.OwnerID,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return user.ErrUserNotFound
		}
		return unavailable(err)
	}
	return nil
}

func (r *CompetitionRepo) GetByID(ctx context.Context, id uuid.UUID) (*competition.Competition, error) {
	c := &competition.Competition{}
	err := r.db.GetContext(ctx, c, `SELECT `+competitionColumns+` FROM competitions WHERE id = $1`, id)
	if err != nil {
		return nil, competitionErr(err)
	}
	return c, nil
}

// List pages by (created_at, id) descending. An unknown cursor yields an
// empty page.
func (r *CompetitionRepo) List(ctx context.Context, f competition.ListFilter) ([]competition.Competition, error) {
	args := make([]any, 0, 3)
	conditions := make([]string, 0, 2)

	if f.Active != nil {
		args = append(args, *f.Active)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if f.After != uuid.Nil {
		args = append(args, f.After)
		conditions = append(conditions, fmt.Sprintf(
			"(created_at, id) < (SELECT created_at, id FROM competitions WHERE id = $%d)", len(args)))
	}

	query := `SELECT ` + competitionColumns + ` FROM competitions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	res := []competition.Competition{}
	if err := r.db.SelectContext(ctx, &res, query, args...); err != nil {
		return nil, unavailable(err)
	}
	return res, nil
}

func (r *CompetitionRepo) Update(ctx context.Context, c *competition.Competition) error {
	err := r.db.GetContext(ctx, c, `
        UPDATE competitions
        SET title = $1, description = $2, start_time = $3, end_time = $4, is_active = $5, updated_at = now()
        WHERE id = $6
        RETURNING `+competitionColumns,
		c.Title, c.Description, c.StartTime, c.EndTime, c.IsActive, c.ID,
	)
	return competitionErr(err)
}

// Delete relies on ON DELETE CASCADE for options and votes. The row lock
// taken by DELETE waits for in-flight vote transactions holding FOR SHARE.
func (r *CompetitionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM competitions WHERE id = $1`, id)
	if err != nil {
		return unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return competition.ErrCompetitionNotFound
	}
	return nil
}

func (r *CompetitionRepo) ListOptions(ctx context.Context, competitionID uuid.UUID) ([]competition.Option, error) {
	opts := []competition.Option{}
	err := r.db.SelectContext(ctx, &opts, `
        SELECT `+optionColumns+`
        FROM options WHERE competition_id = $1
        ORDER BY created_at, id
    `, competitionID)
	if err != nil {
		return nil, unavailable(err)
	}
	return opts, nil
}

func (r *CompetitionRepo) GetOption(ctx context.Context, competitionID, optionID uuid.UUID) (*competition.Option, error) {
	o := &competition.Option{}
	err := r.db.GetContext(ctx, o, `
        SELECT `+optionColumns+`
        FROM options WHERE id = $1 AND competition_id = $2
    `, optionID, competitionID)
	if err != nil {
		return nil, optionErr(err)
	}
	return o, nil
}

func (r *CompetitionRepo) CreateOption(ctx context.Context, o *competition.Option) error {
	query := `
        INSERT INTO options (id, competition_id, name, description, image_url)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING vote_count, created_at, updated_at
    `
	o.ID = uuid.New()
	err := r.db.QueryRowxContext(ctx, query, o.ID, o.CompetitionID, o.Name, o.Description, o.ImageURL).
		Scan(&o.VoteCount, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return competition.ErrCompetitionNotFound
		}
		return unavailable(err)
	}
	return nil
}

// UpdateOption never writes vote_count; counters change only through the
// ledger.
func (r *CompetitionRepo) UpdateOption(ctx context.Context, o *competition.Option) error {
	err := r.db.GetContext(ctx, o, `
        UPDATE options
        SET name = $1, description = $2, image_url = $3, updated_at = now()
        WHERE id = $4 AND competition_id = $5
        RETURNING `+optionColumns,
		o.Name, o.Description, o.ImageURL, o.ID, o.CompetitionID,
	)
	return optionErr(err)
}

func (r *CompetitionRepo) DeleteOption(ctx context.Context, competitionID, optionID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM options WHERE id = $1 AND competition_id = $2`, optionID, competitionID)
	if err != nil {
		return unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return competition.ErrOptionNotFound
	}
	return nil
}

func (r *CompetitionRepo) Voters(ctx context.Context, competitionID uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	rows, err := r.db.QueryxContext(ctx, `
        SELECT option_id, user_id
        FROM votes WHERE competition_id = $1
        ORDER BY created_at, id
    `, competitionID)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	res := make(map[uuid.UUID][]uuid.UUID)
	for rows.Next() {
		var optionID, userID uuid.UUID
		if err := rows.Scan(&optionID, &userID); err != nil {
			return nil, unavailable(err)
		}
		res[optionID] = append(res[optionID], userID)
	}
	return res, unavailable(rows.Err())
}

func competitionErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return competition.ErrCompetitionNotFound
	}
	return unavailable(err)
}

func optionErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return competition.ErrOptionNotFound
	}
	return unavailable(err)
}
