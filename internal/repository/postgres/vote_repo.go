package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"competition-voting/internal/domain/competition"
	"competition-voting/internal/domain/user"
	"competition-voting/internal/domain/vote"
)

const (
	constraintVoteUnique = "votes_user_competition_key"
	constraintVoteUser   = "votes_user_id_fkey"
)

type VoteRepo struct {
	db *sqlx.DB
}

func NewVoteRepo(db *sqlx.DB) *VoteRepo {
	return &VoteRepo{db: db}
}

func (r *VoteRepo) Snapshot(ctx context.Context, userID, competitionID, optionID uuid.UUID) (vote.Snapshot, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return vote.Snapshot{}, unavailable(err)
	}
	defer tx.Rollback()

	snap, err := loadSnapshot(ctx, tx, userID, competitionID, optionID, "")
	if err != nil {
		return vote.Snapshot{}, err
	}
	return snap, unavailable(tx.Commit())
}

// Cast holds a FOR SHARE lock on the competition row for the whole
// transaction, so concurrent edits or deletes of the competition wait until
// the vote is committed or rolled back.
func (r *VoteRepo) Cast(ctx context.Context, v *vote.Vote, check func(vote.Snapshot) error) (*competition.Option, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, unavailable(err)
	}
	defer tx.Rollback()

	snap, err := loadSnapshot(ctx, tx, v.UserID, v.CompetitionID, v.OptionID, " FOR SHARE")
	if err != nil {
		return nil, err
	}
	if err := check(snap); err != nil {
		return nil, err
	}

	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	err = tx.QueryRowxContext(ctx, `
        INSERT INTO votes (id, user_id, competition_id, option_id)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at
    `, v.ID, v.UserID, v.CompetitionID, v.OptionID).Scan(&v.CreatedAt)
	if err != nil {
		return nil, castErr(err)
	}

	o := &competition.Option{}
	err = tx.GetContext(ctx, o, `
        UPDATE options
        SET vote_count = vote_count + 1, updated_at = now()
        WHERE id = $1 AND competition_id = $2
        RETURNING `+optionColumns,
		v.OptionID, v.CompetitionID,
	)
	if err != nil {
		return nil, optionErr(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable(err)
	}
	return o, nil
}

// Reconcile locks the competition row so no vote lands between the count
// and the rewrite.
func (r *VoteRepo) Reconcile(ctx context.Context, competitionID uuid.UUID) ([]vote.Drift, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, unavailable(err)
	}
	defer tx.Rollback()

	var id uuid.UUID
	err = tx.QueryRowxContext(ctx, `SELECT id FROM competitions WHERE id = $1 FOR UPDATE`, competitionID).Scan(&id)
	if err != nil {
		return nil, competitionErr(err)
	}

	// Writers that touch counters without the competition lock, such as a
	// user delete, hold the option rows. Waiting on them here makes the
	// count below run on a snapshot taken after they commit.
	if _, err := tx.ExecContext(ctx, `
        SELECT id FROM options WHERE competition_id = $1 ORDER BY id FOR UPDATE
    `, competitionID); err != nil {
		return nil, unavailable(err)
	}

	rows, err := tx.QueryxContext(ctx, `
        WITH actual AS (
            SELECT o.id, o.vote_count AS prev_count, COUNT(v.id) AS new_count
            FROM options o
            LEFT JOIN votes v ON v.option_id = o.id
            WHERE o.competition_id = $1
            GROUP BY o.id, o.vote_count
        )
        UPDATE options o
        SET vote_count = a.new_count, updated_at = now()
        FROM actual a
        WHERE o.id = a.id AND a.prev_count <> a.new_count
        RETURNING o.id, a.prev_count, a.new_count
    `, competitionID)
	if err != nil {
		return nil, unavailable(err)
	}

	var drift []vote.Drift
	for rows.Next() {
		var d vote.Drift
		if err := rows.Scan(&d.OptionID, &d.Before, &d.After); err != nil {
			rows.Close()
			return nil, unavailable(err)
		}
		drift = append(drift, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable(err)
	}
	return drift, nil
}

func loadSnapshot(ctx context.Context, tx *sqlx.Tx, userID, competitionID, optionID uuid.UUID, lock string) (vote.Snapshot, error) {
	var snap vote.Snapshot

	c := &competition.Competition{}
	err := tx.GetContext(ctx, c, `SELECT `+competitionColumns+` FROM competitions WHERE id = $1`+lock, competitionID)
	switch {
	case err == nil:
		snap.Competition = c
	case !errors.Is(err, sql.ErrNoRows):
		return snap, unavailable(err)
	}

	o := &competition.Option{}
	err = tx.GetContext(ctx, o, `SELECT `+optionColumns+` FROM options WHERE id = $1`, optionID)
	switch {
	case err == nil:
		snap.Option = o
	case !errors.Is(err, sql.ErrNoRows):
		return snap, unavailable(err)
	}

	err = tx.QueryRowxContext(ctx, `
        SELECT EXISTS (SELECT 1 FROM votes WHERE user_id = $1 AND competition_id = $2)
    `, userID, competitionID).Scan(&snap.AlreadyVoted)
	if err != nil {
		return snap, unavailable(err)
	}
	return snap, nil
}

func castErr(err error) error {
	switch {
	case isUniqueViolation(err) && constraintName(err) == constraintVoteUnique:
		return vote.ErrAlreadyVoted
	case isForeignKeyViolation(err) && constraintName(err) == constraintVoteUser:
		return user.ErrUserNotFound
	case isForeignKeyViolation(err):
		return competition.ErrOptionNotFound
	}
	return unavailable(err)
}
