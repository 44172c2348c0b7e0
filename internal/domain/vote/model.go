package vote

import (
	"context"
	"time"

	"github.com/google/uuid"

	"competition-voting/internal/domain/competition"
)

type Vote struct {
	ID            uuid.UUID `json:"id" db:"id"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	CompetitionID uuid.UUID `json:"competition_id" db:"competition_id"`
	OptionID      uuid.UUID `json:"option_id" db:"option_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// Snapshot is the state the eligibility gate decides on. Missing rows are
// nil rather than errors.
type Snapshot struct {
	Competition  *competition.Competition
	Option       *competition.Option
	AlreadyVoted bool
}

// Drift describes a counter that disagreed with the ledger.
type Drift struct {
	OptionID uuid.UUID `json:"option_id"`
	Before   int64     `json:"before"`
	After    int64     `json:"after"`
}

type Result struct {
	OptionID   uuid.UUID `json:"option_id"`
	Name       string    `json:"name"`
	Votes      int64     `json:"votes"`
	Percentage float64   `json:"percentage"`
}

type Tally struct {
	CompetitionID uuid.UUID `json:"competition_id"`
	TotalVotes    int64     `json:"total_votes"`
	Options       []Result  `json:"options"`
}

type Repository interface {
	// Snapshot reads competition, option and prior-vote state in one
	// consistent read.
	Snapshot(ctx context.Context, userID, competitionID, optionID uuid.UUID) (Snapshot, error)
	// Cast opens one unit of work, hands the state visible inside it to
	// check, then inserts v and increments the option counter. Nothing is
	// written when check or any write fails. A duplicate (user, competition)
	// pair surfaces as ErrAlreadyVoted.
	Cast(ctx context.Context, v *Vote, check func(Snapshot) error) (*competition.Option, error)
	// Reconcile rewrites every option counter of the competition from the
	// vote rows and returns the ones that changed.
	Reconcile(ctx context.Context, competitionID uuid.UUID) ([]Drift, error)
}

// OptionLister is the read side of the competition store used for tallies.
type OptionLister interface {
	GetByID(ctx context.Context, id uuid.UUID) (*competition.Competition, error)
	ListOptions(ctx context.Context, competitionID uuid.UUID) ([]competition.Option, error)
}
