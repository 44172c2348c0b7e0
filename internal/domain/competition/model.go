package competition

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Competition struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	StartTime   time.Time `json:"start_time" db:"start_time"`
	EndTime     time.Time `json:"end_time" db:"end_time"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	OwnerID     uuid.UUID `json:"owner_id" db:"owner_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// AcceptsVotesAt reports whether the competition is active and now is
// inside its voting window.
func (c *Competition) AcceptsVotesAt(now time.Time) bool {
	return c.IsActive && IsWithinWindow(now, c.StartTime, c.EndTime)
}

type Option struct {
	ID            uuid.UUID `json:"id" db:"id"`
	CompetitionID uuid.UUID `json:"competition_id" db:"competition_id"`
	Name          string    `json:"name" db:"name"`
	Description   string    `json:"description" db:"description"`
	ImageURL      string    `json:"image_url" db:"image_url"`
	VoteCount     int64     `json:"vote_count" db:"vote_count"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

type CreateInput struct {
	Title       string
	Description string
	StartTime   *time.Time
	EndTime     *time.Time
	IsActive    *bool
}

// UpdateInput replaces only the non-nil fields.
type UpdateInput struct {
	Title       *string
	Description *string
	StartTime   *time.Time
	EndTime     *time.Time
	IsActive    *bool
}

type OptionInput struct {
	Name        string
	Description string
	ImageURL    string
}

// OptionUpdate replaces only the non-nil fields. The vote counter is never
// writable through it.
type OptionUpdate struct {
	Name        *string
	Description *string
	ImageURL    *string
}

type ListFilter struct {
	Active *bool
	After  uuid.UUID
	Limit  int
}

type Page struct {
	Items     []Competition `json:"items"`
	NextAfter *uuid.UUID    `json:"next_after,omitempty"`
}

type OptionDetails struct {
	Option
	Voters []uuid.UUID `json:"voters"`
}

type Details struct {
	Competition
	Options []OptionDetails `json:"options"`
}

type Repository interface {
	Create(ctx context.Context, c *Competition) error
	GetByID(ctx context.Context, id uuid.UUID) (*Competition, error)
	List(ctx context.Context, f ListFilter) ([]Competition, error)
	Update(ctx context.Context, c *Competition) error
	// Delete removes the competition with its options and votes in one
	// unit of work.
	Delete(ctx context.Context, id uuid.UUID) error

	ListOptions(ctx context.Context, competitionID uuid.UUID) ([]Option, error)
	GetOption(ctx context.Context, competitionID, optionID uuid.UUID) (*Option, error)
	CreateOption(ctx context.Context, o *Option) error
	UpdateOption(ctx context.Context, o *Option) error
	DeleteOption(ctx context.Context, competitionID, optionID uuid.UUID) error
	// Voters maps option id to the ids of users who voted for it.
	Voters(ctx context.Context, competitionID uuid.UUID) (map[uuid.UUID][]uuid.UUID, error)
}
