package vote

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"competition-voting/internal/domain/authz"
	"competition-voting/internal/domain/competition"
)

// Service is the vote ledger. Exactly-once voting is enforced by the
// storage uniqueness constraint inside Repository.Cast; the gate run
// before it only rejects early.
type Service struct {
	repo    Repository
	options OptionLister
	now     func() time.Time
	logger  *slog.Logger
}

func NewService(repo Repository, options OptionLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		options: options,
		now:     time.Now,
		logger:  logger,
	}
}

// WithClock replaces the time source used by the gate.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CastVote records one vote for optionID and returns the option with its
// incremented counter.
func (s *Service) CastVote(ctx context.Context, userID, competitionID, optionID uuid.UUID) (*competition.Option, error) {
	snap, err := s.repo.Snapshot(ctx, userID, competitionID, optionID)
	if err != nil {
		return nil, err
	}
	if d := Evaluate(snap, s.now()); !d.Allowed() {
		return nil, d.Err()
	}

	v := &Vote{
		ID:            uuid.New(),
		UserID:        userID,
		CompetitionID: competitionID,
		OptionID:      optionID,
	}

	opt, err := s.repo.Cast(ctx, v, func(inTx Snapshot) error {
		return Evaluate(inTx, s.now()).Err()
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyVoted) {
			s.logger.Warn("vote rejected at write time",
				"competition_id", competitionID,
				"option_id", optionID,
				"user_id", userID,
			)
		}
		return nil, err
	}

	s.logger.Info("vote recorded",
		"vote_id", v.ID,
		"competition_id", competitionID,
		"option_id", optionID,
		"user_id", userID,
		"vote_count", opt.VoteCount,
	)
	return opt, nil
}

// Reconcile recomputes the cached counters of a competition from its vote
// rows. Admin only.
func (s *Service) Reconcile(ctx context.Context, actor authz.Actor, competitionID uuid.UUID) ([]Drift, error) {
	if _, err := s.options.GetByID(ctx, competitionID); err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.Resource{}, authz.AdminOnly); err != nil {
		return nil, err
	}

	drift, err := s.repo.Reconcile(ctx, competitionID)
	if err != nil {
		return nil, err
	}
	if len(drift) > 0 {
		s.logger.Warn("vote counters repaired",
			"competition_id", competitionID,
			"options", len(drift),
		)
	}
	if drift == nil {
		drift = []Drift{}
	}
	return drift, nil
}

// Results builds the public tally from the cached counters.
func (s *Service) Results(ctx context.Context, competitionID uuid.UUID) (*Tally, error) {
	if _, err := s.options.GetByID(ctx, competitionID); err != nil {
		return nil, err
	}
	opts, err := s.options.ListOptions(ctx, competitionID)
	if err != nil {
		return nil, err
	}

	t := &Tally{CompetitionID: competitionID, Options: make([]Result, 0, len(opts))}
	for _, o := range opts {
		t.TotalVotes += o.VoteCount
	}
	for _, o := range opts {
		var p float64
		if t.TotalVotes > 0 {
			p = float64(o.VoteCount) * 100.0 / float64(t.TotalVotes)
		}
		t.Options = append(t.Options, Result{
			OptionID:   o.ID,
			Name:       o.Name,
			Votes:      o.VoteCount,
			Percentage: p,
		})
	}
	return t, nil
}
