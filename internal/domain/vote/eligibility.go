package vote

import (
	"errors"
	"time"

	"competition-voting/internal/domain/competition"
)

var (
	ErrAlreadyVoted         = errors.New("already voted")
	ErrCompetitionNotActive = errors.New("competition not active")
	ErrVotingClosed         = errors.New("voting not allowed at this time")
)

// Reason is the outcome of the eligibility gate: either ReasonEligible or
// the first check that failed.
type Reason int

const (
	ReasonEligible Reason = iota
	ReasonCompetitionNotFound
	ReasonCompetitionNotActive
	ReasonOutsideWindow
	ReasonOptionNotFound
	ReasonAlreadyVoted
)

func (r Reason) String() string {
	switch r {
	case ReasonEligible:
		return "eligible"
	case ReasonCompetitionNotFound:
		return "competition_not_found"
	case ReasonCompetitionNotActive:
		return "competition_not_active"
	case ReasonOutsideWindow:
		return "outside_window"
	case ReasonOptionNotFound:
		return "option_not_found"
	case ReasonAlreadyVoted:
		return "already_voted"
	default:
		return "unknown"
	}
}

type Decision struct {
	Reason Reason
}

func (d Decision) Allowed() bool {
	return d.Reason == ReasonEligible
}

// Err maps the decision to the sentinel error callers match on.
func (d Decision) Err() error {
	switch d.Reason {
	case ReasonEligible:
		return nil
	case ReasonCompetitionNotFound:
		return competition.ErrCompetitionNotFound
	case ReasonCompetitionNotActive:
		return ErrCompetitionNotActive
	case ReasonOutsideWindow:
		return ErrVotingClosed
	case ReasonOptionNotFound:
		return competition.ErrOptionNotFound
	case ReasonAlreadyVoted:
		return ErrAlreadyVoted
	default:
		return errors.New("unknown eligibility reason")
	}
}

// Check is one step of the gate. It returns ReasonEligible to pass.
// Checks run in order and may assume every earlier check passed.
type Check func(s Snapshot, now time.Time) Reason

// Gate is the fixed order the vote path evaluates.
var Gate = []Check{
	CompetitionExists,
	CompetitionActive,
	WithinWindow,
	OptionBelongs,
	NotYetVoted,
}

// Evaluate runs Gate against s.
func Evaluate(s Snapshot, now time.Time) Decision {
	return Run(Gate, s, now)
}

// Run evaluates checks in order and stops at the first failure.
func Run(checks []Check, s Snapshot, now time.Time) Decision {
	for _, check := range checks {
		if r := check(s, now); r != ReasonEligible {
			return Decision{Reason: r}
		}
	}
	return Decision{Reason: ReasonEligible}
}

func CompetitionExists(s Snapshot, _ time.Time) Reason {
	if s.Competition == nil {
		return ReasonCompetitionNotFound
	}
	return ReasonEligible
}

func CompetitionActive(s Snapshot, _ time.Time) Reason {
	if !s.Competition.IsActive {
		return ReasonCompetitionNotActive
	}
	return ReasonEligible
}

func WithinWindow(s Snapshot, now time.Time) Reason {
	if !competition.IsWithinWindow(now, s.Competition.StartTime, s.Competition.EndTime) {
		return ReasonOutsideWindow
	}
	return ReasonEligible
}

func OptionBelongs(s Snapshot, _ time.Time) Reason {
	if s.Option == nil || s.Option.CompetitionID != s.Competition.ID {
		return ReasonOptionNotFound
	}
	return ReasonEligible
}

func NotYetVoted(s Snapshot, _ time.Time) Reason {
	if s.AlreadyVoted {
		return ReasonAlreadyVoted
	}
	return ReasonEligible
}
