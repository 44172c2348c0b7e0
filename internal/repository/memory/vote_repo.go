package memory

import (
	"context"

	"github.com/google/uuid"

	"competition-voting/internal/domain/competition"
	"competition-voting/internal/domain/user"
	"competition-voting/internal/domain/vote"
)

type VoteRepo struct {
	s *Store
}

func (r *VoteRepo) Snapshot(ctx context.Context, userID, competitionID, optionID uuid.UUID) (vote.Snapshot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.snapshotLocked(userID, competitionID, optionID), nil
}

func (r *VoteRepo) snapshotLocked(userID, competitionID, optionID uuid.UUID) vote.Snapshot {
	var snap vote.Snapshot
	if c, ok := r.s.competitions[competitionID]; ok {
		copyComp := *c
		snap.Competition = &copyComp
	}
	if o, ok := r.s.options[optionID]; ok {
		copyOpt := *o
		snap.Option = &copyOpt
	}
	_, snap.AlreadyVoted = r.s.voteKeys[voteKey{userID: userID, competitionID: competitionID}]
	return snap
}

func (r *VoteRepo) Cast(ctx context.Context, v *vote.Vote, check func(vote.Snapshot) error) (*competition.Option, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := check(r.snapshotLocked(v.UserID, v.CompetitionID, v.OptionID)); err != nil {
		return nil, err
	}

	key := voteKey{userID: v.UserID, competitionID: v.CompetitionID}
	if _, dup := r.s.voteKeys[key]; dup {
		return nil, vote.ErrAlreadyVoted
	}
	if _, ok := r.s.users[v.UserID]; !ok {
		return nil, user.ErrUserNotFound
	}
	o, ok := r.s.options[v.OptionID]
	if !ok || o.CompetitionID != v.CompetitionID {
		return nil, competition.ErrOptionNotFound
	}

	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	v.CreatedAt = r.s.now()
	copyVote := *v
	r.s.votes[v.ID] = &copyVote
	r.s.voteKeys[key] = v.ID

	o.VoteCount++
	o.UpdatedAt = v.CreatedAt
	copyOpt := *o
	return &copyOpt, nil
}

func (r *VoteRepo) Reconcile(ctx context.Context, competitionID uuid.UUID) ([]vote.Drift, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.competitions[competitionID]; !ok {
		return nil, competition.ErrCompetitionNotFound
	}

	counts := make(map[uuid.UUID]int64)
	for _, v := range r.s.votes {
		if v.CompetitionID == competitionID {
			counts[v.OptionID]++
		}
	}

	var drift []vote.Drift
	for _, o := range r.s.options {
		if o.CompetitionID != competitionID {
			continue
		}
		if actual := counts[o.ID]; actual != o.VoteCount {
			drift = append(drift, vote.Drift{OptionID: o.ID, Before: o.VoteCount, After: actual})
			o.VoteCount = actual
			o.UpdatedAt = r.s.now()
		}
	}
	return drift, nil
}
