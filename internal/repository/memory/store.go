// Package memory is a process-local storage backend. Every operation runs
// under one store-wide lock, which makes each call an atomic unit of work
// with the same outcomes the Postgres constraints produce.
package memory

import (
	"bytes"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"competition-voting/internal/domain/competition"
	"competition-voting/internal/domain/user"
	"competition-voting/internal/domain/vote"
)

type voteKey struct {
	userID        uuid.UUID
	competitionID uuid.UUID
}

type Store struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]*user.User
	emails       map[string]uuid.UUID
	competitions map[uuid.UUID]*competition.Competition
	options      map[uuid.UUID]*competition.Option
	votes        map[uuid.UUID]*vote.Vote
	voteKeys     map[voteKey]uuid.UUID
	now          func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:        make(map[uuid.UUID]*user.User),
		emails:       make(map[string]uuid.UUID),
		competitions: make(map[uuid.UUID]*competition.Competition),
		options:      make(map[uuid.UUID]*competition.Option),
		votes:        make(map[uuid.UUID]*vote.Vote),
		voteKeys:     make(map[voteKey]uuid.UUID),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Users() *UserRepo {
	return &UserRepo{s: s}
}

func (s *Store) Competitions() *CompetitionRepo {
	return &CompetitionRepo{s: s}
}

func (s *Store) Votes() *VoteRepo {
	return &VoteRepo{s: s}
}

// deleteCompetitionLocked cascades to options and votes. Caller holds mu.
func (s *Store) deleteCompetitionLocked(id uuid.UUID) {
	for optID, o := range s.options {
		if o.CompetitionID == id {
			delete(s.options, optID)
		}
	}
	for voteID, v := range s.votes {
		if v.CompetitionID == id {
			delete(s.votes, voteID)
			delete(s.voteKeys, voteKey{userID: v.UserID, competitionID: v.CompetitionID})
		}
	}
	delete(s.competitions, id)
}

// deleteOptionLocked cascades to votes. Caller holds mu.
func (s *Store) deleteOptionLocked(id uuid.UUID) {
	for voteID, v := range s.votes {
		if v.OptionID == id {
			delete(s.votes, voteID)
			delete(s.voteKeys, voteKey{userID: v.UserID, competitionID: v.CompetitionID})
		}
	}
	delete(s.options, id)
}

func sortCompetitions(list []competition.Competition) {
	sort.Slice(list, func(i, j int) bool {
		return newerThan(list[i], list[j])
	})
}

// newerThan orders by created_at DESC, id DESC.
func newerThan(a, b competition.Competition) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) > 0
}

func sortOptions(list []competition.Option) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return bytes.Compare(list[i].ID[:], list[j].ID[:]) < 0
	})
}
