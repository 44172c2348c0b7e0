package memory

import "github.com/google/uuid"

// The functions in this file inspect or perturb the store from tests in
// other packages. Nothing in the server calls them.

// VoteRows returns how many vote rows reference optionID.
func (s *Store) VoteRows(optionID uuid.UUID) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, v := range s.votes {
		if v.OptionID == optionID {
			n++
		}
	}
	return n
}

// VoteRowsByUser returns how many vote rows exist for (userID, competitionID).
func (s *Store) VoteRowsByUser(userID, competitionID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, v := range s.votes {
		if v.UserID == userID && v.CompetitionID == competitionID {
			n++
		}
	}
	return n
}

// CountRows reports the number of competitions, options and votes stored.
func (s *Store) CountRows() (competitions, options, votes int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.competitions), len(s.options), len(s.votes)
}

// SetVoteCountForTest overwrites a counter without touching the ledger,
// leaving the drift that Reconcile repairs. Test use only.
func (s *Store) SetVoteCountForTest(optionID uuid.UUID, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.options[optionID]; ok {
		o.VoteCount = n
	}
}
