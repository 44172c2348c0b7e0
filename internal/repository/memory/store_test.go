package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"competition-voting/internal/domain/competition"
	"competition-voting/internal/domain/user"
	"competition-voting/internal/domain/vote"
)

func seed(t *testing.T, s *Store) (owner, voter uuid.UUID, c *competition.Competition, opt *competition.Option) {
	t.Helper()
	ctx := context.Background()
	o := &user.User{FullName: "Owner", Email: "owner@test.com", Role: user.RoleRegular}
	v := &user.User{FullName: "Voter", Email: "voter@test.com", Role: user.RoleRegular}
	for _, u := range []*user.User{o, v} {
		if err := s.Users().Create(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	c = &competition.Competition{
		Title:     "C",
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now().Add(time.Hour),
		IsActive:  true,
		OwnerID:   o.ID,
	}
	if err := s.Competitions().Create(ctx, c); err != nil {
		t.Fatalf("create competition: %v", err)
	}
	opt = &competition.Option{CompetitionID: c.ID, Name: "A"}
	if err := s.Competitions().CreateOption(ctx, opt); err != nil {
		t.Fatalf("create option: %v", err)
	}
	return o.ID, v.ID, c, opt
}

func allow(vote.Snapshot) error { return nil }

func TestCastIsAtomicWithCheck(t *testing.T) {
	s := NewStore()
	_, voter, c, opt := seed(t, s)
	ctx := context.Background()

	rejected := errors.New("rejected")
	_, err := s.Votes().Cast(ctx, &vote.Vote{UserID: voter, CompetitionID: c.ID, OptionID: opt.ID},
		func(vote.Snapshot) error { return rejected })
	if !errors.Is(err, rejected) {
		t.Fatalf("expected check error, got %v", err)
	}
	if s.VoteRows(opt.ID) != 0 {
		t.Fatal("check failure must not write")
	}

	got, err := s.Votes().Cast(ctx, &vote.Vote{UserID: voter, CompetitionID: c.ID, OptionID: opt.ID}, allow)
	if err != nil {
		t.Fatalf("cast: %v", err)
	}
	if got.VoteCount != 1 {
		t.Fatalf("expected count 1, got %d", got.VoteCount)
	}

	// The uniqueness constraint holds even when the check lets it through.
	if _, err := s.Votes().Cast(ctx, &vote.Vote{UserID: voter, CompetitionID: c.ID, OptionID: opt.ID}, allow); !errors.Is(err, vote.ErrAlreadyVoted) {
		t.Fatalf("expected ErrAlreadyVoted, got %v", err)
	}

	snap, err := s.Votes().Snapshot(ctx, voter, c.ID, opt.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snap.AlreadyVoted || snap.Competition == nil || snap.Option == nil {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestCastRejectsForeignOption(t *testing.T) {
	s := NewStore()
	owner, voter, c, _ := seed(t, s)
	ctx := context.Background()

	other := &competition.Competition{Title: "D", StartTime: c.StartTime, EndTime: c.EndTime, IsActive: true, OwnerID: owner}
	if err := s.Competitions().Create(ctx, other); err != nil {
		t.Fatalf("create: %v", err)
	}
	foreign := &competition.Option{CompetitionID: other.ID, Name: "F"}
	if err := s.Competitions().CreateOption(ctx, foreign); err != nil {
		t.Fatalf("create option: %v", err)
	}

	if _, err := s.Votes().Cast(ctx, &vote.Vote{UserID: voter, CompetitionID: c.ID, OptionID: foreign.ID}, allow); !errors.Is(err, competition.ErrOptionNotFound) {
		t.Fatalf("expected ErrOptionNotFound, got %v", err)
	}
}

func TestDeleteUserDecrementsCounters(t *testing.T) {
	s := NewStore()
	owner, voter, c, opt := seed(t, s)
	ctx := context.Background()

	if _, err := s.Votes().Cast(ctx, &vote.Vote{UserID: voter, CompetitionID: c.ID, OptionID: opt.ID}, allow); err != nil {
		t.Fatalf("cast: %v", err)
	}
	if err := s.Users().Delete(ctx, voter); err != nil {
		t.Fatalf("delete voter: %v", err)
	}
	got, err := s.Competitions().GetOption(ctx, c.ID, opt.ID)
	if err != nil {
		t.Fatalf("get option: %v", err)
	}
	if got.VoteCount != 0 || s.VoteRows(opt.ID) != 0 {
		t.Fatalf("expected counter and ledger at 0, got %d/%d", got.VoteCount, s.VoteRows(opt.ID))
	}

	if err := s.Users().Delete(ctx, owner); err != nil {
		t.Fatalf("delete owner: %v", err)
	}
	if comps, opts, votes := s.CountRows(); comps+opts+votes != 0 {
		t.Fatalf("expected owner's competitions removed, got %d/%d/%d", comps, opts, votes)
	}
	if err := s.Users().Delete(ctx, owner); !errors.Is(err, user.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := s.Users().GetByEmail(ctx, "owner@test.com"); !errors.Is(err, user.ErrUserNotFound) {
		t.Fatalf("expected email released, got %v", err)
	}
}

func TestDeleteOptionFreesVoteSlot(t *testing.T) {
	s := NewStore()
	_, voter, c, opt := seed(t, s)
	ctx := context.Background()

	if _, err := s.Votes().Cast(ctx, &vote.Vote{UserID: voter, CompetitionID: c.ID, OptionID: opt.ID}, allow); err != nil {
		t.Fatalf("cast: %v", err)
	}
	if err := s.Competitions().DeleteOption(ctx, c.ID, opt.ID); err != nil {
		t.Fatalf("delete option: %v", err)
	}
	if rows := s.VoteRowsByUser(voter, c.ID); rows != 0 {
		t.Fatalf("expected votes cascaded, got %d", rows)
	}
	snap, err := s.Votes().Snapshot(ctx, voter, c.ID, opt.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.AlreadyVoted || snap.Option != nil {
		t.Fatalf("unexpected snapshot after delete: %+v", snap)
	}
}

func TestReturnedValuesAreCopies(t *testing.T) {
	s := NewStore()
	_, _, c, opt := seed(t, s)
	ctx := context.Background()

	got, err := s.Competitions().GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Title = "mutated"
	again, _ := s.Competitions().GetByID(ctx, c.ID)
	if again.Title != "C" {
		t.Fatal("caller mutation leaked into the store")
	}

	o, _ := s.Competitions().GetOption(ctx, c.ID, opt.ID)
	o.VoteCount = 42
	if err := s.Competitions().UpdateOption(ctx, o); err != nil {
		t.Fatalf("update option: %v", err)
	}
	if o.VoteCount != 0 {
		t.Fatalf("UpdateOption must not write the counter, got %d", o.VoteCount)
	}
}

func TestCreateCompetitionRequiresOwner(t *testing.T) {
	s := NewStore()
	c := &competition.Competition{Title: "x", OwnerID: uuid.New()}
	if err := s.Competitions().Create(context.Background(), c); !errors.Is(err, user.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := s.Competitions().CreateOption(context.Background(), &competition.Option{CompetitionID: uuid.New(), Name: "x"}); !errors.Is(err, competition.ErrCompetitionNotFound) {
		t.Fatalf("expected ErrCompetitionNotFound, got %v", err)
	}
}

func TestUpdateProfileMovesEmailIndex(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	owner, voter, _, _ := seed(t, s)

	u, err := s.Users().GetByID(ctx, voter)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	u.Email = "owner@test.com"
	if err := s.Users().UpdateProfile(ctx, u); !errors.Is(err, user.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	u.Email = "renamed@test.com"
	u.FullName = "Renamed"
	if err := s.Users().UpdateProfile(ctx, u); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.Users().GetByEmail(ctx, "voter@test.com"); !errors.Is(err, user.ErrUserNotFound) {
		t.Fatalf("old address must be released, got %v", err)
	}
	got, err := s.Users().GetByEmail(ctx, "renamed@test.com")
	if err != nil || got.ID != voter || got.FullName != "Renamed" {
		t.Fatalf("unexpected lookup: %+v %v", got, err)
	}
	if o, _ := s.Users().GetByID(ctx, owner); o.Email != "owner@test.com" {
		t.Fatalf("other accounts must be untouched, got %s", o.Email)
	}
}
