package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"competition-voting/internal/domain/user"
)

type UserRepo struct {
	s *Store
}

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, taken := r.s.emails[u.Email]; taken {
		return user.ErrEmailTaken
	}
	u.ID = uuid.New()
	u.CreatedAt = r.s.now()
	u.UpdatedAt = u.CreatedAt
	copyUser := *u
	r.s.users[u.ID] = &copyUser
	r.s.emails[u.Email] = u.ID
	return nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.emails[email]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	copyUser := *r.s.users[id]
	return &copyUser, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	copyUser := *u
	return &copyUser, nil
}

func (r *UserRepo) List(ctx context.Context) ([]user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	res := make([]user.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		res = append(res, *u)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

func (r *UserRepo) UpdateRole(ctx context.Context, id uuid.UUID, role user.Role) (*user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	u.Role = role
	u.UpdatedAt = r.s.now()
	copyUser := *u
	return &copyUser, nil
}

func (r *UserRepo) UpdateProfile(ctx context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.users[u.ID]
	if !ok {
		return user.ErrUserNotFound
	}
	if owner, taken := r.s.emails[u.Email]; taken && owner != u.ID {
		return user.ErrEmailTaken
	}
	delete(r.s.emails, stored.Email)
	stored.FullName = u.FullName
	stored.Email = u.Email
	stored.PasswordHash = u.PasswordHash
	stored.UpdatedAt = r.s.now()
	r.s.emails[stored.Email] = stored.ID
	*u = *stored
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return user.ErrUserNotFound
	}

	for compID, c := range r.s.competitions {
		if c.OwnerID == id {
			r.s.deleteCompetitionLocked(compID)
		}
	}
	for voteID, v := range r.s.votes {
		if v.UserID != id {
			continue
		}
		if o, ok := r.s.options[v.OptionID]; ok && o.VoteCount > 0 {
			o.VoteCount--
		}
		delete(r.s.votes, voteID)
		delete(r.s.voteKeys, voteKey{userID: v.UserID, competitionID: v.CompetitionID})
	}

	delete(r.s.emails, u.Email)
	delete(r.s.users, id)
	return nil
}

func (r *UserRepo) HasAdmin(ctx context.Context) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Role == user.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}
