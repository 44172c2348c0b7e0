package memory

import (
	"context"

	"github.com/google/uuid"

	"competition-voting/internal/domain/competition"
	"competition-voting/internal/domain/user"
)

type CompetitionRepo struct {
	s *Store
}

func (r *CompetitionRepo) Create(ctx context.Context, c *competition.Competition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[c.OwnerID]; !ok {
		return user.ErrUserNotFound
	}
	c.ID = uuid.New()
	c.CreatedAt = r.s.now()
	c.UpdatedAt = c.CreatedAt
	copyComp := *c
	r.s.competitions[c.ID] = &copyComp
	return nil
}

func (r *CompetitionRepo) GetByID(ctx context.Context, id uuid.UUID) (*competition.Competition, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.competitions[id]
	if !ok {
		return nil, competition.ErrCompetitionNotFound
	}
	copyComp := *c
	return &copyComp, nil
}

func (r *CompetitionRepo) List(ctx context.Context, f competition.ListFilter) ([]competition.Competition, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var cursor *competition.Competition
	if f.After != uuid.Nil {
		c, ok := r.s.competitions[f.After]
		if !ok {
			return []competition.Competition{}, nil
		}
		cursor = c
	}

	all := make([]competition.Competition, 0, len(r.s.competitions))
	for _, c := range r.s.competitions {
		if f.Active != nil && c.IsActive != *f.Active {
			continue
		}
		if cursor != nil && !newerThan(*cursor, *c) {
			continue
		}
		all = append(all, *c)
	}
	sortCompetitions(all)

	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, nil
}

func (r *CompetitionRepo) Update(ctx context.Context, c *competition.Competition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.competitions[c.ID]
	if !ok {
		return competition.ErrCompetitionNotFound
	}
	stored.Title = c.Title
	stored.Description = c.Description
	stored.StartTime = c.StartTime
	stored.EndTime = c.EndTime
	stored.IsActive = c.IsActive
	stored.UpdatedAt = r.s.now()
	*c = *stored
	return nil
}

func (r *CompetitionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.competitions[id]; !ok {
		return competition.ErrCompetitionNotFound
	}
	r.s.deleteCompetitionLocked(id)
	return nil
}

func (r *CompetitionRepo) ListOptions(ctx context.Context, competitionID uuid.UUID) ([]competition.Option, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	res := []competition.Option{}
	for _, o := range r.s.options {
		if o.CompetitionID == competitionID {
			res = append(res, *o)
		}
	}
	sortOptions(res)
	return res, nil
}

func (r *CompetitionRepo) GetOption(ctx context.Context, competitionID, optionID uuid.UUID) (*competition.Option, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.options[optionID]
	if !ok || o.CompetitionID != competitionID {
		return nil, competition.ErrOptionNotFound
	}
	copyOpt := *o
	return &copyOpt, nil
}

func (r *CompetitionRepo) CreateOption(ctx context.Context, o *competition.Option) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.competitions[o.CompetitionID]; !ok {
		return competition.ErrCompetitionNotFound
	}
	o.ID = uuid.New()
	o.VoteCount = 0
	o.CreatedAt = r.s.now()
	o.UpdatedAt = o.CreatedAt
	copyOpt := *o
	r.s.options[o.ID] = &copyOpt
	return nil
}

func (r *CompetitionRepo) UpdateOption(ctx context.Context, o *competition.Option) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.options[o.ID]
	if !ok || stored.CompetitionID != o.CompetitionID {
		return competition.ErrOptionNotFound
	}
	stored.Name = o.Name
	stored.Description = o.Description
	stored.ImageURL = o.ImageURL
	stored.UpdatedAt = r.s.now()
	*o = *stored
	return nil
}

func (r *CompetitionRepo) DeleteOption(ctx context.Context, competitionID, optionID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.options[optionID]
	if !ok || o.CompetitionID != competitionID {
		return competition.ErrOptionNotFound
	}
	r.s.deleteOptionLocked(optionID)
	return nil
}

func (r *CompetitionRepo) Voters(ctx context.Context, competitionID uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	res := make(map[uuid.UUID][]uuid.UUID)
	for _, v := range r.s.votes {
		if v.CompetitionID == competitionID {
			res[v.OptionID] = append(res[v.OptionID], v.UserID)
		}
	}
	return res, nil
}
