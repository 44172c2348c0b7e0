package competition

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"competition-voting/internal/domain/authz"
)

var (
	ErrCompetitionNotFound = errors.New("competition not found")
	ErrOptionNotFound      = errors.New("option not found")
	ErrTitleRequired       = errors.New("title required")
	ErrDatesRequired       = errors.New("start time and end time required")
	ErrInvalidDateRange    = errors.New("end time must be after start time")
	ErrOptionNameRequired  = errors.New("option name required")
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Service owns creation, update, activation and deletion of competitions
// and their options. Every mutation checks existence first, then the
// actor's capability, then the input.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, actor authz.Actor, in CreateInput) (*Competition, error) {
	if actor.ID == uuid.Nil {
		return nil, authz.ErrForbidden
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if in.StartTime == nil || in.EndTime == nil || in.StartTime.IsZero() || in.EndTime.IsZero() {
		return nil, ErrDatesRequired
	}
	if !validRange(*in.StartTime, *in.EndTime) {
		return nil, ErrInvalidDateRange
	}

	c := &Competition{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		StartTime:   in.StartTime.UTC(),
		EndTime:     in.EndTime.UTC(),
		IsActive:    true,
		OwnerID:     actor.ID,
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Competition, []Option, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	opts, err := s.repo.ListOptions(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return c, opts, nil
}

func (s *Service) List(ctx context.Context, f ListFilter) (Page, error) {
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}

	items, err := s.repo.List(ctx, f)
	if err != nil {
		return Page{}, err
	}
	page := Page{Items: items}
	if page.Items == nil {
		page.Items = []Competition{}
	}
	if len(items) == f.Limit {
		last := items[len(items)-1].ID
		page.NextAfter = &last
	}
	return page, nil
}

// Details returns the per-option voter breakdown. Only the owner or an
// admin may read it.
func (s *Service) Details(ctx context.Context, actor authz.Actor, id uuid.UUID) (*Details, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.Resource{OwnerID: c.OwnerID}, authz.OwnerOrAdmin); err != nil {
		return nil, err
	}

	opts, err := s.repo.ListOptions(ctx, id)
	if err != nil {
		return nil, err
	}
	voters, err := s.repo.Voters(ctx, id)
	if err != nil {
		return nil, err
	}

	d := &Details{Competition: *c, Options: make([]OptionDetails, 0, len(opts))}
	for _, o := range opts {
		v := voters[o.ID]
		if v == nil {
			v = []uuid.UUID{}
		}
		d.Options = append(d.Options, OptionDetails{Option: o, Voters: v})
	}
	return d, nil
}

func (s *Service) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, in UpdateInput) (*Competition, error) {
	c, err := s.owned(ctx, actor, id, authz.OwnerOnly)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}
		c.Title = title
	}
	if in.Description != nil {
		c.Description = strings.TrimSpace(*in.Description)
	}
	if in.StartTime != nil {
		if in.StartTime.IsZero() {
			return nil, ErrDatesRequired
		}
		c.StartTime = in.StartTime.UTC()
	}
	if in.EndTime != nil {
		if in.EndTime.IsZero() {
			return nil, ErrDatesRequired
		}
		c.EndTime = in.EndTime.UTC()
	}
	if !validRange(c.StartTime, c.EndTime) {
		return nil, ErrInvalidDateRange
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) SetActive(ctx context.Context, actor authz.Actor, id uuid.UUID, active bool) (*Competition, error) {
	return s.Update(ctx, actor, id, UpdateInput{IsActive: &active})
}

func (s *Service) Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	if _, err := s.owned(ctx, actor, id, authz.OwnerOrAdmin); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListOptions(ctx context.Context, competitionID uuid.UUID) ([]Option, error) {
	if _, err := s.repo.GetByID(ctx, competitionID); err != nil {
		return nil, err
	}
	return s.repo.ListOptions(ctx, competitionID)
}

func (s *Service) AddOption(ctx context.Context, actor authz.Actor, competitionID uuid.UUID, in OptionInput) (*Option, error) {
	if _, err := s.owned(ctx, actor, competitionID, authz.OwnerOnly); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrOptionNameRequired
	}

	o := &Option{
		CompetitionID: competitionID,
		Name:          name,
		Description:   strings.TrimSpace(in.Description),
		ImageURL:      strings.TrimSpace(in.ImageURL),
	}
	if err := s.repo.CreateOption(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) UpdateOption(ctx context.Context, actor authz.Actor, competitionID, optionID uuid.UUID, in OptionUpdate) (*Option, error) {
	if _, err := s.owned(ctx, actor, competitionID, authz.OwnerOnly); err != nil {
		return nil, err
	}
	o, err := s.repo.GetOption(ctx, competitionID, optionID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrOptionNameRequired
		}
		o.Name = name
	}
	if in.Description != nil {
		o.Description = strings.TrimSpace(*in.Description)
	}
	if in.ImageURL != nil {
		o.ImageURL = strings.TrimSpace(*in.ImageURL)
	}

	if err := s.repo.UpdateOption(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) DeleteOption(ctx context.Context, actor authz.Actor, competitionID, optionID uuid.UUID) error {
	if _, err := s.owned(ctx, actor, competitionID, authz.OwnerOnly); err != nil {
		return err
	}
	if _, err := s.repo.GetOption(ctx, competitionID, optionID); err != nil {
		return err
	}
	return s.repo.DeleteOption(ctx, competitionID, optionID)
}

func (s *Service) owned(ctx context.Context, actor authz.Actor, id uuid.UUID, capability authz.Capability) (*Competition, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.Resource{OwnerID: c.OwnerID}, capability); err != nil {
		return nil, err
	}
	return c, nil
}
