package services

import (
	"context"
	"strings"

	"pocketbook/internal/core"

	"github.com/shopspring/decimal"
)

type GoalStore interface {
	CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
	GetGoal(ctx context.Context, userID, id int64) (core.Goal, error)
	ListGoals(ctx context.Context, userID int64) ([]core.Goal, error)
	UpdateGoal(ctx context.Context, g core.Goal) (core.Goal, error)
	DeleteGoal(ctx context.Context, userID, id int64) error
}

// GoalPatch is a partial goal update; nil fields keep their stored value.
type GoalPatch struct {
	Name        *string
	Description *string
	Amount      *decimal.Decimal
	Date        *core.Date
	Completed   *bool
	Progress    *decimal.Decimal
}

// GoalService manages savings goals. Any change to a goal changes the goal
// contribution, so the user's cached allotment is dropped.
type GoalService struct {
	store GoalStore
	cache Invalidator
}

func NewGoalService(store GoalStore, cache Invalidator) *GoalService {
	return &GoalService{store: store, cache: cache}
}

func (s *GoalService) Create(ctx context.Context, userID int64, g core.Goal) (core.Goal, error) {
	g.UserID = userID
	g.Name = strings.TrimSpace(g.Name)
	g.Amount = g.Amount.Round(core.MoneyScale)
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	created, err := s.store.CreateGoal(ctx, g)
	if err != nil {
		return core.Goal{}, err
	}
	s.invalidate(userID)
	return created, nil
}

func (s *GoalService) Get(ctx context.Context, userID, id int64) (core.Goal, error) {
	return s.store.GetGoal(ctx, userID, id)
}

func (s *GoalService) List(ctx context.Context, userID int64) ([]core.Goal, error) {
	return s.store.ListGoals(ctx, userID)
}

func (s *GoalService) Update(ctx context.Context, userID, id int64, p GoalPatch) (core.Goal, error) {
	g, err := s.store.GetGoal(ctx, userID, id)
	if err != nil {
		return core.Goal{}, err
	}
	if p.Name != nil {
		g.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		g.Description = *p.Description
	}
	if p.Amount != nil {
		g.Amount = p.Amount.Round(core.MoneyScale)
	}
	if p.Date != nil {
		g.Date = *p.Date
	}
	if p.Completed != nil {
		g.Completed = *p.Completed
	}
	if p.Progress != nil {
		g.Progress = *p.Progress
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}

	updated, err := s.store.UpdateGoal(ctx, g)
	if err != nil {
		return core.Goal{}, err
	}
	s.invalidate(userID)
	return updated, nil
}

func (s *GoalService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.store.DeleteGoal(ctx, userID, id); err != nil {
		return err
	}
	s.invalidate(userID)
	return nil
}

func (s *GoalService) invalidate(userID int64) {
	if s.cache != nil {
		s.cache.Invalidate(userID)
	}
}
