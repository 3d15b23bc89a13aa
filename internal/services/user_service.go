package services

import (
	"context"
	"log/slog"
	"strings"

	"pocketbook/internal/core"
)

// Invalidator drops derived figures cached for a user.
type Invalidator interface {
	Invalidate(userID int64)
}

type UserStore interface {
	CreateUser(ctx context.Context, email, name string) (core.User, error)
	GetUser(ctx context.Context, id int64) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	UpdateUserSettings(ctx context.Context, id int64, spendWarning, savingsPercent int) (core.User, error)
}

// SettingsPatch carries a partial settings update. Nil fields are unchanged.
type SettingsPatch struct {
	SpendWarning   *int
	SavingsPercent *int
}

type UserService struct {
	store UserStore
	cache Invalidator
}

func NewUserService(store UserStore, cache Invalidator) *UserService {
	return &UserService{store: store, cache: cache}
}

// Register creates a user, or returns the existing one with the same email.
func (s *UserService) Register(ctx context.Context, email, name string) (core.User, error) {
	if strings.TrimSpace(email) == "" {
		return core.User{}, core.ErrEmptyName
	}
	if u, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return u, nil
	}
	return s.store.CreateUser(ctx, email, strings.TrimSpace(name))
}

func (s *UserService) Get(ctx context.Context, id int64) (core.User, error) {
	return s.store.GetUser(ctx, id)
}

// UpdateSettings applies p to the user's spend settings. A savings change
// alters the allotment, so the cached one is dropped.
func (s *UserService) UpdateSettings(ctx context.Context, id int64, p SettingsPatch) (core.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return core.User{}, err
	}

	warning, savings := u.SpendWarning, u.SavingsPercent
	if p.SpendWarning != nil {
		warning = *p.SpendWarning
	}
	if p.SavingsPercent != nil {
		savings = *p.SavingsPercent
	}
	if err := core.ValidatePercent(warning); err != nil {
		return core.User{}, err
	}
	if err := core.ValidatePercent(savings); err != nil {
		return core.User{}, err
	}

	updated, err := s.store.UpdateUserSettings(ctx, id, warning, savings)
	if err != nil {
		return core.User{}, err
	}
	if savings != u.SavingsPercent && s.cache != nil {
		s.cache.Invalidate(id)
	}

	slog.InfoContext(ctx, "User settings updated",
		"user_id", id,
		"spend_warning", warning,
		"savings_percent", savings)
	return updated, nil
}
