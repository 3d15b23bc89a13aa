package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"pocketbook/internal/core"
)

// CreateUser registers a user with default spend settings.
func (s *Store) CreateUser(ctx context.Context, email, name string) (core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return core.User{}, core.ErrEmptyName
	}
	row := s.db.QueryRowContext(ctx, s.q(
		"INSERT INTO users (email, name, spend_warning, savings_percent) VALUES (?, ?, ?, ?) RETURNING "+userColumns),
		email, name, core.DefaultSpendWarning, core.DefaultSavingsPercent)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "user_id", u.ID)
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (core.User, error) {
	row := s.db.QueryRowContext(ctx, s.q("SELECT "+userColumns+" FROM users WHERE id = ?"), id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	row := s.db.QueryRowContext(ctx, s.q("SELECT "+userColumns+" FROM users WHERE email = ?"),
		strings.ToLower(strings.TrimSpace(email)))
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// UpdateUserSettings stores the spend warning threshold and savings percentage.
func (s *Store) UpdateUserSettings(ctx context.Context, id int64, spendWarning, savingsPercent int) (core.User, error) {
	row := s.db.QueryRowContext(ctx, s.q(
		"UPDATE users SET spend_warning = ?, savings_percent = ? WHERE id = ? RETURNING "+userColumns),
		spendWarning, savingsPercent, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("update user settings: %w", err)
	}
	return u, nil
}
