package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pocketbook/internal/core"
)

func (s *Store) CreateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	row := s.db.QueryRowContext(ctx, s.q(
		"INSERT INTO goals (user_id, name, description, amount, date, completed, progress) VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING "+goalColumns),
		g.UserID, g.Name, g.Description, amountArg(g.Amount), dateArg(g.Date), g.Completed, g.Progress.String())
	created, err := scanGoal(row)
	if err != nil {
		return core.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	return created, nil
}

func (s *Store) GetGoal(ctx context.Context, userID, id int64) (core.Goal, error) {
	row := s.db.QueryRowContext(ctx, s.q("SELECT "+goalColumns+" FROM goals WHERE id = ? AND user_id = ?"), id, userID)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, fmt.Errorf("%w: %d", core.ErrGoalNotFound, id)
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("get goal %d: %w", id, err)
	}
	return g, nil
}

func (s *Store) ListGoals(ctx context.Context, userID int64) ([]core.Goal, error) {
	return s.listGoals(ctx, "SELECT "+goalColumns+" FROM goals WHERE user_id = ? ORDER BY date, id", userID)
}

// OpenGoals lists the user's goals that are not completed.
func (s *Store) OpenGoals(ctx context.Context, userID int64) ([]core.Goal, error) {
	return s.listGoals(ctx, "SELECT "+goalColumns+" FROM goals WHERE user_id = ? AND completed = ? ORDER BY date, id", userID, false)
}

func (s *Store) listGoals(ctx context.Context, query string, args ...any) ([]core.Goal, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}
	return out, nil
}

// UpdateGoal overwrites every mutable field of the goal matched by g.ID and g.UserID.
func (s *Store) UpdateGoal(ctx context.Context, g core.Goal) (core.Goal, error) {
	row := s.db.QueryRowContext(ctx, s.q(
		"UPDATE goals SET name = ?, description = ?, amount = ?, date = ?, completed = ?, progress = ? WHERE id = ? AND user_id = ? RETURNING "+goalColumns),
		g.Name, g.Description, amountArg(g.Amount), dateArg(g.Date), g.Completed, g.Progress.String(), g.ID, g.UserID)
	updated, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Goal{}, fmt.Errorf("%w: %d", core.ErrGoalNotFound, g.ID)
	}
	if err != nil {
		return core.Goal{}, fmt.Errorf("update goal %d: %w", g.ID, err)
	}
	return updated, nil
}

func (s *Store) DeleteGoal(ctx context.Context, userID, id int64) error {
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM goals WHERE id = ? AND user_id = ?"), id, userID)
	if err != nil {
		return fmt.Errorf("delete goal %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", core.ErrGoalNotFound, id)
	}
	return nil
}
