package services

import (
	"context"
	"errors"
	"testing"

	"pocketbook/internal/core"
)

func TestGoalService_Lifecycle(t *testing.T) {
	f := newLedgerFixture(t)
	inv := &countingInvalidator{}
	goals := NewGoalService(f.store, inv)
	ctx := context.Background()

	g, err := goals.Create(ctx, f.user.ID, core.Goal{
		Name: " Laptop ", Amount: d("1500"), Date: budgetToday.AddDays(60),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if g.Name != "Laptop" || g.UserID != f.user.ID {
		t.Errorf("created = %+v", g)
	}

	progress := d("0.4")
	done := true
	updated, err := goals.Update(ctx, f.user.ID, g.ID, GoalPatch{Progress: &progress})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !updated.Progress.Equal(progress) || !updated.Amount.Equal(d("1500")) {
		t.Errorf("updated = %+v", updated)
	}

	if _, err := goals.Update(ctx, f.user.ID, g.ID, GoalPatch{Completed: &done}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	list, err := goals.List(ctx, f.user.ID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || !list[0].Completed {
		t.Errorf("List() = %+v", list)
	}

	if err := goals.Delete(ctx, f.user.ID, g.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := goals.Get(ctx, f.user.ID, g.ID); !errors.Is(err, core.ErrGoalNotFound) {
		t.Errorf("Get() after delete err = %v", err)
	}
	if len(inv.calls) != 4 {
		t.Errorf("invalidations = %d, want 4", len(inv.calls))
	}
}

func TestGoalService_Validation(t *testing.T) {
	f := newLedgerFixture(t)
	goals := NewGoalService(f.store, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		goal    core.Goal
		wantErr error
	}{
		{"empty name", core.Goal{Amount: d("10"), Date: budgetToday}, core.ErrEmptyName},
		{"zero amount", core.Goal{Name: "x", Date: budgetToday}, core.ErrInvalidAmount},
		{"no date", core.Goal{Name: "x", Amount: d("10")}, core.ErrInvalidDate},
		{"progress above one", core.Goal{Name: "x", Amount: d("10"), Date: budgetToday, Progress: d("1.5")}, core.ErrInvalidProgress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := goals.Create(ctx, f.user.ID, tt.goal); !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	bad := d("-0.1")
	if _, err := goals.Update(ctx, f.user.ID, 12345, GoalPatch{Progress: &bad}); !errors.Is(err, core.ErrGoalNotFound) {
		t.Errorf("Update() unknown goal err = %v", err)
	}
}
