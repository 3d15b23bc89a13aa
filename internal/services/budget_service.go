package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"pocketbook/internal/cache"
	"pocketbook/internal/core"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// BudgetReader is the read side of the ledger store the budget engine needs.
type BudgetReader interface {
	GetUser(ctx context.Context, id int64) (core.User, error)
	LatestPaycheck(ctx context.Context, userID int64) (core.Transaction, bool, error)
	RecurringExpenses(ctx context.Context, userID int64) ([]core.Transaction, error)
	OpenGoals(ctx context.Context, userID int64) ([]core.Goal, error)
	DiscretionarySpend(ctx context.Context, userID int64, start, end core.Date) (decimal.Decimal, error)
}

// Allotment is the spendable amount for the next half pay-period together with
// the figures it was derived from.
type Allotment struct {
	UserID         int64
	Date           core.Date
	HasPaycheck    bool
	Paycheck       decimal.Decimal
	Fixed          decimal.Decimal
	SavingsPercent int
	Savings        decimal.Decimal
	Goals          decimal.Decimal
	Remaining      decimal.Decimal
	Amount         decimal.Decimal
}

// SpendStatus compares the last seven days of discretionary spend with the
// current allotment.
type SpendStatus struct {
	WindowStart      core.Date
	WindowEnd        core.Date
	WeeklyBudget     decimal.Decimal
	WeeklySpend      decimal.Decimal
	SafeToSpend      decimal.Decimal
	RemainingPercent decimal.Decimal
	WarningThreshold int
	Warning          bool
	HasPaycheck      bool
}

// SpendWindowDays is the length of the trailing spend window, today included.
const SpendWindowDays = 7

var hundred = decimal.NewFromInt(100)

// BudgetService computes allotments and spend figures. Allotments are cached
// per user for the current day and dropped whenever the user's ledger changes.
type BudgetService struct {
	reader BudgetReader
	cache  cache.Cache[Allotment]
	now    func() time.Time

	// gens counts invalidations per user. An allotment is only cached when
	// no invalidation happened while its inputs were read.
	mu   sync.Mutex
	gens map[int64]uint64
}

// NewBudgetService creates a budget service. c may be nil to disable caching.
func NewBudgetService(reader BudgetReader, c cache.Cache[Allotment]) *BudgetService {
	return &BudgetService{reader: reader, cache: c, now: time.Now, gens: make(map[int64]uint64)}
}

func (s *BudgetService) today() core.Date {
	return core.DateOf(s.now())
}

// Allotment runs the allotment algorithm for the user.
func (s *BudgetService) Allotment(ctx context.Context, userID int64) (Allotment, error) {
	today := s.today()
	key := strconv.FormatInt(userID, 10)
	if s.cache != nil {
		if a, ok := s.cache.Get(key); ok && a.Date.Equal(today.Time) {
			return a, nil
		}
	}

	gen := s.generation(userID)

	var (
		user      core.User
		paycheck  core.Transaction
		hasPay    bool
		recurring []core.Transaction
		goals     []core.Goal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		user, err = s.reader.GetUser(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		paycheck, hasPay, err = s.reader.LatestPaycheck(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		recurring, err = s.reader.RecurringExpenses(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		goals, err = s.reader.OpenGoals(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Allotment{}, fmt.Errorf("load allotment inputs: %w", err)
	}

	a, err := computeAllotment(user, paycheck, hasPay, recurring, goals, today)
	if err != nil {
		return Allotment{}, err
	}

	slog.DebugContext(ctx, "Allotment computed",
		"user_id", userID,
		"has_paycheck", a.HasPaycheck,
		"fixed", a.Fixed.String(),
		"goals", a.Goals.String(),
		"allotment", a.Amount.String())

	s.store(key, userID, gen, a)
	return a, nil
}

func (s *BudgetService) generation(userID int64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[userID]
}

// store caches a unless the user was invalidated since gen was taken.
func (s *BudgetService) store(key string, userID int64, gen uint64, a Allotment) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[userID] != gen {
		slog.Debug("Discarding allotment computed before invalidation", "user_id", userID)
		return
	}
	s.cache.Set(key, a)
}

// computeAllotment is the pure allotment algorithm:
// (paycheck - fixed - savings - max(0, goals)) / 2, or zero without a paycheck.
func computeAllotment(user core.User, paycheck core.Transaction, hasPaycheck bool, recurring []core.Transaction, goals []core.Goal, today core.Date) (Allotment, error) {
	a := Allotment{
		UserID:         user.ID,
		Date:           today,
		SavingsPercent: user.SavingsPercent,
	}
	if !hasPaycheck {
		return a, nil
	}

	fixed, err := ProrateAll(recurring)
	if err != nil {
		return Allotment{}, err
	}

	a.HasPaycheck = true
	a.Paycheck = paycheck.Amount
	a.Fixed = fixed
	a.Savings = paycheck.Amount.Mul(decimal.NewFromInt(int64(user.SavingsPercent))).Div(hundred)
	a.Goals = decimal.Max(decimal.Zero, TotalGoalContribution(goals, today))
	a.Remaining = a.Paycheck.Sub(a.Fixed).Sub(a.Savings).Sub(a.Goals)
	a.Amount = a.Remaining.Div(decimal.NewFromInt(2))
	return a, nil
}

// SpendOverTime sums one-off expenses dated within [start, end]. An inverted
// range is empty.
func (s *BudgetService) SpendOverTime(ctx context.Context, userID int64, start, end core.Date) (decimal.Decimal, error) {
	if end.Before(start.Time) {
		return decimal.Zero, nil
	}
	total, err := s.reader.DiscretionarySpend(ctx, userID, start, end)
	if err != nil {
		return decimal.Zero, fmt.Errorf("spend over time: %w", err)
	}
	return total, nil
}

// SpendStatus reports the trailing week's spend against the allotment.
func (s *BudgetService) SpendStatus(ctx context.Context, userID int64) (SpendStatus, error) {
	a, err := s.Allotment(ctx, userID)
	if err != nil {
		return SpendStatus{}, err
	}
	user, err := s.reader.GetUser(ctx, userID)
	if err != nil {
		return SpendStatus{}, err
	}

	end := a.Date
	start := end.AddDays(-(SpendWindowDays - 1))
	spend, err := s.SpendOverTime(ctx, userID, start, end)
	if err != nil {
		return SpendStatus{}, err
	}
	st := spendStatus(a.Amount, spend, user.SpendWarning, start, end)
	st.HasPaycheck = a.HasPaycheck
	return st, nil
}

func spendStatus(budget, spend decimal.Decimal, threshold int, start, end core.Date) SpendStatus {
	st := SpendStatus{
		WindowStart:      start,
		WindowEnd:        end,
		WeeklyBudget:     budget,
		WeeklySpend:      spend,
		SafeToSpend:      decimal.Max(decimal.Zero, budget.Sub(spend)),
		WarningThreshold: threshold,
	}
	if budget.IsPositive() {
		st.RemainingPercent = hundred.Sub(spend.Div(budget).Mul(hundred))
	}
	st.Warning = decimal.NewFromInt(int64(threshold)).GreaterThanOrEqual(st.RemainingPercent)
	return st
}

// Invalidate drops the cached allotment for the user and discards any
// allotment still being computed from pre-invalidation reads.
func (s *BudgetService) Invalidate(userID int64) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[userID]++
	s.cache.Delete(strconv.FormatInt(userID, 10))
}
