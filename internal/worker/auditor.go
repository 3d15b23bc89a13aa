package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"pocketbook/internal/core"
	applog "pocketbook/internal/log"
)

// BalanceVerifier recomputes cached balances from transactions.
type BalanceVerifier interface {
	VerifyBalances(ctx context.Context, fix bool) ([]core.BalanceCheck, error)
}

// AuditorConfig holds configuration for the balance auditor
type AuditorConfig struct {
	// Interval between audits. The first audit runs at Start.
	Interval time.Duration
	// Fix rewrites drifted balances instead of only reporting them.
	Fix bool
}

// AuditStats summarizes the audits run so far.
type AuditStats struct {
	Runs        int64
	Failures    int64
	LastDrifted int
	LastRun     time.Time
}

// BalanceAuditor periodically checks every account balance against its
// transactions.
type BalanceAuditor struct {
	verifier BalanceVerifier
	config   AuditorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	stats   AuditStats
}

func NewBalanceAuditor(verifier BalanceVerifier, config AuditorConfig) *BalanceAuditor {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	return &BalanceAuditor{verifier: verifier, config: config}
}

// Start begins the audit loop. Returns an error if already running.
func (a *BalanceAuditor) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return errors.New("balance auditor is already running")
	}
	a.running = true
	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	a.mu.Unlock()

	go a.runLoop(ctx)

	slog.InfoContext(ctx, "Balance auditor started",
		applog.FieldComponent, applog.ComponentWorker,
		"interval", a.config.Interval.String(),
		"fix", a.config.Fix)
	return nil
}

// Stop signals the loop and waits for the audit in flight to finish.
func (a *BalanceAuditor) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	stopCh, doneCh := a.stopCh, a.doneCh
	a.running = false
	a.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Balance auditor stop timed out", applog.FieldComponent, applog.ComponentWorker)
		return ctx.Err()
	}
}

func (a *BalanceAuditor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Run blocks running audits until ctx is cancelled.
func (a *BalanceAuditor) Run(ctx context.Context) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.Stop(stopCtx)
}

func (a *BalanceAuditor) runLoop(ctx context.Context) {
	defer close(a.doneCh)

	ticker := time.NewTicker(a.config.Interval)
	defer ticker.Stop()

	a.AuditOnce(ctx)
	for {
		select {
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.AuditOnce(ctx)
		}
	}
}

// AuditOnce runs a single audit and records its outcome.
func (a *BalanceAuditor) AuditOnce(ctx context.Context) {
	checks, err := a.verifier.VerifyBalances(ctx, a.config.Fix)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.Runs++
	a.stats.LastRun = time.Now()
	if err != nil {
		a.stats.Failures++
		slog.ErrorContext(ctx, "Balance audit failed",
			applog.FieldComponent, applog.ComponentWorker,
			applog.FieldOperation, applog.OpAudit,
			applog.FieldError, err.Error())
		return
	}

	drifted := 0
	for _, c := range checks {
		if !c.Consistent() {
			drifted++
		}
	}
	a.stats.LastDrifted = drifted
	slog.InfoContext(ctx, "Balance audit finished",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldOperation, applog.OpAudit,
		"accounts", len(checks),
		"drifted", drifted,
		"fixed", a.config.Fix && drifted > 0)
}

func (a *BalanceAuditor) Stats() AuditStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
