package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"pocketbook/internal/backend"
	"pocketbook/internal/cli"
	"pocketbook/internal/config"
	"pocketbook/internal/core"
	apphttp "pocketbook/internal/http"
	applog "pocketbook/internal/log"
	"pocketbook/internal/storage"
)

var commands = []subcommands.Command{
	&migrateCmd{},
	&userAddCmd{},
	&balancesCmd{},
	&allotmentCmd{},
	&spendCmd{},
}

// session is an opened store with the services wired over it.
type session struct {
	cfg   *config.Config
	svc   *backend.Services
	close func() error
}

func openSession(ctx context.Context) (*session, error) {
	cfg, logger := cli.Bootstrap()
	logger.Debug("Opening ledger session",
		applog.FieldComponent, applog.ComponentCLI,
		"backend", cfg.DataBackend)
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, closeStore, err := backend.NewFactory(nil).OpenStore(ctx, backendCfg)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, svc: backend.NewServices(store, nil, backendCfg), close: closeStore}, nil
}

func fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	return subcommands.ExitFailure
}

type migrateCmd struct{}

func (*migrateCmd) Name() string { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply pending database migrations" }
func (*migrateCmd) Usage() string {
	return `ledgerctl migrate

  Applies every pending schema migration to the configured database.
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, _ := cli.Bootstrap()
	if err := storage.RunMigrations(storage.Dialect(cfg.DataBackend), cfg.DatabaseDSN()); err != nil {
		return fail("migrate: %v", err)
	}
	fmt.Println("migrations applied")
	return subcommands.ExitSuccess
}

type userAddCmd struct {
	email string
	name  string
	ttl   time.Duration
}

func (*userAddCmd) Name() string { return "user-add" }
func (*userAddCmd) Synopsis() string { return "register a user and print an API token" }
func (*userAddCmd) Usage() string {
	return `ledgerctl user-add -email <email> [-name <name>] [-ttl <duration>]

  Registers a user and prints a bearer token for the HTTP API. JWT_SECRET
  must be set.
`
}

func (c *userAddCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Email address of the new user.")
	f.StringVar(&c.name, "name", "", "Display name of the new user.")
	f.DurationVar(&c.ttl, "ttl", 30*24*time.Hour, "Lifetime of the issued token.")
}

func (c *userAddCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.email == "" {
		return fail("user-add: -email is required")
	}
	s, err := openSession(ctx)
	if err != nil {
		return fail("user-add: %v", err)
	}
	defer s.close()

	if s.cfg.JWTSecret == "" {
		return fail("user-add: JWT_SECRET is not set")
	}

	u, err := s.svc.Users.Register(ctx, c.email, c.name)
	if err != nil {
		return fail("user-add: %v", err)
	}
	token, err := apphttp.NewAuthenticator(s.cfg.JWTSecret, s.cfg.JWTIssuer).IssueToken(u.ID, c.ttl)
	if err != nil {
		return fail("user-add: issue token: %v", err)
	}

	fmt.Printf("user %d (%s)\n", u.ID, u.Email)
	fmt.Println(token)
	return subcommands.ExitSuccess
}

type balancesCmd struct {
	fix bool
}

func (*balancesCmd) Name() string { return "balances" }
func (*balancesCmd) Synopsis() string { return "check account balances against their transactions" }
func (*balancesCmd) Usage() string {
	return `ledgerctl balances [-fix]

  Recomputes every account balance from its transactions and lists the
  accounts whose stored balance drifted. With -fix, drifted balances are
  rewritten.
`
}

func (c *balancesCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.fix, "fix", false, "Rewrite drifted balances.")
}

func (c *balancesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := openSession(ctx)
	if err != nil {
		return fail("balances: %v", err)
	}
	defer s.close()

	checks, err := s.svc.Ledger.VerifyBalances(ctx, c.fix)
	if err != nil {
		return fail("balances: %v", err)
	}

	drifted := 0
	for _, chk := range checks {
		if chk.Consistent() {
			continue
		}
		drifted++
		fmt.Printf("account %d %-20s stored %s computed %s drift %s\n",
			chk.Account.ID, chk.Account.Name,
			core.FormatMoney(chk.Account.Balance, s.cfg.Currency),
			core.FormatMoney(chk.Computed, s.cfg.Currency),
			chk.Drift().StringFixed(core.MoneyScale))
	}
	fmt.Printf("%d accounts checked, %d drifted\n", len(checks), drifted)
	if drifted > 0 && !c.fix {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type allotmentCmd struct {
	user int64
}

func (*allotmentCmd) Name() string { return "allotment" }
func (*allotmentCmd) Synopsis() string { return "show a user's bi-weekly allotment" }
func (*allotmentCmd) Usage() string {
	return `ledgerctl allotment -user <id>

  Prints the allotment breakdown: paycheck, fixed costs, savings and goal
  contributions.
`
}

func (c *allotmentCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.user, "user", 0, "User id.")
}

func (c *allotmentCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := openSession(ctx)
	if err != nil {
		return fail("allotment: %v", err)
	}
	defer s.close()

	a, err := s.svc.Budget.Allotment(ctx, c.user)
	if err != nil {
		return fail("allotment: %v", err)
	}

	money := func(d decimal.Decimal) string { return core.FormatMoney(d, s.cfg.Currency) }
	if !a.HasPaycheck {
		fmt.Println("no paycheck recorded")
	}
	fmt.Printf("paycheck   %s\n", money(a.Paycheck))
	fmt.Printf("fixed      %s\n", money(a.Fixed))
	fmt.Printf("savings    %s (%d%%)\n", money(a.Savings), a.SavingsPercent)
	fmt.Printf("goals      %s\n", money(a.Goals))
	fmt.Printf("allotment  %s\n", money(a.Amount))
	return subcommands.ExitSuccess
}

type spendCmd struct {
	user  int64
	start string
	end   string
}

func (*spendCmd) Name() string { return "spend" }
func (*spendCmd) Synopsis() string { return "show discretionary spend for a user" }
func (*spendCmd) Usage() string {
	return `ledgerctl spend -user <id> [-s <start> -e <end>]

  Without a range, prints the weekly spend status. With -s and -e
  (YYYY-MM-DD, inclusive), prints the discretionary spend in that range.
`
}

func (c *spendCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.user, "user", 0, "User id.")
	f.StringVar(&c.start, "s", "", "Start date of a custom range.")
	f.StringVar(&c.end, "e", "", "End date of a custom range.")
}

func (c *spendCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, err := openSession(ctx)
	if err != nil {
		return fail("spend: %v", err)
	}
	defer s.close()
	money := func(d decimal.Decimal) string { return core.FormatMoney(d, s.cfg.Currency) }

	if c.start != "" || c.end != "" {
		start, err := core.ParseDate(c.start)
		if err != nil {
			return fail("spend: start: %v", err)
		}
		end, err := core.ParseDate(c.end)
		if err != nil {
			return fail("spend: end: %v", err)
		}
		total, err := s.svc.Budget.SpendOverTime(ctx, c.user, start, end)
		if err != nil {
			return fail("spend: %v", err)
		}
		fmt.Printf("%s to %s: %s\n", start, end, money(total))
		return subcommands.ExitSuccess
	}

	st, err := s.svc.Budget.SpendStatus(ctx, c.user)
	if err != nil {
		return fail("spend: %v", err)
	}
	fmt.Printf("window         %s to %s\n", st.WindowStart, st.WindowEnd)
	fmt.Printf("weekly budget  %s\n", money(st.WeeklyBudget))
	fmt.Printf("spent          %s\n", money(st.WeeklySpend))
	fmt.Printf("safe to spend  %s\n", money(st.SafeToSpend))
	fmt.Printf("remaining      %s%%\n", st.RemainingPercent.StringFixed(1))
	if st.Warning {
		fmt.Printf("warning: less than %d%% of the weekly budget left\n", st.WarningThreshold)
	}
	return subcommands.ExitSuccess
}
