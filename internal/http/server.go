package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"

	"pocketbook/internal/adapters"
	"pocketbook/internal/core"
	applog "pocketbook/internal/log"
	"pocketbook/internal/middleware/ratelimit"
	"pocketbook/internal/middleware/security"
	"pocketbook/internal/middleware/trace"
	"pocketbook/internal/services"
)

// Ledger is the account and transaction surface the API serves.
type Ledger interface {
	CreateAccount(ctx context.Context, userID int64, a core.Account) (core.Account, error)
	GetAccount(ctx context.Context, userID, id int64) (core.Account, error)
	ListAccounts(ctx context.Context, userID int64) ([]core.Account, error)
	DeleteAccount(ctx context.Context, userID, id int64) error

	CreateTransaction(ctx context.Context, userID int64, t core.Transaction) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, userID int64, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id int64) error
	GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error)
	ListTransactions(ctx context.Context, userID, accountID int64) ([]core.Transaction, error)
	RecentTransactions(ctx context.Context, userID int64, limit int) ([]core.Transaction, error)
}

type Budget interface {
	Allotment(ctx context.Context, userID int64) (services.Allotment, error)
	SpendOverTime(ctx context.Context, userID int64, start, end core.Date) (decimal.Decimal, error)
	SpendStatus(ctx context.Context, userID int64) (services.SpendStatus, error)
}

type Users interface {
	Get(ctx context.Context, id int64) (core.User, error)
	UpdateSettings(ctx context.Context, id int64, p services.SettingsPatch) (core.User, error)
}

type Goals interface {
	Create(ctx context.Context, userID int64, g core.Goal) (core.Goal, error)
	Get(ctx context.Context, userID, id int64) (core.Goal, error)
	List(ctx context.Context, userID int64) ([]core.Goal, error)
	Update(ctx context.Context, userID, id int64, p services.GoalPatch) (core.Goal, error)
	Delete(ctx context.Context, userID, id int64) error
}

type Tools interface {
	Tools() []adapters.Tool
	Call(ctx context.Context, userID int64, name string, args json.RawMessage) (any, error)
}

// Deps are the services behind the API.
type Deps struct {
	Ledger Ledger
	Budget Budget
	Users  Users
	Goals  Goals
	Tools  Tools
	// Ready reports whether the backing store is reachable.
	Ready func(ctx context.Context) error
}

// Options configure the HTTP surface.
type Options struct {
	Addr               string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	TrustedProxies     []string
	JWTSecret          string
	JWTIssuer          string
	Logger             *applog.Logger
}

type Server struct {
	http.Server

	deps     Deps
	auth     *Authenticator
	limiter  *ratelimit.Limiter
	detector *security.Detector
	trace    *trace.Middleware
	errors   *applog.StructuredLogger

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(opts Options, deps Deps) (*Server, error) {
	if opts.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}

	detector, err := security.NewDetector(opts.TrustedProxies)
	if err != nil {
		return nil, err
	}

	s := &Server{
		deps:     deps,
		auth:     NewAuthenticator(opts.JWTSecret, opts.JWTIssuer),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: detector,
		trace:    trace.NewMiddleware(detector.ExtractClientIP, logger),
		errors:   applog.NewStructuredLogger(logger),
	}
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(logger, opts.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s, nil
}

func (s *Server) routes(logger *applog.Logger, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(applog.Middleware(logger))
	r.Use(s.trace.Middleware)
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders:   []string{trace.HeaderRequestID},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			TooManyRequestsError("rate limit exceeded").Write(w)
		}))
		api.Use(s.auth.Middleware)
		api.Use(middleware.AllowContentType("application/json"))

		api.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.handleListAccounts)
			r.Post("/", s.handleCreateAccount)
			r.Get("/{id}", s.handleGetAccount)
			r.Delete("/{id}", s.handleDeleteAccount)
			r.Get("/{id}/transactions", s.handleListAccountTransactions)
		})

		api.Route("/transactions", func(r chi.Router) {
			r.Post("/", s.handleCreateTransaction)
			r.Get("/recent", s.handleRecentTransactions)
			r.Get("/{id}", s.handleGetTransaction)
			r.Put("/{id}", s.handleUpdateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})

		api.Route("/goals", func(r chi.Router) {
			r.Get("/", s.handleListGoals)
			r.Post("/", s.handleCreateGoal)
			r.Get("/{id}", s.handleGetGoal)
			r.Patch("/{id}", s.handleUpdateGoal)
			r.Delete("/{id}", s.handleDeleteGoal)
		})

		api.Route("/spend", func(r chi.Router) {
			r.Get("/allotment", s.handleAllotment)
			r.Get("/over-time", s.handleSpendOverTime)
			r.Get("/status", s.handleSpendStatus)
		})

		api.Get("/users/me", s.handleGetMe)
		api.Patch("/users/me/settings", s.handleUpdateSettings)

		api.Get("/tools", s.handleListTools)
		api.Post("/tools/{name}", s.handleCallTool)
	})

	return r
}

// Shutdown gracefully shuts down the server and the limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics is a snapshot of request counters for the shutdown log.
type Metrics struct {
	Requests      int64
	ServerErrors  int64
	AvgLatencyUs  int64
	RateLimited   int64
	Suspicious    int64
	ActiveClients int64
}

func (s *Server) Metrics() Metrics {
	tm := s.trace.GetMetrics()
	rm := s.limiter.GetMetrics()
	return Metrics{
		Requests:      tm.TotalRequests,
		ServerErrors:  tm.ServerErrors,
		AvgLatencyUs:  tm.AverageResponseTime(),
		RateLimited:   rm.Rejected,
		Suspicious:    s.detector.GetMetrics().SuspiciousRequests,
		ActiveClients: rm.ClientCount,
	}
}

// fail writes the response for err. Server errors are logged with their
// detail; the client only sees a generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if statusFor(err) == http.StatusInternalServerError {
		fields := applog.NewFields().
			WithRequestID(trace.GetRequestID(r.Context())).
			WithErrorType(applog.ErrorTypeInternal)
		if id, uerr := UserIDFromContext(r.Context()); uerr == nil {
			fields = fields.WithUser(id)
		}
		s.errors.LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op, fields)
	}
	FromError(err).Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err.Error())
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
