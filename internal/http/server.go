package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/metrics"
	"tally/internal/middleware/ratelimit"
	"tally/internal/middleware/security"
	"tally/internal/middleware/trace"
	"tally/internal/services"
)

// HeaderDeviceID identifies the owner of every /api request.
const HeaderDeviceID = "X-Device-ID"

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Dependencies struct {
	Finance            *services.FinanceService
	Summaries          *services.SummaryService
	Metrics            *metrics.Metrics
	Logger             *log.Logger
	Store              Pinger
	RateLimitPerMinute int
	// Now overrides the clock used for default dates.
	Now                func() time.Time
}

type Server struct {
	http.Server
	finance   *services.FinanceService
	summaries *services.SummaryService
	metrics   *metrics.Metrics
	store     Pinger
	limiter   *ratelimit.Limiter
	now       func() time.Time

	stopCleanup  context.CancelFunc
	shutdownOnce sync.Once
}

// ownerHandler serves a request on behalf of a resolved owner. A returned
// error is mapped to its status by ErrorFrom.
type ownerHandler func(w http.ResponseWriter, r *http.Request, owner core.User) error

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Dependencies) *Server {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	mux := http.NewServeMux()
	ips := security.NewClientIPResolver()

	s := &Server{
		finance:   deps.Finance,
		summaries: deps.Summaries,
		metrics:   deps.Metrics,
		store:     deps.Store,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		now:       now,
	}

	cleanupCtx, cancel := context.WithCancel(context.Background())
	s.stopCleanup = cancel
	go s.limiter.Run(cleanupCtx, 5*time.Minute)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", deps.Metrics.Handler())
	s.routes(mux)

	limited := s.limiter.Middleware(func(r *http.Request) string {
		if id := strings.TrimSpace(r.Header.Get(HeaderDeviceID)); id != "" {
			return "device:" + id
		}
		return "ip:" + ips.ClientIP(r)
	}, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w, r)
	})

	var handler http.Handler = mux
	handler = security.Headers(handler)
	handler = onlyAPI(limited, handler)
	handler = trace.NewMiddleware(deps.Logger, deps.Metrics, ips.ClientIP).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// onlyAPI applies mw to /api requests and passes the rest straight through.
func onlyAPI(mw func(http.Handler) http.Handler, next http.Handler) http.Handler {
	wrapped := mw(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			wrapped.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.Handle("GET /api/user", s.owned(s.handleGetUser))
	mux.Handle("PUT /api/user", s.owned(s.handleUpdateUser))
	mux.Handle("DELETE /api/user", s.owned(s.handleDeleteUser))

	mux.Handle("GET /api/expenses", s.owned(s.handleListExpenses))
	mux.Handle("POST /api/expenses", s.owned(s.handleCreateExpense))
	mux.Handle("GET /api/expenses/{id}", s.owned(s.handleGetExpense))
	mux.Handle("PATCH /api/expenses/{id}", s.owned(s.handleUpdateExpense))
	mux.Handle("DELETE /api/expenses/{id}", s.owned(s.handleDeleteExpense))

	mux.Handle("GET /api/income", s.owned(s.handleGetIncome))
	mux.Handle("PUT /api/income", s.owned(s.handleSaveIncome))
	mux.Handle("GET /api/income/additional", s.owned(s.handleListAdditionalIncome))
	mux.Handle("POST /api/income/additional", s.owned(s.handleCreateAdditionalIncome))
	mux.Handle("PATCH /api/income/additional/{id}", s.owned(s.handleUpdateAdditionalIncome))
	mux.Handle("DELETE /api/income/additional/{id}", s.owned(s.handleDeleteAdditionalIncome))

	mux.Handle("GET /api/people", s.owned(s.handleListPeople))
	mux.Handle("POST /api/people", s.owned(s.handleCreatePerson))
	mux.Handle("PATCH /api/people/{id}", s.owned(s.handleRenamePerson))
	mux.Handle("DELETE /api/people/{id}", s.owned(s.handleDeletePerson))
	mux.Handle("GET /api/people/balances", s.owned(s.handlePersonBalances))
	mux.Handle("GET /api/lending", s.owned(s.handleListLending))
	mux.Handle("POST /api/lending", s.owned(s.handleCreateLending))
	mux.Handle("DELETE /api/lending/{id}", s.owned(s.handleDeleteLending))

	mux.Handle("GET /api/bills", s.owned(s.handleListBills))
	mux.Handle("POST /api/bills", s.owned(s.handleCreateBill))
	mux.Handle("GET /api/bills/{id}", s.owned(s.handleGetBill))
	mux.Handle("PATCH /api/bills/{id}", s.owned(s.handleUpdateBill))
	mux.Handle("DELETE /api/bills/{id}", s.owned(s.handleDeleteBill))
	mux.Handle("POST /api/bills/{id}/deactivate", s.owned(s.handleDeactivateBill))
	mux.Handle("GET /api/bills/{id}/payments", s.owned(s.handleListBillPayments))
	mux.Handle("POST /api/bills/{id}/payments", s.owned(s.handleRecordBillPayment))
	mux.Handle("DELETE /api/bills/payments/{id}", s.owned(s.handleDeleteBillPayment))
	mux.Handle("GET /api/bills/status", s.owned(s.handleBillStatus))
	mux.Handle("GET /api/bills/upcoming", s.owned(s.handleUpcomingBills))
	mux.HandleFunc("GET /api/bills/period", s.handleBillPeriod)

	mux.Handle("GET /api/summary", s.owned(s.handleMonthlySummary))
	mux.Handle("GET /api/summary/spending", s.owned(s.handleSpending))
	mux.Handle("GET /api/summary/income", s.owned(s.handleIncomeSummary))
	mux.Handle("GET /api/summary/day", s.owned(s.handleDay))
	mux.Handle("GET /api/summary/week", s.owned(s.handleWeek))
	mux.Handle("GET /api/summary/export.xlsx", s.owned(s.handleExportXLSX))
	mux.Handle("POST /api/summary/export-sheet", s.owned(s.handleExportSheet))
}

// owned resolves the owner from the device header, creating it on first use.
func (s *Server) owned(h ownerHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		owner, err := s.finance.ResolveOwner(ctx, sanitizeInput(r.Header.Get(HeaderDeviceID)))
		if err != nil {
			if statusFor(err) == http.StatusBadRequest {
				BadRequestError("missing " + HeaderDeviceID + " header").Write(w, r)
				return
			}
			ErrorFrom(r, err).Write(w, r)
			return
		}

		logger := log.FromContext(ctx).With(log.FieldOwnerID, owner.ID)
		r = r.WithContext(log.NewContext(ctx, logger))
		if err := h(w, r, owner); err != nil {
			ErrorFrom(r, err).Write(w, r)
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Health check failed", log.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "storage unavailable").Write(w, r)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w, r)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.stopCleanup != nil {
			s.stopCleanup()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
