package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"interview-sessions/internal/infra/metrics"
	"interview-sessions/internal/usecase"
)

// UseCases groups the engine components served over HTTP.
type UseCases struct {
	Pools    usecase.PoolUseCase
	Allocs   usecase.AllocationUseCase
	Requests usecase.SessionRequestUseCase
	Pricing  usecase.PricingUseCase
	Changes  usecase.ScheduledChangeUseCase
}

type Options struct {
	RequestTimeout time.Duration
	// MetricsPath mounts the prometheus handler outside auth; empty disables it.
	MetricsPath string
}

type Server struct {
	uc   UseCases
	auth *AuthManager
	opts Options
	log  *zerolog.Logger
}

func NewServer(uc UseCases, auth *AuthManager, opts Options, logger *zerolog.Logger) *Server {
	if logger == nil {
		n := zerolog.Nop()
		logger = &n
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	l := logger.With().Str("component", "api").Logger()
	return &Server{uc: uc, auth: auth, opts: opts, log: &l}
}

// Router builds the chi mux for /api/v1 plus health and metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log), Timeout(s.opts.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeOK(w, http.StatusOK, "ok", nil)
	})
	if s.opts.MetricsPath != "" {
		r.Handle(s.opts.MetricsPath, metrics.Handler())
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Message: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{Message: "method not allowed"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Authenticate)

		r.Route("/pools/{institutionID}", func(r chi.Router) {
			r.Use(RequireRole(RolePlatformAdmin, RoleInstitutionAdmin, RoleService))
			r.Get("/", s.getPool)
			r.Get("/summary", s.getPoolSummary)
			r.Get("/purchases", s.listPurchases)
			r.With(RequireRole(RolePlatformAdmin, RoleService)).Post("/purchases", s.purchase)
		})

		r.Route("/session-allocations", func(r chi.Router) {
			r.With(RequireRole(RolePlatformAdmin, RoleInstitutionAdmin)).Post("/", s.createAllocation)
			r.With(RequireRole(RolePlatformAdmin, RoleInstitutionAdmin, RoleDepartmentReviewer)).Get("/", s.listAllocations)
			r.Get("/students/{studentID}", s.getStudentAllocation)
			r.Route("/{id}", func(r chi.Router) {
				r.With(RequireRole(RolePlatformAdmin, RoleInstitutionAdmin, RoleDepartmentReviewer, RoleService)).Get("/", s.getAllocation)
				r.With(RequireRole(RolePlatformAdmin, RoleInstitutionAdmin)).Patch("/", s.resizeAllocation)
				r.With(RequireRole(RolePlatformAdmin, RoleInstitutionAdmin)).Delete("/", s.deleteAllocation)
				r.With(RequireRole(RolePlatformAdmin, RoleService)).Post("/consume", s.consumeAllocation)
			})
		})

		r.Route("/session-requests", func(r chi.Router) {
			r.With(RequireRole(RoleStudent)).Post("/", s.submitRequest)
			r.Get("/", s.listRequests)
			r.Get("/{id}", s.getRequest)
			r.With(RequireRole(RolePlatformAdmin, RoleInstitutionAdmin, RoleDepartmentReviewer)).Patch("/{id}/status", s.updateRequestStatus)
		})

		r.Route("/pricing", func(r chi.Router) {
			r.With(RequireRole(RolePlatformAdmin, RoleInstitutionAdmin)).Get("/settings", s.getSettings)
			r.With(RequireRole(RolePlatformAdmin)).Put("/settings", s.updateSettings)

			r.Route("/overrides/{institutionID}", func(r chi.Router) {
				r.With(RequireRole(RolePlatformAdmin, RoleInstitutionAdmin)).Get("/", s.getOverride)
				r.With(RequireRole(RolePlatformAdmin)).Put("/", s.upsertOverride)
				r.With(RequireRole(RolePlatformAdmin)).Delete("/", s.deleteOverride)
				r.With(RequireRole(RolePlatformAdmin)).Patch("/enabled", s.setOverrideEnabled)
			})

			r.Get("/effective/{institutionID}", s.getEffectivePrice)
			r.With(RequireRole(RolePlatformAdmin, RoleInstitutionAdmin, RoleService)).Post("/quote", s.quote)

			r.Route("/scheduled-changes", func(r chi.Router) {
				r.Use(RequireRole(RolePlatformAdmin))
				r.Post("/", s.scheduleChange)
				r.Get("/", s.listChanges)
				r.Get("/{id}", s.getChange)
				r.Patch("/{id}", s.updateChange)
				r.Delete("/{id}", s.deleteChange)
				r.Post("/{id}/apply", s.applyChange)
				r.Post("/{id}/cancel", s.cancelChange)
			})
		})
	})
	return r
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, s.log, err)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
