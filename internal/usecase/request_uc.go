package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"interview-sessions/internal/domain"
	"interview-sessions/internal/domain/model"
	"interview-sessions/internal/domain/ports/repository"
	"interview-sessions/internal/infra/metrics"
)

// RateLimiter is satisfied by the Redis fixed-window limiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// RequestLimit bounds how many requests one student may submit per window.
// A zero Limit disables limiting.
type RequestLimit struct {
	Limit  int
	Window time.Duration
}

// SessionRequestUseCase is the student ask / department review workflow.
type SessionRequestUseCase interface {
	Submit(ctx context.Context, studentID, institutionID, departmentID string, sessionCount int64, reason string) (*model.SessionRequest, error)
	// Approve grants the sessions and marks the request approved in one
	// transaction. If the pool cannot cover the request it stays pending.
	Approve(ctx context.Context, requestID, reviewerID, note string) (*model.SessionRequest, error)
	Reject(ctx context.Context, requestID, reviewerID, note string) (*model.SessionRequest, error)
	// UpdateStatus dispatches to Approve or Reject.
	UpdateStatus(ctx context.Context, requestID string, status model.RequestStatus, reviewerID, note string) (*model.SessionRequest, error)

	Get(ctx context.Context, requestID string) (*model.SessionRequest, error)
	List(ctx context.Context, f model.RequestFilter) ([]*model.SessionRequest, error)
}

var _ SessionRequestUseCase = (*requestUC)(nil)

type requestUC struct {
	requests repository.SessionRequestRepository
	allocs   AllocationTxLedger
	locker   repository.InstitutionLocker
	limiter  RateLimiter
	limit    RequestLimit
	runner   txRunner
	log      *zerolog.Logger
}

// NewSessionRequestUseCase wires the workflow. limiter may be nil.
func NewSessionRequestUseCase(
	requests repository.SessionRequestRepository,
	allocs AllocationTxLedger,
	locker repository.InstitutionLocker,
	tx repository.TransactionManager,
	limiter RateLimiter,
	limit RequestLimit,
	opts Options,
	logger *zerolog.Logger,
) SessionRequestUseCase {
	l := orNop(logger).With().Str("component", "SessionRequestUseCase").Logger()
	return &requestUC{
		requests: requests,
		allocs:   allocs,
		locker:   locker,
		limiter:  limiter,
		limit:    limit,
		runner:   newTxRunner(tx, opts, &l),
		log:      &l,
	}
}

func (uc *requestUC) Submit(ctx context.Context, studentID, institutionID, departmentID string, sessionCount int64, reason string) (*model.SessionRequest, error) {
	r, err := model.NewSessionRequest(studentID, institutionID, departmentID, sessionCount, reason)
	if err != nil {
		return nil, err
	}
	if uc.limiter != nil && uc.limit.Limit > 0 {
		ok, err := uc.limiter.Allow(ctx, "rate_limit:session_request:"+studentID, uc.limit.Limit, uc.limit.Window)
		if err != nil {
			// limiter outage must not block students
			uc.log.Warn().Err(err).Str("student_id", studentID).Msg("rate limiter unavailable")
		} else if !ok {
			return nil, fmt.Errorf("%w: student %s submitted too many session requests", domain.ErrRateLimited, studentID)
		}
	}
	if err := uc.requests.Create(ctx, repository.NoTX, r); err != nil {
		return nil, err
	}
	metrics.IncRequestTransition(string(model.RequestStatusPending))
	uc.log.Info().Str("request_id", r.ID).Str("student_id", studentID).Int64("sessions", sessionCount).Msg("session request submitted")
	return r, nil
}

func (uc *requestUC) Approve(ctx context.Context, requestID, reviewerID, note string) (*model.SessionRequest, error) {
	return uc.review(ctx, requestID, model.RequestStatusApproved, reviewerID, note)
}

func (uc *requestUC) Reject(ctx context.Context, requestID, reviewerID, note string) (*model.SessionRequest, error) {
	return uc.review(ctx, requestID, model.RequestStatusRejected, reviewerID, note)
}

func (uc *requestUC) UpdateStatus(ctx context.Context, requestID string, status model.RequestStatus, reviewerID, note string) (*model.SessionRequest, error) {
	switch status {
	case model.RequestStatusApproved, model.RequestStatusRejected:
		return uc.review(ctx, requestID, status, reviewerID, note)
	default:
		return nil, domain.Invalid("status must be approved or rejected, got %q", status)
	}
}

func (uc *requestUC) review(ctx context.Context, requestID string, to model.RequestStatus, reviewerID, note string) (*model.SessionRequest, error) {
	if requestID == "" {
		return nil, domain.Invalid("request id is required")
	}
	head, err := uc.requests.FindByID(ctx, repository.NoTX, requestID)
	if err != nil {
		return nil, err
	}

	var out *model.SessionRequest
	err = uc.runner.run(ctx, "request.review", func(ctx context.Context, tx repository.Tx) error {
		if err := uc.locker.LockInstitution(ctx, tx, head.InstitutionID); err != nil {
			return err
		}
		r, err := uc.requests.FindByID(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if err := r.Review(to, reviewerID, note, uc.runner.opts.Now()); err != nil {
			return err
		}
		if to == model.RequestStatusApproved {
			a, err := uc.allocs.CreateOrAugmentTx(ctx, tx, r.InstitutionID, r.StudentTarget(), r.SessionCount, model.AllocationTypeRequestApproval)
			if err != nil {
				return fmt.Errorf("approve request %s: %w", r.ID, err)
			}
			r.AllocationID = &a.ID
		}
		if err := uc.requests.Update(ctx, tx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncRequestTransition(string(out.Status))
	uc.log.Info().Str("request_id", out.ID).Str("status", string(out.Status)).Str("reviewer_id", reviewerID).Msg("session request reviewed")
	return out, nil
}

func (uc *requestUC) Get(ctx context.Context, requestID string) (*model.SessionRequest, error) {
	return uc.requests.FindByID(ctx, repository.NoTX, requestID)
}

func (uc *requestUC) List(ctx context.Context, f model.RequestFilter) ([]*model.SessionRequest, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, domain.Invalid("unknown request status %q", *f.Status)
	}
	return uc.requests.List(ctx, repository.NoTX, f)
}
