package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"interview-sessions/internal/domain"
	"interview-sessions/internal/domain/model"
	"interview-sessions/internal/infra/metrics"
	"interview-sessions/internal/usecase"
)

func currentActor(r *http.Request) Actor {
	a, _ := actorFrom(r.Context())
	return a
}

// allowInstitution writes 403 and returns false when the caller may not touch
// institutionID.
func (s *Server) allowInstitution(w http.ResponseWriter, r *http.Request, institutionID string) bool {
	a := currentActor(r)
	if a.InInstitution(institutionID) {
		return true
	}
	metrics.IncAuthDecision(string(a.Role), "denied")
	s.fail(w, r, domain.ErrPermissionDenied)
	return false
}

func (s *Server) getPool(w http.ResponseWriter, r *http.Request) {
	inst := chi.URLParam(r, "institutionID")
	if !s.allowInstitution(w, r, inst) {
		return
	}
	p, err := s.uc.Pools.Get(r.Context(), inst)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "session pool", toPool(p))
}

func (s *Server) getPoolSummary(w http.ResponseWriter, r *http.Request) {
	inst := chi.URLParam(r, "institutionID")
	if !s.allowInstitution(w, r, inst) {
		return
	}
	sum, err := s.uc.Pools.Summary(r.Context(), inst)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "session pool summary", sum)
}

func (s *Server) listPurchases(w http.ResponseWriter, r *http.Request) {
	inst := chi.URLParam(r, "institutionID")
	if !s.allowInstitution(w, r, inst) {
		return
	}
	list, err := s.uc.Pools.ListPurchases(r.Context(), inst)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "purchases", mapSlice(list, func(p *model.SessionPurchase) purchaseResponse {
		return purchaseResponse{
			ID:           p.ID,
			PaymentRef:   p.PaymentRef,
			SessionCount: p.SessionCount,
			Amount:       p.Amount,
			Currency:     p.Currency,
			CreatedAt:    p.CreatedAt,
		}
	}))
}

// purchase credits a confirmed purchase. With a payment_ref the credit is
// idempotent and a replay answers 200 with the unchanged pool.
func (s *Server) purchase(w http.ResponseWriter, r *http.Request) {
	inst := chi.URLParam(r, "institutionID")
	var req purchaseRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	ctx := r.Context()
	if req.PaymentRef == "" {
		p, err := s.uc.Pools.IncreasePurchasedCapacity(ctx, inst, req.Sessions)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeOK(w, http.StatusCreated, "purchased capacity added", toPool(p))
		return
	}

	p, err := s.uc.Pools.RecordPurchase(ctx, usecase.PurchaseInput{
		InstitutionID: inst,
		PaymentRef:    req.PaymentRef,
		SessionCount:  req.Sessions,
		Amount:        req.Amount,
		Currency:      req.Currency,
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		if p, err = s.uc.Pools.Get(ctx, inst); err == nil {
			writeOK(w, http.StatusOK, "purchase already credited", toPool(p))
			return
		}
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "purchase credited", toPool(p))
}
