package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"interview-sessions/internal/domain"
	"interview-sessions/internal/domain/model"
	"interview-sessions/internal/usecase"
)

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.uc.Pricing.GetSettings(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "pricing settings", toSettings(st))
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	patch := model.SettingsPatch{
		VapiCostPerMinute: req.VapiCostPerMinute,
		MarkupPercentage:  req.MarkupPercentage,
		AnnualLicenseCost: req.AnnualLicenseCost,
	}
	st, err := s.uc.Pricing.UpdateSettings(r.Context(), patch, req.Version, currentActor(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "pricing settings updated", toSettings(st))
}

func (s *Server) getOverride(w http.ResponseWriter, r *http.Request) {
	inst := chi.URLParam(r, "institutionID")
	if !s.allowInstitution(w, r, inst) {
		return
	}
	o, err := s.uc.Pricing.GetOverride(r.Context(), inst)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "pricing override", toOverride(o))
}

func (s *Server) upsertOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	o, err := s.uc.Pricing.UpsertOverride(r.Context(), chi.URLParam(r, "institutionID"), model.OverridePatch{
		CustomVapiCost:         req.CustomVapiCost,
		CustomMarkupPercentage: req.CustomMarkupPercentage,
		CustomLicenseCost:      req.CustomLicenseCost,
		IsEnabled:              req.IsEnabled,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "pricing override saved", toOverride(o))
}

func (s *Server) setOverrideEnabled(w http.ResponseWriter, r *http.Request) {
	var req overrideEnabledRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	o, err := s.uc.Pricing.SetOverrideEnabled(r.Context(), chi.URLParam(r, "institutionID"), *req.Enabled)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "pricing override updated", toOverride(o))
}

func (s *Server) deleteOverride(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.Pricing.DeleteOverride(r.Context(), chi.URLParam(r, "institutionID")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "pricing override deleted", nil)
}

func (s *Server) getEffectivePrice(w http.ResponseWriter, r *http.Request) {
	inst := chi.URLParam(r, "institutionID")
	if !s.allowInstitution(w, r, inst) {
		return
	}
	var asOf time.Time
	if v := r.URL.Query().Get("as_of"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.fail(w, r, domain.Invalid("as_of must be RFC3339"))
			return
		}
		asOf = t
	}
	ep, err := s.uc.Pricing.ResolveEffectivePrice(r.Context(), inst, asOf)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "effective price", ep)
}

func (s *Server) quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if !s.allowInstitution(w, r, req.InstitutionID) {
		return
	}
	var asOf time.Time
	if req.AsOf != nil {
		asOf = *req.AsOf
	}
	q, err := s.uc.Pricing.QuotePurchase(r.Context(), req.InstitutionID, req.Sessions, req.MinutesPerSession, asOf)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "purchase quote", q)
}

// ----- scheduled changes -----

func (s *Server) scheduleChange(w http.ResponseWriter, r *http.Request) {
	var req scheduleChangeRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.uc.Changes.Schedule(r.Context(), usecase.ScheduleInput{
		ChangeDate:   req.ChangeDate,
		ChangeType:   model.ChangeType(req.ChangeType),
		Affected:     req.Affected,
		CurrentValue: req.CurrentValue,
		NewValue:     *req.NewValue,
		Notes:        req.Notes,
		CreatedBy:    currentActor(r).ID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "price change scheduled", toChange(c))
}

func (s *Server) listChanges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f model.ChangeFilter
	if v := q.Get("status"); v != "" {
		st := model.ChangeStatus(v)
		f.Status = &st
	}
	if v := q.Get("affected"); v != "" {
		f.Affected = &v
	}
	list, err := s.uc.Changes.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "scheduled price changes", mapSlice(list, toChange))
}

func (s *Server) getChange(w http.ResponseWriter, r *http.Request) {
	c, err := s.uc.Changes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "scheduled price change", toChange(c))
}

func (s *Server) updateChange(w http.ResponseWriter, r *http.Request) {
	var req updateChangeRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	patch := model.ScheduledChangePatch{
		ChangeDate:   req.ChangeDate,
		Affected:     req.Affected,
		CurrentValue: req.CurrentValue,
		NewValue:     req.NewValue,
		Notes:        req.Notes,
	}
	if req.ChangeType != nil {
		ct := model.ChangeType(*req.ChangeType)
		patch.ChangeType = &ct
	}
	c, err := s.uc.Changes.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "scheduled price change updated", toChange(c))
}

func (s *Server) deleteChange(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.Changes.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "scheduled price change deleted", nil)
}

func (s *Server) applyChange(w http.ResponseWriter, r *http.Request) {
	c, err := s.uc.Changes.Apply(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "scheduled price change applied", toChange(c))
}

func (s *Server) cancelChange(w http.ResponseWriter, r *http.Request) {
	c, err := s.uc.Changes.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "scheduled price change cancelled", toChange(c))
}
