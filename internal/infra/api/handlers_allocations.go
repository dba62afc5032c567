package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"interview-sessions/internal/domain"
	"interview-sessions/internal/domain/model"
)

func (s *Server) createAllocation(w http.ResponseWriter, r *http.Request) {
	var req createAllocationRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if !s.allowInstitution(w, r, req.InstitutionID) {
		return
	}
	allocType := req.AllocationType
	if allocType == "" {
		allocType = model.AllocationTypeManual
	}
	target := model.AllocationTarget{Kind: model.TargetKind(req.TargetType), ID: req.TargetID, DepartmentID: req.DepartmentID}
	a, err := s.uc.Allocs.CreateOrAugment(r.Context(), req.InstitutionID, target, req.AllocatedCount, allocType)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "sessions allocated", toAllocation(a))
}

func (s *Server) listAllocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a := currentActor(r)
	inst := q.Get("institution_id")
	if inst == "" {
		inst = a.InstitutionID
	}
	if !s.allowInstitution(w, r, inst) {
		return
	}
	var f model.AllocationFilter
	if v := q.Get("target_type"); v != "" {
		k := model.TargetKind(v)
		if !k.Valid() {
			s.fail(w, r, domain.Invalid("unknown target_type %q", v))
			return
		}
		f.Kind = &k
	}
	if v := q.Get("department_id"); v != "" {
		f.DepartmentID = &v
	}
	if a.Role == RoleDepartmentReviewer {
		f.DepartmentID = &a.DepartmentID
	}
	f.ActiveOnly = q.Get("include_inactive") != "true"

	list, err := s.uc.Allocs.ListByInstitution(r.Context(), inst, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "allocations", mapSlice(list, toAllocation))
}

// loadAllocation fetches the allocation and enforces institution scope.
func (s *Server) loadAllocation(w http.ResponseWriter, r *http.Request) (*model.Allocation, bool) {
	a, err := s.uc.Allocs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	if !s.allowInstitution(w, r, a.InstitutionID) {
		return nil, false
	}
	return a, true
}

func (s *Server) getAllocation(w http.ResponseWriter, r *http.Request) {
	a, ok := s.loadAllocation(w, r)
	if !ok {
		return
	}
	writeOK(w, http.StatusOK, "allocation", toAllocation(a))
}

func (s *Server) getStudentAllocation(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	actor := currentActor(r)
	if actor.Role == RoleStudent && actor.ID != studentID {
		s.fail(w, r, domain.ErrPermissionDenied)
		return
	}
	a, err := s.uc.Allocs.FindByStudent(r.Context(), studentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if actor.Role != RoleStudent && !s.allowInstitution(w, r, a.InstitutionID) {
		return
	}
	writeOK(w, http.StatusOK, "allocation", toAllocation(a))
}

func (s *Server) resizeAllocation(w http.ResponseWriter, r *http.Request) {
	var req resizeAllocationRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	cur, ok := s.loadAllocation(w, r)
	if !ok {
		return
	}
	a, err := s.uc.Allocs.Resize(r.Context(), cur.ID, req.AllocatedCount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "allocation resized", toAllocation(a))
}

func (s *Server) deleteAllocation(w http.ResponseWriter, r *http.Request) {
	cur, ok := s.loadAllocation(w, r)
	if !ok {
		return
	}
	if err := s.uc.Allocs.Delete(r.Context(), cur.ID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "allocation deleted", nil)
}

func (s *Server) consumeAllocation(w http.ResponseWriter, r *http.Request) {
	var req consumeRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	cur, ok := s.loadAllocation(w, r)
	if !ok {
		return
	}
	a, err := s.uc.Allocs.Consume(r.Context(), cur.ID, req.Count)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "sessions consumed", toAllocation(a))
}
