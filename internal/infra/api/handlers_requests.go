package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"interview-sessions/internal/domain"
	"interview-sessions/internal/domain/model"
)

// submitRequest files a request for the calling student. Institution and
// default department come from the token.
func (s *Server) submitRequest(w http.ResponseWriter, r *http.Request) {
	var req submitRequestBody
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	a := currentActor(r)
	dept := req.DepartmentID
	if dept == "" {
		dept = a.DepartmentID
	}
	sr, err := s.uc.Requests.Submit(r.Context(), a.ID, a.InstitutionID, dept, req.SessionCount, req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "session request submitted", toSessionRequest(sr))
}

// listRequests narrows the filter to what the caller may see.
func (s *Server) listRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a := currentActor(r)
	f := model.RequestFilter{InstitutionID: q.Get("institution_id")}
	if v := q.Get("department_id"); v != "" {
		f.DepartmentID = &v
	}
	if v := q.Get("student_id"); v != "" {
		f.StudentID = &v
	}
	if v := q.Get("status"); v != "" {
		st := model.RequestStatus(v)
		f.Status = &st
	}

	switch a.Role {
	case RolePlatformAdmin:
	case RoleInstitutionAdmin:
		f.InstitutionID = a.InstitutionID
	case RoleDepartmentReviewer:
		f.InstitutionID = a.InstitutionID
		f.DepartmentID = &a.DepartmentID
	case RoleStudent:
		f.StudentID = &a.ID
	default:
		s.fail(w, r, domain.ErrPermissionDenied)
		return
	}

	list, err := s.uc.Requests.List(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "session requests", mapSlice(list, toSessionRequest))
}

func (s *Server) getRequest(w http.ResponseWriter, r *http.Request) {
	sr, err := s.uc.Requests.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	a := currentActor(r)
	visible := a.CanReview(sr.InstitutionID, sr.DepartmentID) || (a.Role == RoleStudent && a.ID == sr.StudentID)
	if !visible {
		s.fail(w, r, domain.ErrPermissionDenied)
		return
	}
	writeOK(w, http.StatusOK, "session request", toSessionRequest(sr))
}

func (s *Server) updateRequestStatus(w http.ResponseWriter, r *http.Request) {
	var req requestStatusBody
	if err := decode(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	ctx := r.Context()
	cur, err := s.uc.Requests.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	a := currentActor(r)
	if !a.CanReview(cur.InstitutionID, cur.DepartmentID) {
		s.fail(w, r, domain.ErrPermissionDenied)
		return
	}
	sr, err := s.uc.Requests.UpdateStatus(ctx, cur.ID, model.RequestStatus(req.Status), a.ID, req.Note)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "session request "+string(sr.Status), toSessionRequest(sr))
}
