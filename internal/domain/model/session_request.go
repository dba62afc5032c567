package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"interview-sessions/internal/domain"
)

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected:
		return true
	}
	return false
}

// SessionRequest is a student's ask for more sessions, reviewed once by a
// department reviewer.
type SessionRequest struct {
	ID            string
	StudentID     string
	InstitutionID string
	DepartmentID  string
	SessionCount  int64
	Reason        string
	Status        RequestStatus
	ReviewedBy    *string
	ReviewedAt    *time.Time
	ReviewNote    string
	AllocationID  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewSessionRequest(studentID, institutionID, departmentID string, count int64, reason string) (*SessionRequest, error) {
	switch {
	case studentID == "":
		return nil, domain.Invalid("student id is required")
	case institutionID == "":
		return nil, domain.Invalid("institution id is required")
	case departmentID == "":
		return nil, domain.Invalid("department id is required")
	case count <= 0:
		return nil, domain.Invalid("session count must be positive, got %d", count)
	}
	now := time.Now()
	return &SessionRequest{
		ID:            uuid.NewString(),
		StudentID:     studentID,
		InstitutionID: institutionID,
		DepartmentID:  departmentID,
		SessionCount:  count,
		Reason:        strings.TrimSpace(reason),
		Status:        RequestStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (r *SessionRequest) IsPending() bool { return r.Status == RequestStatusPending }

// Review moves a pending request into a terminal state.
func (r *SessionRequest) Review(to RequestStatus, reviewerID, note string, at time.Time) error {
	if to != RequestStatusApproved && to != RequestStatusRejected {
		return domain.Invalid("cannot review request into status %q", to)
	}
	if reviewerID == "" {
		return domain.Invalid("reviewer id is required")
	}
	if !r.IsPending() {
		return fmt.Errorf("%w: request %s is already %s", domain.ErrInvalidTransition, r.ID, r.Status)
	}
	r.Status = to
	r.ReviewedBy = &reviewerID
	r.ReviewedAt = &at
	r.ReviewNote = strings.TrimSpace(note)
	r.UpdatedAt = at
	return nil
}

// StudentTarget is the allocation target an approval produces.
func (r *SessionRequest) StudentTarget() AllocationTarget {
	return AllocationTarget{Kind: TargetStudent, ID: r.StudentID, DepartmentID: r.DepartmentID}
}

// RequestFilter narrows request listings. Nil fields match all.
type RequestFilter struct {
	InstitutionID string
	DepartmentID  *string
	StudentID     *string
	Status        *RequestStatus
}
