package model

import (
	"time"

	"github.com/google/uuid"

	"interview-sessions/internal/domain"
)

type TargetKind string

const (
	TargetDepartment TargetKind = "department"
	TargetTeacher    TargetKind = "teacher"
	TargetStudent    TargetKind = "student"
)

func (k TargetKind) Valid() bool {
	switch k {
	case TargetDepartment, TargetTeacher, TargetStudent:
		return true
	}
	return false
}

// AllocationTarget names the entity a slice of the pool is granted to.
type AllocationTarget struct {
	Kind TargetKind
	ID   string
	// DepartmentID optionally records the department context of a
	// student or teacher grant. It is not part of the upsert key.
	DepartmentID string
}

func (t AllocationTarget) Validate() error {
	if !t.Kind.Valid() {
		return domain.Invalid("unknown allocation target kind %q", t.Kind)
	}
	if t.ID == "" {
		return domain.Invalid("allocation target id is required")
	}
	return nil
}

type AllocationStatus string

const (
	AllocationStatusActive   AllocationStatus = "active"
	AllocationStatusInactive AllocationStatus = "inactive"
)

const (
	AllocationTypeManual          = "manual"
	AllocationTypeRequestApproval = "request_approval"
)

// Allocation is a named slice of an institution's pool. Exactly one of
// DepartmentID/TeacherID/StudentID is the key, chosen by Kind.
type Allocation struct {
	ID             string
	InstitutionID  string
	Kind           TargetKind
	DepartmentID   *string
	TeacherID      *string
	StudentID      *string
	AllocatedCount int64
	UsedCount      int64
	AllocationType string
	Status         AllocationStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAllocation builds an active allocation for target with count sessions.
func NewAllocation(institutionID string, target AllocationTarget, count int64, allocationType string) (*Allocation, error) {
	if institutionID == "" {
		return nil, domain.Invalid("institution id is required")
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, domain.Invalid("allocated count must be positive, got %d", count)
	}
	if allocationType == "" {
		allocationType = AllocationTypeManual
	}
	now := time.Now()
	a := &Allocation{
		ID:             uuid.NewString(),
		InstitutionID:  institutionID,
		Kind:           target.Kind,
		AllocatedCount: count,
		AllocationType: allocationType,
		Status:         AllocationStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	id := target.ID
	switch target.Kind {
	case TargetDepartment:
		a.DepartmentID = &id
	case TargetTeacher:
		a.TeacherID = &id
	case TargetStudent:
		a.StudentID = &id
	}
	if target.DepartmentID != "" && target.Kind != TargetDepartment {
		dep := target.DepartmentID
		a.DepartmentID = &dep
	}
	return a, nil
}

// TargetID returns the id that keys this allocation for its kind.
func (a *Allocation) TargetID() string {
	var p *string
	switch a.Kind {
	case TargetDepartment:
		p = a.DepartmentID
	case TargetTeacher:
		p = a.TeacherID
	case TargetStudent:
		p = a.StudentID
	}
	if p == nil {
		return ""
	}
	return *p
}

func (a *Allocation) IsActive() bool { return a.Status == AllocationStatusActive }

func (a *Allocation) Remaining() int64 { return a.AllocatedCount - a.UsedCount }

// Augment adds count to the allocated total of an existing grant.
func (a *Allocation) Augment(count int64) error {
	if count <= 0 {
		return domain.Invalid("augment count must be positive, got %d", count)
	}
	a.AllocatedCount += count
	a.UpdatedAt = time.Now()
	return nil
}

// ResizeDelta validates newCount and returns newCount - AllocatedCount.
func (a *Allocation) ResizeDelta(newCount int64) (int64, error) {
	if newCount <= 0 {
		return 0, domain.Invalid("allocated count must be positive, got %d", newCount)
	}
	if newCount < a.UsedCount {
		return 0, domain.Invalid("allocated count %d is below used count %d", newCount, a.UsedCount)
	}
	return newCount - a.AllocatedCount, nil
}

// Consume records count sessions used against this allocation.
func (a *Allocation) Consume(count int64) error {
	if count <= 0 {
		return domain.Invalid("consume count must be positive, got %d", count)
	}
	if !a.IsActive() {
		return domain.Invalid("allocation %s is not active", a.ID)
	}
	if a.UsedCount+count > a.AllocatedCount {
		return &domain.InsufficientCapacityError{Requested: count, Available: a.Remaining()}
	}
	a.UsedCount += count
	a.UpdatedAt = time.Now()
	return nil
}

// AllocationFilter narrows institution allocation listings. Nil fields match all.
type AllocationFilter struct {
	Kind         *TargetKind
	DepartmentID *string
	ActiveOnly   bool
}
