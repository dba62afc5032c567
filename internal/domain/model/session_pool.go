package model

import (
	"time"

	"interview-sessions/internal/domain"
)

// SessionPool is an institution's purchased session capacity. UsedSessions
// counts sessions reserved into allocations, not sessions actually consumed.
type SessionPool struct {
	InstitutionID string
	TotalSessions int64
	UsedSessions  int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewSessionPool(institutionID string) (*SessionPool, error) {
	if institutionID == "" {
		return nil, domain.Invalid("institution id is required")
	}
	now := time.Now()
	return &SessionPool{InstitutionID: institutionID, CreatedAt: now, UpdatedAt: now}, nil
}

func (p *SessionPool) Available() int64 { return p.TotalSessions - p.UsedSessions }

// AddPurchased grows the pool after a confirmed purchase.
func (p *SessionPool) AddPurchased(count int64) error {
	if count <= 0 {
		return domain.Invalid("purchased count must be positive, got %d", count)
	}
	p.TotalSessions += count
	p.UpdatedAt = time.Now()
	return nil
}

// Reserve moves count sessions from available into used.
func (p *SessionPool) Reserve(count int64) error {
	if count <= 0 {
		return domain.Invalid("reserve count must be positive, got %d", count)
	}
	if avail := p.Available(); avail < count {
		return &domain.InsufficientCapacityError{Requested: count, Available: avail}
	}
	p.UsedSessions += count
	p.UpdatedAt = time.Now()
	return nil
}

// Release is the inverse of Reserve.
func (p *SessionPool) Release(count int64) error {
	if count <= 0 {
		return domain.Invalid("release count must be positive, got %d", count)
	}
	if p.UsedSessions < count {
		return domain.Invalid("cannot release %d sessions, only %d reserved", count, p.UsedSessions)
	}
	p.UsedSessions -= count
	p.UpdatedAt = time.Now()
	return nil
}

// PoolSummary is the read-only analytics view of a pool and its allocations.
type PoolSummary struct {
	InstitutionID     string `json:"institution_id"`
	TotalSessions     int64  `json:"total_sessions"`
	UsedSessions      int64  `json:"used_sessions"`
	AvailableSessions int64  `json:"available_sessions"`
	AllocatedSessions int64  `json:"allocated_sessions"`
	ConsumedSessions  int64  `json:"consumed_sessions"`
	ActiveAllocations int    `json:"active_allocations"`
}
