// Package models contains the call-center domain entities and their invariants
package models

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"time"

	"github.com/amirphl/campaign-callcenter/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AssignmentStatus represents the lifecycle state of a call assignment
type AssignmentStatus string

const (
	AssignmentStatusPending    AssignmentStatus = "pending"
	AssignmentStatusInProgress AssignmentStatus = "in_progress"
	AssignmentStatusCompleted  AssignmentStatus = "completed"
	AssignmentStatusReassigned AssignmentStatus = "reassigned"
)

// OpenAssignmentStatuses are the statuses that still hold a voter for a caller
var OpenAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusPending,
	AssignmentStatusInProgress,
}

// String returns the string representation of the status
func (s AssignmentStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentStatusPending, AssignmentStatusInProgress,
		AssignmentStatusCompleted, AssignmentStatusReassigned:
		return true
	default:
		return false
	}
}

// IsOpen reports whether the status is pending or in_progress
func (s AssignmentStatus) IsOpen() bool {
	return s == AssignmentStatusPending || s == AssignmentStatusInProgress
}

// IsTerminal reports whether no further transition is possible
func (s AssignmentStatus) IsTerminal() bool {
	return s == AssignmentStatusCompleted || s == AssignmentStatusReassigned
}

// Scan implements the sql.Scanner interface for AssignmentStatus
func (s *AssignmentStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = AssignmentStatus(v)
	case []byte:
		*s = AssignmentStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AssignmentStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for AssignmentStatus
func (s AssignmentStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid AssignmentStatus: %s", s)
	}
	return string(s), nil
}

// AssignmentPriority orders the caller's queue
type AssignmentPriority string

const (
	AssignmentPriorityLow    AssignmentPriority = "low"
	AssignmentPriorityMedium AssignmentPriority = "medium"
	AssignmentPriorityHigh   AssignmentPriority = "high"
	AssignmentPriorityUrgent AssignmentPriority = "urgent"
)

// String returns the string representation of the priority
func (p AssignmentPriority) String() string {
	return string(p)
}

// Valid checks if the priority is valid
func (p AssignmentPriority) Valid() bool {
	return p.Rank() > 0
}

// Rank maps the priority onto its sortable integer (urgent is highest)
func (p AssignmentPriority) Rank() int {
	switch p {
	case AssignmentPriorityLow:
		return 1
	case AssignmentPriorityMedium:
		return 2
	case AssignmentPriorityHigh:
		return 3
	case AssignmentPriorityUrgent:
		return 4
	default:
		return 0
	}
}

// ParseAssignmentPriority returns medium for an empty string
func ParseAssignmentPriority(raw string) (AssignmentPriority, bool) {
	if raw == "" {
		return AssignmentPriorityMedium, true
	}
	p := AssignmentPriority(raw)
	return p, p.Valid()
}

// Scan implements the sql.Scanner interface for AssignmentPriority
func (p *AssignmentPriority) Scan(value any) error {
	if value == nil {
		*p = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*p = AssignmentPriority(v)
	case []byte:
		*p = AssignmentPriority(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AssignmentPriority", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for AssignmentPriority
func (p AssignmentPriority) Value() (driver.Value, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid AssignmentPriority: %s", p)
	}
	return string(p), nil
}

// CallAssignment binds one voter to one caller within a campaign
// Table: call_assignments
// At most one open (pending or in_progress) row per (voter_id, campaign_id),
// enforced by the partial unique index uk_call_assignments_open_voter_campaign.
// Rows are never hard-deleted.
type CallAssignment struct {
	ID           uint               `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:uk_call_assignments_uuid" json:"uuid"`
	VoterID      uint               `gorm:"not null;index:idx_call_assignments_voter_id" json:"voter_id"`
	AssignedTo   uint               `gorm:"not null;index:idx_call_assignments_caller_queue,priority:1" json:"assigned_to"`
	AssignedBy   uint               `gorm:"not null" json:"assigned_by"`
	CampaignID   uint               `gorm:"not null;index:idx_call_assignments_caller_queue,priority:2" json:"campaign_id"`
	Status       AssignmentStatus   `gorm:"type:call_assignment_status;not null;default:'pending';index:idx_call_assignments_caller_queue,priority:3" json:"status"`
	Priority     AssignmentPriority `gorm:"type:call_assignment_priority;not null;default:'medium'" json:"priority"`
	PriorityRank int                `gorm:"not null;default:2" json:"priority_rank"`
	AssignedAt   time.Time          `gorm:"not null;default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"assigned_at"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
	UpdatedAt    *time.Time         `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (CallAssignment) TableName() string {
	return "call_assignments"
}

// BeforeCreate is called before creating a new record
func (a *CallAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	if a.Status == "" {
		a.Status = AssignmentStatusPending
	}
	if a.Priority == "" {
		a.Priority = AssignmentPriorityMedium
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = utils.UTCNow()
	}
	return nil
}

// BeforeSave keeps PriorityRank in step with Priority
func (a *CallAssignment) BeforeSave(tx *gorm.DB) error {
	if a.Priority == "" {
		a.Priority = AssignmentPriorityMedium
	}
	a.PriorityRank = a.Priority.Rank()
	return nil
}

// BeforeUpdate is called before updating a record
func (a *CallAssignment) BeforeUpdate(tx *gorm.DB) error {
	a.UpdatedAt = utils.UTCNowPtr()
	return nil
}

// IsOpen reports whether the assignment still holds its voter
func (a *CallAssignment) IsOpen() bool {
	return a.Status.IsOpen()
}

// CanTransitionTo checks if the assignment can move to the given status.
// in_progress -> pending is the release edge taken when a call ends
// without concluding the assignment.
func (a *CallAssignment) CanTransitionTo(newStatus AssignmentStatus) bool {
	switch a.Status {
	case AssignmentStatusPending:
		return newStatus == AssignmentStatusInProgress ||
			newStatus == AssignmentStatusCompleted ||
			newStatus == AssignmentStatusReassigned
	case AssignmentStatusInProgress:
		return newStatus == AssignmentStatusCompleted ||
			newStatus == AssignmentStatusReassigned ||
			newStatus == AssignmentStatusPending
	default:
		return false
	}
}

// GetStatusDisplayName returns a human-readable status name
func (a *CallAssignment) GetStatusDisplayName() string {
	switch a.Status {
	case AssignmentStatusPending:
		return "Pending"
	case AssignmentStatusInProgress:
		return "In Progress"
	case AssignmentStatusCompleted:
		return "Completed"
	case AssignmentStatusReassigned:
		return "Reassigned"
	default:
		return "Unknown"
	}
}

// CallAssignmentFilter represents filter criteria for call assignments
type CallAssignmentFilter struct {
	ID             *uint              `json:"id,omitempty"`
	UUID           *uuid.UUID         `json:"uuid,omitempty"`
	VoterID        *uint              `json:"voter_id,omitempty"`
	AssignedTo     *uint              `json:"assigned_to,omitempty"`
	CampaignID     *uint              `json:"campaign_id,omitempty"`
	Status         *AssignmentStatus  `json:"status,omitempty"`
	Statuses       []AssignmentStatus `json:"statuses,omitempty"`
	OnlyOpen       bool               `json:"only_open,omitempty"`
	AssignedAfter  *time.Time         `json:"assigned_after,omitempty"`
	AssignedBefore *time.Time         `json:"assigned_before,omitempty"`
}

// QueueLess reports whether a sorts before b in a caller's queue:
// higher priority first, then oldest assignment, then lowest id.
func QueueLess(a, b *CallAssignment) bool {
	ra, rb := a.Priority.Rank(), b.Priority.Rank()
	if ra != rb {
		return ra > rb
	}
	if !a.AssignedAt.Equal(b.AssignedAt) {
		return a.AssignedAt.Before(b.AssignedAt)
	}
	return a.ID < b.ID
}

// SortForQueue orders assignments in place the way a caller's queue is served
func SortForQueue(items []*CallAssignment) {
	sort.SliceStable(items, func(i, j int) bool {
		return QueueLess(items[i], items[j])
	})
}

// StatusCounts aggregates a caller's assignments per status
type StatusCounts struct {
	Pending    int64 `json:"pending"`
	InProgress int64 `json:"in_progress"`
	Completed  int64 `json:"completed"`
	Reassigned int64 `json:"reassigned"`
}

// Total counts the assignments that still represent work owned by the caller
func (c StatusCounts) Total() int64 {
	return c.Pending + c.InProgress + c.Completed
}

// Open counts pending and in_progress assignments
func (c StatusCounts) Open() int64 {
	return c.Pending + c.InProgress
}
