package models

import (
	"encoding/json"
	"time"
)

// AuditLog records every mutating call-center operation
type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	ActorID      *uint           `gorm:"index:idx_cc_audit_actor_id" json:"actor_id,omitempty"`
	Action       string          `gorm:"size:64;not null;index:idx_cc_audit_action" json:"action"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string         `gorm:"type:inet" json:"ip_address,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_cc_audit_request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true;index:idx_cc_audit_success" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_cc_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "call_center_audit_log"
}

// Audit action constants
const (
	AuditActionAssignmentCreated      = "assignment_created"
	AuditActionAssignmentBatchCreated = "assignment_batch_created"
	AuditActionAssignmentStarted      = "assignment_started"
	AuditActionAssignmentCompleted    = "assignment_completed"
	AuditActionAssignmentsReassigned  = "assignments_reassigned"
	AuditActionCallStarted            = "call_started"
	AuditActionCallEnded              = "call_ended"
	AuditActionBatchLoaded            = "batch_loaded"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	ActorID       *uint
	Action        *string
	Success       *bool
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}
