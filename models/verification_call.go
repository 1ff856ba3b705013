package models

import (
	"time"

	"github.com/amirphl/campaign-callcenter/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VerificationCall is one logged attempt to reach a voter
// Table: verification_calls
// AttemptNumber is unique per voter (uk_verification_calls_voter_attempt)
// and never reused. Rows are finalized once when the call ends and never deleted.
type VerificationCall struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UUID            uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_verification_calls_uuid" json:"uuid"`
	VoterID         uint       `gorm:"not null;uniqueIndex:uk_verification_calls_voter_attempt,priority:1;index:idx_verification_calls_voter_called_at,priority:1" json:"voter_id"`
	AssignmentID    *uint      `gorm:"index:idx_verification_calls_assignment_id" json:"assignment_id,omitempty"`
	CallerID        uint       `gorm:"not null;index:idx_verification_calls_caller_id" json:"caller_id"`
	AttemptNumber   int        `gorm:"not null;uniqueIndex:uk_verification_calls_voter_attempt,priority:2" json:"attempt_number"`
	CalledAt        time.Time  `gorm:"not null;index:idx_verification_calls_voter_called_at,priority:2" json:"called_at"`
	Duration        int        `gorm:"not null;default:0" json:"duration"`
	Result          CallResult `gorm:"type:verification_call_result;not null;default:'no_answer'" json:"result"`
	Notes           *string    `gorm:"type:text" json:"notes,omitempty"`
	SurveyID        *uint      `json:"survey_id,omitempty"`
	SurveyCompleted bool       `gorm:"not null;default:false" json:"survey_completed"`
	NextAttemptAt   *time.Time `json:"next_attempt_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`

	// Relations
	Assignment *CallAssignment `gorm:"foreignKey:AssignmentID;references:ID" json:"assignment,omitempty"`
}

// TableName returns the table name for the model
func (VerificationCall) TableName() string {
	return "verification_calls"
}

// BeforeCreate is called before creating a new record
func (c *VerificationCall) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Result == "" {
		c.Result = CallResultNoAnswer
	}
	if c.CalledAt.IsZero() {
		c.CalledAt = utils.UTCNow()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *VerificationCall) BeforeUpdate(tx *gorm.DB) error {
	c.UpdatedAt = utils.UTCNowPtr()
	return nil
}

// IsEnded reports whether the call has been finalized
func (c *VerificationCall) IsEnded() bool {
	return c.EndedAt != nil
}

// VerificationCallFilter represents filter criteria for verification calls
type VerificationCallFilter struct {
	ID           *uint       `json:"id,omitempty"`
	UUID         *uuid.UUID  `json:"uuid,omitempty"`
	VoterID      *uint       `json:"voter_id,omitempty"`
	AssignmentID *uint       `json:"assignment_id,omitempty"`
	CallerID     *uint       `json:"caller_id,omitempty"`
	Result       *CallResult `json:"result,omitempty"`
	CalledAfter  *time.Time  `json:"called_after,omitempty"`
	CalledBefore *time.Time  `json:"called_before,omitempty"`
}
