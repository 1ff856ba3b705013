package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Voter is owned by the voter-registration subsystem; this module only reads it
type Voter struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_voters_uuid" json:"uuid"`
	CampaignID uint      `gorm:"not null;index:idx_voters_campaign_id" json:"campaign_id"`
	Phone      *string   `gorm:"size:32" json:"phone,omitempty"`
	CreatedAt  time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_voters_created_at" json:"created_at"`
}

// TableName returns the table name for the model
func (Voter) TableName() string {
	return "voters"
}

// HasPhone reports whether the voter can be called at all
func (v *Voter) HasPhone() bool {
	return v.Phone != nil && strings.TrimSpace(*v.Phone) != ""
}

// VoterPoolFilter narrows the set of voters eligible for verification
type VoterPoolFilter struct {
	// CampaignID restricts candidates to voters affiliated with the campaign
	CampaignID *uint
	// ExcludeOpenIn skips voters that already hold an open assignment in this campaign
	ExcludeOpenIn *uint
	// MaxAttempts caps retries; zero means the default cap
	MaxAttempts int
}

// VoterCallStats summarizes a voter's call history for pool eligibility
type VoterCallStats struct {
	Attempts   int
	LastResult CallResult
	LastCallAt time.Time
	// InCall is set while any call for the voter has not ended yet
	InCall bool
}

// EligibleForPool applies the pool rule: a phone number and either no calls yet,
// or a most recent call that asks for a follow-up while attempts stay under the cap.
// A voter on the line is never eligible.
func EligibleForPool(v *Voter, stats *VoterCallStats, maxAttempts int) bool {
	if !v.HasPhone() {
		return false
	}
	if stats != nil && stats.InCall {
		return false
	}
	if stats == nil || stats.Attempts == 0 {
		return true
	}
	return stats.LastResult.RequiresFollowUp() && stats.Attempts < maxAttempts
}
