package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/campaign-callcenter/models"
	"github.com/amirphl/campaign-callcenter/utils"
	"gorm.io/gorm"
)

// VoterRepositoryImpl implements VoterRepository interface
type VoterRepositoryImpl struct {
	*BaseRepository[models.Voter, models.VoterPoolFilter]
}

// NewVoterRepository creates a new voter repository
func NewVoterRepository(db *gorm.DB) VoterRepository {
	return &VoterRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Voter, models.VoterPoolFilter](db),
	}
}

const (
	lastCallJoin = `LEFT JOIN LATERAL (
		SELECT vc.result, vc.called_at
		FROM verification_calls vc
		WHERE vc.voter_id = v.id
		ORDER BY vc.attempt_number DESC
		LIMIT 1
	) last_call ON TRUE`
	attemptsJoin = `LEFT JOIN LATERAL (
		SELECT COUNT(*) AS attempts
		FROM verification_calls vc
		WHERE vc.voter_id = v.id
	) call_stats ON TRUE`
	activeCallExclusion = `NOT EXISTS (
		SELECT 1 FROM verification_calls vc
		WHERE vc.voter_id = v.id AND vc.ended_at IS NULL
	)`
	openAssignmentExclusion = `NOT EXISTS (
		SELECT 1 FROM call_assignments ca
		WHERE ca.voter_id = v.id AND ca.campaign_id = ? AND ca.status IN ?
	)`
)

// NextCandidates returns voters eligible for a verification call.
// Never-called voters come first by created_at, then retries by their last call date.
func (r *VoterRepositoryImpl) NextCandidates(ctx context.Context, filter models.VoterPoolFilter, limit int) ([]*models.Voter, error) {
	maxAttempts := filter.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = utils.DefaultMaxCallAttempts
	}

	query := r.getDB(ctx).
		Table("voters AS v").
		Select("v.*").
		Joins(lastCallJoin).
		Joins(attemptsJoin).
		Where("v.phone IS NOT NULL AND btrim(v.phone) <> ''").
		Where(activeCallExclusion).
		Where("last_call.result IS NULL OR (last_call.result IN ? AND call_stats.attempts < ?)",
			models.FollowUpCallResults(), maxAttempts)

	if filter.CampaignID != nil {
		query = query.Where("v.campaign_id = ?", *filter.CampaignID)
	}
	if filter.ExcludeOpenIn != nil {
		query = query.Where(openAssignmentExclusion, *filter.ExcludeOpenIn, models.OpenAssignmentStatuses)
	}

	query = query.Order("last_call.called_at IS NOT NULL ASC").
		Order("CASE WHEN last_call.called_at IS NULL THEN v.created_at END ASC").
		Order("last_call.called_at ASC").
		Order("v.id ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	var voters []*models.Voter
	if err := query.Find(&voters).Error; err != nil {
		return nil, fmt.Errorf("failed to query voter pool: %w", err)
	}

	return voters, nil
}
