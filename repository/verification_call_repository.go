package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/campaign-callcenter/models"
	"gorm.io/gorm"
)

// VerificationCallRepositoryImpl implements VerificationCallRepository interface
type VerificationCallRepositoryImpl struct {
	*BaseRepository[models.VerificationCall, models.VerificationCallFilter]
}

// NewVerificationCallRepository creates a new verification call repository
func NewVerificationCallRepository(db *gorm.DB) VerificationCallRepository {
	return &VerificationCallRepositoryImpl{
		BaseRepository: NewBaseRepository[models.VerificationCall, models.VerificationCallFilter](db),
	}
}

// Save inserts a new call, translating attempt-number collisions
func (r *VerificationCallRepositoryImpl) Save(ctx context.Context, call *models.VerificationCall) error {
	if err := r.BaseRepository.Save(ctx, call); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrAttemptNumberTaken
		}
		return err
	}
	return nil
}

// CountByVoter returns how many calls were ever logged for a voter
func (r *VerificationCallRepositoryImpl) CountByVoter(ctx context.Context, voterID uint) (int64, error) {
	return r.Count(ctx, models.VerificationCallFilter{VoterID: &voterID})
}

// ListByVoter returns a voter's call history, newest first
func (r *VerificationCallRepositoryImpl) ListByVoter(ctx context.Context, voterID uint, limit, offset int) ([]*models.VerificationCall, error) {
	return r.ByFilter(ctx, models.VerificationCallFilter{VoterID: &voterID}, "called_at DESC, attempt_number DESC", limit, offset)
}

// applyFilter applies filter criteria to a GORM query
func (r *VerificationCallRepositoryImpl) applyFilter(query *gorm.DB, filter models.VerificationCallFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.VoterID != nil {
		query = query.Where("voter_id = ?", *filter.VoterID)
	}
	if filter.AssignmentID != nil {
		query = query.Where("assignment_id = ?", *filter.AssignmentID)
	}
	if filter.CallerID != nil {
		query = query.Where("caller_id = ?", *filter.CallerID)
	}
	if filter.Result != nil {
		query = query.Where("result = ?", *filter.Result)
	}
	if filter.CalledAfter != nil {
		query = query.Where("called_at > ?", *filter.CalledAfter)
	}
	if filter.CalledBefore != nil {
		query = query.Where("called_at < ?", *filter.CalledBefore)
	}
	return query
}

// ByFilter retrieves calls based on filter criteria
func (r *VerificationCallRepositoryImpl) ByFilter(ctx context.Context, filter models.VerificationCallFilter, orderBy string, limit, offset int) ([]*models.VerificationCall, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.VerificationCall{}), filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.VerificationCall
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list verification calls: %w", err)
	}
	return rows, nil
}

// Count returns number of calls matching filter
func (r *VerificationCallRepositoryImpl) Count(ctx context.Context, filter models.VerificationCallFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.VerificationCall{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count verification calls: %w", err)
	}
	return count, nil
}

// Exists checks if any call matches the filter
func (r *VerificationCallRepositoryImpl) Exists(ctx context.Context, filter models.VerificationCallFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
