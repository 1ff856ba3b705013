package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/campaign-callcenter/models"
	"gorm.io/gorm"
)

// AuditLogRepositoryImpl implements AuditLogRepository interface
type AuditLogRepositoryImpl struct {
	*BaseRepository[models.AuditLog, models.AuditLogFilter]
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &AuditLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AuditLog, models.AuditLogFilter](db),
	}
}

// ListByActor retrieves audit logs written on behalf of a user
func (r *AuditLogRepositoryImpl) ListByActor(ctx context.Context, actorID uint, limit, offset int) ([]*models.AuditLog, error) {
	logs, err := r.ByFilter(ctx, models.AuditLogFilter{ActorID: &actorID}, "created_at DESC", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs by actor: %w", err)
	}
	return logs, nil
}

// ListByAction retrieves audit logs for a specific action with pagination
func (r *AuditLogRepositoryImpl) ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error) {
	logs, err := r.ByFilter(ctx, models.AuditLogFilter{Action: &action}, "created_at DESC", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs by action: %w", err)
	}
	return logs, nil
}

func (r *AuditLogRepositoryImpl) applyFilter(query *gorm.DB, filter models.AuditLogFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}
	if filter.Action != nil {
		query = query.Where("action = ?", *filter.Action)
	}
	if filter.Success != nil {
		query = query.Where("success = ?", *filter.Success)
	}
	if filter.RequestID != nil {
		query = query.Where("request_id = ?", *filter.RequestID)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves audit logs based on filter criteria
func (r *AuditLogRepositoryImpl) ByFilter(ctx context.Context, filter models.AuditLogFilter, orderBy string, limit, offset int) ([]*models.AuditLog, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.AuditLog{}), filter)
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

	var rows []*models.AuditLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of audit logs matching filter
func (r *AuditLogRepositoryImpl) Count(ctx context.Context, filter models.AuditLogFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.AuditLog{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any audit log matches the filter
func (r *AuditLogRepositoryImpl) Exists(ctx context.Context, filter models.AuditLogFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
