package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/campaign-callcenter/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueueOrder mirrors models.SortForQueue
const QueueOrder = "priority_rank DESC, assigned_at ASC, id ASC"

// CallAssignmentRepositoryImpl implements CallAssignmentRepository interface
type CallAssignmentRepositoryImpl struct {
	*BaseRepository[models.CallAssignment, models.CallAssignmentFilter]
}

// NewCallAssignmentRepository creates a new call assignment repository
func NewCallAssignmentRepository(db *gorm.DB) CallAssignmentRepository {
	return &CallAssignmentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CallAssignment, models.CallAssignmentFilter](db),
	}
}

// Save inserts a new assignment, translating open-assignment collisions
func (r *CallAssignmentRepositoryImpl) Save(ctx context.Context, assignment *models.CallAssignment) error {
	if err := r.BaseRepository.Save(ctx, assignment); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrOpenAssignmentExists
		}
		return err
	}
	return nil
}

// OpenForVoter returns the open assignment of a voter in a campaign, if any
func (r *CallAssignmentRepositoryImpl) OpenForVoter(ctx context.Context, voterID, campaignID uint) (*models.CallAssignment, error) {
	rows, err := r.ByFilter(ctx, models.CallAssignmentFilter{
		VoterID:    &voterID,
		CampaignID: &campaignID,
		OnlyOpen:   true,
	}, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// OpenForCallerAndVoter returns the most recent open assignment the caller holds for the voter
func (r *CallAssignmentRepositoryImpl) OpenForCallerAndVoter(ctx context.Context, callerID, voterID uint) (*models.CallAssignment, error) {
	rows, err := r.ByFilter(ctx, models.CallAssignmentFilter{
		VoterID:    &voterID,
		AssignedTo: &callerID,
		OnlyOpen:   true,
	}, "assigned_at DESC, id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListQueue returns a caller's assignments in queue order
func (r *CallAssignmentRepositoryImpl) ListQueue(ctx context.Context, callerID, campaignID uint, statuses []models.AssignmentStatus, limit int) ([]*models.CallAssignment, error) {
	filter := models.CallAssignmentFilter{
		AssignedTo: &callerID,
		CampaignID: &campaignID,
		Statuses:   statuses,
	}
	if len(statuses) == 0 {
		filter.OnlyOpen = true
	}
	return r.ByFilter(ctx, filter, QueueOrder, limit, 0)
}

// ListPendingForUpdate locks and returns every pending assignment of a caller in a campaign
func (r *CallAssignmentRepositoryImpl) ListPendingForUpdate(ctx context.Context, callerID, campaignID uint) ([]*models.CallAssignment, error) {
	status := models.AssignmentStatusPending
	query := r.applyFilter(r.getDB(ctx).Model(&models.CallAssignment{}), models.CallAssignmentFilter{
		AssignedTo: &callerID,
		CampaignID: &campaignID,
		Status:     &status,
	})

	var rows []*models.CallAssignment
	err := query.Clauses(clause.Locking{Strength: "UPDATE"}).
		Order(QueueOrder).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock pending assignments: %w", err)
	}
	return rows, nil
}

type statusCountRow struct {
	AssignedTo uint
	Status     models.AssignmentStatus
	Total      int64
}

// StatusCounts aggregates assignments per caller and status within a campaign.
// Every requested caller is present in the result, even with no assignments.
func (r *CallAssignmentRepositoryImpl) StatusCounts(ctx context.Context, campaignID uint, callerIDs []uint) (map[uint]models.StatusCounts, error) {
	out := make(map[uint]models.StatusCounts, len(callerIDs))
	if len(callerIDs) == 0 {
		return out, nil
	}
	for _, id := range callerIDs {
		out[id] = models.StatusCounts{}
	}

	var rows []statusCountRow
	err := r.getDB(ctx).Model(&models.CallAssignment{}).
		Select("assigned_to, status, COUNT(*) AS total").
		Where("campaign_id = ? AND assigned_to IN ?", campaignID, callerIDs).
		Group("assigned_to, status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate assignment counts: %w", err)
	}

	for _, row := range rows {
		c := out[row.AssignedTo]
		switch row.Status {
		case models.AssignmentStatusPending:
			c.Pending = row.Total
		case models.AssignmentStatusInProgress:
			c.InProgress = row.Total
		case models.AssignmentStatusCompleted:
			c.Completed = row.Total
		case models.AssignmentStatusReassigned:
			c.Reassigned = row.Total
		}
		out[row.AssignedTo] = c
	}

	return out, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *CallAssignmentRepositoryImpl) applyFilter(query *gorm.DB, filter models.CallAssignmentFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.VoterID != nil {
		query = query.Where("voter_id = ?", *filter.VoterID)
	}
	if filter.AssignedTo != nil {
		query = query.Where("assigned_to = ?", *filter.AssignedTo)
	}
	if filter.CampaignID != nil {
		query = query.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.OnlyOpen {
		query = query.Where("status IN ?", models.OpenAssignmentStatuses)
	}
	if filter.AssignedAfter != nil {
		query = query.Where("assigned_at > ?", *filter.AssignedAfter)
	}
	if filter.AssignedBefore != nil {
		query = query.Where("assigned_at < ?", *filter.AssignedBefore)
	}
	return query
}

// ByFilter retrieves assignments based on filter criteria
func (r *CallAssignmentRepositoryImpl) ByFilter(ctx context.Context, filter models.CallAssignmentFilter, orderBy string, limit, offset int) ([]*models.CallAssignment, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CallAssignment{}), filter)

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

	var rows []*models.CallAssignment
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list call assignments: %w", err)
	}
	return rows, nil
}

// Count returns number of assignments matching filter
func (r *CallAssignmentRepositoryImpl) Count(ctx context.Context, filter models.CallAssignmentFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.CallAssignment{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count call assignments: %w", err)
	}
	return count, nil
}

// Exists checks if any assignment matches the filter
func (r *CallAssignmentRepositoryImpl) Exists(ctx context.Context, filter models.CallAssignmentFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
