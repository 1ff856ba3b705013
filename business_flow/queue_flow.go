package businessflow

import (
	"context"
	"log/slog"

	"github.com/amirphl/campaign-callcenter/app/dto"
	"github.com/amirphl/campaign-callcenter/models"
	"github.com/amirphl/campaign-callcenter/repository"
	"github.com/amirphl/campaign-callcenter/utils"
)

// QueueFlow is the read side of a caller's work: open assignments in serving order
type QueueFlow interface {
	CallerQueue(ctx context.Context, req *dto.CallerQueueRequest) (*dto.CallerQueueResponse, error)
	NextAssignment(ctx context.Context, callerID, campaignID uint) (*dto.NextAssignmentResponse, error)
}

// QueueFlowImpl implements QueueFlow
type QueueFlowImpl struct {
	assignmentRepo repository.CallAssignmentRepository
	maxQueueSize   int
	logger         *slog.Logger
}

// NewQueueFlow creates a new queue flow
func NewQueueFlow(assignmentRepo repository.CallAssignmentRepository, maxQueueSize int, logger *slog.Logger) QueueFlow {
	if maxQueueSize <= 0 {
		maxQueueSize = utils.MaxQueueSize
	}
	return &QueueFlowImpl{
		assignmentRepo: assignmentRepo,
		maxQueueSize:   maxQueueSize,
		logger:         loggerOrNop(logger),
	}
}

// CallerQueue lists pending and in_progress assignments, highest priority first,
// oldest first within a priority
func (f *QueueFlowImpl) CallerQueue(ctx context.Context, req *dto.CallerQueueRequest) (*dto.CallerQueueResponse, error) {
	limit := req.Limit
	if limit == 0 {
		limit = utils.DefaultListLimit
	}
	if limit < 0 || limit > f.maxQueueSize {
		return nil, NewBusinessErrorf(CodeInvalidQueueSize, "limit must be between 1 and %d", ErrInvalidQueueSize, f.maxQueueSize)
	}

	rows, err := f.assignmentRepo.ListQueue(ctx, req.CallerID, req.CampaignID, models.OpenAssignmentStatuses, limit)
	if err != nil {
		return nil, NewBusinessError("CALLER_QUEUE_FAILED", "Failed to read caller queue", err)
	}

	return &dto.CallerQueueResponse{Items: ToAssignmentItems(rows)}, nil
}

// NextAssignment returns the head of the caller's pending queue, if any
func (f *QueueFlowImpl) NextAssignment(ctx context.Context, callerID, campaignID uint) (*dto.NextAssignmentResponse, error) {
	rows, err := f.assignmentRepo.ListQueue(ctx, callerID, campaignID,
		[]models.AssignmentStatus{models.AssignmentStatusPending}, 1)
	if err != nil {
		return nil, NewBusinessError("NEXT_ASSIGNMENT_FAILED", "Failed to read next assignment", err)
	}

	if len(rows) == 0 {
		utils.LoggerFromContext(ctx, f.logger).Debug("caller queue empty",
			slog.Uint64("caller_id", uint64(callerID)),
			slog.Uint64("campaign_id", uint64(campaignID)))
		return &dto.NextAssignmentResponse{Found: false}, nil
	}

	item := ToAssignmentItem(rows[0])
	return &dto.NextAssignmentResponse{Found: true, Assignment: &item}, nil
}
