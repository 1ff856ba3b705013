package businessflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amirphl/campaign-callcenter/app/dto"
	"github.com/amirphl/campaign-callcenter/models"
	"github.com/amirphl/campaign-callcenter/repository"
	"github.com/amirphl/campaign-callcenter/utils"
)

// AssignmentFlow is the public face of the assignment ledger
type AssignmentFlow interface {
	AssignVoter(ctx context.Context, req *dto.AssignVoterRequest, metadata *ClientMetadata) (*dto.AssignmentResponse, error)
	StartAssignment(ctx context.Context, req *dto.AssignmentActionRequest, metadata *ClientMetadata) (*dto.AssignmentResponse, error)
	CompleteAssignment(ctx context.Context, req *dto.AssignmentActionRequest, metadata *ClientMetadata) (*dto.AssignmentResponse, error)
}

// AssignmentFlowImpl implements AssignmentFlow
type AssignmentFlowImpl struct {
	tx        repository.Transactor
	ledger    *assignmentLedger
	auditRepo repository.AuditLogRepository
	logger    *slog.Logger
}

// NewAssignmentFlow creates a new assignment flow
func NewAssignmentFlow(
	tx repository.Transactor,
	voterRepo repository.VoterRepository,
	assignmentRepo repository.CallAssignmentRepository,
	auditRepo repository.AuditLogRepository,
	logger *slog.Logger,
) AssignmentFlow {
	return &AssignmentFlowImpl{
		tx:        tx,
		ledger:    &assignmentLedger{voterRepo: voterRepo, assignmentRepo: assignmentRepo},
		auditRepo: auditRepo,
		logger:    loggerOrNop(logger),
	}
}

// AssignVoter creates one pending assignment. The retry cap is not applied here:
// a supervisor may hand an over-attempted voter to a caller on purpose.
func (f *AssignmentFlowImpl) AssignVoter(ctx context.Context, req *dto.AssignVoterRequest, metadata *ClientMetadata) (*dto.AssignmentResponse, error) {
	priority, err := parsePriority(req.Priority)
	if err != nil {
		return nil, err
	}

	var created *models.CallAssignment
	err = f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		created, err = f.ledger.create(txCtx, newAssignment{
			CampaignID: req.CampaignID,
			VoterID:    req.VoterID,
			CallerID:   req.CallerID,
			AssignedBy: req.ActorID,
			Priority:   priority,
		}, modeManual)
		return err
	})

	extra := map[string]any{"campaign_id": req.CampaignID, "voter_id": req.VoterID, "caller_id": req.CallerID}
	if err != nil {
		logAudit(ctx, f.logger, f.auditRepo, req.ActorID, models.AuditActionAssignmentCreated,
			fmt.Sprintf("Assign voter %d to caller %d failed", req.VoterID, req.CallerID), err, extra, metadata)
		return nil, wrapInternal(err, "ASSIGN_VOTER_FAILED", "Failed to assign voter")
	}

	extra["assignment_id"] = created.ID
	logAudit(ctx, f.logger, f.auditRepo, req.ActorID, models.AuditActionAssignmentCreated,
		fmt.Sprintf("Voter %d assigned to caller %d", req.VoterID, req.CallerID), nil, extra, metadata)

	return &dto.AssignmentResponse{
		Message:    "Voter assigned successfully",
		Assignment: ToAssignmentItem(created),
	}, nil
}

// StartAssignment marks an assignment in_progress
func (f *AssignmentFlowImpl) StartAssignment(ctx context.Context, req *dto.AssignmentActionRequest, metadata *ClientMetadata) (*dto.AssignmentResponse, error) {
	return f.move(ctx, req, metadata, models.AssignmentStatusInProgress, models.AuditActionAssignmentStarted, "Assignment started")
}

// CompleteAssignment marks an assignment completed
func (f *AssignmentFlowImpl) CompleteAssignment(ctx context.Context, req *dto.AssignmentActionRequest, metadata *ClientMetadata) (*dto.AssignmentResponse, error) {
	return f.move(ctx, req, metadata, models.AssignmentStatusCompleted, models.AuditActionAssignmentCompleted, "Assignment completed")
}

func (f *AssignmentFlowImpl) move(ctx context.Context, req *dto.AssignmentActionRequest, metadata *ClientMetadata, to models.AssignmentStatus, action, message string) (*dto.AssignmentResponse, error) {
	var (
		a       *models.CallAssignment
		changed bool
	)
	err := f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		a, err = f.ledger.load(txCtx, req.AssignmentID)
		if err != nil {
			return err
		}
		changed, err = f.ledger.transition(txCtx, a, to)
		return err
	})

	extra := map[string]any{"assignment_id": req.AssignmentID, "to": to.String()}
	if err != nil {
		logAudit(ctx, f.logger, f.auditRepo, req.ActorID, action,
			fmt.Sprintf("Move assignment %d to %s failed", req.AssignmentID, to), err, extra, metadata)
		return nil, wrapInternal(err, "ASSIGNMENT_TRANSITION_FAILED", "Failed to update assignment")
	}

	if changed {
		logAudit(ctx, f.logger, f.auditRepo, req.ActorID, action,
			fmt.Sprintf("Assignment %d moved to %s", a.ID, to), nil, extra, metadata)
	} else {
		utils.LoggerFromContext(ctx, f.logger).Debug("assignment already in requested status",
			slog.Uint64("assignment_id", uint64(a.ID)),
			slog.String("status", a.Status.String()))
	}

	return &dto.AssignmentResponse{
		Message:    message,
		Assignment: ToAssignmentItem(a),
	}, nil
}

// wrapInternal leaves business errors intact and wraps everything else
func wrapInternal(err error, code, message string) error {
	if isItemFailure(err) || IsCallAlreadyEnded(err) {
		return err
	}
	return NewBusinessError(code, message, err)
}
