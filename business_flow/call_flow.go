package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amirphl/campaign-callcenter/app/dto"
	"github.com/amirphl/campaign-callcenter/models"
	"github.com/amirphl/campaign-callcenter/repository"
	"github.com/amirphl/campaign-callcenter/utils"
)

// CallFlow records verification call attempts and their outcomes
type CallFlow interface {
	StartCall(ctx context.Context, req *dto.StartCallRequest, metadata *ClientMetadata) (*dto.CallResponse, error)
	EndCall(ctx context.Context, req *dto.EndCallRequest, metadata *ClientMetadata) (*dto.CallResponse, error)
	ListVoterCalls(ctx context.Context, req *dto.ListVoterCallsRequest) (*dto.ListVoterCallsResponse, error)
}

// CallFlowImpl implements CallFlow
type CallFlowImpl struct {
	tx             repository.Transactor
	ledger         *assignmentLedger
	voterRepo      repository.VoterRepository
	assignmentRepo repository.CallAssignmentRepository
	callRepo       repository.VerificationCallRepository
	auditRepo      repository.AuditLogRepository
	callbackDelay  time.Duration
	logger         *slog.Logger
}

// NewCallFlow creates a new call flow
func NewCallFlow(
	tx repository.Transactor,
	voterRepo repository.VoterRepository,
	assignmentRepo repository.CallAssignmentRepository,
	callRepo repository.VerificationCallRepository,
	auditRepo repository.AuditLogRepository,
	callbackDelay time.Duration,
	logger *slog.Logger,
) CallFlow {
	if callbackDelay <= 0 {
		callbackDelay = utils.DefaultCallbackDelay
	}
	return &CallFlowImpl{
		tx:             tx,
		ledger:         &assignmentLedger{voterRepo: voterRepo, assignmentRepo: assignmentRepo},
		voterRepo:      voterRepo,
		assignmentRepo: assignmentRepo,
		callRepo:       callRepo,
		auditRepo:      auditRepo,
		callbackDelay:  callbackDelay,
		logger:         loggerOrNop(logger),
	}
}

// StartCall opens the next attempt for a voter. The voter row is locked so the
// attempt number is counted and inserted atomically. Assignment status is not touched.
func (f *CallFlowImpl) StartCall(ctx context.Context, req *dto.StartCallRequest, metadata *ClientMetadata) (*dto.CallResponse, error) {
	var call *models.VerificationCall
	err := f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		voter, err := f.voterRepo.ByIDForUpdate(txCtx, req.VoterID)
		if err != nil {
			return err
		}
		if voter == nil {
			return NewBusinessErrorf(CodeVoterNotFound, "voter %d not found", ErrVoterNotFound, req.VoterID)
		}

		assignmentID, err := f.bindAssignment(txCtx, req)
		if err != nil {
			return err
		}

		attempts, err := f.callRepo.CountByVoter(txCtx, voter.ID)
		if err != nil {
			return err
		}

		call = &models.VerificationCall{
			VoterID:       voter.ID,
			AssignmentID:  assignmentID,
			CallerID:      req.ActorID,
			AttemptNumber: int(attempts) + 1,
			CalledAt:      utils.UTCNow(),
			Duration:      0,
			Result:        models.CallResultNoAnswer,
			SurveyID:      req.SurveyID,
		}
		if err := f.callRepo.Save(txCtx, call); err != nil {
			if errors.Is(err, repository.ErrAttemptNumberTaken) {
				return fmt.Errorf("attempt %d for voter %d: %w", call.AttemptNumber, voter.ID, err)
			}
			return err
		}
		return nil
	})

	extra := map[string]any{"voter_id": req.VoterID}
	if err != nil {
		logAudit(ctx, f.logger, f.auditRepo, req.ActorID, models.AuditActionCallStarted,
			fmt.Sprintf("Start call for voter %d failed", req.VoterID), err, extra, metadata)
		return nil, wrapInternal(err, "START_CALL_FAILED", "Failed to start call")
	}

	extra["call_id"] = call.ID
	extra["attempt_number"] = call.AttemptNumber
	logAudit(ctx, f.logger, f.auditRepo, req.ActorID, models.AuditActionCallStarted,
		fmt.Sprintf("Call attempt %d started for voter %d", call.AttemptNumber, call.VoterID), nil, extra, metadata)

	return &dto.CallResponse{
		Message: "Call started",
		Call:    ToCallItem(call),
	}, nil
}

// bindAssignment resolves the assignment a new call belongs to: the explicit one
// when given, otherwise the caller's open assignment for the voter, if any
func (f *CallFlowImpl) bindAssignment(ctx context.Context, req *dto.StartCallRequest) (*uint, error) {
	if req.AssignmentID != nil {
		a, err := f.assignmentRepo.ByID(ctx, *req.AssignmentID)
		if err != nil {
			return nil, err
		}
		if a == nil {
			return nil, NewBusinessErrorf(CodeAssignmentNotFound, "assignment %d not found", ErrAssignmentNotFound, *req.AssignmentID)
		}
		if a.VoterID != req.VoterID {
			return nil, NewBusinessErrorf(CodeAssignmentVoterMismatch, "assignment %d belongs to voter %d, not %d",
				ErrAssignmentVoterMismatch, a.ID, a.VoterID, req.VoterID)
		}
		return utils.ToPtr(a.ID), nil
	}

	a, err := f.assignmentRepo.OpenForCallerAndVoter(ctx, req.ActorID, req.VoterID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, nil
	}
	return utils.ToPtr(a.ID), nil
}

// EndCall finalizes a call and applies its outcome to the owning assignment
func (f *CallFlowImpl) EndCall(ctx context.Context, req *dto.EndCallRequest, metadata *ClientMetadata) (*dto.CallResponse, error) {
	result := models.CallResult(req.Result)
	if !result.Valid() {
		return nil, NewBusinessErrorf(CodeInvalidCallResult, "unknown call result %q", ErrInvalidCallResult, req.Result)
	}
	if req.Duration < 0 {
		return nil, NewBusinessError(CodeInvalidDuration, "Duration must not be negative", ErrInvalidDuration)
	}

	var call *models.VerificationCall
	err := f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		call, err = f.callRepo.ByIDForUpdate(txCtx, req.CallID)
		if err != nil {
			return err
		}
		if call == nil {
			return NewBusinessErrorf(CodeCallNotFound, "call %d not found", ErrCallNotFound, req.CallID)
		}
		if call.IsEnded() {
			return NewBusinessErrorf(CodeCallAlreadyEnded, "call %d already ended", ErrCallAlreadyEnded, call.ID)
		}

		now := utils.UTCNow()
		call.Result = result
		call.Duration = req.Duration
		call.Notes = req.Notes
		call.SurveyCompleted = req.SurveyCompleted
		call.EndedAt = &now
		if result == models.CallResultCallbackRequested {
			call.NextAttemptAt = utils.ToPtr(now.Add(f.callbackDelay))
		}
		if err := f.callRepo.Update(txCtx, call); err != nil {
			return err
		}

		if call.AssignmentID == nil {
			return nil
		}
		return f.applyOutcome(txCtx, *call.AssignmentID, result)
	})

	extra := map[string]any{"call_id": req.CallID, "result": req.Result}
	if err != nil {
		logAudit(ctx, f.logger, f.auditRepo, req.ActorID, models.AuditActionCallEnded,
			fmt.Sprintf("End call %d failed", req.CallID), err, extra, metadata)
		return nil, wrapInternal(err, "END_CALL_FAILED", "Failed to end call")
	}

	verificationCallsTotal.WithLabelValues(result.String()).Inc()
	extra["voter_id"] = call.VoterID
	extra["duration"] = call.Duration
	logAudit(ctx, f.logger, f.auditRepo, req.ActorID, models.AuditActionCallEnded,
		fmt.Sprintf("Call %d ended with %s", call.ID, result), nil, extra, metadata)

	return &dto.CallResponse{
		Message: "Call ended",
		Call:    ToCallItem(call),
	}, nil
}

// applyOutcome completes the assignment on a closing result and otherwise puts
// an in_progress assignment back to pending. Closed assignments are left alone.
func (f *CallFlowImpl) applyOutcome(ctx context.Context, assignmentID uint, result models.CallResult) error {
	a, err := f.ledger.load(ctx, assignmentID)
	if err != nil {
		return err
	}
	if !a.IsOpen() {
		utils.LoggerFromContext(ctx, f.logger).Debug("call ended on a closed assignment",
			slog.Uint64("assignment_id", uint64(a.ID)),
			slog.String("status", a.Status.String()))
		return nil
	}

	switch {
	case result.ClosesAssignment():
		_, err = f.ledger.transition(ctx, a, models.AssignmentStatusCompleted)
	case a.Status == models.AssignmentStatusInProgress:
		_, err = f.ledger.transition(ctx, a, models.AssignmentStatusPending)
	}
	return err
}

// ListVoterCalls returns a voter's calls newest first
func (f *CallFlowImpl) ListVoterCalls(ctx context.Context, req *dto.ListVoterCallsRequest) (*dto.ListVoterCallsResponse, error) {
	voter, err := f.voterRepo.ByID(ctx, req.VoterID)
	if err != nil {
		return nil, NewBusinessError("LIST_CALLS_FAILED", "Failed to load voter", err)
	}
	if voter == nil {
		return nil, NewBusinessErrorf(CodeVoterNotFound, "voter %d not found", ErrVoterNotFound, req.VoterID)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = utils.DefaultListLimit
	}

	calls, err := f.callRepo.ListByVoter(ctx, voter.ID, limit, req.Offset)
	if err != nil {
		return nil, NewBusinessError("LIST_CALLS_FAILED", "Failed to list calls", err)
	}

	items := make([]dto.CallItem, 0, len(calls))
	for _, c := range calls {
		items = append(items, ToCallItem(c))
	}
	return &dto.ListVoterCallsResponse{Items: items}, nil
}
