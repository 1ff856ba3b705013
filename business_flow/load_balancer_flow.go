package businessflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/amirphl/campaign-callcenter/app/dto"
	"github.com/amirphl/campaign-callcenter/app/services"
	"github.com/amirphl/campaign-callcenter/config"
	"github.com/amirphl/campaign-callcenter/models"
	"github.com/amirphl/campaign-callcenter/repository"
	"github.com/amirphl/campaign-callcenter/utils"
)

// LoadBalancerFlow distributes voters across callers and reports workload
type LoadBalancerFlow interface {
	AssignVoters(ctx context.Context, req *dto.AssignVotersRequest, metadata *ClientMetadata) (*dto.BatchAssignResponse, error)
	AutoAssignVoters(ctx context.Context, req *dto.AutoAssignVotersRequest, metadata *ClientMetadata) (*dto.BatchAssignResponse, error)
	LoadBatchForCaller(ctx context.Context, req *dto.LoadBatchRequest, metadata *ClientMetadata) (*dto.LoadBatchResponse, error)
	ReassignPending(ctx context.Context, req *dto.ReassignPendingRequest, metadata *ClientMetadata) (*dto.ReassignPendingResponse, error)
	GetCallerWorkload(ctx context.Context, req *dto.CallerWorkloadRequest) (*dto.CallerWorkloadResponse, error)
	ExportCallerWorkload(ctx context.Context, req *dto.CallerWorkloadRequest) (*dto.WorkloadExport, error)
}

// LoadBalancerFlowImpl implements LoadBalancerFlow
type LoadBalancerFlowImpl struct {
	tx             repository.Transactor
	ledger         *assignmentLedger
	voterRepo      repository.VoterRepository
	assignmentRepo repository.CallAssignmentRepository
	auditRepo      repository.AuditLogRepository
	locker         services.Locker
	cfg            config.CallCenterConfig
	logger         *slog.Logger
}

// NewLoadBalancerFlow creates a new load balancer flow. locker may be nil.
func NewLoadBalancerFlow(
	tx repository.Transactor,
	voterRepo repository.VoterRepository,
	assignmentRepo repository.CallAssignmentRepository,
	auditRepo repository.AuditLogRepository,
	locker services.Locker,
	cfg config.CallCenterConfig,
	logger *slog.Logger,
) LoadBalancerFlow {
	return &LoadBalancerFlowImpl{
		tx:             tx,
		ledger:         &assignmentLedger{voterRepo: voterRepo, assignmentRepo: assignmentRepo},
		voterRepo:      voterRepo,
		assignmentRepo: assignmentRepo,
		auditRepo:      auditRepo,
		locker:         locker,
		cfg:            cfg,
		logger:         loggerOrNop(logger),
	}
}

// AssignVoters creates one assignment per voter for a single caller.
// Voters that cannot be assigned are reported and skipped.
func (f *LoadBalancerFlowImpl) AssignVoters(ctx context.Context, req *dto.AssignVotersRequest, metadata *ClientMetadata) (*dto.BatchAssignResponse, error) {
	priority, err := parsePriority(req.Priority)
	if err != nil {
		return nil, err
	}
	if err := f.checkBatchSize(len(req.VoterIDs)); err != nil {
		return nil, err
	}
	if len(req.VoterIDs) == 0 {
		return emptyBatchReport(), nil
	}

	plan := make([]plannedAssignment, 0, len(req.VoterIDs))
	for _, voterID := range req.VoterIDs {
		plan = append(plan, plannedAssignment{voterID: voterID, callerID: req.CallerID})
	}

	resp, err := f.runAssignmentPlan(ctx, "assign_voters", req.CampaignID, req.ActorID, priority, modeBatch, plan, nil)
	f.auditBatch(ctx, req.ActorID, req.CampaignID, "batch", resp, err, metadata)
	if err != nil {
		return nil, wrapInternal(err, "ASSIGN_VOTERS_FAILED", "Failed to assign voters")
	}
	return resp, nil
}

// AutoAssignVoters spreads voters over callers in one round-robin pass,
// starting from the caller with the fewest pending assignments.
func (f *LoadBalancerFlowImpl) AutoAssignVoters(ctx context.Context, req *dto.AutoAssignVotersRequest, metadata *ClientMetadata) (*dto.BatchAssignResponse, error) {
	callers := utils.DedupeUints(req.CallerIDs)
	if len(callers) == 0 {
		return nil, NewBusinessError(CodeNoCallersAvailable, "At least one caller is required", ErrNoCallersAvailable)
	}
	priority, err := parsePriority(req.Priority)
	if err != nil {
		return nil, err
	}
	if err := f.checkBatchSize(len(req.VoterIDs)); err != nil {
		return nil, err
	}
	if len(req.VoterIDs) == 0 {
		return emptyBatchReport(), nil
	}

	// Workload is read inside the same transaction as the inserts
	planFn := func(txCtx context.Context) ([]plannedAssignment, error) {
		counts, err := f.assignmentRepo.StatusCounts(txCtx, req.CampaignID, callers)
		if err != nil {
			return nil, err
		}
		ordered := OrderCallersByPending(callers, counts)

		plan := make([]plannedAssignment, 0, len(req.VoterIDs))
		for i, voterID := range req.VoterIDs {
			plan = append(plan, plannedAssignment{voterID: voterID, callerID: ordered[i%len(ordered)]})
		}
		return plan, nil
	}

	resp, err := f.runAssignmentPlan(ctx, "auto_assign_voters", req.CampaignID, req.ActorID, priority, modeAuto, nil, planFn)
	f.auditBatch(ctx, req.ActorID, req.CampaignID, "auto", resp, err, metadata)
	if err != nil {
		return nil, wrapInternal(err, "AUTO_ASSIGN_FAILED", "Failed to auto-assign voters")
	}
	return resp, nil
}

// OrderCallersByPending sorts callers by pending count ascending, ties by id
func OrderCallersByPending(callers []uint, counts map[uint]models.StatusCounts) []uint {
	ordered := append([]uint(nil), callers...)
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, pj := counts[ordered[i]].Pending, counts[ordered[j]].Pending
		if pi != pj {
			return pi < pj
		}
		return ordered[i] < ordered[j]
	})
	return ordered
}

type plannedAssignment struct {
	voterID  uint
	callerID uint
}

// runAssignmentPlan creates each planned assignment in its own savepoint so one
// bad voter does not abort the rest. Either plan or planFn is provided.
func (f *LoadBalancerFlowImpl) runAssignmentPlan(
	ctx context.Context,
	operation string,
	campaignID, actorID uint,
	priority models.AssignmentPriority,
	mode string,
	plan []plannedAssignment,
	planFn func(context.Context) ([]plannedAssignment, error),
) (*dto.BatchAssignResponse, error) {
	resp := &dto.BatchAssignResponse{
		Succeeded: []dto.AssignmentItem{},
		Failed:    []dto.BatchFailure{},
	}

	err := f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if planFn != nil {
			var err error
			plan, err = planFn(txCtx)
			if err != nil {
				return err
			}
		}

		for _, p := range plan {
			var created *models.CallAssignment
			itemErr := f.tx.WithTransaction(txCtx, func(itemCtx context.Context) error {
				var err error
				created, err = f.ledger.create(itemCtx, newAssignment{
					CampaignID: campaignID,
					VoterID:    p.voterID,
					CallerID:   p.callerID,
					AssignedBy: actorID,
					Priority:   priority,
				}, mode)
				return err
			})
			if itemErr != nil {
				if !isItemFailure(itemErr) {
					return itemErr
				}
				batchFailuresTotal.WithLabelValues(operation, ErrorCode(itemErr)).Inc()
				resp.Failed = append(resp.Failed, batchFailure(utils.ToPtr(p.voterID), nil, itemErr))
				continue
			}
			resp.Succeeded = append(resp.Succeeded, ToAssignmentItem(created))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp.Message = fmt.Sprintf("%d assigned, %d skipped", len(resp.Succeeded), len(resp.Failed))
	return resp, nil
}

// LoadBatchForCaller tops up the caller's open assignments to the target size from the voter pool
func (f *LoadBalancerFlowImpl) LoadBatchForCaller(ctx context.Context, req *dto.LoadBatchRequest, metadata *ClientMetadata) (*dto.LoadBatchResponse, error) {
	target := req.TargetQueueSize
	if target == 0 {
		target = f.cfg.DefaultQueueSize
	}
	if target < 0 || target > f.cfg.MaxQueueSize {
		return nil, NewBusinessErrorf(CodeInvalidQueueSize, "target queue size must be between 1 and %d", ErrInvalidQueueSize, f.cfg.MaxQueueSize)
	}

	logger := utils.LoggerFromContext(ctx, f.logger).With(
		slog.Uint64("campaign_id", uint64(req.CampaignID)),
		slog.Uint64("caller_id", uint64(req.CallerID)))

	if f.locker != nil {
		key := fmt.Sprintf("load-batch:%d:%d", req.CampaignID, req.CallerID)
		release, err := f.locker.TryLock(ctx, key, f.cfg.LockTTL)
		switch {
		case err != nil:
			// the lock only narrows overshoot; the unique index still guards duplicates
			logger.Warn("batch lock unavailable, continuing without it", slog.Any("error", err))
		case release == nil:
			return nil, NewBusinessError(CodeLockNotAcquired, "A batch is already being loaded for this caller", ErrLockNotAcquired)
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					logger.Warn("failed to release batch lock", slog.Any("error", err))
				}
			}()
		}
	}

	created := 0
	skipped := 0
	err := f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		counts, err := f.assignmentRepo.StatusCounts(txCtx, req.CampaignID, []uint{req.CallerID})
		if err != nil {
			return err
		}
		open := int(counts[req.CallerID].Open())
		if open >= target {
			return nil
		}

		campaignID := req.CampaignID
		candidates, err := f.voterRepo.NextCandidates(txCtx, models.VoterPoolFilter{
			CampaignID:    &campaignID,
			ExcludeOpenIn: &campaignID,
			MaxAttempts:   f.cfg.MaxAttempts,
		}, target-open)
		if err != nil {
			return err
		}

		for _, voter := range candidates {
			itemErr := f.tx.WithTransaction(txCtx, func(itemCtx context.Context) error {
				_, err := f.ledger.create(itemCtx, newAssignment{
					CampaignID: req.CampaignID,
					VoterID:    voter.ID,
					CallerID:   req.CallerID,
					AssignedBy: req.ActorID,
					Priority:   models.AssignmentPriorityMedium,
				}, modePool)
				return err
			})
			if itemErr != nil {
				if !isItemFailure(itemErr) {
					return itemErr
				}
				// another loader took the voter first
				skipped++
				batchFailuresTotal.WithLabelValues("load_batch", ErrorCode(itemErr)).Inc()
				continue
			}
			created++
		}
		return nil
	})

	extra := map[string]any{"campaign_id": req.CampaignID, "caller_id": req.CallerID, "target": target, "created": created, "skipped": skipped}
	if err != nil {
		logAudit(ctx, f.logger, f.auditRepo, req.ActorID, models.AuditActionBatchLoaded,
			fmt.Sprintf("Load batch for caller %d failed", req.CallerID), err, extra, metadata)
		return nil, wrapInternal(err, "LOAD_BATCH_FAILED", "Failed to load batch")
	}

	if created > 0 {
		logAudit(ctx, f.logger, f.auditRepo, req.ActorID, models.AuditActionBatchLoaded,
			fmt.Sprintf("Loaded %d assignments for caller %d", created, req.CallerID), nil, extra, metadata)
	}
	logger.Info("batch loaded", slog.Int("created", created), slog.Int("target", target))

	return &dto.LoadBatchResponse{
		Message: fmt.Sprintf("%d assignments created", created),
		Created: created,
	}, nil
}

// ReassignPending hands every pending assignment of one caller to another.
// Each original becomes reassigned and gets a fresh pending successor in the same savepoint.
func (f *LoadBalancerFlowImpl) ReassignPending(ctx context.Context, req *dto.ReassignPendingRequest, metadata *ClientMetadata) (*dto.ReassignPendingResponse, error) {
	if req.FromCallerID == req.ToCallerID {
		return nil, NewBusinessError(CodeSameCaller, "Source and target caller must differ", ErrSameCaller)
	}

	resp := &dto.ReassignPendingResponse{
		Assignments: []dto.AssignmentItem{},
		Failed:      []dto.BatchFailure{},
	}

	err := f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		pending, err := f.assignmentRepo.ListPendingForUpdate(txCtx, req.FromCallerID, req.CampaignID)
		if err != nil {
			return err
		}

		for _, original := range pending {
			var successor *models.CallAssignment
			itemErr := f.tx.WithTransaction(txCtx, func(itemCtx context.Context) error {
				if _, err := f.ledger.transition(itemCtx, original, models.AssignmentStatusReassigned); err != nil {
					return err
				}
				var err error
				successor, err = f.ledger.create(itemCtx, newAssignment{
					CampaignID: original.CampaignID,
					VoterID:    original.VoterID,
					CallerID:   req.ToCallerID,
					AssignedBy: req.ActorID,
					Priority:   original.Priority,
				}, modeReassign)
				return err
			})
			if itemErr != nil {
				if !isItemFailure(itemErr) {
					return itemErr
				}
				batchFailuresTotal.WithLabelValues("reassign_pending", ErrorCode(itemErr)).Inc()
				resp.Failed = append(resp.Failed, batchFailure(utils.ToPtr(original.VoterID), utils.ToPtr(original.ID), itemErr))
				continue
			}
			resp.Assignments = append(resp.Assignments, ToAssignmentItem(successor))
		}
		return nil
	})

	extra := map[string]any{"campaign_id": req.CampaignID, "from_caller_id": req.FromCallerID, "to_caller_id": req.ToCallerID}
	if err != nil {
		logAudit(ctx, f.logger, f.auditRepo, req.ActorID, models.AuditActionAssignmentsReassigned,
			fmt.Sprintf("Reassign from caller %d to %d failed", req.FromCallerID, req.ToCallerID), err, extra, metadata)
		return nil, wrapInternal(err, "REASSIGN_FAILED", "Failed to reassign pending assignments")
	}

	resp.Reassigned = len(resp.Assignments)
	resp.Message = fmt.Sprintf("%d assignments reassigned", resp.Reassigned)
	extra["reassigned"] = resp.Reassigned
	logAudit(ctx, f.logger, f.auditRepo, req.ActorID, models.AuditActionAssignmentsReassigned,
		fmt.Sprintf("Reassigned %d pending assignments from caller %d to %d", resp.Reassigned, req.FromCallerID, req.ToCallerID),
		nil, extra, metadata)

	return resp, nil
}

// GetCallerWorkload aggregates assignment counts per caller
func (f *LoadBalancerFlowImpl) GetCallerWorkload(ctx context.Context, req *dto.CallerWorkloadRequest) (*dto.CallerWorkloadResponse, error) {
	callers := utils.DedupeUints(req.CallerIDs)
	if len(callers) == 0 {
		return nil, NewBusinessError(CodeNoCallersAvailable, "At least one caller is required", ErrNoCallersAvailable)
	}

	counts, err := f.assignmentRepo.StatusCounts(ctx, req.CampaignID, callers)
	if err != nil {
		return nil, NewBusinessError("WORKLOAD_FAILED", "Failed to compute caller workload", err)
	}

	items := make([]dto.CallerWorkloadItem, 0, len(callers))
	for _, id := range callers {
		c := counts[id]
		items = append(items, dto.CallerWorkloadItem{
			CallerID:   id,
			Pending:    c.Pending,
			InProgress: c.InProgress,
			Completed:  c.Completed,
			Reassigned: c.Reassigned,
			Total:      c.Total(),
		})
	}

	return &dto.CallerWorkloadResponse{Items: items}, nil
}

func emptyBatchReport() *dto.BatchAssignResponse {
	return &dto.BatchAssignResponse{
		Message:   "0 assigned, 0 skipped",
		Succeeded: []dto.AssignmentItem{},
		Failed:    []dto.BatchFailure{},
	}
}

func (f *LoadBalancerFlowImpl) checkBatchSize(n int) error {
	if f.cfg.MaxBatchSize > 0 && n > f.cfg.MaxBatchSize {
		return NewBusinessErrorf(CodeBatchTooLarge, "batch of %d exceeds the limit of %d", ErrBatchTooLarge, n, f.cfg.MaxBatchSize)
	}
	return nil
}

func (f *LoadBalancerFlowImpl) auditBatch(ctx context.Context, actorID, campaignID uint, mode string, resp *dto.BatchAssignResponse, opErr error, metadata *ClientMetadata) {
	extra := map[string]any{"campaign_id": campaignID, "mode": mode}
	description := fmt.Sprintf("Batch assignment (%s) in campaign %d failed", mode, campaignID)
	if resp != nil {
		extra["succeeded"] = len(resp.Succeeded)
		extra["failed"] = len(resp.Failed)
		description = fmt.Sprintf("Batch assignment (%s) in campaign %d: %s", mode, campaignID, resp.Message)
	}
	logAudit(ctx, f.logger, f.auditRepo, actorID, models.AuditActionAssignmentBatchCreated, description, opErr, extra, metadata)
}
