package businessflow

import (
	"context"
	"errors"

	"github.com/amirphl/campaign-callcenter/models"
	"github.com/amirphl/campaign-callcenter/repository"
	"github.com/amirphl/campaign-callcenter/utils"
)

// assignmentLedger owns every write to call_assignments so the state machine
// and the one-open-assignment rule live in one place
type assignmentLedger struct {
	voterRepo      repository.VoterRepository
	assignmentRepo repository.CallAssignmentRepository
}

type newAssignment struct {
	CampaignID uint
	VoterID    uint
	CallerID   uint
	AssignedBy uint
	Priority   models.AssignmentPriority
}

// create inserts a pending assignment. Must run inside a transaction.
func (l *assignmentLedger) create(ctx context.Context, in newAssignment, mode string) (*models.CallAssignment, error) {
	voter, err := l.voterRepo.ByID(ctx, in.VoterID)
	if err != nil {
		return nil, err
	}
	if voter == nil {
		return nil, NewBusinessErrorf(CodeVoterNotFound, "voter %d not found", ErrVoterNotFound, in.VoterID)
	}

	existing, err := l.assignmentRepo.OpenForVoter(ctx, in.VoterID, in.CampaignID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, NewBusinessErrorf(CodeDuplicateAssignment, "voter %d already has open assignment %d in campaign %d",
			ErrDuplicateAssignment, in.VoterID, existing.ID, in.CampaignID)
	}

	a := &models.CallAssignment{
		VoterID:    in.VoterID,
		AssignedTo: in.CallerID,
		AssignedBy: in.AssignedBy,
		CampaignID: in.CampaignID,
		Status:     models.AssignmentStatusPending,
		Priority:   in.Priority,
		AssignedAt: utils.UTCNow(),
	}
	if err := l.assignmentRepo.Save(ctx, a); err != nil {
		if errors.Is(err, repository.ErrOpenAssignmentExists) {
			return nil, NewBusinessErrorf(CodeDuplicateAssignment, "voter %d already has an open assignment in campaign %d",
				ErrDuplicateAssignment, in.VoterID, in.CampaignID)
		}
		return nil, err
	}

	assignmentsCreatedTotal.WithLabelValues(mode).Inc()
	return a, nil
}

// load fetches and row-locks an assignment
func (l *assignmentLedger) load(ctx context.Context, id uint) (*models.CallAssignment, error) {
	a, err := l.assignmentRepo.ByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, NewBusinessErrorf(CodeAssignmentNotFound, "assignment %d not found", ErrAssignmentNotFound, id)
	}
	return a, nil
}

// transition moves a to status `to`. Asking for in_progress on an in_progress
// assignment is a no-op and reports changed=false.
func (l *assignmentLedger) transition(ctx context.Context, a *models.CallAssignment, to models.AssignmentStatus) (bool, error) {
	if to == models.AssignmentStatusInProgress && a.Status == models.AssignmentStatusInProgress {
		return false, nil
	}
	if !a.CanTransitionTo(to) {
		return false, NewBusinessErrorf(CodeInvalidTransition, "assignment %d cannot move from %s to %s",
			ErrInvalidTransition, a.ID, a.Status, to)
	}

	a.Status = to
	if to == models.AssignmentStatusCompleted {
		a.CompletedAt = utils.UTCNowPtr()
	}
	if err := l.assignmentRepo.Update(ctx, a); err != nil {
		return false, err
	}

	assignmentTransitionsTotal.WithLabelValues(to.String()).Inc()
	return true, nil
}

func parsePriority(raw string) (models.AssignmentPriority, error) {
	p, ok := models.ParseAssignmentPriority(raw)
	if !ok {
		return "", NewBusinessErrorf(CodeInvalidPriority, "unknown priority %q", ErrInvalidPriority, raw)
	}
	return p, nil
}

// isItemFailure reports errors that a batch records and moves past
func isItemFailure(err error) bool {
	return IsNotFound(err) || IsDuplicateAssignment(err) || IsInvalidTransition(err) || IsValidationError(err)
}
