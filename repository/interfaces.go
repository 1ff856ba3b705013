// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"

	"github.com/amirphl/campaign-callcenter/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

var (
	// ErrOpenAssignmentExists is returned when an insert collides with the open-assignment unique index
	ErrOpenAssignmentExists = errors.New("open assignment already exists for voter in campaign")
	// ErrAttemptNumberTaken is returned when two calls race for the same attempt number
	ErrAttemptNumberTaken = errors.New("attempt number already recorded for voter")
)

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// VoterRepository reads voters owned by the registration subsystem
type VoterRepository interface {
	ByID(ctx context.Context, id uint) (*models.Voter, error)
	ByIDForUpdate(ctx context.Context, id uint) (*models.Voter, error)
	NextCandidates(ctx context.Context, filter models.VoterPoolFilter, limit int) ([]*models.Voter, error)
}

// CallAssignmentRepository defines operations for the assignment ledger
type CallAssignmentRepository interface {
	Repository[models.CallAssignment, models.CallAssignmentFilter]
	ByIDForUpdate(ctx context.Context, id uint) (*models.CallAssignment, error)
	Update(ctx context.Context, assignment *models.CallAssignment) error
	OpenForVoter(ctx context.Context, voterID, campaignID uint) (*models.CallAssignment, error)
	OpenForCallerAndVoter(ctx context.Context, callerID, voterID uint) (*models.CallAssignment, error)
	ListQueue(ctx context.Context, callerID, campaignID uint, statuses []models.AssignmentStatus, limit int) ([]*models.CallAssignment, error)
	ListPendingForUpdate(ctx context.Context, callerID, campaignID uint) ([]*models.CallAssignment, error)
	StatusCounts(ctx context.Context, campaignID uint, callerIDs []uint) (map[uint]models.StatusCounts, error)
}

// VerificationCallRepository defines operations for call attempts
type VerificationCallRepository interface {
	Repository[models.VerificationCall, models.VerificationCallFilter]
	ByIDForUpdate(ctx context.Context, id uint) (*models.VerificationCall, error)
	Update(ctx context.Context, call *models.VerificationCall) error
	CountByVoter(ctx context.Context, voterID uint) (int64, error)
	ListByVoter(ctx context.Context, voterID uint, limit, offset int) ([]*models.VerificationCall, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByActor(ctx context.Context, actorID uint, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
}
