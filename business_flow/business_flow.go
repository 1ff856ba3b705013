package businessflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/amirphl/campaign-callcenter/app/dto"
	"github.com/amirphl/campaign-callcenter/models"
	"github.com/amirphl/campaign-callcenter/repository"
	"github.com/amirphl/campaign-callcenter/utils"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds all client-related information for audit logging
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ToAssignmentItem converts an assignment model for API responses
func ToAssignmentItem(a *models.CallAssignment) dto.AssignmentItem {
	return dto.AssignmentItem{
		ID:          a.ID,
		UUID:        a.UUID.String(),
		VoterID:     a.VoterID,
		AssignedTo:  a.AssignedTo,
		AssignedBy:  a.AssignedBy,
		CampaignID:  a.CampaignID,
		Status:      a.Status.String(),
		Priority:    a.Priority.String(),
		AssignedAt:  a.AssignedAt.UTC().Format(time.RFC3339),
		CompletedAt: utils.FormatPtr(a.CompletedAt),
		UpdatedAt:   utils.FormatPtr(a.UpdatedAt),
	}
}

// ToAssignmentItems converts a slice of assignments preserving order
func ToAssignmentItems(rows []*models.CallAssignment) []dto.AssignmentItem {
	items := make([]dto.AssignmentItem, 0, len(rows))
	for _, a := range rows {
		items = append(items, ToAssignmentItem(a))
	}
	return items
}

// ToCallItem converts a call model for API responses
func ToCallItem(c *models.VerificationCall) dto.CallItem {
	return dto.CallItem{
		ID:              c.ID,
		UUID:            c.UUID.String(),
		VoterID:         c.VoterID,
		AssignmentID:    c.AssignmentID,
		CallerID:        c.CallerID,
		AttemptNumber:   c.AttemptNumber,
		CalledAt:        c.CalledAt.UTC().Format(time.RFC3339),
		Duration:        c.Duration,
		Result:          c.Result.String(),
		ResultDisplay:   c.Result.DisplayName(),
		Notes:           c.Notes,
		SurveyID:        c.SurveyID,
		SurveyCompleted: c.SurveyCompleted,
		NextAttemptAt:   utils.FormatPtr(c.NextAttemptAt),
		EndedAt:         utils.FormatPtr(c.EndedAt),
	}
}

// ToVoterItem converts a voter model for API responses
func ToVoterItem(v *models.Voter) dto.VoterItem {
	return dto.VoterItem{
		ID:         v.ID,
		UUID:       v.UUID.String(),
		CampaignID: v.CampaignID,
		Phone:      v.Phone,
		CreatedAt:  v.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// createAuditLog creates an audit log entry for a call-center operation
func createAuditLog(ctx context.Context, auditRepo repository.AuditLogRepository, actorID uint, action, description string, success bool, errorMsg *string, extra map[string]any, metadata *ClientMetadata) error {
	if auditRepo == nil {
		return nil
	}

	var actor *uint
	if actorID != 0 {
		actor = utils.ToPtr(actorID)
	}

	audit := &models.AuditLog{
		ActorID:      actor,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		ErrorMessage: errorMsg,
	}

	if metadata != nil {
		if metadata.IPAddress != "" {
			audit.IPAddress = utils.ToPtr(metadata.IPAddress)
		}
		if metadata.UserAgent != "" {
			audit.UserAgent = utils.ToPtr(metadata.UserAgent)
		}
		if metadata.RequestID != "" {
			audit.RequestID = utils.ToPtr(metadata.RequestID)
		}
	}

	// Extract request ID from context if available
	if audit.RequestID == nil {
		if requestID, ok := ctx.Value(utils.RequestIDKey).(string); ok && requestID != "" {
			audit.RequestID = &requestID
		}
	}

	if len(extra) > 0 {
		if raw, err := json.Marshal(extra); err == nil {
			audit.Metadata = raw
		}
	}

	return auditRepo.Save(ctx, audit)
}

// logAudit writes an audit row outside of the business transaction and logs when that fails
func logAudit(ctx context.Context, logger *slog.Logger, auditRepo repository.AuditLogRepository, actorID uint, action, description string, opErr error, extra map[string]any, metadata *ClientMetadata) {
	var errMsg *string
	if opErr != nil {
		errMsg = utils.ToPtr(opErr.Error())
	}
	if err := createAuditLog(ctx, auditRepo, actorID, action, description, opErr == nil, errMsg, extra, metadata); err != nil {
		utils.LoggerFromContext(ctx, logger).Warn("failed to write audit log",
			slog.String("action", action),
			slog.Any("error", err))
	}
}

// batchFailure turns a per-item error into a report entry
func batchFailure(voterID, assignmentID *uint, err error) dto.BatchFailure {
	return dto.BatchFailure{
		VoterID:      voterID,
		AssignmentID: assignmentID,
		Code:         ErrorCode(err),
		Reason:       err.Error(),
	}
}

func loggerOrNop(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return utils.NopLogger()
	}
	return logger
}
