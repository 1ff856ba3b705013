package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/amirphl/campaign-callcenter/app/dto"
	"github.com/amirphl/campaign-callcenter/app/middleware"
	businessflow "github.com/amirphl/campaign-callcenter/business_flow"
	"github.com/amirphl/campaign-callcenter/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// CallCenterHandlerInterface defines the contract for call center handlers
type CallCenterHandlerInterface interface {
	PoolCandidates(c fiber.Ctx) error

	AssignVoter(c fiber.Ctx) error
	AssignVoters(c fiber.Ctx) error
	AutoAssignVoters(c fiber.Ctx) error
	StartAssignment(c fiber.Ctx) error
	CompleteAssignment(c fiber.Ctx) error

	LoadBatch(c fiber.Ctx) error
	ReassignPending(c fiber.Ctx) error
	Workload(c fiber.Ctx) error
	ExportWorkload(c fiber.Ctx) error

	CallerQueue(c fiber.Ctx) error
	NextAssignment(c fiber.Ctx) error

	StartCall(c fiber.Ctx) error
	EndCall(c fiber.Ctx) error
	ListVoterCalls(c fiber.Ctx) error
}

// CallCenterHandler handles call assignment and verification call requests
type CallCenterHandler struct {
	pool        businessflow.VoterPoolFlow
	assignments businessflow.AssignmentFlow
	balancer    businessflow.LoadBalancerFlow
	queue       businessflow.QueueFlow
	calls       businessflow.CallFlow
	validator   *validator.Validate
	logger      *slog.Logger
}

// NewCallCenterHandler creates a new call center handler
func NewCallCenterHandler(
	pool businessflow.VoterPoolFlow,
	assignments businessflow.AssignmentFlow,
	balancer businessflow.LoadBalancerFlow,
	queue businessflow.QueueFlow,
	calls businessflow.CallFlow,
	logger *slog.Logger,
) *CallCenterHandler {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &CallCenterHandler{
		pool:        pool,
		assignments: assignments,
		balancer:    balancer,
		queue:       queue,
		calls:       calls,
		validator:   validator.New(),
		logger:      logger,
	}
}

func (h *CallCenterHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	c.Locals(middleware.ErrorCodeLocal, errorCode)
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *CallCenterHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// statusForError maps business errors onto HTTP status codes
func statusForError(err error) int {
	switch {
	case businessflow.IsNotFound(err):
		return fiber.StatusNotFound
	case businessflow.IsDuplicateAssignment(err),
		businessflow.IsInvalidTransition(err),
		businessflow.IsCallAlreadyEnded(err):
		return fiber.StatusConflict
	case businessflow.IsLockNotAcquired(err):
		return fiber.StatusLocked
	case businessflow.IsValidationError(err):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// flowError renders err; internal failures are logged and answered with the fallback message only
func (h *CallCenterHandler) flowError(ctx context.Context, c fiber.Ctx, err error, fallback string) error {
	status := statusForError(err)
	code := businessflow.ErrorCode(err)

	if status == fiber.StatusInternalServerError {
		utils.LoggerFromContext(ctx, h.logger).Error(fallback,
			slog.String("path", c.Path()),
			slog.String("code", code),
			slog.Any("error", err))
		return h.ErrorResponse(c, status, fallback, code, nil)
	}

	message := err.Error()
	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		message = be.Message
	}
	return h.ErrorResponse(c, status, message, code, nil)
}

// validationErrors returns readable messages for req, or nil when it is valid
func (h *CallCenterHandler) validationErrors(req any) []string {
	err := h.validator.Struct(req)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(ve))
	for _, fe := range ve {
		messages = append(messages, getValidationErrorMessage(fe))
	}
	return messages
}

func (h *CallCenterHandler) missingActor(c fiber.Ctx) error {
	return h.ErrorResponse(c, fiber.StatusUnauthorized, "User ID not found in context", "MISSING_USER_ID", nil)
}

func metadataFor(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(c.Get(businessflow.RequestIDKey))
	return metadata
}

func (h *CallCenterHandler) createRequestContext(c fiber.Ctx, endpoint string, actorID uint) (context.Context, context.CancelFunc) {
	return h.createRequestContextWithTimeout(c, endpoint, actorID, utils.RequestTimeout)
}

func (h *CallCenterHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, actorID uint, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get(businessflow.RequestIDKey))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	if actorID != 0 {
		ctx = context.WithValue(ctx, utils.ActorIDKey, actorID)
	}
	return ctx, cancel
}

// queryInt reads an optional integer query parameter
func queryInt(c fiber.Ctx, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// queryUint reads an optional positive id query parameter; 0 means absent
func queryUint(c fiber.Ctx, key string) (uint, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

func (h *CallCenterHandler) pathID(c fiber.Ctx, key string) (uint, bool) {
	v, err := strconv.ParseUint(c.Params(key), 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return uint(v), true
}

func (h *CallCenterHandler) invalidQuery(c fiber.Ctx, key string) error {
	return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameter "+key, "INVALID_QUERY", nil)
}

// PoolCandidates lists the voters the pool would hand out next
// @Router /api/v1/call-center/pool/candidates [get]
func (h *CallCenterHandler) PoolCandidates(c fiber.Ctx) error {
	actorID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.missingActor(c)
	}

	var req dto.PoolCandidatesRequest
	campaignID, ok := queryUint(c, "campaign_id")
	if !ok {
		return h.invalidQuery(c, "campaign_id")
	}
	if campaignID != 0 {
		req.CampaignID = &campaignID
	}
	excludeIn, ok := queryUint(c, "exclude_open_in")
	if !ok {
		return h.invalidQuery(c, "exclude_open_in")
	}
	if excludeIn != 0 {
		req.ExcludeOpenIn = &excludeIn
	}
	if req.Limit, ok = queryInt(c, "limit", 0); !ok {
		return h.invalidQuery(c, "limit")
	}
	if details := h.validationErrors(&req); details != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/call-center/pool/candidates", actorID)
	defer cancel()

	result, err := h.pool.NextCandidates(ctx, &req)
	if err != nil {
		return h.flowError(ctx, c, err, "Failed to read voter pool")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Pool candidates retrieved", result)
}

// AssignVoter creates a single pending assignment
// @Router /api/v1/call-center/assignments [post]
func (h *CallCenterHandler) AssignVoter(c fiber.Ctx) error {
	var req dto.AssignVoterRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if details := h.validationErrors(&req); details != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}
	actorID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.missingActor(c)
	}
	req.ActorID = actorID

	ctx, cancel := h.createRequestContext(c, "/api/v1/call-center/assignments", actorID)
	defer cancel()

	result, err := h.assignments.AssignVoter(ctx, &req, metadataFor(c))
	if err != nil {
		return h.flowError(ctx, c, err, "Failed to assign voter")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

// AssignVoters assigns a batch of voters to one caller
// @Router /api/v1/call-center/assignments/batch [post]
func (h *CallCenterHandler) AssignVoters(c fiber.Ctx) error {
	var req dto.AssignVotersRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if details := h.validationErrors(&req); details != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}
	actorID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.missingActor(c)
	}
	req.ActorID = actorID

	ctx, cancel := h.createRequestContext(c, "/api/v1/call-center/assignments/batch", actorID)
	defer cancel()

	result, err := h.balancer.AssignVoters(ctx, &req, metadataFor(c))
	if err != nil {
		return h.flowError(ctx, c, err, "Failed to assign voters")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// AutoAssignVoters spreads voters across callers by current workload
// @Router /api/v1/call-center/assignments/auto [post]
func (h *CallCenterHandler) AutoAssignVoters(c fiber.Ctx) error {
	var req dto.AutoAssignVotersRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if details := h.validationErrors(&req); details != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}
	actorID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.missingActor(c)
	}
	req.ActorID = actorID

	ctx, cancel := h.createRequestContext(c, "/api/v1/call-center/assignments/auto", actorID)
	defer cancel()

	result, err := h.balancer.AutoAssignVoters(ctx, &req, metadataFor(c))
	if err != nil {
		return h.flowError(ctx, c, err, "Failed to auto-assign voters")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// StartAssignment moves an assignment to in_progress
// @Router /api/v1/call-center/assignments/{id}/start [post]
func (h *CallCenterHandler) StartAssignment(c fiber.Ctx) error {
	return h.moveAssignment(c, "/api/v1/call-center/assignments/:id/start", h.assignments.StartAssignment)
}

// CompleteAssignment closes an assignment as completed
// @Router /api/v1/call-center/assignments/{id}/complete [post]
func (h *CallCenterHandler) CompleteAssignment(c fiber.Ctx) error {
	return h.moveAssignment(c, "/api/v1/call-center/assignments/:id/complete", h.assignments.CompleteAssignment)
}

func (h *CallCenterHandler) moveAssignment(
	c fiber.Ctx,
	endpoint string,
	move func(context.Context, *dto.AssignmentActionRequest, *businessflow.ClientMetadata) (*dto.AssignmentResponse, error),
) error {
	actorID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.missingActor(c)
	}
	assignmentID, ok := h.pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid id", "INVALID_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, endpoint, actorID)
	defer cancel()

	result, err := move(ctx, &dto.AssignmentActionRequest{ActorID: actorID, AssignmentID: assignmentID}, metadataFor(c))
	if err != nil {
		return h.flowError(ctx, c, err, "Failed to update assignment")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// LoadBatch tops a caller up from the voter pool
// @Router /api/v1/call-center/load-batch [post]
func (h *CallCenterHandler) LoadBatch(c fiber.Ctx) error {
	var req dto.LoadBatchRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if details := h.validationErrors(&req); details != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}
	actorID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.missingActor(c)
	}
	req.ActorID = actorID

	ctx, cancel := h.createRequestContext(c, "/api/v1/call-center/load-batch", actorID)
	defer cancel()

	result, err := h.balancer.LoadBatchForCaller(ctx, &req, metadataFor(c))
	if err != nil {
		return h.flowError(ctx, c, err, "Failed to load batch")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// ReassignPending hands every pending assignment of one caller to another
// @Router /api/v1/call-center/reassign [post]
func (h *CallCenterHandler) ReassignPending(c fiber.Ctx) error {
	var req dto.ReassignPendingRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if details := h.validationErrors(&req); details != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}
	actorID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.missingActor(c)
	}
	req.ActorID = actorID

	ctx, cancel := h.createRequestContext(c, "/api/v1/call-center/reassign", actorID)
	defer cancel()

	result, err := h.balancer.ReassignPending(ctx, &req, metadataFor(c))
	if err != nil {
		return h.flowError(ctx, c, err, "Failed to reassign pending assignments")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Workload returns per-caller assignment counts
// @Router /api/v1/call-center/workload [post]
func (h *CallCenterHandler) Workload(c fiber.Ctx) error {
	var req dto.CallerWorkloadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if details := h.validationErrors(&req); details != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}
	actorID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.missingActor(c)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/call-center/workload", actorID)
	defer cancel()

	result, err := h.balancer.GetCallerWorkload(ctx, &req)
	if err != nil {
		return h.flowError(ctx, c, err, "Failed to read caller workload")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Caller workload retrieved", result)
}

// ExportWorkload renders caller workload as an xlsx attachment
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Router /api/v1/call-center/workload/export [post]
func (h *CallCenterHandler) ExportWorkload(c fiber.Ctx) error {
	var req dto.CallerWorkloadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if details := h.validationErrors(&req); details != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}
	actorID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.missingActor(c)
	}

	ctx, cancel := h.createRequestContextWithTimeout(c, "/api/v1/call-center/workload/export", actorID, 60*time.Second)
	defer cancel()

	export, err := h.balancer.ExportCallerWorkload(ctx, &req)
	if err != nil {
		return h.flowError(ctx, c, err, "Failed to export caller workload")
	}
	c.Set("Content-Type", export.ContentType)
	c.Set("Content-Disposition", "attachment; filename="+export.FileName)
	return c.Send(export.Content)
}

// CallerQueue lists open assignments in serving order; caller_id defaults to the acting user
// @Router /api/v1/call-center/queue [get]
func (h *CallCenterHandler) CallerQueue(c fiber.Ctx) error {
	actorID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.missingActor(c)
	}

	req := dto.CallerQueueRequest{CallerID: actorID}
	if req.CampaignID, ok = queryUint(c, "campaign_id"); !ok {
		return h.invalidQuery(c, "campaign_id")
	}
	callerID, ok := queryUint(c, "caller_id")
	if !ok {
		return h.invalidQuery(c, "caller_id")
	}
	if callerID != 0 {
		req.CallerID = callerID
	}
	if req.Limit, ok = queryInt(c, "limit", 0); !ok {
		return h.invalidQuery(c, "limit")
	}
	if details := h.validationErrors(&req); details != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/call-center/queue", actorID)
	defer cancel()

	result, err := h.queue.CallerQueue(ctx, &req)
	if err != nil {
		return h.flowError(ctx, c, err, "Failed to read caller queue")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Caller queue retrieved", result)
}

// NextAssignment returns the head of the caller's pending queue
// @Router /api/v1/call-center/queue/next [get]
func (h *CallCenterHandler) NextAssignment(c fiber.Ctx) error {
	actorID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.missingActor(c)
	}

	campaignID, ok := queryUint(c, "campaign_id")
	if !ok || campaignID == 0 {
		return h.invalidQuery(c, "campaign_id")
	}
	callerID, ok := queryUint(c, "caller_id")
	if !ok {
		return h.invalidQuery(c, "caller_id")
	}
	if callerID == 0 {
		callerID = actorID
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/call-center/queue/next", actorID)
	defer cancel()

	result, err := h.queue.NextAssignment(ctx, callerID, campaignID)
	if err != nil {
		return h.flowError(ctx, c, err, "Failed to read next assignment")
	}
	message := "Queue is empty"
	if result.Found {
		message = "Next assignment retrieved"
	}
	return h.SuccessResponse(c, fiber.StatusOK, message, result)
}

// StartCall opens a new attempt for a voter on behalf of the acting caller
// @Router /api/v1/call-center/calls [post]
func (h *CallCenterHandler) StartCall(c fiber.Ctx) error {
	var req dto.StartCallRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if details := h.validationErrors(&req); details != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}
	actorID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.missingActor(c)
	}
	req.ActorID = actorID

	ctx, cancel := h.createRequestContext(c, "/api/v1/call-center/calls", actorID)
	defer cancel()

	result, err := h.calls.StartCall(ctx, &req, metadataFor(c))
	if err != nil {
		return h.flowError(ctx, c, err, "Failed to start call")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result)
}

// EndCall records the outcome of a call attempt
// @Router /api/v1/call-center/calls/{id}/end [post]
func (h *CallCenterHandler) EndCall(c fiber.Ctx) error {
	callID, ok := h.pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid id", "INVALID_ID", nil)
	}

	var req dto.EndCallRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if details := h.validationErrors(&req); details != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}
	actorID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.missingActor(c)
	}
	req.ActorID = actorID
	req.CallID = callID

	ctx, cancel := h.createRequestContext(c, "/api/v1/call-center/calls/:id/end", actorID)
	defer cancel()

	result, err := h.calls.EndCall(ctx, &req, metadataFor(c))
	if err != nil {
		return h.flowError(ctx, c, err, "Failed to end call")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// ListVoterCalls pages through a voter's call history, newest first
// @Router /api/v1/call-center/voters/{id}/calls [get]
func (h *CallCenterHandler) ListVoterCalls(c fiber.Ctx) error {
	actorID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		return h.missingActor(c)
	}
	voterID, ok := h.pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid id", "INVALID_ID", nil)
	}

	req := dto.ListVoterCallsRequest{VoterID: voterID}
	if req.Limit, ok = queryInt(c, "limit", 0); !ok {
		return h.invalidQuery(c, "limit")
	}
	if req.Offset, ok = queryInt(c, "offset", 0); !ok {
		return h.invalidQuery(c, "offset")
	}
	if details := h.validationErrors(&req); details != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", details)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/call-center/voters/:id/calls", actorID)
	defer cancel()

	result, err := h.calls.ListVoterCalls(ctx, &req)
	if err != nil {
		return h.flowError(ctx, c, err, "Failed to list voter calls")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Voter calls retrieved", result)
}
