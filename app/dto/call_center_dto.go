package dto

// VoterItem is a voter row returned by the pool query
type VoterItem struct {
	ID         uint    `json:"id"`
	UUID       string  `json:"uuid"`
	CampaignID uint    `json:"campaign_id"`
	Phone      *string `json:"phone,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// PoolCandidatesRequest asks the voter pool for the next voters to call
type PoolCandidatesRequest struct {
	CampaignID    *uint `json:"campaign_id,omitempty" validate:"omitempty,gt=0"`
	ExcludeOpenIn *uint `json:"exclude_open_in,omitempty" validate:"omitempty,gt=0"`
	Limit         int   `json:"limit" validate:"gte=0,lte=500"`
}

// PoolCandidatesResponse lists eligible voters in pool order
type PoolCandidatesResponse struct {
	Candidates []VoterItem `json:"candidates"`
}

// AssignmentItem is a call assignment as exposed over the API
type AssignmentItem struct {
	ID          uint    `json:"id"`
	UUID        string  `json:"uuid"`
	VoterID     uint    `json:"voter_id"`
	AssignedTo  uint    `json:"assigned_to"`
	AssignedBy  uint    `json:"assigned_by"`
	CampaignID  uint    `json:"campaign_id"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	AssignedAt  string  `json:"assigned_at"`
	CompletedAt *string `json:"completed_at,omitempty"`
	UpdatedAt   *string `json:"updated_at,omitempty"`
}

// BatchFailure describes one item a batch operation could not process
type BatchFailure struct {
	VoterID      *uint  `json:"voter_id,omitempty"`
	AssignmentID *uint  `json:"assignment_id,omitempty"`
	Code         string `json:"code"`
	Reason       string `json:"reason"`
}

// AssignVoterRequest creates a single assignment
type AssignVoterRequest struct {
	ActorID    uint   `json:"-"`
	CampaignID uint   `json:"campaign_id" validate:"required,gt=0"`
	VoterID    uint   `json:"voter_id" validate:"required,gt=0"`
	CallerID   uint   `json:"caller_id" validate:"required,gt=0"`
	Priority   string `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
}

// AssignmentResponse wraps a single assignment
type AssignmentResponse struct {
	Message    string         `json:"message"`
	Assignment AssignmentItem `json:"assignment"`
}

// AssignVotersRequest assigns many voters to one caller
type AssignVotersRequest struct {
	ActorID    uint   `json:"-"`
	CampaignID uint   `json:"campaign_id" validate:"required,gt=0"`
	CallerID   uint   `json:"caller_id" validate:"required,gt=0"`
	VoterIDs   []uint `json:"voter_ids" validate:"dive,gt=0"`
	Priority   string `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
}

// AutoAssignVotersRequest spreads voters over callers by current workload
type AutoAssignVotersRequest struct {
	ActorID    uint   `json:"-"`
	CampaignID uint   `json:"campaign_id" validate:"required,gt=0"`
	VoterIDs   []uint `json:"voter_ids" validate:"dive,gt=0"`
	CallerIDs  []uint `json:"caller_ids" validate:"dive,gt=0"`
	Priority   string `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
}

// BatchAssignResponse is the partial-success report of a batch assignment
type BatchAssignResponse struct {
	Message   string           `json:"message"`
	Succeeded []AssignmentItem `json:"succeeded"`
	Failed    []BatchFailure   `json:"failed"`
}

// LoadBatchRequest tops up a caller's open assignments from the pool
type LoadBatchRequest struct {
	ActorID         uint `json:"-"`
	CampaignID      uint `json:"campaign_id" validate:"required,gt=0"`
	CallerID        uint `json:"caller_id" validate:"required,gt=0"`
	TargetQueueSize int  `json:"target_queue_size" validate:"gte=0"`
}

// LoadBatchResponse reports how many assignments were created
type LoadBatchResponse struct {
	Message string `json:"message"`
	Created int    `json:"created"`
}

// ReassignPendingRequest moves every pending assignment from one caller to another
type ReassignPendingRequest struct {
	ActorID      uint `json:"-"`
	CampaignID   uint `json:"campaign_id" validate:"required,gt=0"`
	FromCallerID uint `json:"from_caller_id" validate:"required,gt=0"`
	ToCallerID   uint `json:"to_caller_id" validate:"required,gt=0"`
}

// ReassignPendingResponse reports the reassigned count and the new assignments
type ReassignPendingResponse struct {
	Message     string           `json:"message"`
	Reassigned  int              `json:"reassigned"`
	Assignments []AssignmentItem `json:"assignments"`
	Failed      []BatchFailure   `json:"failed"`
}

// AssignmentActionRequest targets a single assignment by id
type AssignmentActionRequest struct {
	ActorID      uint `json:"-"`
	AssignmentID uint `json:"assignment_id" validate:"required,gt=0"`
}

// CallerQueueRequest reads a caller's open assignments
type CallerQueueRequest struct {
	CallerID   uint `json:"caller_id" validate:"required,gt=0"`
	CampaignID uint `json:"campaign_id" validate:"required,gt=0"`
	Limit      int  `json:"limit" validate:"gte=0"`
}

// CallerQueueResponse lists open assignments in serving order
type CallerQueueResponse struct {
	Items []AssignmentItem `json:"items"`
}

// NextAssignmentResponse carries the head of the pending queue when there is one
type NextAssignmentResponse struct {
	Found      bool            `json:"found"`
	Assignment *AssignmentItem `json:"assignment,omitempty"`
}

// CallerWorkloadRequest selects callers whose workload should be aggregated
type CallerWorkloadRequest struct {
	CampaignID uint   `json:"campaign_id" validate:"required,gt=0"`
	CallerIDs  []uint `json:"caller_ids" validate:"required,min=1,dive,gt=0"`
}

// CallerWorkloadItem is one caller's assignment counts
type CallerWorkloadItem struct {
	CallerID   uint  `json:"caller_id"`
	Pending    int64 `json:"pending"`
	InProgress int64 `json:"in_progress"`
	Completed  int64 `json:"completed"`
	Reassigned int64 `json:"reassigned"`
	Total      int64 `json:"total"`
}

// CallerWorkloadResponse lists workload per requested caller
type CallerWorkloadResponse struct {
	Items []CallerWorkloadItem `json:"items"`
}

// WorkloadExport is a rendered spreadsheet
type WorkloadExport struct {
	FileName    string
	ContentType string
	Content     []byte
}

// CallItem is a verification call as exposed over the API
type CallItem struct {
	ID              uint    `json:"id"`
	UUID            string  `json:"uuid"`
	VoterID         uint    `json:"voter_id"`
	AssignmentID    *uint   `json:"assignment_id,omitempty"`
	CallerID        uint    `json:"caller_id"`
	AttemptNumber   int     `json:"attempt_number"`
	CalledAt        string  `json:"called_at"`
	Duration        int     `json:"duration"`
	Result          string  `json:"result"`
	ResultDisplay   string  `json:"result_display"`
	Notes           *string `json:"notes,omitempty"`
	SurveyID        *uint   `json:"survey_id,omitempty"`
	SurveyCompleted bool    `json:"survey_completed"`
	NextAttemptAt   *string `json:"next_attempt_at,omitempty"`
	EndedAt         *string `json:"ended_at,omitempty"`
}

// StartCallRequest opens a new call attempt; the actor is the caller
type StartCallRequest struct {
	ActorID      uint  `json:"-"`
	VoterID      uint  `json:"voter_id" validate:"required,gt=0"`
	AssignmentID *uint `json:"assignment_id,omitempty" validate:"omitempty,gt=0"`
	SurveyID     *uint `json:"survey_id,omitempty" validate:"omitempty,gt=0"`
}

// EndCallRequest finalizes a call attempt
type EndCallRequest struct {
	ActorID         uint    `json:"-"`
	CallID          uint    `json:"-"`
	Result          string  `json:"result" validate:"required"`
	Duration        int     `json:"duration" validate:"gte=0"`
	Notes           *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	SurveyCompleted bool    `json:"survey_completed"`
}

// CallResponse wraps a single call
type CallResponse struct {
	Message string   `json:"message"`
	Call    CallItem `json:"call"`
}

// ListVoterCallsRequest pages through a voter's call history
type ListVoterCallsRequest struct {
	VoterID uint `json:"voter_id" validate:"required,gt=0"`
	Limit   int  `json:"limit" validate:"gte=0,lte=500"`
	Offset  int  `json:"offset" validate:"gte=0"`
}

// ListVoterCallsResponse lists calls newest first
type ListVoterCallsResponse struct {
	Items []CallItem `json:"items"`
}

// HealthResponse reports dependency reachability
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}
