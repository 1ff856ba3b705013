package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/amirphl/campaign-callcenter/models"
	"github.com/amirphl/campaign-callcenter/utils"
	"github.com/google/uuid"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// RandomPhone returns an Iranian mobile number with random digits
func RandomPhone() string {
	return fmt.Sprintf("+989%09d", rand.Intn(900000000)+100000000)
}

// CreateTestVoter inserts a voter. An empty phone is stored as NULL.
func (tf *TestFixtures) CreateTestVoter(campaignID uint, phone string, createdAt time.Time) (*models.Voter, error) {
	voter := &models.Voter{
		UUID:       uuid.New(),
		CampaignID: campaignID,
		CreatedAt:  createdAt,
	}
	if phone != "" {
		voter.Phone = utils.ToPtr(phone)
	}

	if err := tf.DB.DB.Create(voter).Error; err != nil {
		return nil, fmt.Errorf("failed to create test voter: %w", err)
	}
	return voter, nil
}

// CreateTestVoters inserts n voters with phones, each a minute older than the next
func (tf *TestFixtures) CreateTestVoters(campaignID uint, n int) ([]*models.Voter, error) {
	base := utils.UTCNow().Add(-time.Duration(n) * time.Minute)
	voters := make([]*models.Voter, 0, n)
	for i := 0; i < n; i++ {
		v, err := tf.CreateTestVoter(campaignID, RandomPhone(), base.Add(time.Duration(i)*time.Minute))
		if err != nil {
			return nil, fmt.Errorf("failed to create voter %d: %w", i, err)
		}
		voters = append(voters, v)
	}
	return voters, nil
}

// CreateTestAssignment inserts an assignment with the given status and priority
func (tf *TestFixtures) CreateTestAssignment(voterID, callerID, campaignID uint, status models.AssignmentStatus, priority models.AssignmentPriority) (*models.CallAssignment, error) {
	a := &models.CallAssignment{
		VoterID:    voterID,
		AssignedTo: callerID,
		AssignedBy: callerID,
		CampaignID: campaignID,
		Status:     status,
		Priority:   priority,
	}
	if status == models.AssignmentStatusCompleted {
		a.CompletedAt = utils.UTCNowPtr()
	}

	if err := tf.DB.DB.Create(a).Error; err != nil {
		return nil, fmt.Errorf("failed to create test assignment: %w", err)
	}
	return a, nil
}

// CreateTestCall inserts a finished call with the next attempt number for the voter
func (tf *TestFixtures) CreateTestCall(voterID, callerID uint, result models.CallResult, calledAt time.Time) (*models.VerificationCall, error) {
	var attempts int64
	if err := tf.DB.DB.Model(&models.VerificationCall{}).Where("voter_id = ?", voterID).Count(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to count calls: %w", err)
	}

	ended := calledAt
	call := &models.VerificationCall{
		VoterID:       voterID,
		CallerID:      callerID,
		AttemptNumber: int(attempts) + 1,
		CalledAt:      calledAt,
		Result:        result,
		EndedAt:       &ended,
	}

	if err := tf.DB.DB.Create(call).Error; err != nil {
		return nil, fmt.Errorf("failed to create test call: %w", err)
	}
	return call, nil
}

// CreateTestAuditLog creates a test audit log entry
func (tf *TestFixtures) CreateTestAuditLog(actorID *uint, action string, success bool) (*models.AuditLog, error) {
	description := fmt.Sprintf("Test %s action", action)
	ipAddress := "127.0.0.1"
	userAgent := "Test User Agent"

	audit := &models.AuditLog{
		ActorID:     actorID,
		Action:      action,
		Description: &description,
		Success:     &success,
		IPAddress:   &ipAddress,
		UserAgent:   &userAgent,
	}

	if !success {
		errorMessage := "Test failed action"
		audit.ErrorMessage = &errorMessage
	}

	if err := tf.DB.DB.Create(audit).Error; err != nil {
		return nil, fmt.Errorf("failed to create test audit log: %w", err)
	}

	return audit, nil
}
