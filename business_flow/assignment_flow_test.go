package businessflow_test

import (
	"testing"

	"github.com/amirphl/campaign-callcenter/app/dto"
	businessflow "github.com/amirphl/campaign-callcenter/business_flow"
	"github.com/amirphl/campaign-callcenter/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignVoter(t *testing.T) {
	t.Run("CreatesPendingAssignment", func(t *testing.T) {
		h := newHarness(t)
		voter := h.seedVoters(1)[0]

		resp, err := h.assignments.AssignVoter(h.ctx, &dto.AssignVoterRequest{
			ActorID: adminID, CampaignID: campaignID, VoterID: voter.ID, CallerID: callerID,
		}, h.meta)
		require.NoError(t, err)

		a := resp.Assignment
		assert.Equal(t, "pending", a.Status)
		assert.Equal(t, "medium", a.Priority)
		assert.Equal(t, adminID, a.AssignedBy)
		assert.Equal(t, callerID, a.AssignedTo)
		assert.NotEmpty(t, a.AssignedAt)
		assert.Nil(t, a.CompletedAt)

		stored := h.assignment(t, a.ID)
		assert.Equal(t, models.AssignmentPriorityMedium.Rank(), stored.PriorityRank)
	})

	t.Run("RejectsSecondOpenAssignment", func(t *testing.T) {
		h := newHarness(t)
		voter := h.seedVoters(1)[0]
		req := &dto.AssignVoterRequest{ActorID: adminID, CampaignID: campaignID, VoterID: voter.ID, CallerID: callerID}

		_, err := h.assignments.AssignVoter(h.ctx, req, h.meta)
		require.NoError(t, err)

		req.CallerID = callerID + 1
		_, err = h.assignments.AssignVoter(h.ctx, req, h.meta)
		require.Error(t, err)
		assert.True(t, businessflow.IsDuplicateAssignment(err))

		logs := h.store.AllAuditLogs()
		require.Len(t, logs, 2)
		assert.True(t, logs[1].IsFailed())
	})

	t.Run("AllowsNewAssignmentAfterCompletion", func(t *testing.T) {
		h := newHarness(t)
		voter := h.seedVoters(1)[0]
		h.store.AddAssignment(models.CallAssignment{VoterID: voter.ID, AssignedTo: callerID, CampaignID: campaignID, Status: models.AssignmentStatusCompleted})

		_, err := h.assignments.AssignVoter(h.ctx, &dto.AssignVoterRequest{
			ActorID: adminID, CampaignID: campaignID, VoterID: voter.ID, CallerID: callerID,
		}, h.meta)
		assert.NoError(t, err)
	})

	t.Run("SameVoterInAnotherCampaign", func(t *testing.T) {
		h := newHarness(t)
		voter := h.seedVoters(1)[0]
		for _, c := range []uint{campaignID, campaignID + 1} {
			_, err := h.assignments.AssignVoter(h.ctx, &dto.AssignVoterRequest{
				ActorID: adminID, CampaignID: c, VoterID: voter.ID, CallerID: callerID,
			}, h.meta)
			require.NoError(t, err)
		}
		requireSingleOpenPerVoter(t, h.store)
	})

	t.Run("UnknownVoter", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.assignments.AssignVoter(h.ctx, &dto.AssignVoterRequest{
			ActorID: adminID, CampaignID: campaignID, VoterID: 5, CallerID: callerID,
		}, h.meta)
		assert.True(t, businessflow.IsNotFound(err))
	})
}

func TestAssignmentTransitions(t *testing.T) {
	seed := func(h *harness, status models.AssignmentStatus) *models.CallAssignment {
		voter := h.seedVoters(1)[0]
		return h.store.AddAssignment(models.CallAssignment{VoterID: voter.ID, AssignedTo: callerID, CampaignID: campaignID, Status: status})
	}

	t.Run("StartThenComplete", func(t *testing.T) {
		h := newHarness(t)
		a := seed(h, models.AssignmentStatusPending)
		req := &dto.AssignmentActionRequest{ActorID: callerID, AssignmentID: a.ID}

		resp, err := h.assignments.StartAssignment(h.ctx, req, h.meta)
		require.NoError(t, err)
		assert.Equal(t, "in_progress", resp.Assignment.Status)

		resp, err = h.assignments.CompleteAssignment(h.ctx, req, h.meta)
		require.NoError(t, err)
		assert.Equal(t, "completed", resp.Assignment.Status)
		assert.NotNil(t, resp.Assignment.CompletedAt)
	})

	t.Run("StartIsIdempotent", func(t *testing.T) {
		h := newHarness(t)
		a := seed(h, models.AssignmentStatusInProgress)

		resp, err := h.assignments.StartAssignment(h.ctx, &dto.AssignmentActionRequest{ActorID: callerID, AssignmentID: a.ID}, h.meta)
		require.NoError(t, err)
		assert.Equal(t, "in_progress", resp.Assignment.Status)
		assert.Empty(t, h.store.AllAuditLogs())
	})

	t.Run("CompleteFromPending", func(t *testing.T) {
		h := newHarness(t)
		a := seed(h, models.AssignmentStatusPending)

		resp, err := h.assignments.CompleteAssignment(h.ctx, &dto.AssignmentActionRequest{ActorID: callerID, AssignmentID: a.ID}, h.meta)
		require.NoError(t, err)
		assert.Equal(t, "completed", resp.Assignment.Status)
	})

	t.Run("TerminalStatesReject", func(t *testing.T) {
		for _, status := range []models.AssignmentStatus{models.AssignmentStatusCompleted, models.AssignmentStatusReassigned} {
			h := newHarness(t)
			a := seed(h, status)
			req := &dto.AssignmentActionRequest{ActorID: callerID, AssignmentID: a.ID}

			_, err := h.assignments.StartAssignment(h.ctx, req, h.meta)
			assert.Truef(t, businessflow.IsInvalidTransition(err), "start from %s", status)

			_, err = h.assignments.CompleteAssignment(h.ctx, req, h.meta)
			assert.Truef(t, businessflow.IsInvalidTransition(err), "complete from %s", status)

			assert.Equal(t, status, h.assignment(t, a.ID).Status)
		}
	})

	t.Run("UnknownAssignment", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.assignments.StartAssignment(h.ctx, &dto.AssignmentActionRequest{AssignmentID: 77}, h.meta)
		assert.True(t, businessflow.IsAssignmentNotFound(err))
	})
}
