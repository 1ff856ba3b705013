package businessflow_test

import (
	"testing"
	"time"

	"github.com/amirphl/campaign-callcenter/app/dto"
	businessflow "github.com/amirphl/campaign-callcenter/business_flow"
	"github.com/amirphl/campaign-callcenter/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallerQueue(t *testing.T) {
	h := newHarness(t)
	voters := h.seedVoters(7)
	base := time.Now().Add(-time.Hour)

	add := func(i int, p models.AssignmentPriority, s models.AssignmentStatus, offset time.Duration) *models.CallAssignment {
		return h.store.AddAssignment(models.CallAssignment{
			VoterID: voters[i].ID, AssignedTo: callerID, CampaignID: campaignID,
			Priority: p, Status: s, AssignedAt: base.Add(offset),
		})
	}

	lowOld := add(0, models.AssignmentPriorityLow, models.AssignmentStatusPending, 0)
	highNew := add(1, models.AssignmentPriorityHigh, models.AssignmentStatusPending, 30*time.Minute)
	highOld := add(2, models.AssignmentPriorityHigh, models.AssignmentStatusInProgress, 10*time.Minute)
	urgent := add(3, models.AssignmentPriorityUrgent, models.AssignmentStatusPending, 50*time.Minute)
	add(4, models.AssignmentPriorityUrgent, models.AssignmentStatusCompleted, 0)
	add(5, models.AssignmentPriorityUrgent, models.AssignmentStatusReassigned, 0)
	medium := add(6, models.AssignmentPriorityMedium, models.AssignmentStatusPending, 5*time.Minute)

	t.Run("OrderedByPriorityThenAge", func(t *testing.T) {
		resp, err := h.queue.CallerQueue(h.ctx, &dto.CallerQueueRequest{CallerID: callerID, CampaignID: campaignID})
		require.NoError(t, err)

		got := make([]uint, 0, len(resp.Items))
		for _, item := range resp.Items {
			got = append(got, item.ID)
		}
		assert.Equal(t, []uint{urgent.ID, highOld.ID, highNew.ID, medium.ID, lowOld.ID}, got)
	})

	t.Run("Limit", func(t *testing.T) {
		resp, err := h.queue.CallerQueue(h.ctx, &dto.CallerQueueRequest{CallerID: callerID, CampaignID: campaignID, Limit: 2})
		require.NoError(t, err)
		assert.Len(t, resp.Items, 2)

		_, err = h.queue.CallerQueue(h.ctx, &dto.CallerQueueRequest{CallerID: callerID, CampaignID: campaignID, Limit: h.cfg.MaxQueueSize + 1})
		assert.True(t, businessflow.IsInvalidQueueSize(err))
	})

	t.Run("NextAssignmentSkipsInProgress", func(t *testing.T) {
		next, err := h.queue.NextAssignment(h.ctx, callerID, campaignID)
		require.NoError(t, err)
		require.True(t, next.Found)
		assert.Equal(t, urgent.ID, next.Assignment.ID)

		_, err = h.assignments.StartAssignment(h.ctx, &dto.AssignmentActionRequest{ActorID: callerID, AssignmentID: urgent.ID}, h.meta)
		require.NoError(t, err)

		next, err = h.queue.NextAssignment(h.ctx, callerID, campaignID)
		require.NoError(t, err)
		require.True(t, next.Found)
		assert.Equal(t, highNew.ID, next.Assignment.ID)
	})

	t.Run("EmptyQueue", func(t *testing.T) {
		next, err := h.queue.NextAssignment(h.ctx, callerID+1, campaignID)
		require.NoError(t, err)
		assert.False(t, next.Found)
		assert.Nil(t, next.Assignment)
	})
}
