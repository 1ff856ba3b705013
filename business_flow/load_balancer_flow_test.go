package businessflow_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/amirphl/campaign-callcenter/app/dto"
	businessflow "github.com/amirphl/campaign-callcenter/business_flow"
	"github.com/amirphl/campaign-callcenter/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestAssignVoters(t *testing.T) {
	t.Run("ReportsSkippedVotersAndKeepsTheRest", func(t *testing.T) {
		h := newHarness(t)
		voters := h.seedVoters(3)

		_, err := h.assignments.AssignVoter(h.ctx, &dto.AssignVoterRequest{
			ActorID: adminID, CampaignID: campaignID, VoterID: voters[1].ID, CallerID: 9,
		}, h.meta)
		require.NoError(t, err)

		resp, err := h.balancer.AssignVoters(h.ctx, &dto.AssignVotersRequest{
			ActorID:    adminID,
			CampaignID: campaignID,
			CallerID:   7,
			VoterIDs:   []uint{voters[0].ID, voters[1].ID, 999, voters[2].ID},
			Priority:   "high",
		}, h.meta)
		require.NoError(t, err)

		require.Len(t, resp.Succeeded, 2)
		assert.Equal(t, voters[0].ID, resp.Succeeded[0].VoterID)
		assert.Equal(t, voters[2].ID, resp.Succeeded[1].VoterID)
		for _, item := range resp.Succeeded {
			assert.Equal(t, uint(7), item.AssignedTo)
			assert.Equal(t, "pending", item.Status)
			assert.Equal(t, "high", item.Priority)
		}

		require.Len(t, resp.Failed, 2)
		assert.Equal(t, voters[1].ID, *resp.Failed[0].VoterID)
		assert.Equal(t, businessflow.CodeDuplicateAssignment, resp.Failed[0].Code)
		assert.Equal(t, uint(999), *resp.Failed[1].VoterID)
		assert.Equal(t, businessflow.CodeVoterNotFound, resp.Failed[1].Code)

		requireSingleOpenPerVoter(t, h.store)
	})

	t.Run("DuplicateVoterInSameBatch", func(t *testing.T) {
		h := newHarness(t)
		voters := h.seedVoters(1)

		resp, err := h.balancer.AssignVoters(h.ctx, &dto.AssignVotersRequest{
			ActorID: adminID, CampaignID: campaignID, CallerID: 7,
			VoterIDs: []uint{voters[0].ID, voters[0].ID},
		}, h.meta)
		require.NoError(t, err)
		assert.Len(t, resp.Succeeded, 1)
		assert.Len(t, resp.Failed, 1)
		requireSingleOpenPerVoter(t, h.store)
	})

	t.Run("InfrastructureFailureRollsBackBatch", func(t *testing.T) {
		h := newHarness(t)
		voters := h.seedVoters(3)
		h.store.FailNext("assignments.Save", errors.New("connection reset"))

		_, err := h.balancer.AssignVoters(h.ctx, &dto.AssignVotersRequest{
			ActorID: adminID, CampaignID: campaignID, CallerID: 7, VoterIDs: voterIDs(voters),
		}, h.meta)
		require.Error(t, err)
		assert.Equal(t, "ASSIGN_VOTERS_FAILED", businessflow.ErrorCode(err))
		assert.Empty(t, h.store.AllAssignments())
	})

	t.Run("Validation", func(t *testing.T) {
		h := newHarness(t)

		tooMany := make([]uint, h.cfg.MaxBatchSize+1)
		_, err := h.balancer.AssignVoters(h.ctx, &dto.AssignVotersRequest{CampaignID: campaignID, CallerID: 7, VoterIDs: tooMany}, h.meta)
		assert.True(t, businessflow.IsBatchTooLarge(err))

		_, err = h.balancer.AssignVoters(h.ctx, &dto.AssignVotersRequest{CampaignID: campaignID, CallerID: 7, VoterIDs: []uint{1}, Priority: "critical"}, h.meta)
		assert.True(t, businessflow.IsInvalidPriority(err))
	})

	t.Run("EmptyBatchReportsNothing", func(t *testing.T) {
		h := newHarness(t)

		resp, err := h.balancer.AssignVoters(h.ctx, &dto.AssignVotersRequest{CampaignID: campaignID, CallerID: 7}, h.meta)
		require.NoError(t, err)
		assert.Empty(t, resp.Succeeded)
		assert.Empty(t, resp.Failed)

		resp, err = h.balancer.AutoAssignVoters(h.ctx, &dto.AutoAssignVotersRequest{CampaignID: campaignID, CallerIDs: []uint{7, 8}}, h.meta)
		require.NoError(t, err)
		assert.NotNil(t, resp.Succeeded)
		assert.Empty(t, resp.Succeeded)
		assert.Empty(t, h.store.AllAssignments())
	})

	t.Run("WritesAuditLog", func(t *testing.T) {
		h := newHarness(t)
		voters := h.seedVoters(2)

		_, err := h.balancer.AssignVoters(h.ctx, &dto.AssignVotersRequest{
			ActorID: adminID, CampaignID: campaignID, CallerID: 7, VoterIDs: voterIDs(voters),
		}, h.meta)
		require.NoError(t, err)

		logs := h.store.AllAuditLogs()
		require.Len(t, logs, 1)
		assert.Equal(t, models.AuditActionAssignmentBatchCreated, logs[0].Action)
		assert.Equal(t, adminID, *logs[0].ActorID)
		assert.True(t, *logs[0].Success)
		assert.Equal(t, "127.0.0.1", *logs[0].IPAddress)
	})
}

func TestAutoAssignVoters(t *testing.T) {
	t.Run("NineVotersThreeIdleCallers", func(t *testing.T) {
		h := newHarness(t)
		voters := h.seedVoters(9)

		resp, err := h.balancer.AutoAssignVoters(h.ctx, &dto.AutoAssignVotersRequest{
			ActorID: adminID, CampaignID: campaignID, VoterIDs: voterIDs(voters), CallerIDs: []uint{11, 12, 13},
		}, h.meta)
		require.NoError(t, err)
		require.Len(t, resp.Succeeded, 9)
		assert.Empty(t, resp.Failed)

		perCaller := map[uint]int{}
		for _, a := range resp.Succeeded {
			perCaller[a.AssignedTo]++
		}
		assert.Equal(t, map[uint]int{11: 3, 12: 3, 13: 3}, perCaller)
	})

	t.Run("StartsFromLeastLoadedCaller", func(t *testing.T) {
		h := newHarness(t)
		existing := h.seedVoters(3)
		h.store.AddAssignment(models.CallAssignment{VoterID: existing[0].ID, AssignedTo: 21, CampaignID: campaignID})
		h.store.AddAssignment(models.CallAssignment{VoterID: existing[1].ID, AssignedTo: 21, CampaignID: campaignID})
		h.store.AddAssignment(models.CallAssignment{VoterID: existing[2].ID, AssignedTo: 23, CampaignID: campaignID})
		voters := h.seedVoters(4)

		resp, err := h.balancer.AutoAssignVoters(h.ctx, &dto.AutoAssignVotersRequest{
			ActorID: adminID, CampaignID: campaignID, VoterIDs: voterIDs(voters), CallerIDs: []uint{21, 22, 23},
		}, h.meta)
		require.NoError(t, err)
		require.Len(t, resp.Succeeded, 4)

		// pending counts 21:2 22:0 23:1 give the order 22, 23, 21
		got := []uint{}
		for _, a := range resp.Succeeded {
			got = append(got, a.AssignedTo)
		}
		assert.Equal(t, []uint{22, 23, 21, 22}, got)
	})

	t.Run("NoCallers", func(t *testing.T) {
		h := newHarness(t)
		voters := h.seedVoters(1)

		_, err := h.balancer.AutoAssignVoters(h.ctx, &dto.AutoAssignVotersRequest{
			ActorID: adminID, CampaignID: campaignID, VoterIDs: voterIDs(voters),
		}, h.meta)
		require.Error(t, err)
		assert.True(t, businessflow.IsNoCallersAvailable(err))
		assert.Empty(t, h.store.AllAssignments())
	})
}

func TestOrderCallersByPending(t *testing.T) {
	counts := map[uint]models.StatusCounts{
		5: {Pending: 1, Completed: 10},
		3: {Pending: 1},
		9: {Pending: 0, InProgress: 4},
	}
	assert.Equal(t, []uint{9, 3, 5}, businessflow.OrderCallersByPending([]uint{5, 3, 9}, counts))
}

func TestLoadBatchForCaller(t *testing.T) {
	t.Run("TopsUpFromPool", func(t *testing.T) {
		h := newHarness(t)
		h.seedVoters(10)

		resp, err := h.balancer.LoadBatchForCaller(h.ctx, &dto.LoadBatchRequest{
			ActorID: adminID, CampaignID: campaignID, CallerID: 7, TargetQueueSize: 5,
		}, h.meta)
		require.NoError(t, err)
		assert.Equal(t, 5, resp.Created)
		assert.Len(t, h.assignmentsFor(7, models.AssignmentStatusPending), 5)
		requireSingleOpenPerVoter(t, h.store)
	})

	t.Run("SecondCallCreatesNothing", func(t *testing.T) {
		h := newHarness(t)
		h.seedVoters(10)
		req := &dto.LoadBatchRequest{ActorID: adminID, CampaignID: campaignID, CallerID: 7, TargetQueueSize: 4}

		first, err := h.balancer.LoadBatchForCaller(h.ctx, req, h.meta)
		require.NoError(t, err)
		assert.Equal(t, 4, first.Created)

		second, err := h.balancer.LoadBatchForCaller(h.ctx, req, h.meta)
		require.NoError(t, err)
		assert.Equal(t, 0, second.Created)
		assert.Len(t, h.store.AllAssignments(), 4)
	})

	t.Run("CountsInProgressTowardTarget", func(t *testing.T) {
		h := newHarness(t)
		voters := h.seedVoters(6)
		h.store.AddAssignment(models.CallAssignment{VoterID: voters[0].ID, AssignedTo: 7, CampaignID: campaignID, Status: models.AssignmentStatusInProgress})
		h.store.AddAssignment(models.CallAssignment{VoterID: voters[1].ID, AssignedTo: 7, CampaignID: campaignID})

		resp, err := h.balancer.LoadBatchForCaller(h.ctx, &dto.LoadBatchRequest{
			ActorID: adminID, CampaignID: campaignID, CallerID: 7, TargetQueueSize: 5,
		}, h.meta)
		require.NoError(t, err)
		assert.Equal(t, 3, resp.Created)
	})

	t.Run("SkipsVotersHeldByOtherCallers", func(t *testing.T) {
		h := newHarness(t)
		voters := h.seedVoters(3)
		h.store.AddAssignment(models.CallAssignment{VoterID: voters[0].ID, AssignedTo: 8, CampaignID: campaignID})

		resp, err := h.balancer.LoadBatchForCaller(h.ctx, &dto.LoadBatchRequest{
			ActorID: adminID, CampaignID: campaignID, CallerID: 7, TargetQueueSize: 5,
		}, h.meta)
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Created)
		requireSingleOpenPerVoter(t, h.store)
	})

	t.Run("PrefersFirstAttemptsOverRetries", func(t *testing.T) {
		h := newHarness(t)
		retry := h.store.AddVoter(campaignID, "+989120000001", time.Now().Add(-72*time.Hour))
		h.store.AddCall(retry.ID, 8, models.CallResultNoAnswer, time.Now().Add(-48*time.Hour))
		fresh := h.store.AddVoter(campaignID, "+989120000002", time.Now().Add(-time.Hour))

		resp, err := h.balancer.LoadBatchForCaller(h.ctx, &dto.LoadBatchRequest{
			ActorID: adminID, CampaignID: campaignID, CallerID: 7, TargetQueueSize: 1,
		}, h.meta)
		require.NoError(t, err)
		require.Equal(t, 1, resp.Created)

		pending := h.assignmentsFor(7, models.AssignmentStatusPending)
		require.Len(t, pending, 1)
		assert.Equal(t, fresh.ID, pending[0].VoterID)
	})

	t.Run("DefaultTargetAndBounds", func(t *testing.T) {
		h := newHarness(t)
		h.seedVoters(10)

		resp, err := h.balancer.LoadBatchForCaller(h.ctx, &dto.LoadBatchRequest{
			ActorID: adminID, CampaignID: campaignID, CallerID: 7,
		}, h.meta)
		require.NoError(t, err)
		assert.Equal(t, h.cfg.DefaultQueueSize, resp.Created)

		_, err = h.balancer.LoadBatchForCaller(h.ctx, &dto.LoadBatchRequest{
			ActorID: adminID, CampaignID: campaignID, CallerID: 7, TargetQueueSize: h.cfg.MaxQueueSize + 1,
		}, h.meta)
		assert.True(t, businessflow.IsInvalidQueueSize(err))
	})

	t.Run("RejectsConcurrentLoadForSameCaller", func(t *testing.T) {
		h := newHarness(t)
		h.seedVoters(3)

		release, err := h.locker.TryLock(h.ctx, "load-batch:1:7", time.Minute)
		require.NoError(t, err)
		require.NotNil(t, release)

		_, err = h.balancer.LoadBatchForCaller(h.ctx, &dto.LoadBatchRequest{
			ActorID: adminID, CampaignID: campaignID, CallerID: 7, TargetQueueSize: 2,
		}, h.meta)
		require.Error(t, err)
		assert.True(t, businessflow.IsLockNotAcquired(err))
		assert.Empty(t, h.store.AllAssignments())

		require.NoError(t, release(h.ctx))
		resp, err := h.balancer.LoadBatchForCaller(h.ctx, &dto.LoadBatchRequest{
			ActorID: adminID, CampaignID: campaignID, CallerID: 7, TargetQueueSize: 2,
		}, h.meta)
		require.NoError(t, err)
		assert.Equal(t, 2, resp.Created)

		// the flow released its own lock
		again, err := h.locker.TryLock(h.ctx, "load-batch:1:7", time.Minute)
		require.NoError(t, err)
		assert.NotNil(t, again)
	})

	t.Run("PoolFailureAborts", func(t *testing.T) {
		h := newHarness(t)
		h.seedVoters(3)
		h.store.FailNext("voters.NextCandidates", errors.New("statement timeout"))

		_, err := h.balancer.LoadBatchForCaller(h.ctx, &dto.LoadBatchRequest{
			ActorID: adminID, CampaignID: campaignID, CallerID: 7, TargetQueueSize: 2,
		}, h.meta)
		require.Error(t, err)
		assert.Equal(t, "LOAD_BATCH_FAILED", businessflow.ErrorCode(err))
	})
}

func TestReassignPending(t *testing.T) {
	const leaderA, leaderB = uint(31), uint(32)

	t.Run("MovesOnlyPendingAssignments", func(t *testing.T) {
		h := newHarness(t)
		voters := h.seedVoters(4)
		for i, p := range []models.AssignmentPriority{models.AssignmentPriorityUrgent, models.AssignmentPriorityLow, models.AssignmentPriorityMedium} {
			h.store.AddAssignment(models.CallAssignment{VoterID: voters[i].ID, AssignedTo: leaderA, AssignedBy: 1, CampaignID: campaignID, Priority: p})
		}
		busy := h.store.AddAssignment(models.CallAssignment{VoterID: voters[3].ID, AssignedTo: leaderA, CampaignID: campaignID, Status: models.AssignmentStatusInProgress})

		resp, err := h.balancer.ReassignPending(h.ctx, &dto.ReassignPendingRequest{
			ActorID: adminID, CampaignID: campaignID, FromCallerID: leaderA, ToCallerID: leaderB,
		}, h.meta)
		require.NoError(t, err)
		assert.Equal(t, 3, resp.Reassigned)
		assert.Empty(t, resp.Failed)

		assert.Len(t, h.assignmentsFor(leaderA, models.AssignmentStatusReassigned), 3)
		assert.Len(t, h.assignmentsFor(leaderB, models.AssignmentStatusPending), 3)
		requireSingleOpenPerVoter(t, h.store)

		priorities := map[uint]string{}
		for _, a := range resp.Assignments {
			assert.Equal(t, adminID, a.AssignedBy)
			assert.Equal(t, leaderB, a.AssignedTo)
			priorities[a.VoterID] = a.Priority
		}
		assert.Equal(t, "urgent", priorities[voters[0].ID])
		assert.Equal(t, "low", priorities[voters[1].ID])
		assert.Equal(t, "medium", priorities[voters[2].ID])

		queueA, err := h.queue.CallerQueue(h.ctx, &dto.CallerQueueRequest{CallerID: leaderA, CampaignID: campaignID})
		require.NoError(t, err)
		require.Len(t, queueA.Items, 1)
		assert.Equal(t, busy.ID, queueA.Items[0].ID)

		queueB, err := h.queue.CallerQueue(h.ctx, &dto.CallerQueueRequest{CallerID: leaderB, CampaignID: campaignID})
		require.NoError(t, err)
		assert.Len(t, queueB.Items, 3)
	})

	t.Run("NothingPending", func(t *testing.T) {
		h := newHarness(t)
		resp, err := h.balancer.ReassignPending(h.ctx, &dto.ReassignPendingRequest{
			ActorID: adminID, CampaignID: campaignID, FromCallerID: leaderA, ToCallerID: leaderB,
		}, h.meta)
		require.NoError(t, err)
		assert.Equal(t, 0, resp.Reassigned)
	})

	t.Run("SameCaller", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.balancer.ReassignPending(h.ctx, &dto.ReassignPendingRequest{
			ActorID: adminID, CampaignID: campaignID, FromCallerID: leaderA, ToCallerID: leaderA,
		}, h.meta)
		assert.True(t, businessflow.IsSameCaller(err))
	})

	t.Run("FailureLeavesOriginalsUntouched", func(t *testing.T) {
		h := newHarness(t)
		voters := h.seedVoters(2)
		for _, v := range voters {
			h.store.AddAssignment(models.CallAssignment{VoterID: v.ID, AssignedTo: leaderA, CampaignID: campaignID})
		}
		h.store.FailNext("assignments.Update", errors.New("deadlock detected"))

		_, err := h.balancer.ReassignPending(h.ctx, &dto.ReassignPendingRequest{
			ActorID: adminID, CampaignID: campaignID, FromCallerID: leaderA, ToCallerID: leaderB,
		}, h.meta)
		require.Error(t, err)
		assert.Len(t, h.assignmentsFor(leaderA, models.AssignmentStatusPending), 2)
		assert.Empty(t, h.assignmentsFor(leaderB, models.AssignmentStatusPending))
	})
}

func TestCallerWorkload(t *testing.T) {
	h := newHarness(t)
	voters := h.seedVoters(6)
	statuses := []models.AssignmentStatus{
		models.AssignmentStatusPending,
		models.AssignmentStatusPending,
		models.AssignmentStatusInProgress,
		models.AssignmentStatusCompleted,
		models.AssignmentStatusReassigned,
	}
	for i, s := range statuses {
		h.store.AddAssignment(models.CallAssignment{VoterID: voters[i].ID, AssignedTo: 41, CampaignID: campaignID, Status: s})
	}
	// other campaigns are not counted
	h.store.AddAssignment(models.CallAssignment{VoterID: voters[5].ID, AssignedTo: 41, CampaignID: campaignID + 1})

	req := &dto.CallerWorkloadRequest{CampaignID: campaignID, CallerIDs: []uint{42, 41}}

	t.Run("Aggregates", func(t *testing.T) {
		resp, err := h.balancer.GetCallerWorkload(h.ctx, req)
		require.NoError(t, err)
		require.Len(t, resp.Items, 2)

		assert.Equal(t, dto.CallerWorkloadItem{CallerID: 42}, resp.Items[0])
		assert.Equal(t, dto.CallerWorkloadItem{
			CallerID: 41, Pending: 2, InProgress: 1, Completed: 1, Reassigned: 1, Total: 4,
		}, resp.Items[1])
	})

	t.Run("Export", func(t *testing.T) {
		export, err := h.balancer.ExportCallerWorkload(h.ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "caller_workload_campaign_1.xlsx", export.FileName)

		xl, err := excelize.OpenReader(bytes.NewReader(export.Content))
		require.NoError(t, err)
		defer xl.Close()

		rows, err := xl.GetRows("workload")
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []string{"caller_id", "pending", "in_progress", "completed", "reassigned", "total"}, rows[0])
		assert.Equal(t, []string{"41", "2", "1", "1", "1", "4"}, rows[2])
	})

	t.Run("NoCallers", func(t *testing.T) {
		_, err := h.balancer.GetCallerWorkload(h.ctx, &dto.CallerWorkloadRequest{CampaignID: campaignID})
		assert.True(t, businessflow.IsNoCallersAvailable(err))
	})
}
