package businessflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/campaign-callcenter/app/services"
	businessflow "github.com/amirphl/campaign-callcenter/business_flow"
	"github.com/amirphl/campaign-callcenter/config"
	"github.com/amirphl/campaign-callcenter/models"
	testingutil "github.com/amirphl/campaign-callcenter/testing"
	"github.com/amirphl/campaign-callcenter/utils"
	"github.com/stretchr/testify/require"
)

const (
	campaignID = uint(1)
	adminID    = uint(100)
)

type harness struct {
	ctx         context.Context
	store       *testingutil.MemoryStore
	locker      *services.LocalLocker
	cfg         config.CallCenterConfig
	assignments businessflow.AssignmentFlow
	balancer    businessflow.LoadBalancerFlow
	calls       businessflow.CallFlow
	queue       businessflow.QueueFlow
	pool        businessflow.VoterPoolFlow
	meta        *businessflow.ClientMetadata
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := config.DefaultCallCenterConfig()
	cfg.DefaultQueueSize = 3
	cfg.MaxQueueSize = 50
	cfg.MaxBatchSize = 20

	store := testingutil.NewMemoryStore()
	locker := services.NewLocalLocker()
	logger := utils.NopLogger()

	return &harness{
		ctx:    context.Background(),
		store:  store,
		locker: locker,
		cfg:    cfg,
		assignments: businessflow.NewAssignmentFlow(
			store, store.Voters(), store.Assignments(), store.AuditLogs(), logger),
		balancer: businessflow.NewLoadBalancerFlow(
			store, store.Voters(), store.Assignments(), store.AuditLogs(), locker, cfg, logger),
		calls: businessflow.NewCallFlow(
			store, store.Voters(), store.Assignments(), store.Calls(), store.AuditLogs(), cfg.CallbackDelay, logger),
		queue: businessflow.NewQueueFlow(store.Assignments(), cfg.MaxQueueSize, logger),
		pool:  businessflow.NewVoterPoolFlow(store.Voters(), cfg.MaxAttempts, logger),
		meta:  businessflow.NewClientMetadata("127.0.0.1", "flow-test"),
	}
}

// seedVoters adds n callable voters to the campaign, oldest first
func (h *harness) seedVoters(n int) []*models.Voter {
	base := utils.UTCNow().Add(-time.Duration(n+1) * time.Hour)
	out := make([]*models.Voter, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, h.store.AddVoter(campaignID, testingutil.RandomPhone(), base.Add(time.Duration(i)*time.Hour)))
	}
	return out
}

func (h *harness) assignmentsFor(callerID uint, status models.AssignmentStatus) []*models.CallAssignment {
	var out []*models.CallAssignment
	for _, a := range h.store.AllAssignments() {
		if a.AssignedTo == callerID && a.Status == status {
			out = append(out, a)
		}
	}
	return out
}

// requireSingleOpenPerVoter checks that no voter holds two open assignments in a campaign
func requireSingleOpenPerVoter(t *testing.T, store *testingutil.MemoryStore) {
	t.Helper()
	type key struct{ voter, campaign uint }
	seen := make(map[key]uint)
	for _, a := range store.AllAssignments() {
		if !a.IsOpen() {
			continue
		}
		k := key{a.VoterID, a.CampaignID}
		prev, dup := seen[k]
		require.Falsef(t, dup, "voter %d has open assignments %d and %d", a.VoterID, prev, a.ID)
		seen[k] = a.ID
	}
}

func voterIDs(voters []*models.Voter) []uint {
	ids := make([]uint, 0, len(voters))
	for _, v := range voters {
		ids = append(ids, v.ID)
	}
	return ids
}
