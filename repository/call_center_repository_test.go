package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/amirphl/campaign-callcenter/models"
	"github.com/amirphl/campaign-callcenter/repository"
	testingutil "github.com/amirphl/campaign-callcenter/testing"
	"github.com/amirphl/campaign-callcenter/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const campaign = uint(1)

func TestMain(m *testing.M) {
	code := m.Run()
	if err := testingutil.StopEmbeddedPostgres(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}
	os.Exit(code)
}

func TestCallAssignmentRepository(t *testing.T) {
	testingutil.RunWithDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		require.NoError(t, testDB.EnsureSchemaMatchesModels())
		repo := repository.NewCallAssignmentRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		voters, err := fixtures.CreateTestVoters(campaign, 4)
		require.NoError(t, err)

		t.Run("OpenAssignmentIsUnique", func(t *testing.T) {
			first := &models.CallAssignment{VoterID: voters[0].ID, AssignedTo: 7, AssignedBy: 1, CampaignID: campaign}
			require.NoError(t, repo.Save(ctx, first))
			assert.Equal(t, 2, first.PriorityRank)

			second := &models.CallAssignment{VoterID: voters[0].ID, AssignedTo: 8, AssignedBy: 1, CampaignID: campaign}
			err := repo.Save(ctx, second)
			assert.ErrorIs(t, err, repository.ErrOpenAssignmentExists)

			first.Status = models.AssignmentStatusCompleted
			first.CompletedAt = utils.UTCNowPtr()
			require.NoError(t, repo.Update(ctx, first))
			require.NoError(t, repo.Save(ctx, second))

			open, err := repo.OpenForVoter(ctx, voters[0].ID, campaign)
			require.NoError(t, err)
			require.NotNil(t, open)
			assert.Equal(t, second.ID, open.ID)
		})

		t.Run("QueueOrder", func(t *testing.T) {
			low := &models.CallAssignment{VoterID: voters[1].ID, AssignedTo: 9, AssignedBy: 1, CampaignID: campaign, Priority: models.AssignmentPriorityLow}
			urgent := &models.CallAssignment{VoterID: voters[2].ID, AssignedTo: 9, AssignedBy: 1, CampaignID: campaign, Priority: models.AssignmentPriorityUrgent}
			require.NoError(t, repo.Save(ctx, low))
			require.NoError(t, repo.Save(ctx, urgent))

			rows, err := repo.ListQueue(ctx, 9, campaign, models.OpenAssignmentStatuses, 10)
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assert.Equal(t, urgent.ID, rows[0].ID)
			assert.Equal(t, low.ID, rows[1].ID)
		})

		t.Run("StatusCounts", func(t *testing.T) {
			counts, err := repo.StatusCounts(ctx, campaign, []uint{7, 8, 9, 10})
			require.NoError(t, err)
			assert.Equal(t, models.StatusCounts{Completed: 1}, counts[7])
			assert.Equal(t, models.StatusCounts{Pending: 1}, counts[8])
			assert.Equal(t, models.StatusCounts{Pending: 2}, counts[9])
			assert.Equal(t, models.StatusCounts{}, counts[10])
		})

		t.Run("ListPendingForUpdateInTransaction", func(t *testing.T) {
			tx := repository.NewTransactor(testDB.DB)
			err := tx.WithTransaction(ctx, func(txCtx context.Context) error {
				rows, err := repo.ListPendingForUpdate(txCtx, 9, campaign)
				if err != nil {
					return err
				}
				assert.Len(t, rows, 2)
				return nil
			})
			require.NoError(t, err)
		})

		t.Run("NestedTransactionRollsBackOnlyItself", func(t *testing.T) {
			tx := repository.NewTransactor(testDB.DB)
			err := tx.WithTransaction(ctx, func(txCtx context.Context) error {
				inner := tx.WithTransaction(txCtx, func(itemCtx context.Context) error {
					dup := &models.CallAssignment{VoterID: voters[1].ID, AssignedTo: 10, AssignedBy: 1, CampaignID: campaign}
					return repo.Save(itemCtx, dup)
				})
				assert.ErrorIs(t, inner, repository.ErrOpenAssignmentExists)

				ok := &models.CallAssignment{VoterID: voters[3].ID, AssignedTo: 10, AssignedBy: 1, CampaignID: campaign}
				return repo.Save(txCtx, ok)
			})
			require.NoError(t, err)

			count, err := repo.Count(ctx, models.CallAssignmentFilter{AssignedTo: utils.ToPtr(uint(10))})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})
	})
}

func TestVoterRepositoryNextCandidates(t *testing.T) {
	testingutil.RunWithDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		repo := repository.NewVoterRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		now := utils.UTCNow()

		_, err := fixtures.CreateTestVoter(campaign, "", now.Add(-100*time.Hour))
		require.NoError(t, err)
		fresh, err := fixtures.CreateTestVoter(campaign, testingutil.RandomPhone(), now.Add(-50*time.Hour))
		require.NoError(t, err)
		retry, err := fixtures.CreateTestVoter(campaign, testingutil.RandomPhone(), now.Add(-90*time.Hour))
		require.NoError(t, err)
		_, err = fixtures.CreateTestCall(retry.ID, 7, models.CallResultBusy, now.Add(-2*time.Hour))
		require.NoError(t, err)
		capped, err := fixtures.CreateTestVoter(campaign, testingutil.RandomPhone(), now.Add(-80*time.Hour))
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			_, err = fixtures.CreateTestCall(capped.ID, 7, models.CallResultNoAnswer, now.Add(-time.Duration(10-i)*time.Hour))
			require.NoError(t, err)
		}
		held, err := fixtures.CreateTestVoter(campaign, testingutil.RandomPhone(), now.Add(-60*time.Hour))
		require.NoError(t, err)
		_, err = fixtures.CreateTestAssignment(held.ID, 8, campaign, models.AssignmentStatusInProgress, models.AssignmentPriorityMedium)
		require.NoError(t, err)

		t.Run("EligibilityAndOrder", func(t *testing.T) {
			rows, err := repo.NextCandidates(ctx, models.VoterPoolFilter{CampaignID: utils.ToPtr(campaign), MaxAttempts: 3}, 10)
			require.NoError(t, err)
			ids := []uint{}
			for _, v := range rows {
				ids = append(ids, v.ID)
			}
			assert.Equal(t, []uint{held.ID, fresh.ID, retry.ID}, ids)
		})

		t.Run("ExcludesOpenAssignments", func(t *testing.T) {
			rows, err := repo.NextCandidates(ctx, models.VoterPoolFilter{
				CampaignID: utils.ToPtr(campaign), ExcludeOpenIn: utils.ToPtr(campaign), MaxAttempts: 3,
			}, 10)
			require.NoError(t, err)
			for _, v := range rows {
				assert.NotEqual(t, held.ID, v.ID)
			}
			assert.Len(t, rows, 2)
		})

		t.Run("ExcludesVotersOnTheLine", func(t *testing.T) {
			onCall, err := fixtures.CreateTestVoter(campaign, testingutil.RandomPhone(), now.Add(-200*time.Hour))
			require.NoError(t, err)
			require.NoError(t, testDB.DB.Create(&models.VerificationCall{
				VoterID: onCall.ID, CallerID: 7, AttemptNumber: 1, CalledAt: now, Result: models.CallResultNoAnswer,
			}).Error)

			rows, err := repo.NextCandidates(ctx, models.VoterPoolFilter{CampaignID: utils.ToPtr(campaign), MaxAttempts: 3}, 10)
			require.NoError(t, err)
			for _, v := range rows {
				assert.NotEqual(t, onCall.ID, v.ID)
			}
		})
	})
}

func TestVerificationCallRepository(t *testing.T) {
	testingutil.RunWithDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		repo := repository.NewVerificationCallRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		voter, err := fixtures.CreateTestVoter(campaign, testingutil.RandomPhone(), utils.UTCNow())
		require.NoError(t, err)

		first := &models.VerificationCall{VoterID: voter.ID, CallerID: 7, AttemptNumber: 1}
		require.NoError(t, repo.Save(ctx, first))
		assert.Equal(t, models.CallResultNoAnswer, first.Result)

		dup := &models.VerificationCall{VoterID: voter.ID, CallerID: 8, AttemptNumber: 1}
		err = repo.Save(ctx, dup)
		assert.True(t, errors.Is(err, repository.ErrAttemptNumberTaken))

		count, err := repo.CountByVoter(ctx, voter.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		rows, err := repo.ListByVoter(ctx, voter.ID, 10, 0)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, first.ID, rows[0].ID)
	})
}

func TestAuditLogRepository(t *testing.T) {
	testingutil.RunWithDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		repo := repository.NewAuditLogRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		actor := uint(100)
		_, err := fixtures.CreateTestAuditLog(&actor, models.AuditActionBatchLoaded, true)
		require.NoError(t, err)
		_, err = fixtures.CreateTestAuditLog(&actor, models.AuditActionCallEnded, false)
		require.NoError(t, err)

		byActor, err := repo.ListByActor(ctx, actor, 10, 0)
		require.NoError(t, err)
		assert.Len(t, byActor, 2)

		byAction, err := repo.ListByAction(ctx, models.AuditActionCallEnded, 10, 0)
		require.NoError(t, err)
		require.Len(t, byAction, 1)
		assert.True(t, byAction[0].IsFailed())
	})
}

// The in-memory store backs the flow tests, so its pool must agree with the SQL one
func TestVoterPoolMatchesMemoryStore(t *testing.T) {
	testingutil.RunWithDB(t, func(t *testing.T, testDB *testingutil.TestDB) {
		repo := repository.NewVoterRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		mem := testingutil.NewMemoryStore()
		ctx := testingutil.CreateTestContext()
		now := utils.UTCNow().Truncate(time.Second)

		type seed struct {
			phone   string
			age     time.Duration
			results []models.CallResult
		}
		seeds := []seed{
			{"+989121110001", 90 * time.Hour, nil},
			{"+989121110002", 80 * time.Hour, []models.CallResult{models.CallResultBusy}},
			{"+989121110003", 70 * time.Hour, nil},
			{"+989121110004", 60 * time.Hour, []models.CallResult{models.CallResultConfirmed}},
			{"+989121110005", 50 * time.Hour, []models.CallResult{models.CallResultAnswered, models.CallResultNoAnswer}},
			{"+989121110006", 40 * time.Hour, []models.CallResult{models.CallResultNoAnswer, models.CallResultNoAnswer, models.CallResultBusy}},
			{"+989121110007", 30 * time.Hour, []models.CallResult{models.CallResultCallbackRequested}},
			{"", 20 * time.Hour, nil},
			{"+989121110009", 10 * time.Hour, []models.CallResult{models.CallResultWrongNumber}},
		}

		phoneOf := map[uint]string{}
		memPhoneOf := map[uint]string{}
		for i, sd := range seeds {
			created := now.Add(-sd.age)
			v, err := fixtures.CreateTestVoter(campaign, sd.phone, created)
			require.NoError(t, err)
			mv := mem.AddVoter(campaign, sd.phone, created)
			phoneOf[v.ID] = sd.phone
			memPhoneOf[mv.ID] = sd.phone

			for j, result := range sd.results {
				calledAt := now.Add(-time.Duration(len(seeds)-i)*time.Hour + time.Duration(j)*time.Minute)
				_, err := fixtures.CreateTestCall(v.ID, 7, result, calledAt)
				require.NoError(t, err)
				mem.AddCall(mv.ID, 7, result, calledAt)
			}
		}

		filter := models.VoterPoolFilter{CampaignID: utils.ToPtr(campaign), MaxAttempts: 3}
		rows, err := repo.NextCandidates(ctx, filter, 0)
		require.NoError(t, err)
		memRows, err := mem.Voters().NextCandidates(ctx, filter, 0)
		require.NoError(t, err)

		var sqlOrder, memOrder []string
		for _, v := range rows {
			sqlOrder = append(sqlOrder, phoneOf[v.ID])
		}
		for _, v := range memRows {
			memOrder = append(memOrder, memPhoneOf[v.ID])
		}
		assert.Equal(t, []string{"+989121110001", "+989121110003", "+989121110002", "+989121110005", "+989121110007"}, sqlOrder)
		assert.Equal(t, sqlOrder, memOrder)
	})
}
