package businessflow

import (
	"context"
	"log/slog"

	"github.com/amirphl/campaign-callcenter/app/dto"
	"github.com/amirphl/campaign-callcenter/models"
	"github.com/amirphl/campaign-callcenter/repository"
	"github.com/amirphl/campaign-callcenter/utils"
)

// VoterPoolFlow exposes the read-only pool of voters awaiting verification
type VoterPoolFlow interface {
	NextCandidates(ctx context.Context, req *dto.PoolCandidatesRequest) (*dto.PoolCandidatesResponse, error)
}

// VoterPoolFlowImpl implements VoterPoolFlow
type VoterPoolFlowImpl struct {
	voterRepo   repository.VoterRepository
	maxAttempts int
	logger      *slog.Logger
}

// NewVoterPoolFlow creates a new voter pool flow
func NewVoterPoolFlow(voterRepo repository.VoterRepository, maxAttempts int, logger *slog.Logger) VoterPoolFlow {
	if maxAttempts <= 0 {
		maxAttempts = utils.DefaultMaxCallAttempts
	}
	return &VoterPoolFlowImpl{
		voterRepo:   voterRepo,
		maxAttempts: maxAttempts,
		logger:      loggerOrNop(logger),
	}
}

// NextCandidates returns eligible voters: never-called first by registration time,
// then retries by how long ago they were last called
func (f *VoterPoolFlowImpl) NextCandidates(ctx context.Context, req *dto.PoolCandidatesRequest) (*dto.PoolCandidatesResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = utils.DefaultListLimit
	}

	voters, err := f.voterRepo.NextCandidates(ctx, models.VoterPoolFilter{
		CampaignID:    req.CampaignID,
		ExcludeOpenIn: req.ExcludeOpenIn,
		MaxAttempts:   f.maxAttempts,
	}, limit)
	if err != nil {
		return nil, NewBusinessError("VOTER_POOL_FAILED", "Failed to query voter pool", err)
	}

	items := make([]dto.VoterItem, 0, len(voters))
	for _, v := range voters {
		items = append(items, ToVoterItem(v))
	}

	utils.LoggerFromContext(ctx, f.logger).Debug("voter pool queried",
		slog.Int("limit", limit),
		slog.Int("returned", len(items)))

	return &dto.PoolCandidatesResponse{Candidates: items}, nil
}
