package truth

import (
	"context"

	"github.com/safwentrabelsi/voce/chain"
	"github.com/safwentrabelsi/voce/types"
)

const moduleName = "truth_rewards"

// accuracyScale is the fixed point denominator the module reports accuracy in (basis points).
const accuracyScale = 10000

// Service wraps the truth_rewards module.
type Service struct {
	contract *chain.Contract
}

func NewService(node chain.NodeInterface, wallet chain.SignerProvider, address string) *Service {
	return &Service{contract: chain.NewContract(node, wallet, address, moduleName)}
}

func (s *Service) ClaimTruthReward(ctx context.Context, eventID uint64) (string, error) {
	return s.contract.Submit(ctx, "claim_truth_reward", chain.U64Arg(eventID))
}

type moveTruthScore struct {
	Correct chain.U64 `json:"correct"`
	Total   chain.U64 `json:"total"`
	Streak  chain.U64 `json:"streak"`
}

// GetTruthScore combines get_truth_score, get_accuracy and get_pending_rewards.
func (s *Service) GetTruthScore(ctx context.Context, address string) (*types.TruthScore, error) {
	raw, err := s.contract.ViewOne(ctx, "get_truth_score", address)
	if err != nil {
		return nil, err
	}
	var ts moveTruthScore
	if err := chain.DecodeInto(raw, &ts); err != nil {
		return nil, err
	}

	accuracy, err := s.GetAccuracy(ctx, address)
	if err != nil {
		return nil, err
	}
	pending, err := s.GetPendingRewards(ctx, address)
	if err != nil {
		return nil, err
	}

	return &types.TruthScore{
		Address:        address,
		Correct:        uint64(ts.Correct),
		Total:          uint64(ts.Total),
		Streak:         uint64(ts.Streak),
		Accuracy:       accuracy,
		PendingRewards: pending,
	}, nil
}

// GetAccuracy returns the accuracy as a fraction in [0,1].
func (s *Service) GetAccuracy(ctx context.Context, address string) (float64, error) {
	raw, err := s.contract.ViewOne(ctx, "get_accuracy", address)
	if err != nil {
		return 0, err
	}
	bps, err := chain.DecodeU64(raw)
	if err != nil {
		return 0, err
	}
	return float64(bps) / accuracyScale, nil
}

func (s *Service) GetPendingRewards(ctx context.Context, address string) (uint64, error) {
	raw, err := s.contract.ViewOne(ctx, "get_pending_rewards", address)
	if err != nil {
		return 0, err
	}
	return chain.DecodeU64(raw)
}
