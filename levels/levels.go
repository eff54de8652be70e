package levels

import (
	"context"
	"errors"

	"github.com/safwentrabelsi/voce/chain"
	"github.com/safwentrabelsi/voce/types"
)

const moduleName = "on_chain_levels"

// ErrDisabled is returned by every call while on-chain levels are switched off.
var ErrDisabled = errors.New("on-chain levels are disabled")

// Service wraps the on_chain_levels module.
type Service struct {
	contract *chain.Contract
	enabled  bool
}

func NewService(node chain.NodeInterface, wallet chain.SignerProvider, address string, enabled bool) *Service {
	return &Service{
		contract: chain.NewContract(node, wallet, address, moduleName),
		enabled:  enabled && address != "",
	}
}

func (s *Service) Enabled() bool {
	return s.enabled
}

func (s *Service) InitializeProfile(ctx context.Context) (string, error) {
	if !s.enabled {
		return "", ErrDisabled
	}
	return s.contract.Submit(ctx, "initialize_profile")
}

// AddXP credits XP to user. The connected account must be the module admin.
func (s *Service) AddXP(ctx context.Context, user string, amount uint64) (string, error) {
	if !s.enabled {
		return "", ErrDisabled
	}
	return s.contract.Submit(ctx, "add_xp", user, chain.U64Arg(amount))
}

func (s *Service) ClaimLevelReward(ctx context.Context, level uint64) (string, error) {
	if !s.enabled {
		return "", ErrDisabled
	}
	return s.contract.Submit(ctx, "claim_level_reward", chain.U64Arg(level))
}

func (s *Service) HasProfile(ctx context.Context, address string) (bool, error) {
	if !s.enabled {
		return false, ErrDisabled
	}
	raw, err := s.contract.ViewOne(ctx, "has_profile", address)
	if err != nil {
		return false, err
	}
	return chain.DecodeBool(raw)
}

type moveUserLevel struct {
	Level         chain.U64   `json:"level"`
	XP            chain.U64   `json:"xp"`
	TotalCoins    chain.U64   `json:"total_coins"`
	ClaimedLevels []chain.U64 `json:"claimed_levels"`
}

func (s *Service) GetUserLevel(ctx context.Context, address string) (*types.UserLevel, error) {
	if !s.enabled {
		return nil, ErrDisabled
	}
	raw, err := s.contract.ViewOne(ctx, "get_user_level", address)
	if err != nil {
		return nil, err
	}
	var ul moveUserLevel
	if err := chain.DecodeInto(raw, &ul); err != nil {
		return nil, err
	}
	claimed := make([]uint64, len(ul.ClaimedLevels))
	for i, l := range ul.ClaimedLevels {
		claimed[i] = uint64(l)
	}
	return &types.UserLevel{
		Address:       address,
		Level:         uint64(ul.Level),
		XP:            uint64(ul.XP),
		TotalCoins:    uint64(ul.TotalCoins),
		ClaimedLevels: claimed,
	}, nil
}
