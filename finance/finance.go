package finance

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/safwentrabelsi/voce/chain"
	"github.com/safwentrabelsi/voce/types"
	"github.com/shopspring/decimal"
)

const moduleName = "financial_system"

// CoinDecimals is the number of decimals between octas and whole coins.
const CoinDecimals = 8

var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrBelowMinStake = errors.New("amount below minimum stake")
)

// Service wraps the financial_system module.
type Service struct {
	contract *chain.Contract
}

func NewService(node chain.NodeInterface, wallet chain.SignerProvider, address string) *Service {
	return &Service{contract: chain.NewContract(node, wallet, address, moduleName)}
}

// StakeTokens stakes amount octas, checking the module minimum first.
func (s *Service) StakeTokens(ctx context.Context, amount uint64) (string, error) {
	if amount == 0 {
		return "", ErrInvalidAmount
	}
	minStake, err := s.GetMinStake(ctx)
	if err != nil {
		return "", err
	}
	if amount < minStake {
		return "", fmt.Errorf("%w: %s < %s", ErrBelowMinStake, FormatCoins(amount), FormatCoins(minStake))
	}
	return s.contract.Submit(ctx, "stake_tokens", chain.U64Arg(amount))
}

func (s *Service) UnstakeTokens(ctx context.Context, amount uint64) (string, error) {
	if amount == 0 {
		return "", ErrInvalidAmount
	}
	return s.contract.Submit(ctx, "unstake_tokens", chain.U64Arg(amount))
}

func (s *Service) DepositToPool(ctx context.Context, eventID, amount uint64) (string, error) {
	if amount == 0 {
		return "", ErrInvalidAmount
	}
	return s.contract.Submit(ctx, "deposit_to_pool", chain.U64Arg(eventID), chain.U64Arg(amount))
}

func (s *Service) ClaimWinnings(ctx context.Context, eventID uint64) (string, error) {
	return s.contract.Submit(ctx, "claim_winnings", chain.U64Arg(eventID))
}

type moveStake struct {
	Amount      chain.U64 `json:"amount"`
	LockedUntil chain.U64 `json:"locked_until"`
}

func (s *Service) GetStake(ctx context.Context, address string) (*types.Stake, error) {
	raw, err := s.contract.ViewOne(ctx, "get_stake", address)
	if err != nil {
		return nil, err
	}
	var st moveStake
	if err := chain.DecodeInto(raw, &st); err != nil {
		return nil, err
	}
	return &types.Stake{
		Address:     address,
		Amount:      uint64(st.Amount),
		Coins:       FormatCoins(uint64(st.Amount)),
		LockedUntil: uint64(st.LockedUntil),
	}, nil
}

func (s *Service) GetMinStake(ctx context.Context) (uint64, error) {
	raw, err := s.contract.ViewOne(ctx, "get_min_stake")
	if err != nil {
		return 0, err
	}
	return chain.DecodeU64(raw)
}

type movePool struct {
	TotalAmount  chain.U64   `json:"total_amount"`
	OptionTotals []chain.U64 `json:"option_totals"`
	Claimed      bool        `json:"claimed"`
}

func (s *Service) GetPool(ctx context.Context, eventID uint64) (*types.Pool, error) {
	raw, err := s.contract.ViewOne(ctx, "get_pool", chain.U64Arg(eventID))
	if err != nil {
		return nil, err
	}
	var p movePool
	if err := chain.DecodeInto(raw, &p); err != nil {
		return nil, err
	}
	totals := make([]uint64, len(p.OptionTotals))
	for i, v := range p.OptionTotals {
		totals[i] = uint64(v)
	}
	return &types.Pool{
		EventID:      eventID,
		TotalAmount:  uint64(p.TotalAmount),
		OptionTotals: totals,
		Claimed:      p.Claimed,
	}, nil
}

// GetPlatformStats reads the (total_events, total_staked, total_users, treasury_balance) tuple.
func (s *Service) GetPlatformStats(ctx context.Context) (*types.PlatformStats, error) {
	values, err := s.contract.View(ctx, "get_platform_stats")
	if err != nil {
		return nil, err
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("get_platform_stats: expected 4 values, got %d", len(values))
	}
	var out [4]uint64
	for i, v := range values {
		if out[i], err = chain.DecodeU64(v); err != nil {
			return nil, err
		}
	}
	return &types.PlatformStats{
		TotalEvents:     out[0],
		TotalStaked:     out[1],
		TotalUsers:      out[2],
		TreasuryBalance: out[3],
	}, nil
}

// FormatCoins renders octas as a decimal coin amount, e.g. 150000000 -> "1.5".
func FormatCoins(octas uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(octas), -CoinDecimals).String()
}

// ParseCoins converts a decimal coin amount into octas. More than CoinDecimals
// decimals or a negative amount is rejected.
func ParseCoins(coins string) (uint64, error) {
	d, err := decimal.NewFromString(coins)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", coins, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("invalid amount %q: %w", coins, ErrInvalidAmount)
	}
	octas := d.Shift(CoinDecimals)
	if !octas.Equal(octas.Truncate(0)) {
		return 0, fmt.Errorf("invalid amount %q: more than %d decimals", coins, CoinDecimals)
	}
	bi := octas.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("invalid amount %q: out of range", coins)
	}
	return bi.Uint64(), nil
}
