package rewards

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/safwentrabelsi/voce/gamification"
	"github.com/safwentrabelsi/voce/metrics"
	"github.com/safwentrabelsi/voce/store"
	"github.com/safwentrabelsi/voce/types"
	"github.com/safwentrabelsi/voce/utils"
	"github.com/safwentrabelsi/voce/wallet"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "rewards")

var (
	ErrCrateNotFound  = errors.New("crate not found")
	ErrCrateOpened    = errors.New("crate already opened")
	ErrSyncDisabled   = errors.New("on-chain levels are disabled")
	ErrInvalidAddress = errors.New("invalid address")
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
	// fallbackWindow bounds the rows ranked when no cache is configured.
	fallbackWindow = 1000
	// warmPageSize is the number of states copied per page when warming the cache.
	warmPageSize = 500
	// maxCratesPerCredit bounds the level crates granted by a single credit.
	maxCratesPerCredit = 50
)

type StateStore interface {
	GetRewardState(ctx context.Context, address string) (*types.RewardState, error)
	SaveRewardState(ctx context.Context, state *types.RewardState) error
	ListRewardStates(ctx context.Context, addresses []string, by gamification.SortKey, limit int) ([]types.RewardState, error)
	ScanRewardStates(ctx context.Context, after string, limit int) ([]types.RewardState, error)
	CountRewardStates(ctx context.Context) (int64, error)
	CountScoresAbove(ctx context.Context, by gamification.SortKey, score float64) (int64, error)
}

type LeaderboardCache interface {
	UpdateScores(ctx context.Context, entry types.LeaderboardEntry) error
	Top(ctx context.Context, by gamification.SortKey, limit int) ([]string, error)
	Count(ctx context.Context, by gamification.SortKey) (int64, error)
}

// LevelSyncer is the on-chain side of the ledger.
type LevelSyncer interface {
	Enabled() bool
	AddXP(ctx context.Context, user string, amount uint64) (string, error)
	GetUserLevel(ctx context.Context, address string) (*types.UserLevel, error)
}

type Ledger struct {
	mu     sync.Mutex
	store  StateStore
	cache  LeaderboardCache
	levels LevelSyncer
	rng    *rand.Rand
	now    func() time.Time
}

type Option func(*Ledger)

func WithCache(cache LeaderboardCache) Option {
	return func(l *Ledger) { l.cache = cache }
}

func WithLevelSyncer(levels LevelSyncer) Option {
	return func(l *Ledger) { l.levels = levels }
}

func WithRand(rng *rand.Rand) Option {
	return func(l *Ledger) { l.rng = rng }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(s StateStore, opts ...Option) *Ledger {
	l := &Ledger{
		store: s,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type AwardResult struct {
	State           *types.RewardState   `json:"state"`
	XPGained        uint64               `json:"xpGained"`
	CoinsGained     uint64               `json:"coinsGained"`
	LeveledUp       bool                 `json:"leveledUp"`
	NewBadges       []gamification.Badge `json:"newBadges"`
	CompletedQuests []gamification.Quest `json:"completedQuests"`
	CratesGranted   []types.Crate        `json:"cratesGranted"`
}

// Award credits address for action and returns what it earned. A second
// daily login on the same UTC day earns nothing.
func (l *Ledger) Award(ctx context.Context, address string, action gamification.Action) (*AwardResult, error) {
	result := &AwardResult{}
	state, err := l.update(ctx, address, func(state *types.RewardState, now time.Time) (bool, error) {
		if action == gamification.ActionDailyLogin && sameDay(state.LastLogin, now) {
			return false, nil
		}
		applyStats(state, action, now)

		xp := gamification.XPForAction(action)
		if action == gamification.ActionCorrectPrediction {
			xp += gamification.StreakBonus(state.Stats.CurrentStreak)
		}
		var coins uint64

		var completed []gamification.Quest
		state.Quests, completed = gamification.ApplyAction(state.Quests, action, now)
		for _, q := range completed {
			xp += q.RewardXP
			coins += q.RewardCoins
		}
		result.CompletedQuests = completed

		l.credit(state, result, xp, coins, now)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	result.State = state

	if result.XPGained > 0 {
		metrics.XPAwardedAdd(string(action), result.XPGained)
		l.mirrorXP(ctx, state.Address, result.XPGained)
	}
	return result, nil
}

// Get returns the state of address, or a fresh level 1 state if none was stored.
func (l *Ledger) Get(ctx context.Context, address string) (*types.RewardState, error) {
	address, err := normalize(address)
	if err != nil {
		return nil, err
	}
	return l.load(ctx, address)
}

// Sync overwrites the local XP, level and coins with the on-chain profile.
func (l *Ledger) Sync(ctx context.Context, address string) (*types.RewardState, error) {
	if l.levels == nil || !l.levels.Enabled() {
		return nil, ErrSyncDisabled
	}
	address, err := normalize(address)
	if err != nil {
		return nil, err
	}
	onChain, err := l.levels.GetUserLevel(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to read on-chain level of %s: %w", address, err)
	}

	return l.update(ctx, address, func(state *types.RewardState, now time.Time) (bool, error) {
		state.XP = onChain.XP
		state.Level = int(onChain.Level)
		if state.Level < 1 {
			state.Level = gamification.CalculateLevel(onChain.XP)
		}
		state.Stats.Level = state.Level
		state.Coins = onChain.TotalCoins
		syncedAt := now
		state.SyncedAt = &syncedAt
		return true, nil
	})
}

// OpenCrate opens one of the crates held by address and credits its reward.
func (l *Ledger) OpenCrate(ctx context.Context, address, crateID string) (*types.Crate, *AwardResult, error) {
	result := &AwardResult{}
	var opened types.Crate
	state, err := l.update(ctx, address, func(state *types.RewardState, now time.Time) (bool, error) {
		idx := -1
		for i := range state.Crates {
			if state.Crates[i].ID == crateID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return false, ErrCrateNotFound
		}
		if state.Crates[idx].Opened {
			return false, ErrCrateOpened
		}

		reward := gamification.OpenCrate(l.rng)
		openedAt := now
		state.Crates[idx].Opened = true
		state.Crates[idx].OpenedAt = &openedAt
		state.Crates[idx].Reward = &reward
		state.Stats.CratesOpened++
		opened = state.Crates[idx]

		l.credit(state, result, reward.XP, reward.Coins, now)
		return true, nil
	})
	if err != nil {
		return nil, nil, err
	}
	result.State = state

	if result.XPGained > 0 {
		metrics.XPAwardedAdd("open_crate", result.XPGained)
		l.mirrorXP(ctx, state.Address, result.XPGained)
	}
	return &opened, result, nil
}

// Leaderboard returns up to limit ranked entries. The cache is only trusted
// when it ranks as many users as the store holds.
func (l *Ledger) Leaderboard(ctx context.Context, by gamification.SortKey, limit int) ([]types.LeaderboardEntry, error) {
	limit = utils.ClampLimit(limit, DefaultLeaderboardLimit, MaxLeaderboardLimit)

	states, err := l.cachedStates(ctx, by, limit)
	if err != nil {
		log.WithError(err).Warn("Leaderboard cache unavailable, ranking from the store")
	}
	if states == nil {
		states, err = l.store.ListRewardStates(ctx, nil, by, fallbackWindow)
		if err != nil {
			return nil, err
		}
	}

	entries := make([]types.LeaderboardEntry, 0, len(states))
	for _, s := range states {
		entries = append(entries, gamification.EntryFromState(s))
	}
	ranked := gamification.Rank(entries, by)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// cachedStates loads the states of the cached top addresses. It returns nil
// states when the cache is absent, empty or behind the store.
func (l *Ledger) cachedStates(ctx context.Context, by gamification.SortKey, limit int) ([]types.RewardState, error) {
	if l.cache == nil {
		return nil, nil
	}
	cached, err := l.cache.Count(ctx, by)
	if err != nil {
		return nil, err
	}
	stored, err := l.store.CountRewardStates(ctx)
	if err != nil {
		return nil, err
	}
	if cached == 0 || cached < stored {
		if stored > 0 {
			log.WithFields(logrus.Fields{"cached": cached, "stored": stored}).Warn("Leaderboard cache is incomplete")
		}
		return nil, nil
	}

	addresses, err := l.cache.Top(ctx, by, limit)
	if err != nil || len(addresses) == 0 {
		return nil, err
	}
	return l.store.ListRewardStates(ctx, addresses, by, len(addresses))
}

// WarmCache copies the scores of every stored state into the leaderboard cache.
// It is a no-op without a cache.
func (l *Ledger) WarmCache(ctx context.Context) error {
	if l.cache == nil {
		return nil
	}
	var (
		after  string
		warmed int
	)
	for {
		page, err := l.store.ScanRewardStates(ctx, after, warmPageSize)
		if err != nil {
			return fmt.Errorf("failed to read reward states: %w", err)
		}
		for _, state := range page {
			if err := l.cache.UpdateScores(ctx, gamification.EntryFromState(state)); err != nil {
				return fmt.Errorf("failed to cache scores of %s: %w", state.Address, err)
			}
		}
		warmed += len(page)
		if len(page) < warmPageSize {
			break
		}
		after = page[len(page)-1].Address
	}
	log.Infof("Leaderboard cache warmed with %d users", warmed)
	return nil
}

// RankOf returns the dense leaderboard rank of address under by. Users without
// a stored state are not ranked and get 0.
func (l *Ledger) RankOf(ctx context.Context, address string, by gamification.SortKey) (int, error) {
	address, err := normalize(address)
	if err != nil {
		return 0, err
	}
	state, err := l.store.GetRewardState(ctx, address)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	above, err := l.store.CountScoresAbove(ctx, by, gamification.Score(gamification.EntryFromState(*state), by))
	if err != nil {
		return 0, err
	}
	return int(above) + 1, nil
}

// update runs fn on the stored state of address under the ledger lock and
// persists it when fn reports a change.
func (l *Ledger) update(ctx context.Context, address string, fn func(*types.RewardState, time.Time) (bool, error)) (*types.RewardState, error) {
	address, err := normalize(address)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	state, err := l.load(ctx, address)
	if err != nil {
		l.mu.Unlock()
		return nil, err
	}
	now := l.now().UTC()
	changed, err := fn(state, now)
	if err == nil && changed {
		state.UpdatedAt = now
		err = l.store.SaveRewardState(ctx, state)
	}
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if changed && l.cache != nil {
		if err := l.cache.UpdateScores(ctx, gamification.EntryFromState(*state)); err != nil {
			log.WithError(err).WithField("address", address).Warn("Failed to update leaderboard cache")
		}
	}
	return state, nil
}

func (l *Ledger) load(ctx context.Context, address string) (*types.RewardState, error) {
	state, err := l.store.GetRewardState(ctx, address)
	if errors.Is(err, store.ErrNotFound) {
		return &types.RewardState{
			Address: address,
			Level:   1,
			Stats:   types.UserStats{Level: 1},
			Badges:  []string{},
			Crates:  []types.Crate{},
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// credit adds xp and coins, grants level coins and one crate per level gained
// (at most maxCratesPerCredit), then evaluates badges.
func (l *Ledger) credit(state *types.RewardState, result *AwardResult, xp, coins uint64, now time.Time) {
	before := state.Level
	state.XP = gamification.AddSaturating(state.XP, xp)
	after := gamification.CalculateLevel(state.XP)
	if after > before {
		coins = gamification.AddSaturating(coins, gamification.GetTotalCoinsEarned(after)-gamification.GetTotalCoinsEarned(before))
		for lvl := before + 1; lvl <= after && lvl-before <= maxCratesPerCredit; lvl++ {
			crate := gamification.NewCrate(fmt.Sprintf("level_%d", lvl), now)
			state.Crates = append(state.Crates, crate)
			result.CratesGranted = append(result.CratesGranted, crate)
		}
		state.Level = after
		result.LeveledUp = true
	}
	state.Stats.Level = state.Level
	state.Coins = gamification.AddSaturating(state.Coins, coins)

	for _, b := range gamification.EvaluateBadges(state.Stats, state.Badges) {
		state.Badges = append(state.Badges, b.ID)
		result.NewBadges = append(result.NewBadges, b)
	}

	result.XPGained += xp
	result.CoinsGained = gamification.AddSaturating(result.CoinsGained, coins)
}

func (l *Ledger) mirrorXP(ctx context.Context, address string, xp uint64) {
	if l.levels == nil || !l.levels.Enabled() {
		return
	}
	hash, err := l.levels.AddXP(ctx, address, xp)
	if err != nil {
		log.WithError(err).WithField("address", address).Error("Failed to mirror XP on chain")
		return
	}
	log.WithFields(logrus.Fields{"address": address, "xp": xp, "hash": hash}).Debug("XP mirrored on chain")
}

func applyStats(state *types.RewardState, action gamification.Action, now time.Time) {
	s := &state.Stats
	switch action {
	case gamification.ActionCreateEvent:
		s.EventsCreated++
	case gamification.ActionCommitVote:
		s.VotesCast++
	case gamification.ActionRevealVote:
		s.VotesRevealed++
	case gamification.ActionCorrectPrediction:
		s.CorrectPredictions++
		s.CurrentStreak++
		if s.CurrentStreak > s.BestStreak {
			s.BestStreak = s.CurrentStreak
		}
	case gamification.ActionWrongPrediction:
		s.WrongPredictions++
		s.CurrentStreak = 0
	case gamification.ActionClaimReward:
		s.RewardsClaimed++
	case gamification.ActionDailyLogin:
		s.DailyLogins++
		state.LastLogin = now
	}
}

func sameDay(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func normalize(address string) (string, error) {
	normalized, err := wallet.NormalizeAddress(address)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, address)
	}
	return normalized, nil
}
