package gamification

import (
	"fmt"
	"sort"

	"github.com/safwentrabelsi/voce/types"
)

type SortKey string

const (
	SortByXP       SortKey = "xp"
	SortByCoins    SortKey = "coins"
	SortByAccuracy SortKey = "accuracy"
)

var SortKeys = []SortKey{SortByXP, SortByCoins, SortByAccuracy}

func ParseSortKey(s string) (SortKey, error) {
	if s == "" {
		return SortByXP, nil
	}
	for _, k := range SortKeys {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown leaderboard key %q", s)
}

// Score returns the value entries are ranked by.
func Score(e types.LeaderboardEntry, by SortKey) float64 {
	switch by {
	case SortByCoins:
		return float64(e.Coins)
	case SortByAccuracy:
		return e.Accuracy
	default:
		return float64(e.XP)
	}
}

// EntryFromState builds the leaderboard row of a reward state.
func EntryFromState(s types.RewardState) types.LeaderboardEntry {
	return types.LeaderboardEntry{
		Address:  s.Address,
		XP:       s.XP,
		Level:    s.Level,
		Coins:    s.Coins,
		Accuracy: s.Stats.Accuracy(),
	}
}

// Rank sorts entries by score, descending, with the address as tie breaker, and
// assigns dense ranks: equal scores share a rank and the next score gets rank+1.
func Rank(entries []types.LeaderboardEntry, by SortKey) []types.LeaderboardEntry {
	ranked := make([]types.LeaderboardEntry, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := Score(ranked[i], by), Score(ranked[j], by)
		if si != sj {
			return si > sj
		}
		return ranked[i].Address < ranked[j].Address
	})

	rank := 0
	for i := range ranked {
		if i == 0 || Score(ranked[i], by) != Score(ranked[i-1], by) {
			rank++
		}
		ranked[i].Rank = rank
	}
	return ranked
}
