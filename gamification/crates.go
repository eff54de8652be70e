package gamification

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/safwentrabelsi/voce/types"
)

type crateOdds struct {
	rarity      types.CrateRarity
	weight      int
	minCoins    uint64
	coinSpread  uint64
	xp          uint64
	badgeShards bool
}

// crateTable weights sum to 100.
var crateTable = []crateOdds{
	{rarity: types.RarityCommon, weight: 60, minCoins: 10, coinSpread: 40, xp: 25},
	{rarity: types.RarityRare, weight: 25, minCoins: 50, coinSpread: 100, xp: 100},
	{rarity: types.RarityEpic, weight: 12, minCoins: 200, coinSpread: 300, xp: 300, badgeShards: true},
	{rarity: types.RarityLegendary, weight: 3, minCoins: 1000, coinSpread: 1000, xp: 1000, badgeShards: true},
}

// NewCrate grants an unopened crate.
func NewCrate(source string, now time.Time) types.Crate {
	return types.Crate{
		ID:        uuid.New().String(),
		Source:    source,
		GrantedAt: now.UTC(),
	}
}

// OpenCrate draws a rarity, then a coin amount within that rarity's range.
func OpenCrate(rng *rand.Rand) types.CrateReward {
	total := 0
	for _, o := range crateTable {
		total += o.weight
	}

	roll := rng.Intn(total)
	odds := crateTable[0]
	for _, o := range crateTable {
		if roll < o.weight {
			odds = o
			break
		}
		roll -= o.weight
	}

	return types.CrateReward{
		Rarity:     odds.rarity,
		Coins:      odds.minCoins + uint64(rng.Int63n(int64(odds.coinSpread)+1)),
		XP:         odds.xp,
		BadgeShard: odds.badgeShards,
	}
}
