package gamification

import (
	"math"
	"math/bits"
)

// levelStep is one row of the level table: the cumulative XP needed to reach
// the level and the coins granted when it is reached.
type levelStep struct {
	xp    uint64
	coins uint64
}

// levelTable covers levels 1 to MaxTableLevel; index 0 is level 1.
var levelTable = [...]levelStep{
	{0, 0},
	{1000, 50},
	{2500, 75},
	{4500, 100},
	{7000, 150},
	{10000, 125},
	{14000, 150},
	{19000, 175},
	{25000, 200},
	{32500, 300},
	{41500, 225},
	{52000, 250},
	{64000, 275},
	{78000, 300},
	{94000, 400},
	{112000, 325},
	{132000, 350},
	{154500, 375},
	{179500, 400},
	{207000, 500},
	{237000, 425},
	{270000, 450},
	{306000, 475},
	{345000, 500},
	{387000, 750},
}

const (
	// MaxTableLevel is the last level defined by the table.
	MaxTableLevel = len(levelTable)
	// XPPerLevelBeyondTable is the cost of every level past MaxTableLevel.
	XPPerLevelBeyondTable uint64 = 45000
	// CoinsPerLevelBeyondTable is the reward of every level past MaxTableLevel.
	CoinsPerLevelBeyondTable uint64 = 300
)

type Tier string

const (
	TierNovice   Tier = "Novice"
	TierBronze   Tier = "Bronze"
	TierSilver   Tier = "Silver"
	TierGold     Tier = "Gold"
	TierPlatinum Tier = "Platinum"
	TierDiamond  Tier = "Diamond"
	TierOracle   Tier = "Oracle"
)

// LevelProgress describes where an XP total sits between two levels.
type LevelProgress struct {
	Level        int     `json:"level"`
	Tier         Tier    `json:"tier"`
	XP           uint64  `json:"xp"`
	LevelStartXP uint64  `json:"levelStartXp"`
	NextLevelXP  uint64  `json:"nextLevelXp"`
	Percent      float64 `json:"percent"`
	TotalCoins   uint64  `json:"totalCoins"`
}

// CalculateLevel returns the level reached with xp. It is 1 for 0 XP and never
// decreases as xp grows.
func CalculateLevel(xp uint64) int {
	last := levelTable[MaxTableLevel-1].xp
	if xp >= last {
		return MaxTableLevel + int((xp-last)/XPPerLevelBeyondTable)
	}
	level := 1
	for i, step := range levelTable {
		if xp < step.xp {
			break
		}
		level = i + 1
	}
	return level
}

// XPForLevel returns the cumulative XP needed to reach level. Levels below 1 cost
// nothing; levels past the uint64 range saturate at math.MaxUint64.
func XPForLevel(level int) uint64 {
	if level <= 1 {
		return 0
	}
	if level <= MaxTableLevel {
		return levelTable[level-1].xp
	}
	return AddSaturating(levelTable[MaxTableLevel-1].xp, mulSaturating(uint64(level-MaxTableLevel), XPPerLevelBeyondTable))
}

// CoinsForLevel returns the coins granted when level is reached.
func CoinsForLevel(level int) uint64 {
	switch {
	case level <= 1:
		return 0
	case level <= MaxTableLevel:
		return levelTable[level-1].coins
	default:
		return CoinsPerLevelBeyondTable
	}
}

// GetTotalCoinsEarned sums the level rewards of levels 2 through level.
func GetTotalCoinsEarned(level int) uint64 {
	var total uint64
	for l := 2; l <= level && l <= MaxTableLevel; l++ {
		total += levelTable[l-1].coins
	}
	if level > MaxTableLevel {
		total = AddSaturating(total, mulSaturating(uint64(level-MaxTableLevel), CoinsPerLevelBeyondTable))
	}
	return total
}

// AddSaturating returns a+b, or math.MaxUint64 when the sum overflows.
func AddSaturating(a, b uint64) uint64 {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return sum
}

func mulSaturating(a, b uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

func TierForLevel(level int) Tier {
	switch {
	case level >= 35:
		return TierOracle
	case level >= 25:
		return TierDiamond
	case level >= 20:
		return TierPlatinum
	case level >= 15:
		return TierGold
	case level >= 10:
		return TierSilver
	case level >= 5:
		return TierBronze
	default:
		return TierNovice
	}
}

// Progress reports the level reached with xp and how far it is into the next one.
// At the top of the uint64 range the next level saturates and Percent is 100.
func Progress(xp uint64) LevelProgress {
	level := CalculateLevel(xp)
	start := XPForLevel(level)
	next := XPForLevel(level + 1)

	percent := 100.0
	if next > start && xp >= start {
		percent = math.Min(float64(xp-start)/float64(next-start)*100, 100)
	}
	return LevelProgress{
		Level:        level,
		Tier:         TierForLevel(level),
		XP:           xp,
		LevelStartXP: start,
		NextLevelXP:  next,
		Percent:      percent,
		TotalCoins:   GetTotalCoinsEarned(level),
	}
}
