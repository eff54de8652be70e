package types

import "time"

// UserStats are the counters badges and quests are evaluated against.
type UserStats struct {
	VotesCast          uint64 `json:"votesCast"`
	VotesRevealed      uint64 `json:"votesRevealed"`
	CorrectPredictions uint64 `json:"correctPredictions"`
	WrongPredictions   uint64 `json:"wrongPredictions"`
	CurrentStreak      uint64 `json:"currentStreak"`
	BestStreak         uint64 `json:"bestStreak"`
	EventsCreated      uint64 `json:"eventsCreated"`
	RewardsClaimed     uint64 `json:"rewardsClaimed"`
	DailyLogins        uint64 `json:"dailyLogins"`
	CratesOpened       uint64 `json:"cratesOpened"`
	Level              int    `json:"level"`
}

// Accuracy is the share of resolved predictions that were correct, in [0,1].
func (s UserStats) Accuracy() float64 {
	total := s.CorrectPredictions + s.WrongPredictions
	if total == 0 {
		return 0
	}
	return float64(s.CorrectPredictions) / float64(total)
}

type QuestProgress struct {
	QuestID     string    `json:"questId"`
	Progress    int       `json:"progress"`
	Completed   bool      `json:"completed"`
	PeriodStart time.Time `json:"periodStart"`
}

type CrateRarity string

const (
	RarityCommon    CrateRarity = "common"
	RarityRare      CrateRarity = "rare"
	RarityEpic      CrateRarity = "epic"
	RarityLegendary CrateRarity = "legendary"
)

// Crate is a mystery crate. Its rarity stays hidden until it is opened.
type Crate struct {
	ID        string       `json:"id"`
	Source    string       `json:"source"`
	GrantedAt time.Time    `json:"grantedAt"`
	Opened    bool         `json:"opened"`
	OpenedAt  *time.Time   `json:"openedAt,omitempty"`
	Reward    *CrateReward `json:"reward,omitempty"`
}

type CrateReward struct {
	Rarity     CrateRarity `json:"rarity"`
	Coins      uint64      `json:"coins"`
	XP         uint64      `json:"xp"`
	BadgeShard bool        `json:"badgeShard"`
}

// RewardState is the locally cached gamification state of one address.
type RewardState struct {
	Address   string          `json:"address"`
	XP        uint64          `json:"xp"`
	Level     int             `json:"level"`
	Coins     uint64          `json:"coins"`
	Stats     UserStats       `json:"stats"`
	Badges    []string        `json:"badges"`
	Quests    []QuestProgress `json:"quests"`
	Crates    []Crate         `json:"crates"`
	LastLogin time.Time       `json:"lastLogin"`
	SyncedAt  *time.Time      `json:"syncedAt,omitempty"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type LeaderboardEntry struct {
	Rank     int     `json:"rank"`
	Address  string  `json:"address"`
	XP       uint64  `json:"xp"`
	Level    int     `json:"level"`
	Coins    uint64  `json:"coins"`
	Accuracy float64 `json:"accuracy"`
}
