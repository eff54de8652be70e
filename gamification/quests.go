package gamification

import (
	"time"

	"github.com/safwentrabelsi/voce/types"
)

type QuestPeriod string

const (
	QuestDaily  QuestPeriod = "daily"
	QuestWeekly QuestPeriod = "weekly"
)

type Quest struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Action      Action      `json:"action"`
	Target      int         `json:"target"`
	Period      QuestPeriod `json:"period"`
	RewardXP    uint64      `json:"rewardXp"`
	RewardCoins uint64      `json:"rewardCoins"`
}

var Quests = []Quest{
	{ID: "daily_login", Title: "Show up", Action: ActionDailyLogin, Target: 1, Period: QuestDaily, RewardXP: 25, RewardCoins: 5},
	{ID: "daily_commit_3", Title: "Cast three votes", Action: ActionCommitVote, Target: 3, Period: QuestDaily, RewardXP: 100, RewardCoins: 20},
	{ID: "daily_reveal_1", Title: "Reveal a vote", Action: ActionRevealVote, Target: 1, Period: QuestDaily, RewardXP: 50, RewardCoins: 10},
	{ID: "weekly_create_1", Title: "Ask the crowd", Action: ActionCreateEvent, Target: 1, Period: QuestWeekly, RewardXP: 300, RewardCoins: 50},
	{ID: "weekly_commit_15", Title: "Cast fifteen votes", Action: ActionCommitVote, Target: 15, Period: QuestWeekly, RewardXP: 500, RewardCoins: 100},
	{ID: "weekly_correct_5", Title: "Be right five times", Action: ActionCorrectPrediction, Target: 5, Period: QuestWeekly, RewardXP: 750, RewardCoins: 150},
}

// PeriodStart returns the UTC start of the day or ISO week containing now.
func PeriodStart(period QuestPeriod, now time.Time) time.Time {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if period == QuestDaily {
		return day
	}
	offset := (int(day.Weekday()) + 6) % 7 // Monday is 0
	return day.AddDate(0, 0, -offset)
}

// ApplyAction advances every quest tracking action. Progress from an earlier
// period is reset first. It returns the updated progress, one entry per quest in
// Quests order, and the quests completed by this action.
func ApplyAction(progress []types.QuestProgress, action Action, now time.Time) ([]types.QuestProgress, []Quest) {
	byID := make(map[string]types.QuestProgress, len(progress))
	for _, p := range progress {
		byID[p.QuestID] = p
	}

	updated := make([]types.QuestProgress, 0, len(Quests))
	var completed []Quest
	for _, q := range Quests {
		start := PeriodStart(q.Period, now)
		p, ok := byID[q.ID]
		if !ok || !p.PeriodStart.Equal(start) {
			p = types.QuestProgress{QuestID: q.ID, PeriodStart: start}
		}
		if q.Action == action && !p.Completed {
			p.Progress++
			if p.Progress >= q.Target {
				p.Progress = q.Target
				p.Completed = true
				completed = append(completed, q)
			}
		}
		updated = append(updated, p)
	}
	return updated, completed
}
