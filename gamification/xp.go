package gamification

import "fmt"

// Action is something a user does that can earn XP.
type Action string

const (
	ActionCreateEvent       Action = "create_event"
	ActionCommitVote        Action = "commit_vote"
	ActionRevealVote        Action = "reveal_vote"
	ActionCorrectPrediction Action = "correct_prediction"
	ActionWrongPrediction   Action = "wrong_prediction"
	ActionClaimReward       Action = "claim_reward"
	ActionDailyLogin        Action = "daily_login"
)

var actionXP = map[Action]uint64{
	ActionCreateEvent:       150,
	ActionCommitVote:        50,
	ActionRevealVote:        75,
	ActionCorrectPrediction: 250,
	ActionWrongPrediction:   0,
	ActionClaimReward:       20,
	ActionDailyLogin:        25,
}

const (
	streakBonusStep   uint64 = 50
	streakBonusCap    uint64 = 500
	streakBonusMinimum       = 3
)

func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := actionXP[a]; !ok {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}

// XPForAction is the base XP of an action, without streak bonus.
func XPForAction(a Action) uint64 {
	return actionXP[a]
}

// StreakBonus rewards consecutive correct predictions from the third one on.
func StreakBonus(streak uint64) uint64 {
	if streak < streakBonusMinimum {
		return 0
	}
	bonus := (streak - streakBonusMinimum + 1) * streakBonusStep
	if bonus > streakBonusCap {
		return streakBonusCap
	}
	return bonus
}

// selfReported are the actions a user may report through the API. Reveal and
// prediction outcomes are only credited when an event is resolved.
var selfReported = map[Action]bool{
	ActionDailyLogin:  true,
	ActionCreateEvent: true,
	ActionCommitVote:  true,
	ActionClaimReward: true,
}

func IsSelfReported(a Action) bool {
	return selfReported[a]
}
