package gamification

import "github.com/safwentrabelsi/voce/types"

type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Rarity      string `json:"rarity"`
	earned      func(types.UserStats) bool
}

// Badges is the catalogue, in the order new badges are reported.
var Badges = []Badge{
	{ID: "first_vote", Name: "First Voice", Description: "Cast your first vote", Rarity: "common",
		earned: func(s types.UserStats) bool { return s.VotesCast >= 1 }},
	{ID: "voter_10", Name: "Regular", Description: "Cast 10 votes", Rarity: "common",
		earned: func(s types.UserStats) bool { return s.VotesCast >= 10 }},
	{ID: "voter_100", Name: "Town Crier", Description: "Cast 100 votes", Rarity: "rare",
		earned: func(s types.UserStats) bool { return s.VotesCast >= 100 }},
	{ID: "oracle_eye", Name: "Oracle's Eye", Description: "Make 10 correct predictions", Rarity: "rare",
		earned: func(s types.UserStats) bool { return s.CorrectPredictions >= 10 }},
	{ID: "truth_seeker", Name: "Truth Seeker", Description: "Make 50 correct predictions", Rarity: "epic",
		earned: func(s types.UserStats) bool { return s.CorrectPredictions >= 50 }},
	{ID: "hot_streak", Name: "Hot Streak", Description: "Predict 5 outcomes in a row", Rarity: "rare",
		earned: func(s types.UserStats) bool { return s.BestStreak >= 5 }},
	{ID: "unstoppable", Name: "Unstoppable", Description: "Predict 10 outcomes in a row", Rarity: "legendary",
		earned: func(s types.UserStats) bool { return s.BestStreak >= 10 }},
	{ID: "creator", Name: "Question Master", Description: "Create your first event", Rarity: "common",
		earned: func(s types.UserStats) bool { return s.EventsCreated >= 1 }},
	{ID: "architect", Name: "Architect", Description: "Create 10 events", Rarity: "epic",
		earned: func(s types.UserStats) bool { return s.EventsCreated >= 10 }},
	{ID: "level_10", Name: "Silver Voice", Description: "Reach level 10", Rarity: "rare",
		earned: func(s types.UserStats) bool { return s.Level >= 10 }},
	{ID: "level_25", Name: "Diamond Voice", Description: "Reach level 25", Rarity: "legendary",
		earned: func(s types.UserStats) bool { return s.Level >= 25 }},
	{ID: "loyal", Name: "Loyal", Description: "Log in on 30 different days", Rarity: "epic",
		earned: func(s types.UserStats) bool { return s.DailyLogins >= 30 }},
}

// EvaluateBadges returns the badges stats qualify for that are not in owned.
func EvaluateBadges(stats types.UserStats, owned []string) []Badge {
	have := make(map[string]struct{}, len(owned))
	for _, id := range owned {
		have[id] = struct{}{}
	}
	var earned []Badge
	for _, b := range Badges {
		if _, ok := have[b.ID]; ok {
			continue
		}
		if b.earned(stats) {
			earned = append(earned, b)
		}
	}
	return earned
}

func BadgeByID(id string) (Badge, bool) {
	for _, b := range Badges {
		if b.ID == id {
			return b, true
		}
	}
	return Badge{}, false
}
