package types

import "time"

// EventStatus mirrors the status byte stored by the secure_voting module.
type EventStatus uint8

const (
	EventActive EventStatus = iota
	EventResolved
	EventCancelled
)

func (s EventStatus) String() string {
	switch s {
	case EventActive:
		return "active"
	case EventResolved:
		return "resolved"
	case EventCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// VotingEvent is a prediction event as returned by secure_voting::get_event.
// Deadlines are unix seconds.
type VotingEvent struct {
	ID               uint64      `json:"id"`
	Creator          string      `json:"creator"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Options          []string    `json:"options"`
	CommitDeadline   uint64      `json:"commitDeadline"`
	RevealDeadline   uint64      `json:"revealDeadline"`
	MinStake         uint64      `json:"minStake"`
	TotalStaked      uint64      `json:"totalStaked"`
	Status           EventStatus `json:"status"`
	WinningOption    uint8       `json:"winningOption"`
	ParticipantCount uint64      `json:"participantCount"`
}

type Commitment struct {
	EventID     uint64 `json:"eventId"`
	Voter       string `json:"voter"`
	Hash        string `json:"hash"`
	Stake       uint64 `json:"stake"`
	CommittedAt uint64 `json:"committedAt"`
	Revealed    bool   `json:"revealed"`
}

type Reveal struct {
	EventID    uint64 `json:"eventId"`
	Voter      string `json:"voter"`
	Choice     uint8  `json:"choice"`
	RevealedAt uint64 `json:"revealedAt"`
}

// PendingVote keeps the salt of a committed vote until it is revealed.
type PendingVote struct {
	EventID   uint64    `json:"eventId"`
	Voter     string    `json:"voter"`
	Choice    uint8     `json:"choice"`
	Salt      string    `json:"salt"`
	Hash      string    `json:"hash"`
	Stake     uint64    `json:"stake"`
	TxHash    string    `json:"txHash"`
	CreatedAt time.Time `json:"createdAt"`
}

// Stake amounts are octas; Coins is the same amount with 8 decimals applied.
type Stake struct {
	Address     string `json:"address"`
	Amount      uint64 `json:"amount"`
	Coins       string `json:"coins"`
	LockedUntil uint64 `json:"lockedUntil"`
}

type Pool struct {
	EventID      uint64   `json:"eventId"`
	TotalAmount  uint64   `json:"totalAmount"`
	OptionTotals []uint64 `json:"optionTotals"`
	Claimed      bool     `json:"claimed"`
}

type PlatformStats struct {
	TotalEvents     uint64 `json:"totalEvents"`
	TotalStaked     uint64 `json:"totalStaked"`
	TotalUsers      uint64 `json:"totalUsers"`
	TreasuryBalance uint64 `json:"treasuryBalance"`
}

// UserLevel is the on-chain profile kept by the on_chain_levels module.
type UserLevel struct {
	Address       string   `json:"address"`
	Level         uint64   `json:"level"`
	XP            uint64   `json:"xp"`
	TotalCoins    uint64   `json:"totalCoins"`
	ClaimedLevels []uint64 `json:"claimedLevels"`
}

type TruthScore struct {
	Address        string  `json:"address"`
	Correct        uint64  `json:"correct"`
	Total          uint64  `json:"total"`
	Streak         uint64  `json:"streak"`
	Accuracy       float64 `json:"accuracy"`
	PendingRewards uint64  `json:"pendingRewards"`
}

// Participant is a voter of a resolved event with its revealed choice, if any.
type Participant struct {
	Address  string `json:"address"`
	Revealed bool   `json:"revealed"`
	Choice   uint8  `json:"choice"`
}

// ResolutionMsg is emitted by the poller once an event has a winning option on chain.
type ResolutionMsg struct {
	Event        VotingEvent
	TxHash       string
	Participants []Participant
}

type Resolution struct {
	EventID       uint64    `json:"eventId"`
	WinningOption uint8     `json:"winningOption"`
	TxHash        string    `json:"txHash"`
	ResolvedAt    time.Time `json:"resolvedAt"`
}
