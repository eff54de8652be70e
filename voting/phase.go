package voting

import (
	"time"

	"github.com/safwentrabelsi/voce/types"
)

type Phase string

const (
	PhaseCommit             Phase = "commit"
	PhaseReveal             Phase = "reveal"
	PhaseAwaitingResolution Phase = "awaiting_resolution"
	PhaseResolved           Phase = "resolved"
	PhaseCancelled          Phase = "cancelled"
)

// PhaseAt derives the lifecycle phase of an event at now from its status and deadlines.
func PhaseAt(event types.VotingEvent, now time.Time) Phase {
	switch event.Status {
	case types.EventResolved:
		return PhaseResolved
	case types.EventCancelled:
		return PhaseCancelled
	}

	ts := uint64(now.Unix())
	switch {
	case ts < event.CommitDeadline:
		return PhaseCommit
	case ts < event.RevealDeadline:
		return PhaseReveal
	default:
		return PhaseAwaitingResolution
	}
}
