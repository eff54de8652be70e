package voting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/safwentrabelsi/voce/chain"
	"github.com/safwentrabelsi/voce/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const moduleName = "secure_voting"

const (
	// maxConcurrentReads bounds the view calls issued while listing events.
	maxConcurrentReads = 8
	// MaxListedEvents bounds the events read by ListEvents.
	MaxListedEvents = 500
)

var log = logrus.WithField("module", "voting")

var (
	ErrInvalidEvent  = errors.New("invalid voting event")
	ErrInvalidChoice = errors.New("invalid choice")
	ErrWrongPhase    = errors.New("event is not in the expected phase")
	ErrStakeTooLow   = errors.New("stake below event minimum")
	ErrNoPendingVote = errors.New("no pending vote to reveal")
)

// PendingVoteStore keeps salts between commit and reveal.
type PendingVoteStore interface {
	SavePendingVote(ctx context.Context, vote types.PendingVote) error
	GetPendingVote(ctx context.Context, eventID uint64, voter string) (*types.PendingVote, error)
	DeletePendingVote(ctx context.Context, eventID uint64, voter string) error
}

// Service wraps the secure_voting module.
type Service struct {
	contract *chain.Contract
	wallet   chain.SignerProvider
	votes    PendingVoteStore
	now      func() time.Time
}

func NewService(node chain.NodeInterface, wallet chain.SignerProvider, address string, votes PendingVoteStore) *Service {
	return &Service{
		contract: chain.NewContract(node, wallet, address, moduleName),
		wallet:   wallet,
		votes:    votes,
		now:      time.Now,
	}
}

type CreateEventParams struct {
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Options        []string      `json:"options"`
	VotingDuration time.Duration `json:"votingDuration"`
	RevealDuration time.Duration `json:"revealDuration"`
	MinStake       uint64        `json:"minStake"`
}

func (p CreateEventParams) validate() error {
	switch {
	case p.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidEvent)
	case len(p.Options) < 2:
		return fmt.Errorf("%w: at least two options are required", ErrInvalidEvent)
	case len(p.Options) > 255:
		return fmt.Errorf("%w: at most 255 options are supported", ErrInvalidEvent)
	case p.VotingDuration < time.Second || p.RevealDuration < time.Second:
		return fmt.Errorf("%w: voting and reveal durations must be at least one second", ErrInvalidEvent)
	}
	for i, option := range p.Options {
		if option == "" {
			return fmt.Errorf("%w: option %d is empty", ErrInvalidEvent, i)
		}
	}
	return nil
}

func (s *Service) CreateVotingEvent(ctx context.Context, params CreateEventParams) (string, error) {
	if err := params.validate(); err != nil {
		return "", err
	}
	return s.contract.Submit(ctx, "create_voting_event",
		params.Title,
		params.Description,
		params.Options,
		chain.U64Arg(uint64(params.VotingDuration/time.Second)),
		chain.U64Arg(uint64(params.RevealDuration/time.Second)),
		chain.U64Arg(params.MinStake),
	)
}

// CommitVote hides choice behind a fresh salt and commits it with stake. The returned
// pending vote holds the salt needed to reveal; it is also kept in the store when one is set.
func (s *Service) CommitVote(ctx context.Context, eventID uint64, choice uint8, stake uint64) (*types.PendingVote, error) {
	signer, err := s.wallet.Signer()
	if err != nil {
		return nil, err
	}

	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if phase := PhaseAt(*event, s.now()); phase != PhaseCommit {
		return nil, fmt.Errorf("%w: event %d is in %s phase", ErrWrongPhase, eventID, phase)
	}
	if int(choice) >= len(event.Options) {
		return nil, fmt.Errorf("%w: event %d has %d options", ErrInvalidChoice, eventID, len(event.Options))
	}
	if stake < event.MinStake {
		return nil, fmt.Errorf("%w: %d < %d", ErrStakeTooLow, stake, event.MinStake)
	}

	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}
	hash := GenerateCommitmentHash(choice, salt)

	txHash, err := s.contract.Submit(ctx, "commit_vote", chain.U64Arg(eventID), chain.BytesArg(hash), chain.U64Arg(stake))
	if err != nil {
		return nil, err
	}

	vote := &types.PendingVote{
		EventID:   eventID,
		Voter:     signer.Address(),
		Choice:    choice,
		Salt:      encodeHex(salt),
		Hash:      encodeHex(hash),
		Stake:     stake,
		TxHash:    txHash,
		CreatedAt: s.now().UTC(),
	}
	if s.votes != nil {
		if err := s.votes.SavePendingVote(ctx, *vote); err != nil {
			// The commitment is on chain already; the caller still gets the salt back.
			log.WithError(err).Errorf("Failed to persist pending vote for event %d", eventID)
		}
	}
	return vote, nil
}

// RevealVote reveals the pending vote stored for the connected account.
func (s *Service) RevealVote(ctx context.Context, eventID uint64) (string, error) {
	signer, err := s.wallet.Signer()
	if err != nil {
		return "", err
	}
	if s.votes == nil {
		return "", ErrNoPendingVote
	}

	vote, err := s.votes.GetPendingVote(ctx, eventID, signer.Address())
	if err != nil {
		return "", fmt.Errorf("error loading pending vote: %w", err)
	}
	if vote == nil {
		return "", ErrNoPendingVote
	}

	salt, err := decodeHex(vote.Salt)
	if err != nil {
		return "", err
	}
	txHash, err := s.RevealVoteWithSalt(ctx, eventID, vote.Choice, salt)
	if err != nil {
		return "", err
	}

	if err := s.votes.DeletePendingVote(ctx, eventID, signer.Address()); err != nil {
		log.WithError(err).Warnf("Failed to delete revealed vote for event %d", eventID)
	}
	return txHash, nil
}

// RevealVoteWithSalt reveals an explicitly supplied choice and salt.
func (s *Service) RevealVoteWithSalt(ctx context.Context, eventID uint64, choice uint8, salt []byte) (string, error) {
	return s.contract.Submit(ctx, "reveal_vote", chain.U64Arg(eventID), choice, chain.BytesArg(salt))
}

func (s *Service) ResolveEvent(ctx context.Context, eventID uint64) (string, error) {
	return s.contract.Submit(ctx, "resolve_event", chain.U64Arg(eventID))
}

func (s *Service) ClaimReward(ctx context.Context, eventID uint64) (string, error) {
	return s.contract.Submit(ctx, "claim_reward", chain.U64Arg(eventID))
}

func (s *Service) CancelEvent(ctx context.Context, eventID uint64) (string, error) {
	return s.contract.Submit(ctx, "cancel_event", chain.U64Arg(eventID))
}

// moveEvent is the JSON shape of the secure_voting::VotingEvent struct.
type moveEvent struct {
	ID               chain.U64 `json:"id"`
	Creator          string    `json:"creator"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Options          []string  `json:"options"`
	CommitDeadline   chain.U64 `json:"commit_deadline"`
	RevealDeadline   chain.U64 `json:"reveal_deadline"`
	MinStake         chain.U64 `json:"min_stake"`
	TotalStaked      chain.U64 `json:"total_staked"`
	Status           uint8     `json:"status"`
	WinningOption    uint8     `json:"winning_option"`
	ParticipantCount chain.U64 `json:"participant_count"`
}

func (s *Service) GetEvent(ctx context.Context, eventID uint64) (*types.VotingEvent, error) {
	raw, err := s.contract.ViewOne(ctx, "get_event", chain.U64Arg(eventID))
	if err != nil {
		return nil, err
	}
	var ev moveEvent
	if err := chain.DecodeInto(raw, &ev); err != nil {
		return nil, err
	}
	return &types.VotingEvent{
		ID:               uint64(ev.ID),
		Creator:          ev.Creator,
		Title:            ev.Title,
		Description:      ev.Description,
		Options:          ev.Options,
		CommitDeadline:   uint64(ev.CommitDeadline),
		RevealDeadline:   uint64(ev.RevealDeadline),
		MinStake:         uint64(ev.MinStake),
		TotalStaked:      uint64(ev.TotalStaked),
		Status:           types.EventStatus(ev.Status),
		WinningOption:    ev.WinningOption,
		ParticipantCount: uint64(ev.ParticipantCount),
	}, nil
}

func (s *Service) GetEventCount(ctx context.Context) (uint64, error) {
	raw, err := s.contract.ViewOne(ctx, "get_event_count")
	if err != nil {
		return 0, err
	}
	return chain.DecodeU64(raw)
}

// ListEvents reads the most recent events, at most MaxListedEvents of them,
// ordered by id.
func (s *Service) ListEvents(ctx context.Context) ([]types.VotingEvent, error) {
	count, err := s.GetEventCount(ctx)
	if err != nil {
		return nil, err
	}

	n := count
	if n > MaxListedEvents {
		log.Warnf("Event count %d exceeds %d, listing the most recent only", count, MaxListedEvents)
		n = MaxListedEvents
	}
	first := count - n

	events := make([]types.VotingEvent, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i := uint64(0); i < n; i++ {
		i := i
		g.Go(func() error {
			ev, err := s.GetEvent(gctx, first+i)
			if err != nil {
				return err
			}
			events[i] = *ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return events, nil
}

// GetActiveEvents returns the events still accepting commitments.
func (s *Service) GetActiveEvents(ctx context.Context) ([]types.VotingEvent, error) {
	events, err := s.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	active := make([]types.VotingEvent, 0, len(events))
	for _, ev := range events {
		if PhaseAt(ev, now) == PhaseCommit {
			active = append(active, ev)
		}
	}
	return active, nil
}

type moveCommitment struct {
	Hash        string    `json:"hash"`
	Stake       chain.U64 `json:"stake"`
	CommittedAt chain.U64 `json:"committed_at"`
	Revealed    bool      `json:"revealed"`
}

func (s *Service) GetCommitment(ctx context.Context, eventID uint64, voter string) (*types.Commitment, error) {
	voter, err := chain.NormalizeAddress(voter)
	if err != nil {
		return nil, err
	}
	raw, err := s.contract.ViewOne(ctx, "get_commitment", chain.U64Arg(eventID), voter)
	if err != nil {
		return nil, err
	}
	var c moveCommitment
	if err := chain.DecodeInto(raw, &c); err != nil {
		return nil, err
	}
	return &types.Commitment{
		EventID:     eventID,
		Voter:       voter,
		Hash:        c.Hash,
		Stake:       uint64(c.Stake),
		CommittedAt: uint64(c.CommittedAt),
		Revealed:    c.Revealed,
	}, nil
}

type moveReveal struct {
	Choice     uint8     `json:"choice"`
	RevealedAt chain.U64 `json:"revealed_at"`
}

func (s *Service) GetReveal(ctx context.Context, eventID uint64, voter string) (*types.Reveal, error) {
	voter, err := chain.NormalizeAddress(voter)
	if err != nil {
		return nil, err
	}
	raw, err := s.contract.ViewOne(ctx, "get_reveal", chain.U64Arg(eventID), voter)
	if err != nil {
		return nil, err
	}
	var r moveReveal
	if err := chain.DecodeInto(raw, &r); err != nil {
		return nil, err
	}
	return &types.Reveal{
		EventID:    eventID,
		Voter:      voter,
		Choice:     r.Choice,
		RevealedAt: uint64(r.RevealedAt),
	}, nil
}

func (s *Service) HasCommitted(ctx context.Context, eventID uint64, voter string) (bool, error) {
	voter, err := chain.NormalizeAddress(voter)
	if err != nil {
		return false, err
	}
	raw, err := s.contract.ViewOne(ctx, "has_committed", chain.U64Arg(eventID), voter)
	if err != nil {
		return false, err
	}
	return chain.DecodeBool(raw)
}

func (s *Service) HasRevealed(ctx context.Context, eventID uint64, voter string) (bool, error) {
	voter, err := chain.NormalizeAddress(voter)
	if err != nil {
		return false, err
	}
	raw, err := s.contract.ViewOne(ctx, "has_revealed", chain.U64Arg(eventID), voter)
	if err != nil {
		return false, err
	}
	return chain.DecodeBool(raw)
}

// GetVoteCounts returns the revealed votes per option.
func (s *Service) GetVoteCounts(ctx context.Context, eventID uint64) ([]uint64, error) {
	raw, err := s.contract.ViewOne(ctx, "get_vote_counts", chain.U64Arg(eventID))
	if err != nil {
		return nil, err
	}
	return chain.DecodeU64Vector(raw)
}

// GetParticipants returns every address that committed to the event.
func (s *Service) GetParticipants(ctx context.Context, eventID uint64) ([]string, error) {
	raw, err := s.contract.ViewOne(ctx, "get_participants", chain.U64Arg(eventID))
	if err != nil {
		return nil, err
	}
	return chain.DecodeAddressVector(raw)
}

// GetParticipantChoices resolves the revealed choice of every participant.
func (s *Service) GetParticipantChoices(ctx context.Context, eventID uint64) ([]types.Participant, error) {
	addresses, err := s.GetParticipants(ctx, eventID)
	if err != nil {
		return nil, err
	}

	participants := make([]types.Participant, len(addresses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentReads)
	for i, addr := range addresses {
		i, addr := i, addr
		g.Go(func() error {
			participants[i] = types.Participant{Address: addr}
			revealed, err := s.HasRevealed(gctx, eventID, addr)
			if err != nil || !revealed {
				return err
			}
			reveal, err := s.GetReveal(gctx, eventID, addr)
			if err != nil {
				return err
			}
			participants[i].Revealed = true
			participants[i].Choice = reveal.Choice
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return participants, nil
}
