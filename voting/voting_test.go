package voting

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/safwentrabelsi/voce/chain"
	"github.com/safwentrabelsi/voce/types"
	"github.com/safwentrabelsi/voce/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const contractAddr = "0xa11ce"

type mockNode struct {
	mock.Mock
}

func (m *mockNode) View(ctx context.Context, req chain.ViewRequest) ([]json.RawMessage, error) {
	args := m.Called(ctx, req)
	values, _ := args.Get(0).([]json.RawMessage)
	return values, args.Error(1)
}

func (m *mockNode) SignAndSubmit(ctx context.Context, signer chain.Signer, payload chain.EntryFunctionPayload) (*chain.Transaction, error) {
	args := m.Called(ctx, signer, payload)
	tx, _ := args.Get(0).(*chain.Transaction)
	return tx, args.Error(1)
}

type mockVoteStore struct {
	mock.Mock
}

func (m *mockVoteStore) SavePendingVote(ctx context.Context, vote types.PendingVote) error {
	return m.Called(ctx, vote).Error(0)
}

func (m *mockVoteStore) GetPendingVote(ctx context.Context, eventID uint64, voter string) (*types.PendingVote, error) {
	args := m.Called(ctx, eventID, voter)
	vote, _ := args.Get(0).(*types.PendingVote)
	return vote, args.Error(1)
}

func (m *mockVoteStore) DeletePendingVote(ctx context.Context, eventID uint64, voter string) error {
	return m.Called(ctx, eventID, voter).Error(0)
}

func viewOf(function string) any {
	return mock.MatchedBy(func(req chain.ViewRequest) bool {
		return req.Function == chain.FunctionID(contractAddr, moduleName, function)
	})
}

func payloadOf(function string) any {
	return mock.MatchedBy(func(p chain.EntryFunctionPayload) bool {
		return p.Function == chain.FunctionID(contractAddr, moduleName, function)
	})
}

func raw(s string) []json.RawMessage {
	return []json.RawMessage{json.RawMessage(s)}
}

const eventJSON = `{"id":"3","creator":"0xc","title":"Will it rain?","description":"","options":["yes","no"],
"commit_deadline":"2000","reveal_deadline":"3000","min_stake":"100","total_staked":"0","status":0,"winning_option":0,"participant_count":"0"}`

func newTestService(t *testing.T, node *mockNode, votes PendingVoteStore) (*Service, *wallet.Account) {
	account, err := wallet.GenerateAccount()
	require.NoError(t, err)
	w := wallet.NewContext()
	w.Connect(account)

	s := NewService(node, w, contractAddr, votes)
	s.now = func() time.Time { return time.Unix(1500, 0) }
	return s, account
}

func TestCommitVote(t *testing.T) {
	node := new(mockNode)
	votes := new(mockVoteStore)
	s, account := newTestService(t, node, votes)

	node.On("View", mock.Anything, viewOf("get_event")).Return(raw(eventJSON), nil)
	node.On("SignAndSubmit", mock.Anything, mock.Anything, mock.MatchedBy(func(p chain.EntryFunctionPayload) bool {
		return p.Function == contractAddr+"::secure_voting::commit_vote" &&
			len(p.Arguments) == 3 && p.Arguments[0] == "3" && p.Arguments[2] == "150"
	})).Return(&chain.Transaction{Hash: "0xc0"}, nil).Once()
	votes.On("SavePendingVote", mock.Anything, mock.MatchedBy(func(v types.PendingVote) bool {
		return v.EventID == 3 && v.Voter == account.Address() && v.Choice == 1 && v.TxHash == "0xc0"
	})).Return(nil).Once()

	vote, err := s.CommitVote(context.Background(), 3, 1, 150)
	require.NoError(t, err)

	salt, err := decodeHex(vote.Salt)
	require.NoError(t, err)
	hash, err := decodeHex(vote.Hash)
	require.NoError(t, err)
	assert.Len(t, salt, SaltSize)
	assert.True(t, VerifyCommitment(hash, 1, salt))

	node.AssertExpectations(t)
	votes.AssertExpectations(t)
}

func TestCommitVote_Rejected(t *testing.T) {
	node := new(mockNode)
	s, _ := newTestService(t, node, nil)
	node.On("View", mock.Anything, viewOf("get_event")).Return(raw(eventJSON), nil)

	_, err := s.CommitVote(context.Background(), 3, 2, 150)
	assert.ErrorIs(t, err, ErrInvalidChoice)

	_, err = s.CommitVote(context.Background(), 3, 0, 99)
	assert.ErrorIs(t, err, ErrStakeTooLow)

	s.now = func() time.Time { return time.Unix(2500, 0) }
	_, err = s.CommitVote(context.Background(), 3, 0, 150)
	assert.ErrorIs(t, err, ErrWrongPhase)

	node.AssertNotCalled(t, "SignAndSubmit", mock.Anything, mock.Anything, mock.Anything)
}

func TestCommitVote_Disconnected(t *testing.T) {
	node := new(mockNode)
	s := NewService(node, wallet.NewContext(), contractAddr, nil)

	_, err := s.CommitVote(context.Background(), 3, 0, 150)
	assert.ErrorIs(t, err, wallet.ErrNotConnected)
}

func TestRevealVote(t *testing.T) {
	node := new(mockNode)
	votes := new(mockVoteStore)
	s, account := newTestService(t, node, votes)

	salt := []byte{0xaa, 0xbb}
	votes.On("GetPendingVote", mock.Anything, uint64(3), account.Address()).
		Return(&types.PendingVote{EventID: 3, Choice: 1, Salt: "0xaabb"}, nil).Once()
	node.On("SignAndSubmit", mock.Anything, mock.Anything, mock.MatchedBy(func(p chain.EntryFunctionPayload) bool {
		return p.Function == contractAddr+"::secure_voting::reveal_vote" &&
			p.Arguments[1] == uint8(1) && p.Arguments[2] == chain.BytesArg(salt)
	})).Return(&chain.Transaction{Hash: "0xr1"}, nil).Once()
	votes.On("DeletePendingVote", mock.Anything, uint64(3), account.Address()).Return(nil).Once()

	hash, err := s.RevealVote(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "0xr1", hash)

	votes.On("GetPendingVote", mock.Anything, uint64(4), account.Address()).Return(nil, nil).Once()
	_, err = s.RevealVote(context.Background(), 4)
	assert.ErrorIs(t, err, ErrNoPendingVote)

	node.AssertExpectations(t)
	votes.AssertExpectations(t)
}

func TestCreateVotingEvent(t *testing.T) {
	node := new(mockNode)
	s, _ := newTestService(t, node, nil)

	_, err := s.CreateVotingEvent(context.Background(), CreateEventParams{Title: "t", Options: []string{"only"}})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	node.On("SignAndSubmit", mock.Anything, mock.Anything, mock.MatchedBy(func(p chain.EntryFunctionPayload) bool {
		return p.Function == contractAddr+"::secure_voting::create_voting_event" &&
			p.Arguments[3] == "3600" && p.Arguments[4] == "600" && p.Arguments[5] == "10"
	})).Return(&chain.Transaction{Hash: "0xe1"}, nil).Once()

	hash, err := s.CreateVotingEvent(context.Background(), CreateEventParams{
		Title:          "Will it rain?",
		Options:        []string{"yes", "no"},
		VotingDuration: time.Hour,
		RevealDuration: 10 * time.Minute,
		MinStake:       10,
	})
	require.NoError(t, err)
	assert.Equal(t, "0xe1", hash)
}

func TestGetActiveEvents(t *testing.T) {
	node := new(mockNode)
	s, _ := newTestService(t, node, nil)

	node.On("View", mock.Anything, viewOf("get_event_count")).Return(raw(`"2"`), nil)
	node.On("View", mock.Anything, mock.MatchedBy(func(req chain.ViewRequest) bool {
		return req.Function == contractAddr+"::secure_voting::get_event" && req.Arguments[0] == "0"
	})).Return(raw(`{"id":"0","options":["a","b"],"commit_deadline":"1000","reveal_deadline":"1200","status":0}`), nil)
	node.On("View", mock.Anything, mock.MatchedBy(func(req chain.ViewRequest) bool {
		return req.Function == contractAddr+"::secure_voting::get_event" && req.Arguments[0] == "1"
	})).Return(raw(`{"id":"1","options":["a","b"],"commit_deadline":"2000","reveal_deadline":"3000","status":0}`), nil)

	events, err := s.GetActiveEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(1), events[0].ID)
}

func TestListEvents_HugeCount(t *testing.T) {
	node := new(mockNode)
	s, _ := newTestService(t, node, nil)

	node.On("View", mock.Anything, viewOf("get_event_count")).Return(raw(`"18446744073709551615"`), nil)
	node.On("View", mock.Anything, viewOf("get_event")).Return(raw(eventJSON), nil)

	events, err := s.ListEvents(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, MaxListedEvents)

	argIs := func(id string) any {
		return mock.MatchedBy(func(req chain.ViewRequest) bool {
			return req.Function == contractAddr+"::secure_voting::get_event" && req.Arguments[0] == id
		})
	}
	node.AssertCalled(t, "View", mock.Anything, argIs("18446744073709551115"))
	node.AssertCalled(t, "View", mock.Anything, argIs("18446744073709551614"))
	node.AssertNotCalled(t, "View", mock.Anything, argIs("0"))
}

func TestGetParticipantChoices(t *testing.T) {
	node := new(mockNode)
	s, _ := newTestService(t, node, nil)
	voter1 := "0x" + strings.Repeat("0", 63) + "1"
	voter2 := "0x" + strings.Repeat("0", 63) + "2"

	node.On("View", mock.Anything, viewOf("get_participants")).Return(raw(`["0x1","0x2"]`), nil)
	node.On("View", mock.Anything, mock.MatchedBy(func(req chain.ViewRequest) bool {
		return req.Function == contractAddr+"::secure_voting::has_revealed" && req.Arguments[1] == voter1
	})).Return(raw(`true`), nil)
	node.On("View", mock.Anything, mock.MatchedBy(func(req chain.ViewRequest) bool {
		return req.Function == contractAddr+"::secure_voting::has_revealed" && req.Arguments[1] == voter2
	})).Return(raw(`false`), nil)
	node.On("View", mock.Anything, viewOf("get_reveal")).Return(raw(`{"choice":1,"revealed_at":"2500"}`), nil)

	participants, err := s.GetParticipantChoices(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []types.Participant{
		{Address: voter1, Revealed: true, Choice: 1},
		{Address: voter2},
	}, participants)
}

func TestVoterArgumentsAreNormalized(t *testing.T) {
	node := new(mockNode)
	s, _ := newTestService(t, node, nil)
	long := "0x" + strings.Repeat("0", 61) + "abc"

	node.On("View", mock.Anything, mock.MatchedBy(func(req chain.ViewRequest) bool {
		return req.Function == contractAddr+"::secure_voting::get_commitment" && req.Arguments[1] == long
	})).Return(raw(`{"hash":"0xcafe","stake":"100","committed_at":"7","revealed":false}`), nil)
	node.On("View", mock.Anything, mock.MatchedBy(func(req chain.ViewRequest) bool {
		return req.Function == contractAddr+"::secure_voting::has_committed" && req.Arguments[1] == long
	})).Return(raw(`true`), nil)

	c, err := s.GetCommitment(context.Background(), 3, "0xABC")
	require.NoError(t, err)
	assert.Equal(t, long, c.Voter)
	assert.Equal(t, uint64(100), c.Stake)

	committed, err := s.HasCommitted(context.Background(), 3, "ABC")
	require.NoError(t, err)
	assert.True(t, committed)

	_, err = s.GetReveal(context.Background(), 3, "0xzz")
	assert.ErrorContains(t, err, "invalid address")
	node.AssertNotCalled(t, "View", mock.Anything, viewOf("get_reveal"))
}

func TestPhaseAt(t *testing.T) {
	ev := types.VotingEvent{CommitDeadline: 100, RevealDeadline: 200}
	assert.Equal(t, PhaseCommit, PhaseAt(ev, time.Unix(99, 0)))
	assert.Equal(t, PhaseReveal, PhaseAt(ev, time.Unix(100, 0)))
	assert.Equal(t, PhaseAwaitingResolution, PhaseAt(ev, time.Unix(200, 0)))

	ev.Status = types.EventResolved
	assert.Equal(t, PhaseResolved, PhaseAt(ev, time.Unix(50, 0)))
	ev.Status = types.EventCancelled
	assert.Equal(t, PhaseCancelled, PhaseAt(ev, time.Unix(50, 0)))
}

func TestCommitmentHash(t *testing.T) {
	salt := []byte("0123456789abcdef0123456789abcdef")
	hash := GenerateCommitmentHash(2, salt)
	assert.Len(t, hash, 32)
	assert.Equal(t, hash, GenerateCommitmentHash(2, salt))
	assert.True(t, VerifyCommitment(hash, 2, salt))
	assert.False(t, VerifyCommitment(hash, 1, salt))
	assert.False(t, VerifyCommitment(hash, 2, salt[1:]))

	other, err := GenerateSalt()
	require.NoError(t, err)
	assert.NotEqual(t, hash, GenerateCommitmentHash(2, other))
}
