package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/safwentrabelsi/voce/chain"
	"github.com/safwentrabelsi/voce/config"
	"github.com/safwentrabelsi/voce/gamification"
	"github.com/safwentrabelsi/voce/rewards"
	"github.com/safwentrabelsi/voce/types"
	"github.com/safwentrabelsi/voce/voting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const user = "0x00000000000000000000000000000000000000000000000000000000000000a1"

type MockNode struct {
	mock.Mock
}

func (m *MockNode) GetLedgerInfo(ctx context.Context) (*chain.LedgerInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain.LedgerInfo), args.Error(1)
}

func (m *MockNode) GetAccountBalance(ctx context.Context, address string) (uint64, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(uint64), args.Error(1)
}

type MockVoting struct {
	mock.Mock
}

func (m *MockVoting) GetActiveEvents(ctx context.Context) ([]types.VotingEvent, error) {
	args := m.Called(ctx)
	return args.Get(0).([]types.VotingEvent), args.Error(1)
}

func (m *MockVoting) GetEvent(ctx context.Context, eventID uint64) (*types.VotingEvent, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.VotingEvent), args.Error(1)
}

func (m *MockVoting) GetCommitment(ctx context.Context, eventID uint64, voter string) (*types.Commitment, error) {
	args := m.Called(ctx, eventID, voter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Commitment), args.Error(1)
}

type MockFinance struct {
	mock.Mock
}

func (m *MockFinance) GetStake(ctx context.Context, address string) (*types.Stake, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Stake), args.Error(1)
}

func (m *MockFinance) GetPlatformStats(ctx context.Context) (*types.PlatformStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.PlatformStats), args.Error(1)
}

type MockTruth struct {
	mock.Mock
}

func (m *MockTruth) GetTruthScore(ctx context.Context, address string) (*types.TruthScore, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.TruthScore), args.Error(1)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Award(ctx context.Context, address string, action gamification.Action) (*rewards.AwardResult, error) {
	args := m.Called(ctx, address, action)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*rewards.AwardResult), args.Error(1)
}

func (m *MockLedger) Get(ctx context.Context, address string) (*types.RewardState, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.RewardState), args.Error(1)
}

func (m *MockLedger) Sync(ctx context.Context, address string) (*types.RewardState, error) {
	args := m.Called(ctx, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.RewardState), args.Error(1)
}

func (m *MockLedger) OpenCrate(ctx context.Context, address, crateID string) (*types.Crate, *rewards.AwardResult, error) {
	args := m.Called(ctx, address, crateID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*types.Crate), args.Get(1).(*rewards.AwardResult), args.Error(2)
}

func (m *MockLedger) RankOf(ctx context.Context, address string, by gamification.SortKey) (int, error) {
	args := m.Called(ctx, address, by)
	return args.Int(0), args.Error(1)
}

func (m *MockLedger) Leaderboard(ctx context.Context, by gamification.SortKey, limit int) ([]types.LeaderboardEntry, error) {
	args := m.Called(ctx, by, limit)
	return args.Get(0).([]types.LeaderboardEntry), args.Error(1)
}

type testServer struct {
	router  *gin.Engine
	node    *MockNode
	voting  *MockVoting
	finance *MockFinance
	truth   *MockTruth
	ledger  *MockLedger
}

func newTestServer() *testServer {
	gin.SetMode(gin.TestMode)
	ts := &testServer{
		node:    new(MockNode),
		voting:  new(MockVoting),
		finance: new(MockFinance),
		truth:   new(MockTruth),
		ledger:  new(MockLedger),
	}
	server := NewAPIServer(&config.ServerConfig{}, ts.node, ts.voting, ts.finance, ts.truth, ts.ledger)
	server.now = func() time.Time { return time.Unix(1_800_000_000, 0) }
	ts.router = server.Router()
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != "" {
		req, _ = http.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, path, nil)
	}
	ts.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	ts := newTestServer()
	ts.node.On("GetLedgerInfo", mock.Anything).Return(&chain.LedgerInfo{ChainID: 2, LedgerVersion: 9001, BlockHeight: 420}, nil).Once()
	ts.node.On("GetLedgerInfo", mock.Anything).Return(nil, errors.New("connection refused")).Once()

	w := ts.do("GET", "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","chainId":2,"ledgerVersion":9001,"blockHeight":420}`, w.Body.String())

	w = ts.do("GET", "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","error":"connection refused"}`, w.Body.String())
}

func TestHandleGetEvent(t *testing.T) {
	ts := newTestServer()
	ev := &types.VotingEvent{ID: 3, Title: "Rain tomorrow?", Options: []string{"yes", "no"}, CommitDeadline: 1_800_000_100, RevealDeadline: 1_800_000_200}
	ts.voting.On("GetEvent", mock.Anything, uint64(3)).Return(ev, nil)

	w := ts.do("GET", "/v1/events/3", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data struct {
			ID    uint64 `json:"id"`
			Title string `json:"title"`
			Phase string `json:"phase"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint64(3), resp.Data.ID)
	assert.Equal(t, string(voting.PhaseCommit), resp.Data.Phase)
	ts.voting.AssertExpectations(t)
}

func TestHandleGetEvent_Errors(t *testing.T) {
	ts := newTestServer()
	ts.voting.On("GetEvent", mock.Anything, uint64(9)).Return(nil, &chain.APIError{Status: http.StatusNotFound, Message: "missing"})
	ts.voting.On("GetEvent", mock.Anything, uint64(10)).Return(nil, errors.New("boom"))

	w := ts.do("GET", "/v1/events/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Id must be a valid number"}`, w.Body.String())

	w = ts.do("GET", "/v1/events/9", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do("GET", "/v1/events/10", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"boom"}`, w.Body.String())
}

func TestHandleGetEvents(t *testing.T) {
	ts := newTestServer()
	ts.voting.On("GetActiveEvents", mock.Anything).Return([]types.VotingEvent{{ID: 1}, {ID: 2}}, nil)

	w := ts.do("GET", "/v1/events", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []types.VotingEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
}

func TestHandleGetCommitment(t *testing.T) {
	ts := newTestServer()
	ts.voting.On("GetCommitment", mock.Anything, uint64(1), user).Return(&types.Commitment{EventID: 1, Voter: user, Stake: 10}, nil)

	// short address form is normalized by the middleware
	w := ts.do("GET", "/v1/events/1/commitments/0xA1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	ts.voting.AssertExpectations(t)
}

func TestValidateAddressParam(t *testing.T) {
	ts := newTestServer()

	w := ts.do("GET", "/v1/users/not-hex/level", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Address must be a hex account address"}`, w.Body.String())
	ts.ledger.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestHandleCreateCommitment(t *testing.T) {
	ts := newTestServer()

	w := ts.do("POST", "/v1/votes/commitment", `{"choice":1}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Choice uint8  `json:"choice"`
			Salt   string `json:"salt"`
			Hash   string `json:"hash"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data.Salt, 2+2*voting.SaltSize)
	assert.Len(t, resp.Data.Hash, 2+64)
	assert.Equal(t, uint8(1), resp.Data.Choice)

	w = ts.do("POST", "/v1/votes/commitment", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetUserLevel(t *testing.T) {
	ts := newTestServer()
	ts.ledger.On("Get", mock.Anything, user).Return(&types.RewardState{Address: user, XP: 40000, Level: 10}, nil)
	ts.ledger.On("RankOf", mock.Anything, user, gamification.SortByXP).Return(4, nil)

	w := ts.do("GET", "/v1/users/"+user+"/level", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Progress gamification.LevelProgress `json:"progress"`
			Rank     int                        `json:"rank"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Data.Rank)
	assert.Equal(t, 10, resp.Data.Progress.Level)
	assert.Equal(t, gamification.TierSilver, resp.Data.Progress.Tier)
	assert.Equal(t, uint64(41500), resp.Data.Progress.NextLevelXP)
}

func TestHandleGetStakeAndTruth(t *testing.T) {
	ts := newTestServer()
	ts.finance.On("GetStake", mock.Anything, user).Return(&types.Stake{Address: user, Amount: 150000000, Coins: "1.5"}, nil)
	ts.node.On("GetAccountBalance", mock.Anything, user).Return(uint64(250000000), nil).Once()
	ts.node.On("GetAccountBalance", mock.Anything, user).Return(uint64(0), errors.New("account not found")).Once()
	ts.truth.On("GetTruthScore", mock.Anything, user).Return(&types.TruthScore{Address: user, Correct: 3, Total: 4, Accuracy: 0.75}, nil)

	w := ts.do("GET", "/v1/users/"+user+"/stake", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"coins":"1.5"`)
	assert.Contains(t, w.Body.String(), `"balance":250000000`)
	assert.Contains(t, w.Body.String(), `"balanceCoins":"2.5"`)

	// balance is optional
	w = ts.do("GET", "/v1/users/"+user+"/stake", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `"balance"`)

	w = ts.do("GET", "/v1/users/"+user+"/truth", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"accuracy":0.75`)
}

func TestHandlePostAction(t *testing.T) {
	ts := newTestServer()
	ts.ledger.On("Award", mock.Anything, user, gamification.ActionCommitVote).
		Return(&rewards.AwardResult{XPGained: 50, State: &types.RewardState{Address: user, XP: 50, Level: 1}}, nil)

	w := ts.do("POST", "/v1/users/"+user+"/actions", `{"action":"commit_vote"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"xpGained":50`)

	w = ts.do("POST", "/v1/users/"+user+"/actions", `{"action":"fly"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do("POST", "/v1/users/"+user+"/actions", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	ts.ledger.AssertNumberOfCalls(t, "Award", 1)
}

func TestHandlePostAction_ResolutionActionsRejected(t *testing.T) {
	ts := newTestServer()

	for _, action := range []gamification.Action{
		gamification.ActionRevealVote,
		gamification.ActionCorrectPrediction,
		gamification.ActionWrongPrediction,
	} {
		w := ts.do("POST", "/v1/users/"+user+"/actions", `{"action":"`+string(action)+`"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code, action)
		assert.Contains(t, w.Body.String(), "credited on event resolution only")
	}
	ts.ledger.AssertNotCalled(t, "Award", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleSync(t *testing.T) {
	ts := newTestServer()
	ts.ledger.On("Sync", mock.Anything, user).Return(nil, rewards.ErrSyncDisabled)

	w := ts.do("POST", "/v1/users/"+user+"/sync", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleOpenCrate(t *testing.T) {
	ts := newTestServer()
	opened := &types.Crate{ID: "c1", Opened: true, Reward: &types.CrateReward{Rarity: types.RarityRare, Coins: 80, XP: 100}}
	ts.ledger.On("OpenCrate", mock.Anything, user, "c1").Return(opened, &rewards.AwardResult{XPGained: 100}, nil)
	ts.ledger.On("OpenCrate", mock.Anything, user, "c2").Return(nil, nil, rewards.ErrCrateOpened)
	ts.ledger.On("OpenCrate", mock.Anything, user, "c3").Return(nil, nil, rewards.ErrCrateNotFound)

	w := ts.do("POST", "/v1/users/"+user+"/crates/c1/open", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"rarity":"rare"`)

	w = ts.do("POST", "/v1/users/"+user+"/crates/c2/open", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do("POST", "/v1/users/"+user+"/crates/c3/open", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGetLeaderboard(t *testing.T) {
	ts := newTestServer()
	entries := []types.LeaderboardEntry{{Rank: 1, Address: user, Coins: 900}}
	ts.ledger.On("Leaderboard", mock.Anything, gamification.SortByCoins, 5).Return(entries, nil)
	ts.ledger.On("Leaderboard", mock.Anything, gamification.SortByXP, 0).Return([]types.LeaderboardEntry{}, nil)

	w := ts.do("GET", "/v1/leaderboard?by=coins&limit=5", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"coins":900`)

	w = ts.do("GET", "/v1/leaderboard", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do("GET", "/v1/leaderboard?by=karma", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do("GET", "/v1/leaderboard?limit=1000", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	ts.ledger.AssertExpectations(t)
}

func TestHandleGetLevel(t *testing.T) {
	ts := newTestServer()

	w := ts.do("GET", "/v1/levels/10", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"level":10,"xpRequired":32500,"coins":300,"totalCoins":1325,"tier":"Silver"}}`, w.Body.String())

	w = ts.do("GET", "/v1/levels/27", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"xpRequired":477000`)

	w = ts.do("GET", "/v1/levels/0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetStats(t *testing.T) {
	ts := newTestServer()
	ts.finance.On("GetPlatformStats", mock.Anything).Return(nil, &chain.TxFailedError{Hash: "0x1", VMStatus: "abort"})

	w := ts.do("GET", "/v1/stats", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
