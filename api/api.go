package api

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/penglongli/gin-metrics/ginmetrics"
	"github.com/safwentrabelsi/voce/chain"
	"github.com/safwentrabelsi/voce/config"
	"github.com/safwentrabelsi/voce/finance"
	"github.com/safwentrabelsi/voce/gamification"
	"github.com/safwentrabelsi/voce/levels"
	"github.com/safwentrabelsi/voce/rewards"
	"github.com/safwentrabelsi/voce/types"
	"github.com/safwentrabelsi/voce/voting"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "api")

const shutdownTimeout = 5 * time.Second

type NodeService interface {
	GetLedgerInfo(ctx context.Context) (*chain.LedgerInfo, error)
	GetAccountBalance(ctx context.Context, address string) (uint64, error)
}

type VotingService interface {
	GetActiveEvents(ctx context.Context) ([]types.VotingEvent, error)
	GetEvent(ctx context.Context, eventID uint64) (*types.VotingEvent, error)
	GetCommitment(ctx context.Context, eventID uint64, voter string) (*types.Commitment, error)
}

type FinanceService interface {
	GetStake(ctx context.Context, address string) (*types.Stake, error)
	GetPlatformStats(ctx context.Context) (*types.PlatformStats, error)
}

type TruthService interface {
	GetTruthScore(ctx context.Context, address string) (*types.TruthScore, error)
}

type RewardLedger interface {
	Award(ctx context.Context, address string, action gamification.Action) (*rewards.AwardResult, error)
	Get(ctx context.Context, address string) (*types.RewardState, error)
	Sync(ctx context.Context, address string) (*types.RewardState, error)
	OpenCrate(ctx context.Context, address, crateID string) (*types.Crate, *rewards.AwardResult, error)
	Leaderboard(ctx context.Context, by gamification.SortKey, limit int) ([]types.LeaderboardEntry, error)
	RankOf(ctx context.Context, address string, by gamification.SortKey) (int, error)
}

type CommitmentRequest struct {
	Choice *uint8 `json:"choice" binding:"required"`
}

type ActionRequest struct {
	Action string `json:"action" binding:"required"`
}

type LeaderboardQueryParams struct {
	By    string `form:"by" binding:"omitempty,oneof=xp coins accuracy"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

type APIServer struct {
	cfg     *config.ServerConfig
	node    NodeService
	voting  VotingService
	finance FinanceService
	truth   TruthService
	ledger  RewardLedger
	now     func() time.Time
}

func NewAPIServer(cfg *config.ServerConfig, node NodeService, voting VotingService, finance FinanceService, truth TruthService, ledger RewardLedger) *APIServer {
	return &APIServer{
		cfg:     cfg,
		node:    node,
		voting:  voting,
		finance: finance,
		truth:   truth,
		ledger:  ledger,
		now:     time.Now,
	}
}

// Router registers every route on a fresh engine.
func (s *APIServer) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	s.register(router)
	return router
}

func (s *APIServer) register(router gin.IRouter) {
	router.GET("/health", s.handleHealth)

	v1 := router.Group("/v1")
	v1.GET("/events", s.handleGetEvents)
	v1.GET("/events/:id", ValidateIDParam("id"), s.handleGetEvent)
	v1.GET("/events/:id/commitments/:address", ValidateIDParam("id"), ValidateAddressParam("address"), s.handleGetCommitment)
	v1.POST("/votes/commitment", s.handleCreateCommitment)
	v1.GET("/stats", s.handleGetStats)
	v1.GET("/leaderboard", s.handleGetLeaderboard)
	v1.GET("/levels/:level", s.handleGetLevel)

	users := v1.Group("/users/:address", ValidateAddressParam("address"))
	users.GET("/level", s.handleGetUserLevel)
	users.GET("/stake", s.handleGetStake)
	users.GET("/truth", s.handleGetTruth)
	users.POST("/actions", s.handlePostAction)
	users.POST("/sync", s.handleSync)
	users.POST("/crates/:id/open", s.handleOpenCrate)
}

// Run serves the API and the metrics endpoint until ctx is cancelled.
func (s *APIServer) Run(ctx context.Context) error {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	metricRouter := gin.New()
	m := ginmetrics.GetMonitor()
	m.UseWithoutExposingEndpoint(router)
	m.SetMetricPath("/metrics")
	m.Expose(metricRouter)
	s.register(router)

	apiServer := &http.Server{Addr: s.cfg.GetListenAddress(), Handler: router}
	metricServer := &http.Server{Addr: fmt.Sprintf(":%d", s.cfg.GetMetricsPort()), Handler: metricRouter}

	go func() {
		log.Infof("Metrics server started at url http://%s:%d/metrics", s.cfg.GetHost(), s.cfg.GetMetricsPort())
		if err := metricServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics server stopped: %v", err)
		}
	}()

	errChan := make(chan error, 1)
	go func() {
		log.Infof("API server listening on %s", s.cfg.GetListenAddress())
		errChan <- apiServer.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		_ = metricServer.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("API server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = metricServer.Shutdown(shutdownCtx)
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("API server shutdown: %w", err)
	}
	log.Info("API server stopped")
	return nil
}

// handleHealth reports the node's ledger position, or 503 when the node is unreachable.
func (s *APIServer) handleHealth(c *gin.Context) {
	info, err := s.node.GetLedgerInfo(c.Request.Context())
	if err != nil {
		log.WithError(err).Warn("Health check: node unreachable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"chainId":       info.ChainID,
		"ledgerVersion": uint64(info.LedgerVersion),
		"blockHeight":   uint64(info.BlockHeight),
	})
}

func (s *APIServer) handleGetEvents(c *gin.Context) {
	events, err := s.voting.GetActiveEvents(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events})
}

type eventResponse struct {
	types.VotingEvent
	Phase voting.Phase `json:"phase"`
}

func (s *APIServer) handleGetEvent(c *gin.Context) {
	id, _ := parseUint(c.Param("id"))
	event, err := s.voting.GetEvent(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": eventResponse{VotingEvent: *event, Phase: voting.PhaseAt(*event, s.now())}})
}

func (s *APIServer) handleGetCommitment(c *gin.Context) {
	id, _ := parseUint(c.Param("id"))
	commitment, err := s.voting.GetCommitment(c.Request.Context(), id, c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": commitment})
}

// handleCreateCommitment returns a fresh salt and the matching commitment hash.
// The salt is never stored server side.
func (s *APIServer) handleCreateCommitment(c *gin.Context) {
	var req CommitmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	salt, err := voting.GenerateSalt()
	if err != nil {
		writeError(c, err)
		return
	}
	hash := voting.GenerateCommitmentHash(*req.Choice, salt)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"choice": *req.Choice,
		"salt":   "0x" + hex.EncodeToString(salt),
		"hash":   "0x" + hex.EncodeToString(hash),
	}})
}

func (s *APIServer) handleGetStats(c *gin.Context) {
	stats, err := s.finance.GetPlatformStats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (s *APIServer) handleGetLeaderboard(c *gin.Context) {
	var params LeaderboardQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameter", "details": err.Error()})
		return
	}
	by, err := gamification.ParseSortKey(params.By)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entries, err := s.ledger.Leaderboard(c.Request.Context(), by, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

type levelResponse struct {
	Level      int               `json:"level"`
	XPRequired uint64            `json:"xpRequired"`
	Coins      uint64            `json:"coins"`
	TotalCoins uint64            `json:"totalCoins"`
	Tier       gamification.Tier `json:"tier"`
}

func (s *APIServer) handleGetLevel(c *gin.Context) {
	level, err := strconv.Atoi(c.Param("level"))
	if err != nil || level < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Level must be a positive number"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": levelResponse{
		Level:      level,
		XPRequired: gamification.XPForLevel(level),
		Coins:      gamification.CoinsForLevel(level),
		TotalCoins: gamification.GetTotalCoinsEarned(level),
		Tier:       gamification.TierForLevel(level),
	}})
}

func (s *APIServer) handleGetUserLevel(c *gin.Context) {
	state, err := s.ledger.Get(c.Request.Context(), c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	rank, err := s.ledger.RankOf(c.Request.Context(), state.Address, gamification.SortByXP)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"state":    state,
		"progress": gamification.Progress(state.XP),
		"rank":     rank,
	}})
}

type stakeResponse struct {
	types.Stake
	Balance      *uint64 `json:"balance,omitempty"`
	BalanceCoins string  `json:"balanceCoins,omitempty"`
}

// handleGetStake returns the stake with the wallet balance. The balance is left
// out when the node cannot report it.
func (s *APIServer) handleGetStake(c *gin.Context) {
	ctx := c.Request.Context()
	stake, err := s.finance.GetStake(ctx, c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	resp := stakeResponse{Stake: *stake}
	if balance, err := s.node.GetAccountBalance(ctx, c.Param("address")); err != nil {
		log.WithError(err).WithField("address", c.Param("address")).Warn("Failed to read balance")
	} else {
		resp.Balance = &balance
		resp.BalanceCoins = finance.FormatCoins(balance)
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *APIServer) handleGetTruth(c *gin.Context) {
	score, err := s.truth.GetTruthScore(c.Request.Context(), c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": score})
}

func (s *APIServer) handlePostAction(c *gin.Context) {
	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	action, err := gamification.ParseAction(req.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !gamification.IsSelfReported(action) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Action %s is credited on event resolution only", action)})
		return
	}
	result, err := s.ledger.Award(c.Request.Context(), c.Param("address"), action)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *APIServer) handleSync(c *gin.Context) {
	state, err := s.ledger.Sync(c.Request.Context(), c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": state})
}

func (s *APIServer) handleOpenCrate(c *gin.Context) {
	crate, result, err := s.ledger.OpenCrate(c.Request.Context(), c.Param("address"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"crate": crate, "result": result}})
}

// writeError maps service errors to HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var apiErr *chain.APIError
	var txErr *chain.TxFailedError
	switch {
	case errors.Is(err, chain.ErrNotFound), errors.Is(err, rewards.ErrCrateNotFound):
		status = http.StatusNotFound
	case errors.Is(err, rewards.ErrCrateOpened):
		status = http.StatusConflict
	case errors.Is(err, rewards.ErrInvalidAddress):
		status = http.StatusBadRequest
	case errors.Is(err, rewards.ErrSyncDisabled), errors.Is(err, levels.ErrDisabled):
		status = http.StatusServiceUnavailable
	case errors.Is(err, chain.ErrWaitTimeout):
		status = http.StatusGatewayTimeout
	case errors.As(err, &txErr), errors.As(err, &apiErr):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
