package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/safwentrabelsi/voce/chain"
	"github.com/safwentrabelsi/voce/config"
	"github.com/safwentrabelsi/voce/gamification"
	"github.com/safwentrabelsi/voce/types"
)

var ErrNotFound = errors.New("not found")

type PostgresStore struct {
	db *sql.DB
}

type Storer interface {
	SaveRewardState(ctx context.Context, state *types.RewardState) error
	GetRewardState(ctx context.Context, address string) (*types.RewardState, error)
	ListRewardStates(ctx context.Context, addresses []string, by gamification.SortKey, limit int) ([]types.RewardState, error)
	ScanRewardStates(ctx context.Context, after string, limit int) ([]types.RewardState, error)
	CountRewardStates(ctx context.Context) (int64, error)
	CountScoresAbove(ctx context.Context, by gamification.SortKey, score float64) (int64, error)
	SavePendingVote(ctx context.Context, vote types.PendingVote) error
	GetPendingVote(ctx context.Context, eventID uint64, voter string) (*types.PendingVote, error)
	DeletePendingVote(ctx context.Context, eventID uint64, voter string) error
	SaveResolution(ctx context.Context, resolution types.Resolution) error
	IsResolved(ctx context.Context, eventID uint64) (bool, error)
}

// NewPostgresStore creates a new instance of PostgresStore
func NewPostgresStore(cfg *config.DBConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.GetPostgresqlDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &PostgresStore{
		db: db,
	}

	if err := store.init(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// init is called to initialize necessary tables in the database
func (s *PostgresStore) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS reward_states (
			address TEXT PRIMARY KEY,
			xp BIGINT NOT NULL,
			level INT NOT NULL,
			coins BIGINT NOT NULL,
			accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
			data JSONB NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);`,
		`ALTER TABLE reward_states ADD COLUMN IF NOT EXISTS accuracy DOUBLE PRECISION NOT NULL DEFAULT 0;`,
		`CREATE INDEX IF NOT EXISTS reward_states_xp_idx ON reward_states (xp DESC, address);`,
		`CREATE INDEX IF NOT EXISTS reward_states_coins_idx ON reward_states (coins DESC, address);`,
		`CREATE INDEX IF NOT EXISTS reward_states_accuracy_idx ON reward_states (accuracy DESC, address);`,
		`CREATE TABLE IF NOT EXISTS pending_votes (
			event_id BIGINT NOT NULL,
			voter TEXT NOT NULL,
			choice SMALLINT NOT NULL,
			salt TEXT NOT NULL,
			hash TEXT NOT NULL,
			stake BIGINT NOT NULL,
			tx_hash TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			PRIMARY KEY (event_id, voter)
		);`,
		`CREATE TABLE IF NOT EXISTS resolutions (
			event_id BIGINT PRIMARY KEY,
			winning_option SMALLINT NOT NULL,
			tx_hash TEXT NOT NULL,
			resolved_at TIMESTAMP NOT NULL
		);`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// rewardData is the part of a RewardState stored as JSONB.
type rewardData struct {
	Stats     types.UserStats       `json:"stats"`
	Badges    []string              `json:"badges"`
	Quests    []types.QuestProgress `json:"quests"`
	Crates    []types.Crate         `json:"crates"`
	LastLogin time.Time             `json:"lastLogin"`
	SyncedAt  *time.Time            `json:"syncedAt,omitempty"`
}

func (s *PostgresStore) SaveRewardState(ctx context.Context, state *types.RewardState) error {
	data, err := json.Marshal(rewardData{
		Stats:     state.Stats,
		Badges:    state.Badges,
		Quests:    state.Quests,
		Crates:    state.Crates,
		LastLogin: state.LastLogin,
		SyncedAt:  state.SyncedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode reward state: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reward_states (address, xp, level, coins, accuracy, data, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (address) DO UPDATE
		SET xp = EXCLUDED.xp, level = EXCLUDED.level, coins = EXCLUDED.coins,
			accuracy = EXCLUDED.accuracy, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`, state.Address, state.XP, state.Level, state.Coins, state.Stats.Accuracy(), data, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save reward state: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRewardState(row rowScanner) (*types.RewardState, error) {
	var (
		state types.RewardState
		raw   []byte
	)
	if err := row.Scan(&state.Address, &state.XP, &state.Level, &state.Coins, &raw, &state.UpdatedAt); err != nil {
		return nil, err
	}
	var data rewardData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode reward state of %s: %w", state.Address, err)
	}
	state.Stats = data.Stats
	state.Badges = data.Badges
	state.Quests = data.Quests
	state.Crates = data.Crates
	state.LastLogin = data.LastLogin
	state.SyncedAt = data.SyncedAt
	return &state, nil
}

func (s *PostgresStore) GetRewardState(ctx context.Context, address string) (*types.RewardState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT address, xp, level, coins, data, updated_at
		FROM reward_states
		WHERE address = $1
	`, address)
	state, err := scanRewardState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query reward state: %w", err)
	}
	return state, nil
}

// scoreColumns maps each leaderboard key to the column it is ranked by.
var scoreColumns = map[gamification.SortKey]string{
	gamification.SortByXP:       "xp",
	gamification.SortByCoins:    "coins",
	gamification.SortByAccuracy: "accuracy",
}

func scoreColumn(by gamification.SortKey) string {
	if col, ok := scoreColumns[by]; ok {
		return col
	}
	return "xp"
}

// ListRewardStates returns the states of the given addresses, or the top states
// ranked by the score of by when addresses is empty.
func (s *PostgresStore) ListRewardStates(ctx context.Context, addresses []string, by gamification.SortKey, limit int) ([]types.RewardState, error) {
	if len(addresses) > 0 {
		return s.queryRewardStates(ctx, `
			SELECT address, xp, level, coins, data, updated_at
			FROM reward_states
			WHERE address = ANY($1)
		`, pq.Array(addresses))
	}
	return s.queryRewardStates(ctx, fmt.Sprintf(`
		SELECT address, xp, level, coins, data, updated_at
		FROM reward_states
		ORDER BY %s DESC, address ASC
		LIMIT $1
	`, scoreColumn(by)), limit)
}

// ScanRewardStates pages through every state in address order, starting after
// the given address.
func (s *PostgresStore) ScanRewardStates(ctx context.Context, after string, limit int) ([]types.RewardState, error) {
	return s.queryRewardStates(ctx, `
		SELECT address, xp, level, coins, data, updated_at
		FROM reward_states
		WHERE address > $1
		ORDER BY address ASC
		LIMIT $2
	`, after, limit)
}

func (s *PostgresStore) CountRewardStates(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reward_states`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count reward states: %w", err)
	}
	return n, nil
}

// CountScoresAbove counts the distinct scores strictly greater than score, so
// that a state's dense rank is the count plus one.
func (s *PostgresStore) CountScoresAbove(ctx context.Context, by gamification.SortKey, score float64) (int64, error) {
	var n int64
	col := scoreColumn(by)
	query := fmt.Sprintf(`SELECT COUNT(DISTINCT %s) FROM reward_states WHERE %s > $1`, col, col)
	if err := s.db.QueryRowContext(ctx, query, score).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count reward states: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) queryRewardStates(ctx context.Context, query string, args ...any) ([]types.RewardState, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reward states: %w", err)
	}
	defer rows.Close()

	var states []types.RewardState
	for rows.Next() {
		state, err := scanRewardState(rows)
		if err != nil {
			return nil, err
		}
		states = append(states, *state)
	}
	return states, rows.Err()
}

func (s *PostgresStore) SavePendingVote(ctx context.Context, vote types.PendingVote) error {
	voter, err := chain.NormalizeAddress(vote.Voter)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pending_votes (event_id, voter, choice, salt, hash, stake, tx_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id, voter) DO UPDATE
		SET choice = EXCLUDED.choice, salt = EXCLUDED.salt, hash = EXCLUDED.hash,
			stake = EXCLUDED.stake, tx_hash = EXCLUDED.tx_hash, created_at = EXCLUDED.created_at
	`, vote.EventID, voter, vote.Choice, vote.Salt, vote.Hash, vote.Stake, vote.TxHash, vote.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save pending vote: %w", err)
	}
	return nil
}

// GetPendingVote returns nil without error when nothing is pending.
func (s *PostgresStore) GetPendingVote(ctx context.Context, eventID uint64, voter string) (*types.PendingVote, error) {
	voter, err := chain.NormalizeAddress(voter)
	if err != nil {
		return nil, err
	}
	var v types.PendingVote
	err = s.db.QueryRowContext(ctx, `
		SELECT event_id, voter, choice, salt, hash, stake, tx_hash, created_at
		FROM pending_votes
		WHERE event_id = $1 AND voter = $2
	`, eventID, voter).Scan(&v.EventID, &v.Voter, &v.Choice, &v.Salt, &v.Hash, &v.Stake, &v.TxHash, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pending vote: %w", err)
	}
	return &v, nil
}

func (s *PostgresStore) DeletePendingVote(ctx context.Context, eventID uint64, voter string) error {
	voter, err := chain.NormalizeAddress(voter)
	if err != nil {
		return err
	}
	stmt, err := s.db.PrepareContext(ctx, "DELETE FROM pending_votes WHERE event_id = $1 AND voter = $2")
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, eventID, voter)
	return err
}

func (s *PostgresStore) SaveResolution(ctx context.Context, r types.Resolution) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resolutions (event_id, winning_option, tx_hash, resolved_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING
	`, r.EventID, r.WinningOption, r.TxHash, r.ResolvedAt)
	if err != nil {
		return fmt.Errorf("failed to save resolution: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsResolved(ctx context.Context, eventID uint64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM resolutions WHERE event_id = $1)`, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query database: %w", err)
	}
	return exists, nil
}
