package cli

import (
	"fmt"

	"github.com/safwentrabelsi/voce/chain"
	"github.com/safwentrabelsi/voce/config"
	"github.com/safwentrabelsi/voce/finance"
	"github.com/safwentrabelsi/voce/levels"
	"github.com/safwentrabelsi/voce/store"
	"github.com/safwentrabelsi/voce/truth"
	"github.com/safwentrabelsi/voce/voting"
	"github.com/safwentrabelsi/voce/wallet"
	log "github.com/sirupsen/logrus"
)

// services groups the contract wrappers built from one config.
type services struct {
	store   *store.PostgresStore
	node    *chain.Client
	wallet  *wallet.Context
	voting  *voting.Service
	finance *finance.Service
	truth   *truth.Service
	levels  *levels.Service
}

func newServices(cfg *config.Config) (*services, error) {
	pg, err := store.NewPostgresStore(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
	}

	node := chain.NewClient(cfg.Chain)
	wctx := wallet.NewContext()
	if key := cfg.Wallet.GetPrivateKey(); key != "" {
		account, err := wallet.NewAccountFromHex(key)
		if err != nil {
			pg.Close()
			return nil, fmt.Errorf("invalid wallet key: %w", err)
		}
		wctx.Connect(account)
		log.Infof("Signing as %s", account.Address())
	}

	return &services{
		store:   pg,
		node:    node,
		wallet:  wctx,
		voting:  voting.NewService(node, wctx, cfg.Contracts.GetSecureVoting(), pg),
		finance: finance.NewService(node, wctx, cfg.Contracts.GetFinancialSystem()),
		truth:   truth.NewService(node, wctx, cfg.Contracts.GetTruthRewards()),
		levels:  levels.NewService(node, wctx, cfg.Contracts.GetOnChainLevels(), cfg.Features.OnChainLevelsEnabled()),
	}, nil
}

func (s *services) Close() error {
	return s.store.Close()
}
