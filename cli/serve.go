package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/safwentrabelsi/voce/api"
	"github.com/safwentrabelsi/voce/metrics"
	"github.com/safwentrabelsi/voce/poller"
	"github.com/safwentrabelsi/voce/processor"
	"github.com/safwentrabelsi/voce/rewards"
	"github.com/safwentrabelsi/voce/store"
	"github.com/safwentrabelsi/voce/types"
	"github.com/safwentrabelsi/voce/utils"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API, the event resolver and the reward processor",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if err := metrics.Init(); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	svc, err := newServices(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()
	pg, wctx, votingService := svc.store, svc.wallet, svc.voting

	opts := []rewards.Option{rewards.WithLevelSyncer(svc.levels)}
	if cfg.Redis.Enabled() {
		leaderboard, err := store.NewRedisLeaderboard(cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to initialize leaderboard cache: %w", err)
		}
		defer leaderboard.Close()
		opts = append(opts, rewards.WithCache(leaderboard))
	}
	ledger := rewards.NewLedger(pg, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dataChannel := make(chan *types.ResolutionMsg, 100)
	errorChannel := make(chan error, 10)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Poller.IsEnabled() {
		if wctx.IsConnected() {
			resolver := poller.NewPoller(votingService, dataChannel, pg, cfg.Poller)
			g.Go(func() error {
				resolver.Run(gctx)
				return nil
			})
		} else {
			log.Warn("Resolver disabled: no wallet key configured")
		}
	}

	g.Go(func() error {
		if err := ledger.WarmCache(gctx); err != nil {
			log.WithError(err).Error("Failed to warm leaderboard cache")
		}
		return nil
	})

	rewardProcessor := processor.NewProcessor(pg, ledger, dataChannel, errorChannel)
	g.Go(func() error {
		rewardProcessor.Run(gctx)
		return nil
	})
	g.Go(func() error {
		utils.HandleErrors(gctx, errorChannel)
		return nil
	})

	server := api.NewAPIServer(cfg.Server, svc.node, votingService, svc.finance, svc.truth, ledger)
	g.Go(func() error {
		return server.Run(gctx)
	})

	return g.Wait()
}
