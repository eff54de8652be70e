package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/safwentrabelsi/voce/finance"
	"github.com/safwentrabelsi/voce/voting"
	"github.com/spf13/cobra"
)

var (
	txTimeout time.Duration

	eventDescription string
	votingDuration   time.Duration
	revealDuration   time.Duration
	eventMinStake    string
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Sign and submit contract transactions with the configured wallet",
}

// txRunner builds the services, runs fn and prints the hash it returns.
func txRunner(fn func(ctx context.Context, svc *services, args []string) (string, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		svc, err := newServices(cfg)
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, txTimeout)
		defer cancel()

		hash, err := fn(ctx, svc, args)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "tx: %s\n", hash)
		return nil
	}
}

func parseEventID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid event id %q: %w", s, err)
	}
	return id, nil
}

func parseChoice(s string) (uint8, error) {
	choice, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid choice %q: %w", s, err)
	}
	return uint8(choice), nil
}

var createEventCmd = &cobra.Command{
	Use:   "create-event <title> <option> <option> [option...]",
	Short: "Create a voting event",
	Args:  cobra.MinimumNArgs(3),
	RunE: txRunner(func(ctx context.Context, svc *services, args []string) (string, error) {
		minStake, err := finance.ParseCoins(eventMinStake)
		if err != nil {
			return "", err
		}
		return svc.voting.CreateVotingEvent(ctx, voting.CreateEventParams{
			Title:          args[0],
			Description:    eventDescription,
			Options:        args[1:],
			VotingDuration: votingDuration,
			RevealDuration: revealDuration,
			MinStake:       minStake,
		})
	}),
}

var commitCmd = &cobra.Command{
	Use:   "commit <event-id> <choice> <stake>",
	Short: "Commit a hidden vote; the salt is kept in Postgres for the reveal",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var salt string
		err := txRunner(func(ctx context.Context, svc *services, args []string) (string, error) {
			eventID, err := parseEventID(args[0])
			if err != nil {
				return "", err
			}
			choice, err := parseChoice(args[1])
			if err != nil {
				return "", err
			}
			stake, err := finance.ParseCoins(args[2])
			if err != nil {
				return "", err
			}
			vote, err := svc.voting.CommitVote(ctx, eventID, choice, stake)
			if err != nil {
				return "", err
			}
			salt = vote.Salt
			return vote.TxHash, nil
		})(cmd, args)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "salt: %s\n", salt)
		return nil
	},
}

var revealCmd = &cobra.Command{
	Use:   "reveal <event-id> [choice salt]",
	Short: "Reveal the stored vote of an event, or an explicit choice and salt",
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 && len(args) != 3 {
			return fmt.Errorf("accepts 1 or 3 arg(s), received %d", len(args))
		}
		return nil
	},
	RunE: txRunner(func(ctx context.Context, svc *services, args []string) (string, error) {
		eventID, err := parseEventID(args[0])
		if err != nil {
			return "", err
		}
		if len(args) == 1 {
			return svc.voting.RevealVote(ctx, eventID)
		}
		choice, err := parseChoice(args[1])
		if err != nil {
			return "", err
		}
		salt, err := hex.DecodeString(trimHexPrefix(args[2]))
		if err != nil {
			return "", fmt.Errorf("invalid salt: %w", err)
		}
		return svc.voting.RevealVoteWithSalt(ctx, eventID, choice, salt)
	}),
}

// eventTx builds a command calling fn with a single event id argument.
func eventTx(use, short string, fn func(ctx context.Context, svc *services, eventID uint64) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <event-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: txRunner(func(ctx context.Context, svc *services, args []string) (string, error) {
			eventID, err := parseEventID(args[0])
			if err != nil {
				return "", err
			}
			return fn(ctx, svc, eventID)
		}),
	}
}

// amountTx builds a command calling fn with an amount in whole coins.
func amountTx(use, short string, fn func(ctx context.Context, svc *services, octas uint64) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <amount>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: txRunner(func(ctx context.Context, svc *services, args []string) (string, error) {
			octas, err := finance.ParseCoins(args[0])
			if err != nil {
				return "", err
			}
			return fn(ctx, svc, octas)
		}),
	}
}

var depositCmd = &cobra.Command{
	Use:   "deposit <event-id> <amount>",
	Short: "Deposit coins into the reward pool of an event",
	Args:  cobra.ExactArgs(2),
	RunE: txRunner(func(ctx context.Context, svc *services, args []string) (string, error) {
		eventID, err := parseEventID(args[0])
		if err != nil {
			return "", err
		}
		octas, err := finance.ParseCoins(args[1])
		if err != nil {
			return "", err
		}
		return svc.finance.DepositToPool(ctx, eventID, octas)
	}),
}

var claimLevelCmd = &cobra.Command{
	Use:   "claim-level <level>",
	Short: "Claim the on-chain coin reward of a level",
	Args:  cobra.ExactArgs(1),
	RunE: txRunner(func(ctx context.Context, svc *services, args []string) (string, error) {
		level, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid level %q: %w", args[0], err)
		}
		return svc.levels.ClaimLevelReward(ctx, level)
	}),
}

var initProfileCmd = &cobra.Command{
	Use:   "init-profile",
	Short: "Create the on-chain level profile of the wallet",
	Args:  cobra.NoArgs,
	RunE: txRunner(func(ctx context.Context, svc *services, args []string) (string, error) {
		return svc.levels.InitializeProfile(ctx)
	}),
}

func init() {
	txCmd.PersistentFlags().DurationVar(&txTimeout, "timeout", 2*time.Minute, "time allowed for submission and confirmation")

	createEventCmd.Flags().StringVar(&eventDescription, "description", "", "event description")
	createEventCmd.Flags().DurationVar(&votingDuration, "voting", 24*time.Hour, "length of the commit phase")
	createEventCmd.Flags().DurationVar(&revealDuration, "reveal", 12*time.Hour, "length of the reveal phase")
	createEventCmd.Flags().StringVar(&eventMinStake, "min-stake", "0", "minimum stake in coins")

	txCmd.AddCommand(
		createEventCmd,
		commitCmd,
		revealCmd,
		eventTx("resolve", "Resolve an event whose reveal phase is over", func(ctx context.Context, svc *services, id uint64) (string, error) {
			return svc.voting.ResolveEvent(ctx, id)
		}),
		eventTx("cancel", "Cancel an event created by the wallet", func(ctx context.Context, svc *services, id uint64) (string, error) {
			return svc.voting.CancelEvent(ctx, id)
		}),
		eventTx("claim", "Claim the voting reward of a resolved event", func(ctx context.Context, svc *services, id uint64) (string, error) {
			return svc.voting.ClaimReward(ctx, id)
		}),
		eventTx("claim-winnings", "Claim pool winnings of a resolved event", func(ctx context.Context, svc *services, id uint64) (string, error) {
			return svc.finance.ClaimWinnings(ctx, id)
		}),
		eventTx("claim-truth", "Claim the truth reward of a resolved event", func(ctx context.Context, svc *services, id uint64) (string, error) {
			return svc.truth.ClaimTruthReward(ctx, id)
		}),
		amountTx("stake", "Stake coins", func(ctx context.Context, svc *services, octas uint64) (string, error) {
			return svc.finance.StakeTokens(ctx, octas)
		}),
		amountTx("unstake", "Unstake coins", func(ctx context.Context, svc *services, octas uint64) (string, error) {
			return svc.finance.UnstakeTokens(ctx, octas)
		}),
		depositCmd,
		claimLevelCmd,
		initProfileCmd,
	)
	rootCmd.AddCommand(txCmd)
}
