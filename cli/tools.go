package cli

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/safwentrabelsi/voce/gamification"
	"github.com/safwentrabelsi/voce/voting"
	"github.com/safwentrabelsi/voce/wallet"
	"github.com/spf13/cobra"
)

var levelCmd = &cobra.Command{
	Use:   "level <xp>",
	Short: "Show the level, tier and progress reached with an XP total",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		xp, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid xp %q: %w", args[0], err)
		}
		p := gamification.Progress(xp)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "level:       %d (%s)\n", p.Level, p.Tier)
		fmt.Fprintf(out, "progress:    %d / %d xp (%.2f%%)\n", p.XP-p.LevelStartXP, p.NextLevelXP-p.LevelStartXP, p.Percent)
		fmt.Fprintf(out, "next level:  %d xp\n", p.NextLevelXP)
		fmt.Fprintf(out, "coins so far: %d\n", p.TotalCoins)
		return nil
	},
}

var commitHashCmd = &cobra.Command{
	Use:   "commit-hash <choice> [salt]",
	Short: "Compute a vote commitment, with a fresh salt unless one is given",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		choice, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil {
			return fmt.Errorf("invalid choice %q: %w", args[0], err)
		}
		var salt []byte
		if len(args) == 2 {
			salt, err = hex.DecodeString(trimHexPrefix(args[1]))
			if err != nil {
				return fmt.Errorf("invalid salt: %w", err)
			}
		} else if salt, err = voting.GenerateSalt(); err != nil {
			return err
		}
		hash := voting.GenerateCommitmentHash(uint8(choice), salt)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "salt: 0x%s\n", hex.EncodeToString(salt))
		fmt.Fprintf(out, "hash: 0x%s\n", hex.EncodeToString(hash))
		return nil
	},
}

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the account address of the configured wallet key",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}
		key := cfg.Wallet.GetPrivateKey()
		if key == "" {
			return fmt.Errorf("no wallet key configured")
		}
		account, err := wallet.NewAccountFromHex(key)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), account.Address())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(levelCmd, commitHashCmd, addressCmd)
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		return s[2:]
	}
	return s
}
