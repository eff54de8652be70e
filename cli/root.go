package cli

import (
	"os"

	"github.com/safwentrabelsi/voce/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "voce",
	Short: "Voce prediction voting backend",
	Long: `Voce serves the commit-reveal voting, staking and gamification backend of the
Voce platform and resolves expired voting events on chain.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig reads the config file and sets the log level from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	logLevel, err := logrus.ParseLevel(cfg.Log.GetLevel())
	if err != nil {
		return nil, err
	}
	if isDebug {
		logLevel = logrus.DebugLevel
	}
	logrus.SetLevel(logLevel)
	return cfg, nil
}
