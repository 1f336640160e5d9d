// Package cli wires the cobra command tree for the intraday signal
// generator.
package cli

import (
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "intraday",
	Short: "Unattended intraday breakout signal generator",
	Long: `Intraday watches one symbol through the trading session, detects noise-band
breakouts confirmed by VWAP, and appends BUY/SELL/CLOSE signals to a durable
SQLite outbox for an external execution agent to consume.

It provides tools for:
  - Running the signal loop against a configuration profile
  - Inspecting and purging the signal outbox
  - Querying the trade journal`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Broker credentials come from the environment; a local .env
		// is a convenience, its absence is not an error.
		_ = godotenv.Load()

		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	},
}

var verbose bool

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
