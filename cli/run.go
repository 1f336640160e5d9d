package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/intraday/broker/longport"
	"github.com/rustyeddy/intraday/config"
	"github.com/rustyeddy/intraday/engine"
	"github.com/rustyeddy/intraday/outbox"
	"github.com/rustyeddy/intraday/schedule"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the signal loop for a configuration profile",
	Long: `Run the evaluation loop for one profile until interrupted.

The profile specifies the symbol, trading window, band parameters, risk
limits and the outbox location.

Example:
  intraday run -f profiles/tsll.yaml`,
	RunE: runRun,
}

var (
	runConfigPath string
	runOnce       bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to profile file (YAML or JSON) (required)")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "evaluate a single tick and exit")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runOnce {
		cfg.Debug.Once = true
	}

	log := logrus.WithField("profile", runConfigPath)

	out, err := outbox.Open(cfg.Outbox.Path, cfg.Outbox.PurgeOnStart)
	if err != nil {
		return fmt.Errorf("open outbox: %w", err)
	}
	defer out.Close()

	jnl, err := openJournal(cfg)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jnl.Close()

	var opts []longport.Option
	if cfg.Broker.BaseURL != "" {
		opts = append(opts, longport.WithBaseURL(cfg.Broker.BaseURL))
	}
	client := longport.NewClient(cfg.Token(), opts...)

	clock, err := buildClock(cfg)
	if err != nil {
		return err
	}

	eng, err := engine.New(cfg, client, out, jnl, clock, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"symbol": cfg.Trading.Symbol,
		"window": fmt.Sprintf("%s-%s", cfg.Trading.Start, cfg.Trading.End),
		"outbox": cfg.Outbox.Path,
	}).Info("starting signal loop")

	return eng.Run(ctx)
}

func openJournal(cfg *config.Profile) (outbox.Journal, error) {
	switch cfg.Journal.Type {
	case "sqlite":
		return outbox.NewSQLiteJournal(cfg.Journal.DBPath)
	case "csv":
		return outbox.NewCSVJournal(cfg.Journal.TradesFile)
	default:
		return outbox.NopJournal{}, nil
	}
}

func buildClock(cfg *config.Profile) (schedule.Clock, error) {
	fixed, err := cfg.FixedTime()
	if err != nil {
		return nil, fmt.Errorf("debug clock: %w", err)
	}
	if fixed.IsZero() {
		return schedule.RealClock{}, nil
	}
	return schedule.NewFixedClock(fixed), nil
}
