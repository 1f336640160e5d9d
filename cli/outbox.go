package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/intraday/outbox"
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect or purge the signal outbox",
	Long: `Inspect or purge the durable signal outbox.

Subcommands:
  list     - List all signals in the outbox
  pending  - Count signals not yet consumed
  purge    - Drop all signals and reset IDs

Examples:
  intraday outbox list -d signals.db
  intraday outbox purge -d signals.db`,
}

var outboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all signals in the outbox",
	Args:  cobra.NoArgs,
	RunE:  runOutboxList,
}

var outboxPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Count signals not yet consumed",
	Args:  cobra.NoArgs,
	RunE:  runOutboxPending,
}

var outboxPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Drop all signals and reset IDs",
	Args:  cobra.NoArgs,
	RunE:  runOutboxPurge,
}

var outboxDBPath string

func init() {
	rootCmd.AddCommand(outboxCmd)
	outboxCmd.AddCommand(outboxListCmd)
	outboxCmd.AddCommand(outboxPendingCmd)
	outboxCmd.AddCommand(outboxPurgeCmd)

	outboxCmd.PersistentFlags().StringVarP(&outboxDBPath, "db", "d", "./signals.db", "path to the signal outbox")
}

func runOutboxList(cmd *cobra.Command, args []string) error {
	o, err := outbox.Open(outboxDBPath, false)
	if err != nil {
		return fmt.Errorf("open outbox: %w", err)
	}
	defer o.Close()

	sigs, err := o.List()
	if err != nil {
		return fmt.Errorf("list signals: %w", err)
	}
	if len(sigs) == 0 {
		fmt.Println("outbox is empty")
		return nil
	}

	fmt.Printf("%-6s %-7s %-20s %s\n", "ID", "ACTION", "CREATED", "CONSUMED")
	for _, s := range sigs {
		consumed := "no"
		if s.Consumed {
			consumed = "yes"
		}
		fmt.Printf("%-6d %-7s %-20s %s\n", s.ID, s.Action, s.CreatedAt.Format("2006-01-02 15:04:05"), consumed)
	}
	return nil
}

func runOutboxPending(cmd *cobra.Command, args []string) error {
	o, err := outbox.Open(outboxDBPath, false)
	if err != nil {
		return fmt.Errorf("open outbox: %w", err)
	}
	defer o.Close()

	n, err := o.CountPending()
	if err != nil {
		return fmt.Errorf("count pending: %w", err)
	}
	fmt.Printf("%d pending signal(s)\n", n)
	return nil
}

func runOutboxPurge(cmd *cobra.Command, args []string) error {
	o, err := outbox.Open(outboxDBPath, false)
	if err != nil {
		return fmt.Errorf("open outbox: %w", err)
	}
	defer o.Close()

	if err := o.Purge(); err != nil {
		return fmt.Errorf("purge outbox: %w", err)
	}
	fmt.Println("outbox purged")
	return nil
}
