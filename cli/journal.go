package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/intraday/outbox"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query the trade journal",
	Long: `Query closed trades from the SQLite trade journal.

Subcommands:
  today  - List trades closed today
  day    - List trades closed on a specific day

Examples:
  intraday journal today
  intraday journal day 2025-05-15`,
}

var journalTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List trades closed today",
	Args:  cobra.NoArgs,
	RunE:  runJournalToday,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List trades closed on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalDBPath string

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalTodayCmd)
	journalCmd.AddCommand(journalDayCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./trades.db", "path to the SQLite trade journal")
}

func runJournalToday(cmd *cobra.Command, args []string) error {
	return printTradesForDay(time.Now())
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	day, err := time.ParseInLocation("2006-01-02", args[0], time.Local)
	if err != nil {
		return fmt.Errorf("parse day: %w", err)
	}
	return printTradesForDay(day)
}

func printTradesForDay(day time.Time) error {
	j, err := outbox.NewSQLiteJournal(journalDBPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer j.Close()

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	trades, err := j.ListTradesClosedBetween(start, end)
	if err != nil {
		return fmt.Errorf("list trades: %w", err)
	}
	if len(trades) == 0 {
		fmt.Printf("no trades closed on %s\n", start.Format("2006-01-02"))
		return nil
	}

	var total float64
	fmt.Printf("%-27s %-10s %-6s %10s %10s %10s  %s\n",
		"TRADE", "SYMBOL", "DIR", "ENTRY", "EXIT", "P/L", "REASON")
	for _, tr := range trades {
		total += tr.RealizedPL
		fmt.Printf("%-27s %-10s %-6s %10.4f %10.4f %10.2f  %s\n",
			tr.TradeID, tr.Symbol, tr.Direction, tr.EntryPrice, tr.ExitPrice, tr.RealizedPL, tr.Reason)
	}
	fmt.Printf("\n%d trade(s), total P/L %.2f\n", len(trades), total)
	return nil
}
