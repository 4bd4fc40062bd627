package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"signal-trader/internal/report"
	"signal-trader/internal/risk"
	"signal-trader/internal/signal"
)

// newParseCmd parses a signal offline and prints the derived risk metrics
// without touching the remote account. Market-entry signals need --entry to
// stand in for the live quote.
func newParseCmd(app *App) *cobra.Command {
	var balance float64
	var riskFactor float64
	var entry float64

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse a signal and show the trade report without executing",
		Long: `Reads a signal from stdin, parses it, computes the derived risk metrics
against the supplied balance, and prints the trade report. Nothing is sent
to the trading account.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			text, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading signal: %w", err)
			}

			if riskFactor == 0 {
				riskFactor = app.Config.Trading.RiskFactor
			}

			trade, err := signal.Parse(strings.TrimRight(string(text), "\n"), riskFactor)
			if err != nil {
				output.Error("Signal rejected: %v", err)
				return err
			}

			resolved := *trade
			if trade.MarketEntry {
				if entry == 0 {
					return fmt.Errorf("market order needs --entry to stand in for the live quote")
				}
				resolved = trade.WithEntry(entry)
			}

			metrics := risk.Compute(resolved, balance)

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"trade":   resolved,
					"metrics": metrics,
					"balance": balance,
				})
			}
			output.Println(report.Format(resolved, metrics, balance))
			return nil
		},
	}

	cmd.Flags().Float64Var(&balance, "balance", 0, "account balance to report against")
	cmd.Flags().Float64Var(&riskFactor, "risk", 0, "risk factor (defaults to configured value)")
	cmd.Flags().Float64Var(&entry, "entry", 0, "entry price for market orders (stands in for the live quote)")

	return cmd
}
