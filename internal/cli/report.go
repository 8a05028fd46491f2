package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Thisisily/glp-monitor/internal/control"
	"github.com/Thisisily/glp-monitor/internal/core/domain"
	"github.com/Thisisily/glp-monitor/internal/monitor"
)

var showPool bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Run one valuation cycle and print the results",
	Run:   runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&showPool, "pool", true, "include pool AUM and supply per network")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := cmd.Context()
	app, err := control.New(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize monitor", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = app.Close()
	}()

	report, err := app.RunOnce(ctx)
	if err != nil {
		slog.Error("Cycle interrupted", "error", err)
		os.Exit(1)
	}

	writeReport(os.Stdout, report)

	if showPool {
		fmt.Fprintln(os.Stdout)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		_, _ = fmt.Fprintln(w, "NETWORK\tSUPPLY\tAUM (USD)\tGLP PRICE")
		for _, network := range app.Networks() {
			supply, err := app.PoolSupply(ctx, network)
			if err != nil {
				slog.Warn("Failed to read GLP supply", "network", network, "error", err)
			}
			aum, price := "-", "-"
			if stats, err := app.PoolStats(ctx, network); err == nil {
				aum = fmt.Sprintf("%.2f", stats.AUMUSD)
				price = fmt.Sprintf("%.4f", stats.Price())
			} else if !errors.Is(err, domain.ErrConfiguration) {
				slog.Warn("Failed to read pool stats", "network", network, "error", err)
			}
			_, _ = fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\n", network, supply, aum, price)
		}
		_ = w.Flush()
	}

	if len(report.Failures) > 0 {
		_ = app.Close()
		os.Exit(2)
	}
}

// writeReport prints one row per observation, a totals row and any failures.
func writeReport(out io.Writer, report monitor.CycleReport) {
	obs := append([]domain.Observation(nil), report.Observations...)
	sort.SliceStable(obs, func(i, j int) bool {
		if obs[i].User != obs[j].User {
			return obs[i].User < obs[j].User
		}
		return obs[i].Network < obs[j].Network
	})

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "USER\tNETWORK\tGLP\tMINT PRICE\tREDEMPTION\tREWARD\tFEE\tVALUE (USD)\tENTRY\tPNL")

	var balance, reward, fee, value, pnl float64
	for _, o := range obs {
		entry, p := "-", "-"
		if o.EntryPrice > 0 {
			entry = fmt.Sprintf("%.4f", o.EntryPrice)
			p = fmt.Sprintf("%.2f", o.PnL)
		}
		mint := fmt.Sprintf("%.4f", o.AverageMintPrice)
		if o.PartialPrices {
			mint += "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.4f\t%s\t%.4f\t%.2f\t%.2f\t%.2f\t%s\t%s\n",
			o.User, o.Network, o.Balance, mint, o.RedemptionPrice,
			o.RewardEstimate, o.FeeEstimate, o.Value, entry, p)

		balance += o.Balance
		reward += o.RewardEstimate
		fee += o.FeeEstimate
		value += o.Value
		pnl += o.PnL
	}
	_, _ = fmt.Fprintf(w, "TOTAL\t\t%.4f\t\t\t%.2f\t%.2f\t%.2f\t\t%.2f\n", balance, reward, fee, value, pnl)
	_ = w.Flush()

	for _, f := range report.Failures {
		network := f.Network.String()
		if network == "" {
			network = "-"
		}
		fmt.Fprintf(out, "failed: %s on %s: %v\n", f.User, network, f.Err)
	}
}
