package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Thisisily/glp-monitor/internal/control"
	"github.com/Thisisily/glp-monitor/internal/core/domain"
	"github.com/Thisisily/glp-monitor/internal/valuation/exposure"
)

var exposureNetwork string

var exposureCmd = &cobra.Command{
	Use:   "exposure",
	Short: "Break a GLP balance down into USD exposure per pool asset",
	Run:   runExposure,
}

func init() {
	exposureCmd.Flags().StringVar(&exposureNetwork, "network", string(domain.NetworkArbitrum), "network to inspect (arbitrum, avalanche)")
	rootCmd.AddCommand(exposureCmd)
}

func runExposure(cmd *cobra.Command, args []string) {
	network, err := domain.ParseNetwork(exposureNetwork)
	if err != nil {
		slog.Error("Invalid network", "error", err)
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	user := cfg.Users[0]
	if len(addresses) > 0 {
		user = addresses[0]
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

	b, err := app.Exposure(ctx, user, network)
	if err != nil {
		slog.Error("Failed to compute exposure", "user", user, "network", network, "error", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "%s on %s: %.4f GLP\n\n", user, network, b.Balance)
	writeExposure(os.Stdout, b)
}

func writeExposure(out io.Writer, b exposure.Breakdown) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "TOKEN\tWEIGHT\tADJUSTED\tPRICE\tVALUE (USD)")

	for _, l := range b.Lines {
		price := fmt.Sprintf("%.4f", l.Price)
		if !l.Priced {
			price += "?"
		}
		_, _ = fmt.Fprintf(w, "%s\t%.2f%%\t%.2f%%\t%s\t%.2f\n", l.Name, l.Weight*100, l.Adjusted*100, price, l.Value)
	}
	_, _ = fmt.Fprintf(w, "TOTAL\t\t\t\t%.2f\n", b.Exposure().Total())
	_ = w.Flush()

	if b.PartialPrices {
		fmt.Fprintln(out, "\nprices unavailable, values use a default price of 1")
	}
}
