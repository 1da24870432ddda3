package cli

import (
	"github.com/spf13/cobra"

	"futures-volume-alerts/internal/app"
)

var (
	simulateExchange string
	simulateMean     float64
	simulateLatest   float64
	simulatePrice    float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Simulate a volume deviation and trigger the alert pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SimulateOptions{
			Exchange:  simulateExchange,
			MeanUSD:   simulateMean,
			LatestUSD: simulateLatest,
			Price:     simulatePrice,
		}
		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateExchange, "exchange", "binance", "Venue to simulate")
	simulateCmd.Flags().Float64Var(&simulateMean, "mean", 1_000_000_000, "Window mean 24h quote volume in USD")
	simulateCmd.Flags().Float64Var(&simulateLatest, "latest", 1_250_000_000, "Latest 24h quote volume in USD")
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 60_000, "Reference BTC price in USD")
}
