package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"futures-volume-alerts/internal/app"
)

var (
	showExchange string
	showLimit    int
	showAlerts   bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent volume observations or alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Exchange: showExchange,
			Limit:    showLimit,
			Alerts:   showAlerts,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showExchange, "exchange", "", "Only display rows for one exchange")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
	showCmd.Flags().BoolVar(&showAlerts, "alerts", false, "Display recent alerts instead of observations")
}
