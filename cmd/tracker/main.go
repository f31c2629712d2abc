package main

import (
	"fmt"
	"os"

	fxmodules "valorant-live-tracker/internal/fx"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "Live Valorant match tracker",
	Long: "Watches the local client for a live match and prints every participant's rank, " +
		"recent form and tactical tendencies as soon as the lobby loads.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := fx.New(fxmodules.Module)
		if err := app.Err(); err != nil {
			return fmt.Errorf("failed to build tracker: %w", err)
		}
		app.Run()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
