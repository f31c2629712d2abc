package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"valorant-live-tracker/internal/constants"
	"valorant-live-tracker/internal/database"
	"valorant-live-tracker/internal/logger"
	"valorant-live-tracker/internal/repository"
	"valorant-live-tracker/internal/sink"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	historyDB    string
	historyLimit int
	historyMatch string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived matches",
	Long:  "Print the matches recorded by previous tracker runs, or the full lobby of one match with --match.",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.SetLevel(zerolog.WarnLevel)

		db, err := database.Open(historyDB, log)
		if err != nil {
			return err
		}
		defer db.Close()

		repo := repository.NewMatchRepository(db, log)
		ctx, cancel := context.WithTimeout(cmd.Context(), constants.DatabaseTimeout)
		defer cancel()

		if historyMatch != "" {
			snapshot, err := repo.GetByMatchID(ctx, historyMatch)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("match %s is not in the archive", historyMatch)
			}
			if err != nil {
				return err
			}
			sink.RenderSnapshot(cmd.OutOrStdout(), snapshot)
			return nil
		}

		matches, err := repo.ListMatches(ctx, historyLimit)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No archived matches.")
			return nil
		}
		sink.RenderHistory(cmd.OutOrStdout(), matches)
		return nil
	},
}

func init() {
	_ = godotenv.Load()
	defaultDB := os.Getenv("DB_PATH")
	if defaultDB == "" {
		defaultDB = "tracker.db"
	}
	historyCmd.Flags().StringVar(&historyDB, "db", defaultDB, "path to the SQLite archive")
	historyCmd.Flags().IntVar(&historyLimit, "limit", constants.HistoryListLimit, "maximum number of matches to list")
	historyCmd.Flags().StringVar(&historyMatch, "match", "", "show the archived lobby of one match id")
}
