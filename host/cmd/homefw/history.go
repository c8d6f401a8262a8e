package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"homefw/host/cmd/homefw/ui"
	"homefw/internal/history"
)

func historyCmd() *cobra.Command {
	var (
		dbPath string
		limit  int
	)
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"runs"},
		Short:   "List recorded homing runs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := history.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, ui.Muted("no runs recorded"))
				return nil
			}
			fmt.Fprintln(out, ui.Table(
				[]string{"Started", "Kinematics", "Command", "Moves", "Missed", "Time", "Result"},
				historyRows(runs)))
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", defaultHistoryPath(), "History database path")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs")
	return cmd
}

func historyRows(runs []history.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		result := ui.SuccessStyle.Render("ok")
		if !run.OK() {
			result = ui.ErrorStyle.Render(run.Err)
		}
		rows = append(rows, []string{
			run.StartedAt.Local().Format(time.DateTime),
			run.Kinematics,
			run.Command,
			strconv.Itoa(run.Moves),
			strconv.Itoa(run.Untriggered),
			run.Duration.Round(time.Millisecond).String(),
			result,
		})
	}
	return rows
}
