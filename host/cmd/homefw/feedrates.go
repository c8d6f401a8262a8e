package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"homefw/host/cmd/homefw/ui"
	"homefw/standalone"
	"homefw/standalone/homing"
)

func feedratesCmd() *cobra.Command {
	var (
		path string
		kin  string
	)
	cmd := &cobra.Command{
		Use:   "feedrates",
		Short: "Show the search speeds derived for each axis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadMachine(path, kin)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.Table(
				[]string{"Axis", "Clearance", "Search", "Fast", "Passes", "First"},
				feedrateRows(cfg)))
			fmt.Fprint(out, ui.KeyValues("  ",
				ui.KV("Acceleration", strconv.FormatFloat(cfg.Acceleration, 'f', -1, 64)+" mm/s²")))
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "Machine configuration file (.json, .toml, .yaml)")
	cmd.Flags().StringVar(&kin, "kinematics", "cartesian", "Built-in configuration when no file is given (cartesian, delta)")
	return cmd
}

func feedrateRows(cfg *standalone.MachineConfig) [][]string {
	rows := make([][]string, 0, 3)
	for a := standalone.X; a <= standalone.Z; a++ {
		axis := cfg.Axis(a)
		f := homing.AxisFeedrates(cfg, a)

		fast := "-"
		if f.Fast > 0 {
			fast = strconv.FormatUint(uint64(f.Fast), 10)
		}
		passes := "1"
		if f.TwoPhase() {
			passes = "2"
		}
		rows = append(rows, []string{
			a.String(),
			ui.Microns(int32(axis.EndstopClearance)),
			strconv.FormatUint(uint64(f.Slow), 10),
			fast,
			passes,
			strconv.FormatUint(uint64(f.First()), 10),
		})
	}
	return rows
}
