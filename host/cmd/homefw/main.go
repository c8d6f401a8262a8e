// Command homefw simulates homing runs, inspects search speeds and talks to
// firmware over a serial line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"homefw/internal/logging"
)

func main() {
	var (
		level  string
		format string
	)
	if err := logging.Configure(logging.LevelWarn); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "homefw",
		Short:         "Homing controller tools",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.ConfigureWriter(os.Stderr, level, format)
		},
	}
	root.PersistentFlags().StringVar(&level, "log-level", logging.LevelWarn, "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&format, "log-format", logging.FormatText, "Log format (text, json)")

	root.AddCommand(simCmd())
	root.AddCommand(feedratesCmd())
	root.AddCommand(sendCmd())
	root.AddCommand(historyCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
