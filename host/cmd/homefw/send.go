package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"homefw/host/cmd/homefw/ui"
	"homefw/host/serial"
)

type sendOptions struct {
	device  string
	baud    int
	file    string
	timeout time.Duration
}

func sendCmd() *cobra.Command {
	opts := sendOptions{}
	cmd := &cobra.Command{
		Use:   "send [gcode...]",
		Short: "Send G-code to firmware over a serial port",
		Long: `Send G-code lines to the firmware and print its replies. Lines come from
the arguments, from --file, or interactively from stdin.`,
		Example: `  homefw send G28 M114
  homefw send --device /dev/ttyUSB0 --file calibrate.gcode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := serial.Open(&serial.Config{Device: opts.device, Baud: opts.baud, ReadTimeout: 100})
			if err != nil {
				return fmt.Errorf("connect to %s: %w", opts.device, err)
			}
			client := serial.NewLineClient(port, slog.Default())
			defer client.Close()

			out := cmd.OutOrStdout()
			switch {
			case len(args) > 0:
				return sendLines(cmd.Context(), out, client, args, opts.timeout)
			case opts.file != "":
				f, err := os.Open(opts.file)
				if err != nil {
					return err
				}
				defer f.Close()
				return sendReader(cmd.Context(), out, client, f, opts.timeout, false)
			default:
				fmt.Fprintln(out, ui.InfoMsg("connected to %s, enter G-code ('quit' to exit)", opts.device))
				return sendReader(cmd.Context(), out, client, cmd.InOrStdin(), opts.timeout, true)
			}
		},
	}

	cmd.Flags().StringVarP(&opts.device, "device", "d", "/dev/ttyACM0", "Serial device path")
	cmd.Flags().IntVar(&opts.baud, "baud", serial.DefaultConfig("").Baud, "Baud rate (ignored for USB CDC)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Send every line of a G-code file")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "Maximum wait for each reply")
	return cmd
}

// lineSender is the part of serial.LineClient used here
type lineSender interface {
	Send(ctx context.Context, line string) ([]string, error)
}

func sendLines(ctx context.Context, out io.Writer, client lineSender, lines []string, timeout time.Duration) error {
	for _, line := range lines {
		if err := sendOne(ctx, out, client, line, timeout); err != nil {
			return err
		}
	}
	return nil
}

// sendReader sends lines from r. Interactively a rejected command is printed
// and the session continues; otherwise it aborts the run.
func sendReader(ctx context.Context, out io.Writer, client lineSender, r io.Reader, timeout time.Duration, interactive bool) error {
	scanner := bufio.NewScanner(r)
	for {
		if interactive {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" {
			continue
		}
		if interactive && (line == "quit" || line == "exit" || line == "q") {
			return nil
		}

		err := sendOne(ctx, out, client, line, timeout)
		var reply *serial.ReplyError
		if interactive && errors.As(err, &reply) {
			fmt.Fprintln(out, ui.ErrorMsg("%s", reply.Message))
			continue
		}
		if err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

func sendOne(ctx context.Context, out io.Writer, client lineSender, line string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	replies, err := client.Send(ctx, line)
	for _, reply := range replies {
		fmt.Fprintln(out, reply)
	}
	return err
}
