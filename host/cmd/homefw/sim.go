package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"homefw/host/cmd/homefw/ui"
	"homefw/internal/history"
	"homefw/internal/logging"
	"homefw/internal/sim"
	"homefw/internal/telemetry"
	"homefw/standalone"
	"homefw/standalone/gcode"
	"homefw/standalone/homing"
	"homefw/standalone/kinematics"
)

type simOptions struct {
	config     string
	kinematics string
	switches   map[string]string
	carriage   map[string]string
	record     bool
	dbPath     string
	showMoves  bool
}

func simCmd() *cobra.Command {
	opts := simOptions{}
	cmd := &cobra.Command{
		Use:   "sim [gcode...]",
		Short: "Run G-code against a simulated machine",
		Long: `Run G-code lines against a simulated machine with endstop switches at
fixed carriage positions. Without arguments the machine is homed with G28.`,
		Example: `  homefw sim
  homefw sim --kinematics delta --switch x_max=241.5 "M666 X-0.3" G28 M114
  homefw sim --config printer.toml --carriage x=150 G28 M119`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"G28"}
			}
			return runSim(cmd.Context(), cmd.OutOrStdout(), opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.config, "config", "c", "", "Machine configuration file (.json, .toml, .yaml)")
	cmd.Flags().StringVar(&opts.kinematics, "kinematics", "cartesian", "Built-in configuration when no file is given (cartesian, delta)")
	cmd.Flags().StringToStringVar(&opts.switches, "switch", nil, "Switch position in mm by endstop name, e.g. x_min=-12.5")
	cmd.Flags().StringToStringVar(&opts.carriage, "carriage", nil, "Initial carriage position in mm by axis, e.g. x=100")
	cmd.Flags().BoolVar(&opts.record, "record", false, "Record homing runs in the history database")
	cmd.Flags().StringVar(&opts.dbPath, "db", defaultHistoryPath(), "History database path")
	cmd.Flags().BoolVar(&opts.showMoves, "moves", false, "Print every executed move")
	return cmd
}

func parseMillimeters(values map[string]string) (map[string]int32, error) {
	out := make(map[string]int32, len(values))
	for name, v := range values {
		mm, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[strings.ToLower(name)] = standalone.Millimeters(mm)
	}
	return out, nil
}

func runSim(ctx context.Context, out io.Writer, opts simOptions, lines []string) error {
	cfg, err := loadMachine(opts.config, opts.kinematics)
	if err != nil {
		return err
	}
	switches, err := parseMillimeters(opts.switches)
	if err != nil {
		return fmt.Errorf("parse --switch: %w", err)
	}
	carriage, err := parseMillimeters(opts.carriage)
	if err != nil {
		return fmt.Errorf("parse --carriage: %w", err)
	}

	var store *history.Store
	if opts.record {
		store, err = history.Open(opts.dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	provider := telemetry.NewProvider(telemetry.NewLogExporter(slog.Default()))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	state := &standalone.PositionState{}
	machine := sim.NewMachine(cfg, state, slog.Default())
	machine.Install(switches)
	for a := standalone.X; a < standalone.NumAxes; a++ {
		if um, ok := carriage[a.String()]; ok {
			machine.SetCarriage(a, um)
		}
	}

	kin, err := kinematics.New(cfg)
	if err != nil {
		return err
	}
	queue := telemetry.Wrap(machine, telemetry.Tracer(provider))
	logDiag := logging.DiagWriter("homing")
	report := func(line string) {
		fmt.Fprintln(out, ui.Muted(line))
		logDiag(line)
	}
	homer, err := homing.New(cfg, queue, state, report)
	if err != nil {
		return err
	}
	respond := func(line string) { fmt.Fprintln(out, line) }
	interp := gcode.NewInterpreter(cfg, state, machine, homer, kin, respond)
	parser := gcode.NewParser()

	for _, line := range lines {
		cmd, err := parser.ParseLine(strings.TrimSpace(line))
		if err != nil {
			return fmt.Errorf("%s: %w", line, err)
		}
		if cmd == nil || cmd.Type == 0 {
			continue
		}

		if cmd.Type != 'G' || cmd.Number != 28 {
			if err := interp.Execute(cmd); err != nil {
				return fmt.Errorf("%s: %w", line, err)
			}
			continue
		}

		err = homeOnce(ctx, out, store, machine, queue, cfg, state, line, func() error {
			return interp.Execute(cmd)
		})
		if err != nil {
			return fmt.Errorf("%s: %w", line, err)
		}
	}

	if opts.showMoves {
		printMoves(out, machine.Moves())
	}
	printSummary(out, cfg, machine, state)
	return nil
}

// homeOnce runs a homing command in a trace span and records the outcome
func homeOnce(ctx context.Context, out io.Writer, store *history.Store, machine *sim.Machine,
	queue homing.MotionQueue, cfg *standalone.MachineConfig, state *standalone.PositionState,
	line string, fn func() error) error {
	started := time.Now()
	movesBefore := len(machine.Moves())
	untriggeredBefore := machine.Untriggered()
	elapsedBefore := machine.Elapsed()

	err := telemetry.Run(ctx, queue, line, fn)
	if err == nil {
		fmt.Fprintln(out, ui.SuccessMsg("%s finished in %s simulated", line, (machine.Elapsed()-elapsedBefore).Round(time.Millisecond)))
	}
	if n := machine.Untriggered() - untriggeredBefore; n > 0 {
		fmt.Fprintln(out, ui.WarnMsg("%d search moves ended without reaching their endstop", n))
	}

	if store == nil {
		return err
	}
	run := history.Run{
		StartedAt:   started,
		Kinematics:  cfg.Kinematics,
		Command:     line,
		Duration:    machine.Elapsed() - elapsedBefore,
		Moves:       len(machine.Moves()) - movesBefore,
		Untriggered: machine.Untriggered() - untriggeredBefore,
		Position:    state.Start.Axis,
	}
	if err != nil {
		run.Err = err.Error()
	}
	recorded, recErr := store.Record(ctx, run)
	if recErr != nil {
		return errors.Join(err, recErr)
	}
	fmt.Fprintln(out, ui.Muted("recorded run "+recorded.ID))
	return err
}

func printMoves(out io.Writer, moves []sim.Move) {
	rows := make([][]string, 0, len(moves))
	for i, mv := range moves {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			fmt.Sprintf("0x%02x", uint8(mv.Mask)),
			ui.Bool(mv.StopOnTrigger),
			ui.Bool(mv.Triggered),
			strconv.FormatUint(uint64(mv.Target.F), 10),
			carriageString(mv.From),
			carriageString(mv.To),
			ui.Microns(mv.Overtravel),
		})
	}
	fmt.Fprintln(out, ui.Table(
		[]string{"#", "Mask", "Stop", "Triggered", "Feed", "From", "To", "Overtravel"}, rows))
}

func carriageString(pos [standalone.NumAxes]int32) string {
	return ui.Microns(pos[standalone.X]) + " " + ui.Microns(pos[standalone.Y]) + " " + ui.Microns(pos[standalone.Z])
}

func printSummary(out io.Writer, cfg *standalone.MachineConfig, machine *sim.Machine, state *standalone.PositionState) {
	names := []string{"X", "Y", "Z"}
	if cfg.Kinematics == "delta" {
		names = []string{"A", "B", "C"}
	}
	pairs := []ui.Pair{ui.KV("Kinematics", cfg.Kinematics)}
	for a := standalone.X; a <= standalone.Z; a++ {
		pairs = append(pairs, ui.KV("Carriage "+names[a], ui.Microns(machine.Carriage(a))))
	}
	pairs = append(pairs,
		ui.KV("Position", carriageString(state.Start.Axis)),
		ui.KV("Moves", strconv.Itoa(len(machine.Moves()))),
		ui.KV("Motion time", machine.Elapsed().Round(time.Millisecond).String()),
	)
	fmt.Fprint(out, ui.KeyValues("  ", pairs...))
}
