package main

import (
	"fmt"
	"os"
	"path/filepath"

	"homefw/host/cmd/homefw/ui"
	"homefw/standalone"
	"homefw/standalone/config"
)

// loadMachine reads a configuration file, or the built-in configuration for
// the named kinematics when path is empty, and prints validation warnings
func loadMachine(path, kinematics string) (*standalone.MachineConfig, error) {
	var (
		cfg *standalone.MachineConfig
		err error
	)
	switch {
	case path != "":
		cfg, err = config.LoadFile(path)
		if err != nil {
			return nil, err
		}
	case kinematics == "delta":
		cfg = config.DefaultDeltaConfig()
	case kinematics == "" || kinematics == "cartesian":
		cfg = config.DefaultCartesianConfig()
	default:
		return nil, fmt.Errorf("unknown kinematics %q", kinematics)
	}

	warnings, err := config.Validate(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, ui.WarnMsg("%s", w))
	}
	return cfg, nil
}

func defaultHistoryPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "homefw", "history.db")
}
