// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/binwarden/pkg/board"
	"github.com/Thermoquad/binwarden/pkg/nvs"
	"github.com/Thermoquad/binwarden/pkg/usage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var counterCmd = &cobra.Command{
	Use:   "counter",
	Short: "Inspect or reset the persisted usage counter",
}

var counterShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the usage counter and the pending sleep record",
	Args:  cobra.NoArgs,
	RunE:  runCounterShow,
}

var counterClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Reset the usage counter to zero",
	Long: `Reset the usage counter to zero.

The device clears the counter on its own after a delivered report. Clearing
by hand discards the undelivered count.`,
	Args: cobra.NoArgs,
	RunE: runCounterClear,
}

func init() {
	rootCmd.AddCommand(counterCmd)
	counterCmd.AddCommand(counterShowCmd, counterClearCmd)
}

func openAccumulator() (*usage.Accumulator, *nvs.Store, error) {
	state, err := nvs.Open(cfg.Storage.StatePath)
	if err != nil {
		return nil, nil, err
	}
	acc := usage.New(state.Counter(counterKey), usage.Policy{
		Attempts: cfg.Storage.CounterRetries,
		Backoff:  usage.DefaultPolicy().Backoff,
	}, log.Logger)
	return acc, state, nil
}

func runCounterShow(cmd *cobra.Command, args []string) error {
	acc, state, err := openAccumulator()
	if err != nil {
		return err
	}

	v, err := acc.Load()
	if err != nil {
		return err
	}
	fmt.Printf("State file:  %s\n", state.Path())
	fmt.Printf("Usage count: %d (reported as %d)\n", v, usage.Saturate(v))

	sleptAt, ok, err := state.GetTime(board.KeySleptAt)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("Sleep record: none (next start is a cold boot)\n")
		return nil
	}
	deadline, _, err := state.GetTime(board.KeyTimerDeadline)
	if err != nil {
		return err
	}
	fmt.Printf("Slept at:    %s\n", sleptAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Timer due:   %s\n", deadline.Format("2006-01-02 15:04:05"))
	return nil
}

func runCounterClear(cmd *cobra.Command, args []string) error {
	acc, _, err := openAccumulator()
	if err != nil {
		return err
	}
	if err := acc.Clear(); err != nil {
		return err
	}
	fmt.Printf("Usage counter cleared\n")
	return nil
}
