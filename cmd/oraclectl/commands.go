// Copyright (C) 2026 Keiba Labs (dev@keibalabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"

	"github.com/keibalabs/oracle/pkg/ux"
)

// --- Global Command Variables ---
var (
	resumeRunID string
	showTrace   bool
	plainOutput bool

	rootCmd = &cobra.Command{
		Use:   "oraclectl",
		Short: "A cli for the Keiba Oracle racing strategy server",
		Long: `oraclectl talks to a running oracle server to ask racing
				questions and inspect checkpointed runs.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ux.SetPlain(plainOutput)
		},
	}

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the oracle a racing question and wait for the recommendation",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAsk, // Defined in cmd_ask.go
	}

	// --- Runs ---
	runsCmd = &cobra.Command{
		Use:   "runs",
		Short: "Inspect checkpointed oracle runs",
	}
	listRunsCmd = &cobra.Command{
		Use:   "list",
		Short: "List all checkpointed runs",
		Run:   runListRuns, // Defined in cmd_runs.go
	}
	showRunCmd = &cobra.Command{
		Use:   "show [run_id]",
		Short: "Show the latest checkpoint for a run",
		Args:  cobra.ExactArgs(1),
		Run:   runShowRun, // Defined in cmd_runs.go
	}
	deleteRunCmd = &cobra.Command{
		Use:   "delete [run_id]",
		Short: "Delete a run's checkpoint",
		Args:  cobra.ExactArgs(1),
		Run:   runDeleteRun, // Defined in cmd_runs.go
	}
	watchRunCmd = &cobra.Command{
		Use:   "watch [run_id]",
		Short: "Stream a run's reasoning trace as it executes",
		Args:  cobra.ExactArgs(1),
		Run:   runWatchRun, // Defined in cmd_runs.go
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&plainOutput, "plain", false,
		"Disable colors and animations for script consumption")
	askCmd.Flags().StringVar(&resumeRunID, "resume", "",
		"Resume an interrupted run from its checkpoint instead of starting fresh")
	askCmd.Flags().BoolVar(&showTrace, "trace", false,
		"Print the full reasoning trace after the recommendation")

	runsCmd.AddCommand(listRunsCmd, showRunCmd, deleteRunCmd, watchRunCmd)
	rootCmd.AddCommand(askCmd, runsCmd)
}
