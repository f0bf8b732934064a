// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// surface scans a service-module project and prints its command/message
// catalog as JSON.
//
// Usage:
//
//	surface [--pretty] [--verbose] <project-root>
//
// Exit codes:
//
//	0 — success; the catalog is written to stdout
//	1 — any scan fault; the diagnostic is written to stderr, prefixed with
//	    the offending file where known
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/surface/services/surface"
	"github.com/AleutianAI/surface/services/surface/analysis"
)

var (
	prettyOutput bool
	verboseLogs  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "surface <project-root>",
		Short: "Extract the command and message surface of a service-module project",
		Long: "surface statically analyzes a TypeScript service-module source tree and\n" +
			"emits a JSON catalog of its remotely invocable commands and asynchronous\n" +
			"event messages, grouped by module.",
		Args: cobra.ExactArgs(1),
		Run:  runScan,
	}
	rootCmd.Flags().BoolVar(&prettyOutput, "pretty", false, "indent the JSON output")
	rootCmd.Flags().BoolVarP(&verboseLogs, "verbose", "v", false, "enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScan(cmd *cobra.Command, args []string) {
	level := slog.LevelWarn
	if verboseLogs {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	analyzer := surface.NewAnalyzer()
	cat, err := analyzer.Parse(cmd.Context(), args[0])
	if err != nil {
		if file, ok := analysis.FileOf(err); ok {
			fmt.Fprintf(os.Stderr, "%s: %v\n", file, err)
		} else {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	if prettyOutput {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(cat); err != nil {
		fmt.Fprintf(os.Stderr, "encoding catalog: %v\n", err)
		os.Exit(1)
	}
}
