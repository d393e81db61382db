// Mirror Tracker - Location Tracking and Sync Coordinator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mirrortracker

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tomtom215/mirrortracker/internal/debuglog"
)

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print the persisted debug log",
		Long:  "Print the bounded debug log, oldest line first (default: all lines)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tail, _ := cmd.Flags().GetInt("tail")
			noColor, _ := cmd.Flags().GetBool("no-color")
			if noColor {
				color.NoColor = true
			}

			dlog, err := debuglog.Open(debuglog.Config{
				Path:     cfg.DebugLog.Path,
				Capacity: cfg.DebugLog.Capacity,
				Timezone: cfg.DebugLog.Timezone,
			})
			if err != nil {
				return fmt.Errorf("failed to open debug log: %w", err)
			}

			lines := dlog.Lines()
			if tail > 0 && tail < len(lines) {
				lines = lines[len(lines)-tail:]
			}
			printLogLines(cmd.OutOrStdout(), lines)
			return nil
		},
	}
	cmd.Flags().IntP("tail", "n", 0, "show only the last N lines")
	cmd.Flags().Bool("no-color", false, "disable colored output")
	return cmd
}

var (
	stampColor   = color.New(color.FgCyan)
	startColor   = color.New(color.FgHiGreen)
	stopColor    = color.New(color.FgYellow)
	failureColor = color.New(color.FgRed)
)

// printLogLines colors the timestamp prefix and highlights lifecycle and
// failure lines.
func printLogLines(w io.Writer, lines []string) {
	if len(lines) == 0 {
		fmt.Fprintln(w, "(debug log is empty)")
		return
	}
	for _, line := range lines {
		stamp, msg, ok := strings.Cut(line, ": ")
		if !ok {
			fmt.Fprintln(w, line)
			continue
		}
		fmt.Fprintf(w, "%s: %s\n", stampColor.Sprint(stamp), messageColor(msg).Sprint(msg))
	}
}

func messageColor(msg string) *color.Color {
	switch {
	case msg == debuglog.MsgServiceStarted:
		return startColor
	case msg == debuglog.MsgServiceStopped:
		return stopColor
	case strings.Contains(msg, "failed"), strings.Contains(msg, "issue"), strings.Contains(msg, "invalid"):
		return failureColor
	default:
		return color.New(color.Reset)
	}
}
