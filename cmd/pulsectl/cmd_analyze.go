package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/devpulse/internal/analysis"
	"github.com/ashureev/devpulse/internal/domain"
)

func init() {
	rootCmd.AddCommand(classifyCmd, sessionIDCmd, scoreCmd)

	classifyCmd.Flags().String("kind", "", "activity kind (coding, debugging, file_operation, inactivity)")
	classifyCmd.Flags().String("path", "", "file path")
	classifyCmd.Flags().Int("lines", -1, "lines changed (omit when unknown)")
	_ = classifyCmd.MarkFlagRequired("kind")
	_ = classifyCmd.MarkFlagRequired("path")

	sessionIDCmd.Flags().String("user", "", "user ID")
	sessionIDCmd.Flags().String("at", "", "timestamp (RFC 3339)")
	_ = sessionIDCmd.MarkFlagRequired("user")
	_ = sessionIDCmd.MarkFlagRequired("at")

	scoreCmd.Flags().Duration("total", 0, "total session duration")
	scoreCmd.Flags().Duration("productive", 0, "productive duration")
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Print whether an activity counts as productive",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		path, _ := cmd.Flags().GetString("path")
		lines, _ := cmd.Flags().GetInt("lines")

		a := &domain.Activity{Kind: domain.ActivityKind(kind), FilePath: path}
		if !a.Kind.Valid() {
			return fmt.Errorf("unknown activity kind %q", kind)
		}
		if lines >= 0 {
			a.Metadata = &domain.Metadata{LinesChanged: &lines}
		}

		if analysis.Classify(a) {
			fmt.Fprintln(cmd.OutOrStdout(), "productive")
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "unproductive")
		}
		return nil
	},
}

var sessionIDCmd = &cobra.Command{
	Use:   "session-id",
	Short: "Print the session key for a user and timestamp",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		at, _ := cmd.Flags().GetString("at")

		ts, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return fmt.Errorf("parse --at: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), analysis.ResolveSessionID(user, ts))
		return nil
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Print the productivity score for session totals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		total, _ := cmd.Flags().GetDuration("total")
		productive, _ := cmd.Flags().GetDuration("productive")
		if productive > total {
			return fmt.Errorf("--productive (%s) exceeds --total (%s)", productive, total)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", analysis.Score(total, productive))
		return nil
	},
}
