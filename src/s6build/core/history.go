package core

import (
	"fmt"
	"time"

	"github.com/eebbk/s6build/src/common/cli"
	"github.com/eebbk/s6build/src/s6build/output"
	"github.com/eebbk/s6build/src/s6build/report"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent build invocations",
	Long:  `Lists the most recent setup, update, and build invocations recorded in the build history.`,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum number of invocations to list")
	historyCmd.Flags().StringP("output", "o", "table", "Output format (table, json)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("output")
	out := output.New(cmd.OutOrStdout())

	store, err := report.Open(log, cli.GetExpandedString("report.path"))
	if err != nil {
		return err
	}
	defer store.Close()

	invocations, err := store.Recent(limit)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		return out.JSON(invocations)
	default:
		if len(invocations) == 0 {
			out.Message("No invocations recorded.")
			return nil
		}

		rows := make([][]string, len(invocations))
		for i, inv := range invocations {
			rows[i] = []string{
				shortID(inv.ID),
				string(inv.Mode),
				orDash(inv.Target),
				inv.Arch,
				inv.StartedAt.Format("2006-01-02 15:04:05"),
				formatDuration(inv.DurationMS),
				invocationResult(inv),
			}
		}
		out.Table([]string{"ID", "MODE", "TARGET", "ARCH", "STARTED", "DURATION", "RESULT"}, rows)
		return nil
	}
}

// shortID trims an invocation id to its first uuid group.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return d.String()
	}
	return d.Truncate(time.Second).String()
}

func invocationResult(inv report.Invocation) string {
	if inv.Success {
		return "success"
	}
	return fmt.Sprintf("failed (%d)", inv.ExitCode)
}
