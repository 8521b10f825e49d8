package core

import (
	"github.com/eebbk/s6build/src/s6build/output"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE:  runVersion,
}

func init() {
	versionCmd.Flags().StringP("output", "o", "text", "Output format (text, json)")
}

func runVersion(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("output")
	out := output.New(cmd.OutOrStdout())

	if format == "json" {
		return out.JSON(VersionInfo.Map())
	}

	out.Message(VersionInfo.Full())
	return nil
}
