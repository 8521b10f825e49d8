package core

import (
	"context"
	"fmt"

	"github.com/eebbk/s6build/src/s6build/output"
	"github.com/eebbk/s6build/src/s6build/storage"
	"github.com/spf13/cobra"
)

var archivesCmd = &cobra.Command{
	Use:   "archives",
	Short: "List archived firmware images",
	Long:  `Lists the firmware images stored in the configured archive backend.`,
	RunE:  runArchives,
}

func init() {
	archivesCmd.Flags().String("prefix", "", "Key prefix to filter by, e.g. s6/DEBUG/")
	archivesCmd.Flags().StringP("output", "o", "table", "Output format (table, json)")
}

func runArchives(cmd *cobra.Command, args []string) error {
	prefix, _ := cmd.Flags().GetString("prefix")
	format, _ := cmd.Flags().GetString("output")
	out := output.New(cmd.OutOrStdout())

	backend, err := storage.New(storageConfig())
	if err != nil {
		return err
	}

	objects, err := backend.List(context.Background(), prefix)
	if err != nil {
		return err
	}

	switch format {
	case "json":
		return out.JSON(objects)
	default:
		if len(objects) == 0 {
			out.Message("No archived firmware images.")
			return nil
		}

		rows := make([][]string, len(objects))
		for i, obj := range objects {
			rows[i] = []string{
				obj.Key,
				formatSize(obj.Size),
				obj.LastModified.Format("2006-01-02 15:04:05"),
			}
		}
		out.Table([]string{"KEY", "SIZE", "STORED"}, rows)
		return nil
	}
}

// formatSize renders a byte count with a binary unit suffix.
func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
