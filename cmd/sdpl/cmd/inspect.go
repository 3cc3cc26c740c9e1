package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/go-sdpl/internal/tdf"
)

var inspectPath string

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.tdf>",
	Short: "Query a TDF dataset file with a gjson path expression",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().StringVar(&inspectPath, "path", "meta", "gjson path to query")
}

func runInspect(_ *cobra.Command, args []string) error {
	result, err := tdf.Query(args[0], inspectPath)
	if err != nil {
		exitCode = 2
		return err
	}
	fmt.Fprintln(os.Stdout, result)
	return nil
}
