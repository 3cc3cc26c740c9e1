package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/maruel/natural"
	"github.com/spf13/cobra"
)

var libnameCmd = &cobra.Command{
	Use:   "libname",
	Short: "Inspect libraries",
}

var libnameListCmd = &cobra.Command{
	Use:   "list <dir>",
	Short: "List the .tdf members of a library directory, naturally sorted",
	Args:  cobra.ExactArgs(1),
	RunE:  runLibnameList,
}

func init() {
	rootCmd.AddCommand(libnameCmd)
	libnameCmd.AddCommand(libnameListCmd)
}

func runLibnameList(_ *cobra.Command, args []string) error {
	entries, err := os.ReadDir(args[0])
	if err != nil {
		exitCode = 2
		return err
	}
	var members []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".tdf") {
			continue
		}
		members = append(members, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	natural.Sort(members)
	for _, m := range members {
		fmt.Println(m)
	}
	return nil
}
