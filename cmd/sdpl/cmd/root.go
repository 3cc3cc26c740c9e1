// Package cmd implements the sdpl command-line interface, following the
// teacher's cobra-based cmd/dwscript/cmd layout.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var verbose bool

// exitCode is set by subcommands to drive main's os.Exit, matching
// spec.md §6's exit codes: 0 success, 1 user-program error, 2 invocation
// error.
var exitCode int

// ExitCode returns the process exit code the last Execute() call decided.
func ExitCode() int { return exitCode }

var rootCmd = &cobra.Command{
	Use:   "sdpl",
	Short: "SDPL interpreter",
	Long: `sdpl runs SDPL programs: SAS-like DATA steps and PROC PRINT/SORT
steps against in-memory datasets persisted as TDF files.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
Commit: %s
Built:  %s
`, GitCommit, BuildDate))

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
