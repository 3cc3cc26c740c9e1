package main

import (
	"os"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/cwbudde/go-sdpl/cmd/sdpl/cmd"
)

// TestMain lets `go test` re-exec this binary as the sdpl CLI whenever a
// .txtar script invokes the "sdpl" command, the standard testscript pattern
// for exercising a cmd/ entry point without installing it.
func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"sdpl": func() int {
			if err := cmd.Execute(); err != nil {
				return 1
			}
			return cmd.ExitCode()
		},
	}))
}

// TestCLI runs every .txtar script under testdata/script against the sdpl
// binary, covering the run/lex/parse subcommands end to end.
func TestCLI(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir: "testdata/script",
	})
}
