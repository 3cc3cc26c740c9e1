package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/go-sdpl/internal/driver"
	"github.com/cwbudde/go-sdpl/internal/env"
	"github.com/cwbudde/go-sdpl/internal/lexer"
	"github.com/cwbudde/go-sdpl/internal/library"
	"github.com/cwbudde/go-sdpl/internal/logging"
	"github.com/cwbudde/go-sdpl/internal/parser"
)

var (
	workDir   string
	noListing bool
	trace     bool
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run an SDPL program",
	Args:  cobra.ExactArgs(1),
	RunE:  runProgram,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&workDir, "work", "", "override the WORK library directory")
	runCmd.Flags().BoolVar(&noListing, "no-listing", false, "suppress PROC PRINT output")
	runCmd.Flags().BoolVar(&trace, "trace", false, "dump PDV state after every DATA step at debug level")
}

func runProgram(_ *cobra.Command, args []string) error {
	file := args[0]
	source, err := os.ReadFile(file)
	if err != nil {
		exitCode = 2
		return fmt.Errorf("reading %s: %w", file, err)
	}

	l := lexer.New(string(source))
	p := parser.New(l)
	program := p.ParseProgram()
	if errs := l.Errors(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		exitCode = 1
		return fmt.Errorf("lexing failed with %d error(s)", len(errs))
	}
	if errs := p.Errors(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		exitCode = 1
		return fmt.Errorf("parsing failed with %d error(s)", len(errs))
	}

	dir := workDir
	var cleanup func()
	if dir == "" {
		if v := os.Getenv("SDPL_WORK"); v != "" {
			dir = v
		} else {
			d, c, err := library.NewWorkDir()
			if err != nil {
				exitCode = 2
				return fmt.Errorf("creating WORK directory: %w", err)
			}
			dir, cleanup = d, c
		}
	}
	if cleanup != nil {
		defer cleanup()
	}

	e := env.New(dir)
	if cfg, cfgErr := env.LoadProjectConfig("sdpl.yaml"); cfgErr == nil {
		e.Apply(cfg)
	}
	log := logging.FromEnv()
	if verbose || trace {
		log.Level = logging.LevelDebug
	}

	var listing io.Writer
	if !noListing {
		listing = os.Stdout
	}

	drv := driver.New(e, log, listing)
	drv.Trace = trace
	if err := drv.Run(context.Background(), program, file); err != nil {
		exitCode = 1
		return err
	}
	if drv.Failed {
		exitCode = 1
		return fmt.Errorf("one or more steps failed")
	}
	return nil
}
