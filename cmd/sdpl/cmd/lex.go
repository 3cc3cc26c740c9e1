package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/go-sdpl/internal/lexer"
	"github.com/cwbudde/go-sdpl/internal/token"
)

var lexCmd = &cobra.Command{
	Use:   "lex <file>",
	Short: "Dump the token stream for an SDPL source file",
	Args:  cobra.ExactArgs(1),
	RunE:  runLex,
}

func init() {
	rootCmd.AddCommand(lexCmd)
}

func runLex(_ *cobra.Command, args []string) error {
	source, err := os.ReadFile(args[0])
	if err != nil {
		exitCode = 2
		return err
	}
	l := lexer.New(string(source))
	for {
		tok := l.NextToken()
		fmt.Printf("%4d:%-3d %-12s %q\n", tok.Pos.Line, tok.Pos.Col, tok.Kind, tok.Text)
		if tok.Kind == token.EOF {
			break
		}
	}
	if errs := l.Errors(); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		exitCode = 1
		return fmt.Errorf("lexing failed with %d error(s)", len(errs))
	}
	return nil
}
