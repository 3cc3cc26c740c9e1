package main

import (
	"fmt"
	"os"

	"github.com/cwbudde/go-sdpl/cmd/sdpl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		code := cmd.ExitCode()
		if code == 0 {
			code = 2 // argument or flag error reported by cobra itself
		}
		os.Exit(code)
	}
}
