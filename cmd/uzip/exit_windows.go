//go:build windows

package main

import (
	"bufio"
	"fmt"
	"os"

	"golang.org/x/term"
)

func exit(err error) {
	// uzip is often started by dropping archives onto the executable so the console must stay open for the output to
	// be read.
	if term.IsTerminal(int(os.Stdin.Fd())) {
		_, _ = fmt.Fprintf(os.Stderr, "Press any key to close console\n")
		r := bufio.NewReader(os.Stdin)
		_, _, _ = r.ReadRune()
	}

	if code := exitCode(err); code != 0 {
		os.Exit(code)
	}
}
