package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/uzip/internal/cmd"
	"github.com/nguyengg/uzip/internal/config"
)

func main() {
	if _, err := config.Load(context.Background()); err != nil {
		log.Printf("load config error: %v", err)
	}

	c := cmd.New(config.ForUnpack())
	p, err := cmd.NewParser(c)
	if err != nil {
		log.Fatalf("create parser error: %v", err)
	}

	args, err := p.Parse()
	switch fe := (*flags.Error)(nil); {
	case err == nil:
		if err = c.Execute(args); err != nil {
			log.Print(err)
		}
	case errors.As(err, &fe) && fe.Type == flags.ErrRequired:
		p.WriteHelp(os.Stderr)
	}

	exit(err)
}

// exitCode returns 0 on success or if help was requested, 2 for command line errors, and 1 otherwise.
func exitCode(err error) int {
	var fe *flags.Error
	switch {
	case err == nil || flags.WroteHelp(err):
		return 0
	case errors.As(err, &fe):
		return 2
	default:
		return 1
	}
}
