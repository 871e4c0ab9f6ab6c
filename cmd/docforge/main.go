package main

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/automaxprocs/maxprocs"

	docforge "github.com/docforge/go-docforge"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// Parse flags first to get workers count and verbose
	flags, _, err := parseFlags(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitUsage)
	}

	// Configure GOMAXPROCS with conditional logging
	// Error ignored: maxprocs.Set only fails if GOMAXPROCS env is invalid,
	// in which case Go runtime defaults apply and the program continues safely.
	if flags.common.verbose {
		_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}))
	} else {
		_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))
	}

	var poolOpts []docforge.Option
	if flags.timeout != "" {
		if d, perr := time.ParseDuration(flags.timeout); perr == nil && d > 0 {
			poolOpts = append(poolOpts, docforge.WithTimeout(d))
		}
	}

	poolSize := docforge.ResolvePoolSize(flags.workers)
	if flags.common.verbose {
		fmt.Fprintf(os.Stderr, "Pool size: %d\n", poolSize)
	}
	pool := newExporterPool(poolSize, poolOpts...)
	defer pool.Close()

	if err := run(os.Args, pool); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}
