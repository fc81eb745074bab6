// Command quotectl runs the quote-flow rules offline and inspects the
// unrecorded charge journal.
//
// Usage:
//
//	quotectl vin 1HGCM82633A004352
//	quotectl card --number 4111111111111111 --cvv 123 --exp-month 12 --exp-year 2030
//	quotectl eligibility --make Honda --model Accord --year 2019 --mileage 60000
//	quotectl quote validate --file hero.json
//	quotectl products --token $QUOTEFLOW_TOKEN
//	quotectl unrecorded list
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "quotectl",
		Usage:   "Quote flow operator tooling",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"QUOTEFLOW_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			vinCommand(),
			cardCommand(),
			eligibilityCommand(),
			quoteCommand(),
			productsCommand(),
			unrecordedCommand(),
		},
	}
}
