package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"

	"github.com/charangentem-coder/rental-price-predictor/config"
	"github.com/charangentem-coder/rental-price-predictor/utils"
)

func main() {
	cfg := config.Load()
	logger := utils.NewLoggerWithMode(cfg.LogMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := &app{ctx: ctx, cfg: cfg, logger: logger, out: os.Stdout}
	cmd := &commander.Command{
		UsageLine: "rental-price-predictor <command> [flags]",
		Short:     "train and serve the rental price model",
		Subcommands: []*commander.Command{
			a.trainCmd(),
			a.serveCmd(),
			a.predictCmd(),
			a.importCmd(),
		},
		Flag: *flag.NewFlagSet("rental-price-predictor", flag.ExitOnError),
	}

	err := cmd.Dispatch(os.Args[1:])
	stop()
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "**err**: %v\n", err)
		os.Exit(1)
	}
}
