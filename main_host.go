//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"minikernel/app"
	"minikernel/hal"
	"minikernel/kernel"
)

func main() {
	var cfg hal.HeadlessConfig
	var acfg app.Config
	flag.BoolVar(&cfg.Enabled, "headless", false, "Run without a window.")
	flag.IntVar(&cfg.Hz, "hz", 100, "Clock interrupt rate.")
	flag.Uint64Var(&cfg.Ticks, "ticks", 0, "Stop after N ticks in headless mode (0 = run forever).")
	flag.BoolVar(&cfg.TTY, "tty", false, "Headless: feed raw terminal keystrokes to the terminal device.")
	flag.IntVar(&acfg.Kernel.MaxProcs, "maxproc", kernel.DefaultMaxProcs, "Process table size.")
	flag.IntVar(&acfg.Kernel.TicksPerSecond, "tps", kernel.DefaultTicksPerSecond, "Clock ticks per second of sleep.")
	flag.StringVar(&acfg.Kernel.InitProgram, "init", kernel.DefaultInitProgram, `First program, with arguments (e.g. "creador 20 yosoy").`)
	flag.BoolVar(&acfg.Kernel.Audit, "audit", false, "Check the process table after every interrupt and halt on corruption.")
	flag.IntVar(&acfg.ImageSize, "image", hal.DefaultImageSize, "Address-space size of each process in bytes.")
	flag.StringVar(&acfg.LogLevel, "log", "info", "Kernel log level (trace, debug, info, warn, error).")
	flag.Parse()

	newApp := func(h hal.HAL) func() error {
		return app.NewWithConfig(h, acfg)
	}

	if cfg.Enabled {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := hal.RunHeadless(ctx, newApp, cfg); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := hal.RunWindow(newApp, cfg.Hz); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
