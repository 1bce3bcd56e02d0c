// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"spectre/cmd"
	"spectre/internal/analysis"
	"spectre/internal/audio"
	"spectre/internal/log"
	"spectre/internal/tui"
	"spectre/pkg/build"
)

// main parses the command line, then either runs a one-off device command
// or the analyzer. The analyzer runs until SIGINT/SIGTERM, a quit key in the
// terminal display, or a fatal audio fault, which exits with status 1.
func main() {
	buildErr := build.Initialize()

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}
	if opts.Command == cmd.CommandNone {
		return
	}

	if level, ok := log.ParseLevel(opts.Config.LogLevel); ok {
		log.SetLevel(level)
	}
	if buildErr != nil {
		log.Debugf("build: %v, running a development build", buildErr)
	}

	switch opts.Command {
	case cmd.CommandList:
		devices, err := audio.GetDevices()
		if err != nil {
			log.Fatalf("%v", err)
		}
		audio.ListDevices(os.Stdout, devices)

	case cmd.CommandDevices:
		choice, err := tui.StartDeviceListUI()
		if err != nil {
			log.Fatalf("%v", err)
		}
		if choice != nil {
			fmt.Printf("%s --device %d --sample-rate %.0f\n",
				build.Name, choice.Device.ID, choice.SampleRate)
		}

	case cmd.CommandRun:
		if err := run(opts); err != nil {
			var fatal *analysis.FatalError
			if !errors.As(err, &fatal) {
				log.Errorf("%v", err)
			}
			os.Exit(1)
		}
	}
}

func run(opts *cmd.Options) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var shutdown atomic.Bool
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		select {
		case sig := <-signals:
			log.Infof("received %v, shutting down", sig)
			shutdown.Store(true)
			cancel()
		case <-ctx.Done():
		}
	}()

	return cmd.Run(ctx, opts.Config, &shutdown)
}
