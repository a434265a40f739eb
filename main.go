/*
sm25 talks to an SM25 fingerprint reader over TCP or a serial port.

Flags can also be set with SM25_ prefixed environment variables or a JSON
file given with -config.
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/peterbourgon/ff/v3/ffcli"
)

func main() {
	var (
		out = os.Stdout
		err = os.Stderr
	)

	rootCmd, cfg := newRootCmd()
	rootCmd.Subcommands = []*ffcli.Command{
		newProbeCmd(cfg, out),
		newInfoCmd(cfg, out),
		newEnrollCmd(cfg, out),
		newClearCmd(cfg, out),
		newClearAllCmd(cfg, out),
		newEmptyIDCmd(cfg, out),
		newTemplateStatusCmd(cfg, out),
		newWriteTemplateCmd(cfg, out),
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		var num = 0
		for range c {
			num += 1
			if num >= 3 {
				os.Exit(1)
			} else {
				cancel()
			}
		}
	}()

	if e := rootCmd.ParseAndRun(ctx, os.Args[1:]); e != nil {
		if errors.Is(e, flag.ErrHelp) {
			os.Exit(2)
		}
		if !errors.Is(e, context.Canceled) {
			libPrefix := "sm25: "
			msg := strings.TrimPrefix(e.Error(), libPrefix)
			fmt.Fprintf(err, "%s: %s\n", rootCmd.Name, msg)
			os.Exit(1)
		} else if cfg.verbose {
			fmt.Fprintf(err, "%s: cancelled\n", rootCmd.Name)
		}
	}
}
