package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/RoanBrand/SM25ReaderProtocol/protocol"
	"github.com/peterbourgon/ff/v3/ffcli"
)

type probeConfig struct {
	rootConfig *rootConfig
	out        io.Writer
}

func (c *probeConfig) Exec(ctx context.Context, _ []string) error {
	if c.rootConfig.host == "" {
		return fmt.Errorf("sm25: probe needs -host")
	}
	r := protocol.New(c.rootConfig.host, c.rootConfig.readerOptions()...)
	if !r.Probe(ctx) {
		return fmt.Errorf("sm25: %s is not reachable", c.rootConfig.target())
	}
	fmt.Fprintf(c.out, "%s is reachable\n", c.rootConfig.target())
	return nil
}

func newProbeCmd(rootConfig *rootConfig, out io.Writer) *ffcli.Command {
	cfg := probeConfig{
		rootConfig: rootConfig,
		out:        out,
	}

	fs := flag.NewFlagSet("sm25 probe", flag.ExitOnError)
	rootConfig.registerFlags(fs)

	return addLongHelp(&ffcli.Command{
		Name:       "probe",
		ShortUsage: "probe",
		ShortHelp:  "Checks that the reader accepts TCP connections.",
		FlagSet:    fs,
		Options:    ffOptions(),
		Exec:       cfg.Exec,
	})
}
