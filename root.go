package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/RoanBrand/SM25ReaderProtocol/comwrapper"
	"github.com/RoanBrand/SM25ReaderProtocol/protocol"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
)

type rootConfig struct {
	verbose bool
	host    string
	port    int
	serial  string
	baud    int
	retry   time.Duration
	timeout time.Duration
	config  string
}

func (c *rootConfig) registerFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.verbose, "v", false, "log protocol traffic to stderr")
	fs.StringVar(&c.host, "host", "", "reader host name or IP address")
	fs.IntVar(&c.port, "port", protocol.DefaultPort, "reader TCP port")
	fs.StringVar(&c.serial, "serial", "", "serial port to use instead of TCP, e.g. COM3 or /dev/ttyUSB0")
	fs.IntVar(&c.baud, "baud", 115200, "serial baud rate")
	fs.DurationVar(&c.retry, "serial-retry", 0, "keep retrying to open the serial port at this interval")
	fs.DurationVar(&c.timeout, "timeout", 5*time.Second, "response timeout")
	fs.StringVar(&c.config, "config", "", "JSON config file")
}

// ffOptions lets every flag come from the environment or the config file.
func ffOptions() []ff.Option {
	return []ff.Option{
		ff.WithEnvVarPrefix("SM25"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.JSONParser),
		ff.WithAllowMissingConfigFile(true),
	}
}

func (c *rootConfig) Exec(context.Context, []string) error {
	return flag.ErrHelp
}

func newRootCmd() (*ffcli.Command, *rootConfig) {
	var cfg rootConfig

	fs := flag.NewFlagSet("sm25", flag.ExitOnError)
	cfg.registerFlags(fs)

	return addLongHelp(&ffcli.Command{
		Name:       "sm25",
		ShortUsage: "sm25 [flags] <subcommand>",
		ShortHelp:  "Utilities to manage an SM25 fingerprint reader.",
		FlagSet:    fs,
		Options:    ffOptions(),
		Exec:       cfg.Exec,
	}), &cfg
}

var sm25LongHelp = `

CONFIGURATION
Every flag can also be given as an environment variable (SM25_HOST,
SM25_PORT, SM25_SERIAL, ...) or as a key in the JSON file passed with -config:

  {"host": "10.0.0.20", "port": 7879, "timeout": "3s"}`

func addLongHelp(cmd *ffcli.Command) *ffcli.Command {
	if cmd.LongHelp == "" {
		cmd.LongHelp = cmd.ShortHelp
	}

	cmd.LongHelp += sm25LongHelp

	return cmd
}

func newLogger(verbose bool) protocol.Logger {
	if verbose {
		return log.New(os.Stderr, "", log.LstdFlags)
	} else {
		return nil
	}
}

func (c *rootConfig) readerOptions() []protocol.Option {
	opts := []protocol.Option{
		protocol.WithPort(c.port),
		protocol.WithResponseTimeout(c.timeout),
		protocol.WithProbeTimeout(c.timeout),
	}
	if l := newLogger(c.verbose); l != nil {
		opts = append(opts, protocol.WithLogger(l))
	}
	switch {
	case c.serial != "" && c.retry > 0:
		opts = append(opts, protocol.WithDialer(comwrapper.RetryDialer(c.serial, c.baud, c.retry, log.New(os.Stderr, "", log.LstdFlags))))
	case c.serial != "":
		opts = append(opts, protocol.WithDialer(comwrapper.Dialer(c.serial, c.baud)))
	}
	return opts
}

// newReader connects to the configured reader. The caller closes it.
func newReader(ctx context.Context, c *rootConfig) (*protocol.Reader, error) {
	if c.host == "" && c.serial == "" {
		return nil, fmt.Errorf("sm25: -host or -serial is required")
	}
	r := protocol.New(c.host, c.readerOptions()...)
	r.Connect(ctx)
	if !r.Connected() {
		return nil, fmt.Errorf("sm25: cannot connect to %s", c.target())
	}
	return r, nil
}

func (c *rootConfig) target() string {
	if c.serial != "" {
		return c.serial
	}
	return c.host + ":" + strconv.Itoa(c.port)
}

func parseID(args []string) (uint16, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("sm25: template id is required")
	}
	id, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		return 0, fmt.Errorf("sm25: invalid template id %q: %w", args[0], err)
	}
	return uint16(id), nil
}
