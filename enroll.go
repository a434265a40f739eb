package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/RoanBrand/SM25ReaderProtocol/protocol"
	"github.com/peterbourgon/ff/v3/ffcli"
)

type enrollConfig struct {
	rootConfig *rootConfig
	out        io.Writer
}

func (c *enrollConfig) Exec(ctx context.Context, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}

	r, err := newReader(ctx, c.rootConfig)
	if err != nil {
		return err
	}

	done := make(chan protocol.EnrollState, 1)
	defer r.OnStatus(func(s string) { fmt.Fprintln(c.out, s) })()
	defer r.OnEnrollStatus(func(st protocol.EnrollStatus) {
		state := st.State
		if state == protocol.EnrollIdle && st.Ret == protocol.RetFail {
			// Refused before the first sweep, e.g. slot already used.
			state = protocol.EnrollFailed
		}
		if state.Terminal() {
			select {
			case done <- state:
			default:
			}
		}
	})()
	// Close cancels the enrollment when interrupted.
	defer r.Close()

	if _, err := r.Enroll(id); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case st := <-done:
		if st != protocol.EnrollSuccess {
			return fmt.Errorf("sm25: enroll %d %v", id, st)
		}
	}
	return nil
}

func newEnrollCmd(rootConfig *rootConfig, out io.Writer) *ffcli.Command {
	cfg := enrollConfig{
		rootConfig: rootConfig,
		out:        out,
	}

	fs := flag.NewFlagSet("sm25 enroll", flag.ExitOnError)
	rootConfig.registerFlags(fs)

	return addLongHelp(&ffcli.Command{
		Name:       "enroll",
		ShortUsage: "enroll [flags] <id>",
		ShortHelp:  "Enrolls a fingerprint into template slot <id> with three sweeps.",
		FlagSet:    fs,
		Options:    ffOptions(),
		Exec:       cfg.Exec,
	})
}
