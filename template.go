package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/RoanBrand/SM25ReaderProtocol/protocol"
	"github.com/peterbourgon/ff/v3/ffcli"
)

// templateConfig backs every command working on template slots.
type templateConfig struct {
	rootConfig *rootConfig
	out        io.Writer
	run        func(ctx context.Context, s *protocol.Sync, args []string) (*protocol.ResponsePacket, protocol.Command, error)
}

func (c *templateConfig) Exec(ctx context.Context, args []string) error {
	r, err := newReader(ctx, c.rootConfig)
	if err != nil {
		return err
	}
	// The dispatcher describes every response; print that line. Close
	// joins the receive goroutine, so it runs before the unsubscribe.
	defer r.OnStatus(func(s string) { fmt.Fprintln(c.out, s) })()
	defer r.Close()

	resp, cmd, err := c.run(ctx, r.Sync(), args)
	if err != nil {
		return err
	}
	if resp == nil {
		return fmt.Errorf("sm25: no response to %v", cmd)
	}
	return nil
}

func newTemplateCmd(rootConfig *rootConfig, out io.Writer, name, usage, help string,
	run func(ctx context.Context, s *protocol.Sync, args []string) (*protocol.ResponsePacket, protocol.Command, error),
) *ffcli.Command {
	cfg := templateConfig{
		rootConfig: rootConfig,
		out:        out,
		run:        run,
	}

	fs := flag.NewFlagSet("sm25 "+name, flag.ExitOnError)
	rootConfig.registerFlags(fs)

	return addLongHelp(&ffcli.Command{
		Name:       name,
		ShortUsage: usage,
		ShortHelp:  help,
		FlagSet:    fs,
		Options:    ffOptions(),
		Exec:       cfg.Exec,
	})
}

func newClearCmd(rootConfig *rootConfig, out io.Writer) *ffcli.Command {
	return newTemplateCmd(rootConfig, out, "clear", "clear [flags] <id>", "Removes the template in slot <id>.",
		func(ctx context.Context, s *protocol.Sync, args []string) (*protocol.ResponsePacket, protocol.Command, error) {
			id, err := parseID(args)
			if err != nil {
				return nil, protocol.CmdClearTemplate, err
			}
			resp, err := s.ClearTemplate(ctx, id)
			return resp, protocol.CmdClearTemplate, err
		})
}

func newClearAllCmd(rootConfig *rootConfig, out io.Writer) *ffcli.Command {
	return newTemplateCmd(rootConfig, out, "clear-all", "clear-all", "Removes every template.",
		func(ctx context.Context, s *protocol.Sync, _ []string) (*protocol.ResponsePacket, protocol.Command, error) {
			resp, err := s.ClearAllTemplate(ctx)
			return resp, protocol.CmdClearAllTemplate, err
		})
}

func newEmptyIDCmd(rootConfig *rootConfig, out io.Writer) *ffcli.Command {
	return newTemplateCmd(rootConfig, out, "empty-id", "empty-id", "Returns the first free template slot.",
		func(ctx context.Context, s *protocol.Sync, _ []string) (*protocol.ResponsePacket, protocol.Command, error) {
			resp, err := s.GetEmptyID(ctx)
			return resp, protocol.CmdGetEmptyID, err
		})
}

func newTemplateStatusCmd(rootConfig *rootConfig, out io.Writer) *ffcli.Command {
	return newTemplateCmd(rootConfig, out, "template-status", "template-status [flags] <id>", "Reports whether slot <id> holds a template.",
		func(ctx context.Context, s *protocol.Sync, args []string) (*protocol.ResponsePacket, protocol.Command, error) {
			id, err := parseID(args)
			if err != nil {
				return nil, protocol.CmdGetTemplateStatus, err
			}
			resp, err := s.GetTemplateStatus(ctx, id)
			return resp, protocol.CmdGetTemplateStatus, err
		})
}

func newWriteTemplateCmd(rootConfig *rootConfig, out io.Writer) *ffcli.Command {
	return newTemplateCmd(rootConfig, out, "write-template", "write-template [flags] <id> <file>", "Uploads a template file into slot <id>.",
		func(ctx context.Context, s *protocol.Sync, args []string) (*protocol.ResponsePacket, protocol.Command, error) {
			id, err := parseID(args)
			if err != nil {
				return nil, protocol.CmdWriteTemplate, err
			}
			if len(args) < 2 {
				return nil, protocol.CmdWriteTemplate, fmt.Errorf("sm25: template file is required")
			}
			tmpl, err := os.ReadFile(args[1])
			if err != nil {
				return nil, protocol.CmdWriteTemplate, err
			}
			if len(tmpl) > protocol.TemplateSize {
				return nil, protocol.CmdWriteTemplate, fmt.Errorf("sm25: %s: %w", args[1], protocol.ErrTemplateTooLarge)
			}

			resp, err := s.WriteTemplate(ctx)
			if err = expect(resp, err, protocol.CmdWriteTemplate); err != nil {
				return nil, protocol.CmdWriteTemplate, err
			}
			resp, err = s.WriteTemplateData(ctx, id, tmpl)
			if err == nil && resp != nil && resp.ReturnCode() != protocol.RetSuccess {
				err = fmt.Errorf("sm25: write template %d failed: %v", id, resp.DataReturnCode())
			}
			return resp, protocol.CmdWriteTemplate, err
		})
}
