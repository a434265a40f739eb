package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/RoanBrand/SM25ReaderProtocol/protocol"
	"github.com/peterbourgon/ff/v3/ffcli"
)

type infoConfig struct {
	rootConfig *rootConfig
	out        io.Writer
	json       bool
}

type deviceInfo struct {
	Name        string `json:"name"`
	FWVersion   int    `json:"fw_version"`
	DeviceID    int    `json:"device_id"`
	EnrollCount int    `json:"enroll_count"`
}

func (c *infoConfig) Exec(ctx context.Context, _ []string) error {
	r, err := newReader(ctx, c.rootConfig)
	if err != nil {
		return err
	}
	defer r.Close()

	s := r.Sync()
	var info deviceInfo

	resp, err := s.GetDeviceName(ctx)
	if err = expect(resp, err, protocol.CmdGetDeviceName); err != nil {
		return err
	}
	info.Name = deviceName(resp.DataBytes())

	resp, err = s.GetFWVersion(ctx)
	if err = expect(resp, err, protocol.CmdGetFWVersion); err != nil {
		return err
	}
	info.FWVersion = resp.Data()

	resp, err = s.GetDeviceID(ctx)
	if err = expect(resp, err, protocol.CmdGetDeviceID); err != nil {
		return err
	}
	info.DeviceID = resp.Data()

	resp, err = s.GetEnrollCount(ctx)
	if err = expect(resp, err, protocol.CmdGetEnrollCount); err != nil {
		return err
	}
	info.EnrollCount = resp.Data()

	if c.json {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintf(c.out, "Name:         %s\n", info.Name)
	fmt.Fprintf(c.out, "FW version:   %d\n", info.FWVersion)
	fmt.Fprintf(c.out, "Device ID:    %d\n", info.DeviceID)
	fmt.Fprintf(c.out, "Enroll count: %d\n", info.EnrollCount)
	return nil
}

// deviceName cuts the NUL padding off the name field.
func deviceName(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// expect turns a missing or failed response into an error.
func expect(resp *protocol.ResponsePacket, err error, cmd protocol.Command) error {
	switch {
	case err != nil:
		return err
	case resp == nil:
		return fmt.Errorf("sm25: no response to %v", cmd)
	case !resp.ChecksumValid():
		return fmt.Errorf("sm25: %v: %w", cmd, protocol.ErrChecksumInvalid)
	case resp.ReturnCode() != protocol.RetSuccess:
		return fmt.Errorf("sm25: %v failed: %v", cmd, resp.DataReturnCode())
	}
	return nil
}

func newInfoCmd(rootConfig *rootConfig, out io.Writer) *ffcli.Command {
	cfg := infoConfig{
		rootConfig: rootConfig,
		out:        out,
	}

	fs := flag.NewFlagSet("sm25 info", flag.ExitOnError)
	fs.BoolVar(&cfg.json, "json", false, "print as JSON")
	rootConfig.registerFlags(fs)

	return addLongHelp(&ffcli.Command{
		Name:       "info",
		ShortUsage: "info",
		ShortHelp:  "Returns the device name, firmware version, device ID and enroll count.",
		FlagSet:    fs,
		Options:    ffOptions(),
		Exec:       cfg.Exec,
	})
}
