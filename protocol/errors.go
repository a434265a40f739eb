package protocol

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

// Package errors.
var (
	// ErrNotConnected is returned when sending without a live transport.
	ErrNotConnected = errors.New("sm25: reader is not connected")

	// ErrChecksumInvalid is wrapped by every *ChecksumError.
	ErrChecksumInvalid = errors.New("sm25: response checksum is invalid")

	// ErrTransportBroken is matched by every *TransportError.
	ErrTransportBroken = errors.New("sm25: transport broken")

	// ErrEnrolling is returned with the command when it was not transmitted
	// because an enrollment is in progress. Only FPCancel is accepted then.
	ErrEnrolling = errors.New("sm25: command ignored while enrolling")

	// ErrUnimplemented is returned by synchronous operations that have no
	// request/response mapping.
	ErrUnimplemented = errors.New("sm25: not implemented")

	ErrTemplateTooLarge = errors.New("sm25: template exceeds 498 bytes")
)

// ChecksumError reports a fully received frame whose checksum does not match.
type ChecksumError struct {
	Command  Command
	Received uint16
	Computed uint16
	Frame    []byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("sm25: %v response checksum is invalid: received 0x%04X, computed 0x%04X (%v)",
		e.Command, e.Received, e.Computed, hexBytes(e.Frame))
}

func (e *ChecksumError) Unwrap() error { return ErrChecksumInvalid }

// TransportErrorKind distinguishes the ways a transport can fail.
type TransportErrorKind int

const (
	// EndOfStream is an orderly shutdown by the peer.
	EndOfStream TransportErrorKind = iota
	// Disposed is a transport already closed on our side.
	Disposed
	// IO is a generic read or write failure.
	IO
	// InvalidOperation is an operation the transport cannot perform in its
	// current state.
	InvalidOperation
	// Unexpected is anything else.
	Unexpected
)

func (k TransportErrorKind) String() string {
	switch k {
	case EndOfStream:
		return "end of stream"
	case Disposed:
		return "disposed"
	case IO:
		return "i/o"
	case InvalidOperation:
		return "invalid operation"
	default:
		return "unexpected"
	}
}

// TransportError is a classified transport failure.
type TransportError struct {
	Op   string
	Kind TransportErrorKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sm25: %s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransportBroken }

// broken reports whether the connection must be closed after this error.
func (e *TransportError) broken() bool {
	return e.Kind != Unexpected
}

// classifyTransportError wraps err from op into a *TransportError.
func classifyTransportError(op string, err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	kind := Unexpected
	var (
		opErr   *net.OpError
		pathErr *os.PathError
		sysErr  *os.SyscallError
	)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		kind = EndOfStream
	case errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe), errors.Is(err, os.ErrClosed):
		kind = Disposed
	case errors.Is(err, os.ErrInvalid), errors.Is(err, io.ErrShortWrite):
		kind = InvalidOperation
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE), errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EIO), errors.As(err, &opErr), errors.As(err, &pathErr), errors.As(err, &sysErr):
		// Serial ports fail with *os.PathError, e.g. EIO when a USB adapter
		// is unplugged.
		kind = IO
	}
	return &TransportError{Op: op, Kind: kind, Err: err}
}
