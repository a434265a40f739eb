package protocol

import (
	"context"
	"io"
	"net"
	"time"
)

// DefaultPort is the reader's TCP port.
const DefaultPort = 7879

// Byte stream over which the protocol runs.
// A TCP socket or a RS-232/USB serial port typically implements this interface.
// Close must unblock a Read in progress.
type Transport interface {
	io.ReadWriteCloser
}

// DialFunc opens a transport to address ("host:port" for TCP).
type DialFunc func(ctx context.Context, address string) (Transport, error)

// DialTCP connects to the reader over TCP.
func DialTCP(ctx context.Context, address string) (Transport, error) {
	d := net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// flusher is implemented by transports that buffer input, like serial ports.
type flusher interface {
	Flush() error
}

// Receive from the transport and hand every chunk to onChunk.
// Returns when ctx is cancelled before a read, or with the read error.
func rxTransport(ctx context.Context, t Transport, bufSize int, onChunk func([]byte)) error {
	if f, ok := t.(flusher); ok {
		f.Flush()
	}
	rx := make([]byte, bufSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		nRx, err := t.Read(rx)
		if nRx > 0 {
			// A lone zero byte is the reader's keepalive.
			if !(nRx == 1 && rx[0] == 0) {
				chunk := make([]byte, nRx)
				copy(chunk, rx[:nRx])
				onChunk(chunk)
			}
		}
		if err != nil {
			return err
		}
		if nRx == 0 {
			return io.EOF
		}
	}
}
