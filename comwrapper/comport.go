// RS-232/Virtual-Serial over USB as the transport layer
// for readers attached through a UART bridge.

package comwrapper

import (
	"context"
	"time"

	"github.com/RoanBrand/SM25ReaderProtocol/protocol"
	"github.com/tarm/serial"
)

// Logger is satisfied by *log.Logger.
type Logger interface {
	Printf(format string, args ...interface{})
}

// Dialer returns a protocol.DialFunc that opens the COM port instead of a
// TCP connection. The address handed to the DialFunc is ignored.
func Dialer(portName string, baudRate int) protocol.DialFunc {
	cfg := &serial.Config{Name: portName, Baud: baudRate}
	return func(ctx context.Context, _ string) (protocol.Transport, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := serial.OpenPort(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// RetryDialer is like Dialer but keeps trying to open the COM port every
// interval until it succeeds or ctx is done.
func RetryDialer(portName string, baudRate int, interval time.Duration, log Logger) protocol.DialFunc {
	cfg := &serial.Config{Name: portName, Baud: baudRate}
	return func(ctx context.Context, _ string) (protocol.Transport, error) {
		firstTryDone := false
		for {
			p, err := serial.OpenPort(cfg)
			if err == nil {
				if log != nil {
					log.Printf("Serial '%s': Opened at %d baud.\n", cfg.Name, cfg.Baud)
				}
				return p, nil
			}
			if !firstTryDone && log != nil {
				log.Printf("Serial '%s': Error opening COM port -> %v\nRetrying every %v..\n", cfg.Name, err, interval)
			}
			firstTryDone = true

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interval):
			}
		}
	}
}
