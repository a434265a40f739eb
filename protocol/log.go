package protocol

import (
	"encoding/hex"
	"strings"
)

// Logger is the interface used for log messages.
//
// *log.Logger satisfies it.
type Logger interface {
	Printf(format string, args ...interface{})
}

type nullLoggerImpl struct{}

func (nullLoggerImpl) Printf(format string, args ...interface{}) {}

// nullLogger is a logger that does nothing.
var nullLogger = nullLoggerImpl{}

// hexBytes lazily formats frames as space separated hex, e.g. "55 aa 21 01".
type hexBytes []byte

func (h hexBytes) String() string {
	if len(h) == 0 {
		return ""
	}
	s := hex.EncodeToString(h)
	var buf strings.Builder
	buf.Grow(len(s) + len(h))
	for i := 0; i < len(s); i += 2 {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(s[i : i+2])
	}
	return buf.String()
}
