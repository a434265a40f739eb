package protocol

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"sync/atomic"
)

// Frame geometry.
const (
	headerSize   = 6  // prefix, command, length
	checksumSize = 2  // trailing checksum
	paramSize    = 16 // fixed parameter/payload field
)

// CommandPacket is an encoded command frame.
//
// Payload layout:
//
//	/- Prefix (2 bytes, big endian) 0x55AA or 0x5AA5
//	|
//	| /- Command (2 bytes, little endian)
//	| |
//	| | /- Length code (2 bytes, big endian)
//	| | |
//	| | | /- Parameter (16 bytes, or longer for data packets)
//	| | | |
//	| | | |    /- Checksum (2 bytes, little endian)
//	| | | |    |
//	012345[..]01
type CommandPacket struct {
	command    Command
	length     int
	lengthCode uint16
	param      []byte
	checksum   uint16
	payload    []byte

	response atomic.Pointer[ResponsePacket]
}

// NewCommandPacket builds a frame for cmd with an optional raw parameter,
// using the reader's default checksum.
func NewCommandPacket(cmd Command, param []byte) *CommandPacket {
	return newCommandPacket(cmd, param, Checksum)
}

// NewCommandPacketInt builds a frame whose parameter is v encoded little
// endian and truncated to 2 bytes.
func NewCommandPacketInt(cmd Command, v int) *CommandPacket {
	return newCommandPacket(cmd, intParam(v), Checksum)
}

func intParam(v int) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b[:2]
}

func newCommandPacket(cmd Command, param []byte, sum ChecksumFunc) *CommandPacket {
	p := &CommandPacket{
		command:    cmd,
		length:     len(param),
		lengthCode: lengthCode(len(param)),
		param:      padParam(param),
	}
	p.payload = p.serialize(sum)
	return p
}

// padParam zero-pads param to the 16 byte field. Longer parameters are kept.
func padParam(param []byte) []byte {
	if len(param) >= paramSize {
		return append([]byte(nil), param...)
	}
	b := make([]byte, paramSize)
	copy(b, param)
	return b
}

// lengthCode converts a parameter byte count into the value written to the
// length field. The first two little endian bytes of n are rendered as hex,
// concatenated and parsed back, which swaps them: the big endian write of the
// result puts n on the wire little endian.
func lengthCode(n int) uint16 {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(n))
	h := fmt.Sprintf("%02x%02x", b[0], b[1])
	v, err := strconv.ParseUint(h, 16, 16)
	if err != nil {
		// Four hex digits always fit in 16 bits.
		panic(err)
	}
	return uint16(v)
}

func (p *CommandPacket) serialize(sum ChecksumFunc) []byte {
	ser := make([]byte, 0, headerSize+len(p.param)+checksumSize)
	ser = binary.BigEndian.AppendUint16(ser, uint16(p.Prefix()))
	ser = binary.LittleEndian.AppendUint16(ser, uint16(p.command))
	ser = binary.BigEndian.AppendUint16(ser, p.lengthCode)
	ser = append(ser, p.param...)
	p.checksum = sum(ser)
	return binary.LittleEndian.AppendUint16(ser, p.checksum)
}

// Prefix selects command framing for a 16 byte parameter and data packet
// framing otherwise.
func (p *CommandPacket) Prefix() Prefix {
	if len(p.param) == paramSize {
		return PrefixCommand
	}
	return PrefixCommandData
}

func (p *CommandPacket) Command() Command { return p.command }

// Length is the raw parameter byte count before padding.
func (p *CommandPacket) Length() int { return p.length }

func (p *CommandPacket) LengthCode() uint16 { return p.lengthCode }

// Param returns the padded parameter field.
func (p *CommandPacket) Param() []byte { return append([]byte(nil), p.param...) }

func (p *CommandPacket) Checksum() uint16 { return p.checksum }

// Bytes returns the encoded frame.
func (p *CommandPacket) Bytes() []byte { return append([]byte(nil), p.payload...) }

// Response returns the response attached by the dispatcher, or nil.
func (p *CommandPacket) Response() *ResponsePacket { return p.response.Load() }

func (p *CommandPacket) setResponse(r *ResponsePacket) { p.response.Store(r) }

func (p *CommandPacket) String() string {
	return fmt.Sprintf("%v %v", p.command, hexBytes(p.payload))
}
