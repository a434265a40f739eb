package protocol

import (
	"encoding/binary"
	"fmt"
)

// ResponsePacket is a frame received from the reader. It is filled
// progressively by Add until Complete reports true.
//
// Response payloads start with the return code followed by the data:
//
//	[prefix:2][command:2][length:2][ret:2][data:...][checksum:2]
type ResponsePacket struct {
	raw []byte
	sum ChecksumFunc
}

func newResponsePacket(sum ChecksumFunc) *ResponsePacket {
	if sum == nil {
		sum = Checksum
	}
	return &ResponsePacket{sum: sum}
}

// Add consumes bytes from b until the frame is complete and returns the
// bytes it did not need.
func (r *ResponsePacket) Add(b []byte) []byte {
	for len(b) > 0 && !r.Complete() {
		need := r.size() - len(r.raw)
		if need > len(b) {
			need = len(b)
		}
		r.raw = append(r.raw, b[:need]...)
		b = b[need:]
	}
	return b
}

// size is the full frame size, or the header size while it is unknown.
func (r *ResponsePacket) size() int {
	if len(r.raw) < headerSize {
		return headerSize
	}
	return headerSize + r.payloadSize() + checksumSize
}

func (r *ResponsePacket) payloadSize() int {
	if r.Prefix().fixedPayload() {
		return paramSize
	}
	return r.Length()
}

// Complete reports whether every byte declared by the frame was received.
func (r *ResponsePacket) Complete() bool {
	return len(r.raw) >= headerSize && len(r.raw) == r.size()
}

func (r *ResponsePacket) Prefix() Prefix {
	if len(r.raw) < 2 {
		return 0
	}
	return Prefix(binary.BigEndian.Uint16(r.raw[0:2]))
}

func (r *ResponsePacket) Command() Command {
	if len(r.raw) < 4 {
		return 0
	}
	return Command(binary.LittleEndian.Uint16(r.raw[2:4]))
}

// Length is the declared length, i.e. the inverse of lengthCode.
func (r *ResponsePacket) Length() int {
	if len(r.raw) < headerSize {
		return 0
	}
	return int(binary.LittleEndian.Uint16(r.raw[4:6]))
}

// Payload returns the payload field.
func (r *ResponsePacket) Payload() []byte {
	if !r.Complete() {
		return nil
	}
	return append([]byte(nil), r.raw[headerSize:len(r.raw)-checksumSize]...)
}

func (r *ResponsePacket) payloadUint16(off int) uint16 {
	if !r.Complete() || r.payloadSize() < off+2 {
		return 0
	}
	return binary.LittleEndian.Uint16(r.raw[headerSize+off:])
}

func (r *ResponsePacket) ReturnCode() ReturnCode { return ReturnCode(r.payloadUint16(0)) }

// Data is the first data word following the return code.
func (r *ResponsePacket) Data() int { return int(r.payloadUint16(2)) }

// DataReturnCode interprets the low byte of Data as the detailed failure
// reason. The high byte carries an argument, e.g. the conflicting id of
// RetDuplicationID.
func (r *ResponsePacket) DataReturnCode() ReturnCode { return ReturnCode(r.Data() & 0xFF) }

// DataGD interprets Data as an enrollment GD code.
func (r *ResponsePacket) DataGD() GDCode { return GDCode(r.Data()) }

// DataTemplateStatus interprets Data as a template slot status.
func (r *ResponsePacket) DataTemplateStatus() TemplateStatus { return TemplateStatus(r.Data()) }

// DataBytes returns the payload after the return code, e.g. a device name.
func (r *ResponsePacket) DataBytes() []byte {
	p := r.Payload()
	if len(p) < 2 {
		return nil
	}
	return p[2:]
}

// ChecksumReceived is the checksum carried by the frame.
func (r *ResponsePacket) ChecksumReceived() uint16 {
	if !r.Complete() {
		return 0
	}
	return binary.LittleEndian.Uint16(r.raw[len(r.raw)-checksumSize:])
}

// ChecksumCalculated is the checksum recomputed over the received bytes.
func (r *ResponsePacket) ChecksumCalculated() uint16 {
	if !r.Complete() {
		return 0
	}
	return r.sum(r.raw[:len(r.raw)-checksumSize])
}

func (r *ResponsePacket) ChecksumValid() bool {
	return r.Complete() && r.ChecksumReceived() == r.ChecksumCalculated()
}

// Bytes returns the bytes received so far.
func (r *ResponsePacket) Bytes() []byte { return append([]byte(nil), r.raw...) }

func (r *ResponsePacket) String() string {
	return fmt.Sprintf("%v ret %v data %d (%v)", r.Command(), r.ReturnCode(), r.Data(), hexBytes(r.raw))
}
