package protocol

// ChecksumFunc computes the 16 bit frame checksum over every frame byte
// except the trailing checksum itself.
type ChecksumFunc func(b []byte) uint16

// Checksum is the reader's checksum: the byte sum truncated to 16 bits.
func Checksum(b []byte) uint16 {
	var sum uint16
	for _, v := range b {
		sum += uint16(v)
	}
	return sum
}
