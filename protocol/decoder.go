package protocol

import "sync"

// Decoder reassembles response frames from a byte stream. It holds at most
// one partially received frame between calls to Feed.
type Decoder struct {
	mu      sync.Mutex
	sum     ChecksumFunc
	pending *ResponsePacket
}

// NewDecoder returns a Decoder validating frames with sum.
func NewDecoder(sum ChecksumFunc) *Decoder {
	if sum == nil {
		sum = Checksum
	}
	return &Decoder{sum: sum}
}

// Feed consumes b and returns the frames it completed, in stream order.
// Leftover bytes of an incomplete frame are kept for the next call.
func (d *Decoder) Feed(b []byte) []*ResponsePacket {
	d.mu.Lock()
	defer d.mu.Unlock()

	var done []*ResponsePacket
	for len(b) > 0 {
		if d.pending == nil {
			d.pending = newResponsePacket(d.sum)
		}
		b = d.pending.Add(b)
		if !d.pending.Complete() {
			continue
		}
		done = append(done, d.pending)
		d.pending = nil
	}
	return done
}

// Buffered returns the number of bytes held for an incomplete frame.
func (d *Decoder) Buffered() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return 0
	}
	return len(d.pending.raw)
}

// Reset drops any partially received frame.
func (d *Decoder) Reset() {
	d.mu.Lock()
	d.pending = nil
	d.mu.Unlock()
}
