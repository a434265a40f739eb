package protocol

import (
	"bytes"
	"testing"
)

func TestCommandPacketBytes(t *testing.T) {
	testCases := []struct {
		name string
		p    *CommandPacket
		want []byte
	}{
		{
			"no param", NewCommandPacket(CmdTestConnection, nil),
			append(append([]byte{0x55, 0xAA, 0x50, 0x01, 0x00, 0x00}, make([]byte, 16)...), 0x50, 0x01),
		},
		{
			"int param", NewCommandPacketInt(CmdEnroll, 5),
			append(append([]byte{0x55, 0xAA, 0x03, 0x01, 0x02, 0x00, 0x05}, make([]byte, 15)...), 0x0A, 0x01),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.p.Bytes(); !bytes.Equal(got, tc.want) {
				t.Errorf("want %v, got %v", hexBytes(tc.want), hexBytes(got))
			}
		})
	}
}

func TestLengthCode(t *testing.T) {
	testCases := []struct {
		n    int
		want uint16
	}{
		{0, 0x0000},
		{1, 0x0100},
		{2, 0x0200},
		{16, 0x1000},
		{17, 0x1100},
		{255, 0xFF00},
		{256, 0x0001},
		{500, 0xF401},
	}

	for _, tc := range testCases {
		if got := lengthCode(tc.n); got != tc.want {
			t.Errorf("lengthCode(%d): want 0x%04X, got 0x%04X", tc.n, tc.want, got)
		}
	}
}

func TestIntParamTruncates(t *testing.T) {
	p := NewCommandPacketInt(CmdSetDeviceID, 0x12345)
	if p.Length() != 2 {
		t.Fatalf("want length 2, got %d", p.Length())
	}
	if got := p.Param()[:3]; !bytes.Equal(got, []byte{0x45, 0x23, 0x00}) {
		t.Errorf("want 45 23 00, got %v", hexBytes(got))
	}
}

// Encoding a command and decoding it with the response decoder must give
// back the same fields: both directions share the frame layout.
func TestCommandPacketRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 15, 16, 17, 500} {
		param := make([]byte, n)
		for i := range param {
			param[i] = byte(i + 1)
		}
		p := NewCommandPacket(CmdWriteTemplate, param)

		wantPrefix := PrefixCommand
		wantParam := n
		if n > paramSize {
			wantPrefix = PrefixCommandData
		} else {
			wantParam = paramSize
		}
		if p.Prefix() != wantPrefix {
			t.Errorf("n=%d: want prefix %v, got %v", n, wantPrefix, p.Prefix())
		}
		if got := len(p.Bytes()); got != headerSize+wantParam+checksumSize {
			t.Errorf("n=%d: want %d bytes, got %d", n, headerSize+wantParam+checksumSize, got)
		}

		frames := NewDecoder(nil).Feed(p.Bytes())
		if len(frames) != 1 {
			t.Fatalf("n=%d: want 1 frame, got %d", n, len(frames))
		}
		f := frames[0]
		if f.Prefix() != wantPrefix || f.Command() != CmdWriteTemplate {
			t.Errorf("n=%d: got %v %v", n, f.Prefix(), f.Command())
		}
		if f.Length() != n {
			t.Errorf("n=%d: declared length %d", n, f.Length())
		}
		if !bytes.Equal(f.Payload(), p.Param()) {
			t.Errorf("n=%d: payload mismatch", n)
		}
		if !bytes.Equal(f.Payload()[:n], param) {
			t.Errorf("n=%d: parameter bytes not preserved", n)
		}
		if !f.ChecksumValid() || f.ChecksumReceived() != p.Checksum() {
			t.Errorf("n=%d: checksum received 0x%04X, packet 0x%04X", n, f.ChecksumReceived(), p.Checksum())
		}
	}
}

func TestCustomChecksum(t *testing.T) {
	xor := func(b []byte) uint16 {
		var x uint16
		for _, v := range b {
			x ^= uint16(v)
		}
		return x
	}
	p := newCommandPacket(CmdGetDeviceID, nil, xor)
	if frames := NewDecoder(nil).Feed(p.Bytes()); frames[0].ChecksumValid() {
		t.Error("byte sum decoder accepted xor checksum")
	}
	if frames := NewDecoder(xor).Feed(p.Bytes()); !frames[0].ChecksumValid() {
		t.Error("xor decoder rejected xor checksum")
	}
}
