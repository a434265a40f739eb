package protocol

import (
	"context"
	"errors"
	"io"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/RoanBrand/goBuffers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fake 2 way serial wire between a Reader and a test device.
// Reader -> device bytes go through a blocking buffer, device -> Reader
// bytes through a pipe so that Close unblocks the Reader's read.
type fakeTransport struct {
	tx     *goBuffers.BlockingReadWriter
	rx     *io.PipeReader
	device *io.PipeWriter
	closed atomic.Bool

	onWrite func() // runs before every write
}

func newFakeTransport() *fakeTransport {
	pr, pw := io.Pipe()
	return &fakeTransport{tx: goBuffers.NewBlockingReadWriter(), rx: pr, device: pw}
}

func (ft *fakeTransport) Read(p []byte) (int, error) {
	return ft.rx.Read(p)
}

func (ft *fakeTransport) Write(p []byte) (int, error) {
	if ft.onWrite != nil {
		ft.onWrite()
	}
	if ft.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	return ft.tx.Write(p)
}

func (ft *fakeTransport) Close() error {
	ft.closed.Store(true)
	return ft.rx.Close()
}

func (ft *fakeTransport) Flush() error {
	return nil
}

// fakeDevice reads the frames written by the Reader.
type fakeDevice struct {
	t      *testing.T
	ft     *fakeTransport
	frames chan *ResponsePacket
}

func newFakeDevice(t *testing.T, ft *fakeTransport) *fakeDevice {
	d := &fakeDevice{t: t, ft: ft, frames: make(chan *ResponsePacket, 16)}
	go d.rx()
	return d
}

func (d *fakeDevice) rx() {
	dec := NewDecoder(nil)
	buf := make([]byte, 1024)
	for {
		n, err := d.ft.tx.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		for _, f := range dec.Feed(buf[:n]) {
			d.frames <- f
		}
	}
}

// send writes raw bytes to the Reader.
func (d *fakeDevice) send(b []byte) {
	if _, err := d.ft.device.Write(b); err != nil {
		d.t.Errorf("device write: %v", err)
	}
}

func (d *fakeDevice) expect(cmd Command) *ResponsePacket {
	d.t.Helper()
	select {
	case f := <-d.frames:
		if f.Command() != cmd {
			d.t.Fatalf("want %v frame, got %v", cmd, f)
		}
		return f
	case <-time.After(time.Second):
		d.t.Fatalf("timed out waiting for %v frame", cmd)
		return nil
	}
}

func (d *fakeDevice) expectNothing() {
	d.t.Helper()
	select {
	case f := <-d.frames:
		d.t.Fatalf("want no frame, got %v", f)
	case <-time.After(100 * time.Millisecond):
	}
}

// answer replies to every frame with reply until the test ends.
func (d *fakeDevice) answer(reply func(cmd Command) []byte) {
	go func() {
		for f := range d.frames {
			if b := reply(f.Command()); b != nil {
				d.send(b)
			}
		}
	}()
}

func connectFake(t *testing.T, opts ...Option) (*Reader, *fakeDevice) {
	ft := newFakeTransport()
	dial := func(context.Context, string) (Transport, error) { return ft, nil }
	r := New("fake", append([]Option{WithDialer(dial)}, opts...)...)
	r.Connect(context.Background())
	require.True(t, r.Connected())
	t.Cleanup(r.Close)
	return r, newFakeDevice(t, ft)
}

func TestConnectEmitsStates(t *testing.T) {
	ft := newFakeTransport()
	r := New("fake", WithDialer(func(context.Context, string) (Transport, error) { return ft, nil }))

	var states []ConnectionStatus
	r.OnConnectionStateChanged(func(s ConnectionStatus) { states = append(states, s) })

	r.Connect(context.Background())
	assert.Equal(t, Connected, r.Status())
	r.Close()
	assert.Equal(t, Disconnected, r.Status())
	assert.False(t, r.Connected())

	assert.Equal(t, []ConnectionStatus{Connecting, Connected, Disconnected}, states)
}

func TestConnectFailure(t *testing.T) {
	dialErr := errors.New("no route")
	r := New("fake", WithDialer(func(context.Context, string) (Transport, error) { return nil, dialErr }))

	var states []ConnectionStatus
	r.OnConnectionStateChanged(func(s ConnectionStatus) { states = append(states, s) })

	r.Connect(context.Background())
	assert.False(t, r.Connected())
	assert.Equal(t, []ConnectionStatus{Connecting, Disconnected}, states)

	_, err := r.GetEmptyID()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSendWritesFrame(t *testing.T) {
	r, d := connectFake(t)

	var sent []*CommandPacket
	r.OnSend(func(p *CommandPacket) { sent = append(sent, p) })

	cmd, err := r.Enroll(5)
	require.NoError(t, err)
	assert.Equal(t, CmdEnroll, cmd)

	f := d.expect(CmdEnroll)
	assert.Equal(t, []byte{5, 0}, f.Payload()[:2])
	assert.True(t, f.ChecksumValid())
	require.Len(t, sent, 1)
	assert.Same(t, sent[0], r.LastSent())
}

func TestWriteTemplateData(t *testing.T) {
	r, d := connectFake(t)

	tmpl := make([]byte, TemplateSize)
	for i := range tmpl {
		tmpl[i] = byte(i)
	}
	_, err := r.WriteTemplateData(0x0102, tmpl)
	require.NoError(t, err)

	f := d.expect(CmdWriteTemplate)
	assert.Equal(t, PrefixCommandData, f.Prefix())
	assert.Equal(t, TemplateSize+2, f.Length())
	assert.Equal(t, []byte{0x02, 0x01}, f.Payload()[:2])
	assert.Equal(t, tmpl, f.Payload()[2:])

	_, err = r.WriteTemplateData(1, make([]byte, TemplateSize+1))
	assert.ErrorIs(t, err, ErrTemplateTooLarge)
	d.expectNothing()
}

func TestEnrollingGuard(t *testing.T) {
	r, d := connectFake(t)

	d.send(responseFrame(CmdEnroll, RetSuccess, uint16(GDNeedFirstSweep)))
	require.Eventually(t, r.Enrolling, time.Second, time.Millisecond)

	cmd, err := r.GetEmptyID()
	assert.Equal(t, CmdGetEmptyID, cmd)
	assert.ErrorIs(t, err, ErrEnrolling)
	d.expectNothing()

	cmd, err = r.FPCancel()
	require.NoError(t, err)
	assert.Equal(t, CmdFPCancel, cmd)
	d.expect(CmdFPCancel)

	d.send(responseFrame(CmdEnroll, RetFail, uint16(RetFPCancel)))
	require.Eventually(t, func() bool { return !r.Enrolling() }, time.Second, time.Millisecond)
	assert.Equal(t, EnrollCanceled, r.EnrollState())
	require.NotNil(t, r.LastSent().Response())

	_, err = r.GetEmptyID()
	require.NoError(t, err)
	d.expect(CmdGetEmptyID)
}

func TestKeepaliveIgnored(t *testing.T) {
	r, d := connectFake(t)

	var chunks atomic.Int32
	r.OnRawResponse(func([]byte) { chunks.Add(1) })
	ids := make(chan int, 1)
	r.OnIDAvailable(func(id int) { ids <- id })

	d.send([]byte{0})
	d.send(responseFrame(CmdGetEmptyID, RetSuccess, 8))

	select {
	case id := <-ids:
		assert.Equal(t, 8, id)
	case <-time.After(time.Second):
		t.Fatal("no response dispatched")
	}
	assert.Equal(t, int32(1), chunks.Load())
	assert.True(t, r.Present())
}

func TestEndOfStreamDisconnects(t *testing.T) {
	r, d := connectFake(t)

	states := make(chan ConnectionStatus, 4)
	r.OnConnectionStateChanged(func(s ConnectionStatus) { states <- s })

	d.ft.device.Close()

	select {
	case s := <-states:
		assert.Equal(t, Disconnected, s)
	case <-time.After(time.Second):
		t.Fatal("no Disconnected event")
	}
	assert.False(t, r.Connected())

	_, err := r.GetDeviceID()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestCloseWhileEnrollingCancels(t *testing.T) {
	r, d := connectFake(t)

	d.send(responseFrame(CmdEnroll, RetSuccess, uint16(GDNeedFirstSweep)))
	require.Eventually(t, r.Enrolling, time.Second, time.Millisecond)

	r.Close()

	d.expect(CmdFPCancel)
	assert.False(t, r.Enrolling())
	assert.Equal(t, EnrollCanceled, r.EnrollState())
	assert.Equal(t, Disconnected, r.Status())
}

func TestWriteErrorClosesConnection(t *testing.T) {
	r, d := connectFake(t)

	states := make(chan ConnectionStatus, 4)
	r.OnConnectionStateChanged(func(s ConnectionStatus) { states <- s })

	d.ft.closed.Store(true)
	_, err := r.GetDeviceName()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportBroken)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, Disposed, te.Kind)

	select {
	case s := <-states:
		assert.Equal(t, Disconnected, s)
	case <-time.After(time.Second):
		t.Fatal("no Disconnected event")
	}
}

func TestSyncMatchesResponse(t *testing.T) {
	r, d := connectFake(t)
	d.answer(func(cmd Command) []byte { return responseFrame(cmd, RetSuccess, 7) })

	s := NewSync(r)
	defer s.Close()

	resp, err := s.GetEmptyID(context.Background())
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, CmdGetEmptyID, resp.Command())
	assert.Equal(t, 7, resp.Data())

	resp, err = s.SetDuplicationCheck(context.Background(), true)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, CmdSetDuplicationCheck, resp.Command())
}

// brokenPort fails every read the way a serial port does when its USB
// adapter is unplugged.
type brokenPort struct {
	closed atomic.Bool
}

func (b *brokenPort) Read([]byte) (int, error) {
	return 0, &os.PathError{Op: "read", Path: "/dev/ttyUSB0", Err: syscall.EIO}
}

func (b *brokenPort) Write(p []byte) (int, error) { return len(p), nil }

func (b *brokenPort) Close() error {
	b.closed.Store(true)
	return nil
}

func TestSerialIOErrorDisconnects(t *testing.T) {
	port := &brokenPort{}
	r := New("serial", WithDialer(func(context.Context, string) (Transport, error) { return port, nil }))

	states := make(chan ConnectionStatus, 4)
	r.OnConnectionStateChanged(func(s ConnectionStatus) { states <- s })

	r.Connect(context.Background())
	defer r.Close()

	timeout := time.After(time.Second)
	for disconnected := false; !disconnected; {
		select {
		case s := <-states:
			disconnected = s == Disconnected
		case <-timeout:
			t.Fatal("no Disconnected event after EIO")
		}
	}
	require.Eventually(t, func() bool { return r.Status() == Disconnected }, time.Second, time.Millisecond)
	assert.False(t, r.Connected())
	assert.True(t, port.closed.Load())

	_, err := r.GetDeviceName()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestTransportErrorKinds(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want TransportErrorKind
	}{
		{"eof", io.EOF, EndOfStream},
		{"closed pipe", io.ErrClosedPipe, Disposed},
		{"closed file", &os.PathError{Op: "read", Path: "COM3", Err: os.ErrClosed}, Disposed},
		{"serial eio", &os.PathError{Op: "read", Path: "/dev/ttyUSB0", Err: syscall.EIO}, IO},
		{"syscall", os.NewSyscallError("write", syscall.EBADF), IO},
		{"reset", syscall.ECONNRESET, IO},
		{"short write", io.ErrShortWrite, InvalidOperation},
		{"other", errors.New("boom"), Unexpected},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			te := classifyTransportError("read", tc.err)
			assert.Equal(t, tc.want, te.Kind)
			assert.Equal(t, tc.want != Unexpected, te.broken())
			assert.ErrorIs(t, te, tc.err)
		})
	}
}

func TestSendRacingClose(t *testing.T) {
	r, d := connectFake(t)

	// Close wins between Send picking the transport and writing to it.
	d.ft.onWrite = func() {
		d.ft.onWrite = nil
		r.Close()
	}

	cmd, err := r.GetFWVersion()
	assert.Equal(t, CmdGetFWVersion, cmd)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, Disconnected, r.Status())
}

func TestDefaultTimeouts(t *testing.T) {
	r := New("x")
	assert.Equal(t, 5*time.Second, r.cfg.responseTimeout)
	assert.Equal(t, 5*time.Second, r.cfg.probeTimeout)
	assert.Equal(t, time.Second, r.cfg.probeGrace)
	assert.Equal(t, DefaultPort, r.Port)
	assert.Equal(t, 5*time.Second, NewSync(r).timeout)

	r = New("x", WithResponseTimeout(0), WithProbeTimeout(-time.Second))
	assert.Equal(t, 5*time.Second, r.cfg.responseTimeout)
	assert.Equal(t, 5*time.Second, r.cfg.probeTimeout)
}

func TestSyncTimeout(t *testing.T) {
	r, d := connectFake(t, WithResponseTimeout(50*time.Millisecond))

	start := time.Now()
	resp, err := r.Sync().GetDeviceID(context.Background())
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	d.expect(CmdGetDeviceID)
}

func TestSyncIgnoresOtherResponses(t *testing.T) {
	r, d := connectFake(t, WithResponseTimeout(100*time.Millisecond))
	d.answer(func(Command) []byte { return responseFrame(CmdGetFWVersion, RetSuccess, 1) })

	resp, err := r.Sync().GetDeviceID(context.Background())
	require.NoError(t, err)
	assert.Nil(t, resp)
}

func TestSyncCancelsEnrollmentFirst(t *testing.T) {
	r, d := connectFake(t)

	d.send(responseFrame(CmdEnroll, RetSuccess, uint16(GDNeedFirstSweep)))
	require.Eventually(t, r.Enrolling, time.Second, time.Millisecond)

	var order []Command
	d.answer(func(cmd Command) []byte {
		order = append(order, cmd)
		if cmd == CmdFPCancel {
			return responseFrame(CmdEnroll, RetFail, uint16(RetFPCancel))
		}
		return responseFrame(cmd, RetSuccess, 3)
	})

	resp, err := r.Sync().GetEmptyID(context.Background())
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 3, resp.Data())
	assert.Equal(t, []Command{CmdFPCancel, CmdGetEmptyID}, order)
	assert.False(t, r.Enrolling())
}

func TestSyncContextCancel(t *testing.T) {
	r, _ := connectFake(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	resp, err := r.Sync().GetFWVersion(ctx)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSyncUnimplemented(t *testing.T) {
	r, d := connectFake(t)
	s := r.Sync()
	ctx := context.Background()

	_, err := s.GetEnrollData(ctx)
	assert.ErrorIs(t, err, ErrUnimplemented)
	_, err = s.ReadTemplate(ctx, 1)
	assert.ErrorIs(t, err, ErrUnimplemented)
	_, err = s.FPCancel(ctx)
	assert.ErrorIs(t, err, ErrUnimplemented)
	d.expectNothing()
}

func TestSyncNotConnected(t *testing.T) {
	r := New("fake")
	resp, err := r.Sync().TestConnection(context.Background())
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrNotConnected)
}
