package protocol

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type config struct {
	port            int
	log             Logger
	dial            DialFunc
	checksum        ChecksumFunc
	readBufferSize  int
	responseTimeout time.Duration
	probeTimeout    time.Duration
	probeGrace      time.Duration
}

func defaultConfig() config {
	return config{
		port:            DefaultPort,
		log:             nullLogger,
		dial:            DialTCP,
		checksum:        Checksum,
		readBufferSize:  1024,
		responseTimeout: 5 * time.Second,
		probeTimeout:    5 * time.Second,
		probeGrace:      time.Second,
	}
}

// Option configures a Reader.
type Option func(*config)

// WithPort sets the TCP port. Default is DefaultPort.
func WithPort(port int) Option {
	return func(c *config) { c.port = port }
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(l Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// WithDialer replaces DialTCP, e.g. with a serial port dialer.
func WithDialer(d DialFunc) Option {
	return func(c *config) {
		if d != nil {
			c.dial = d
		}
	}
}

// WithChecksum replaces the frame checksum for both directions.
func WithChecksum(sum ChecksumFunc) Option {
	return func(c *config) {
		if sum != nil {
			c.checksum = sum
		}
	}
}

// WithReadBufferSize sets the receive buffer size. Values below 1024 are
// ignored.
func WithReadBufferSize(n int) Option {
	return func(c *config) {
		if n >= 1024 {
			c.readBufferSize = n
		}
	}
}

// WithResponseTimeout sets how long Sync waits for a response. Default 5s.
func WithResponseTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.responseTimeout = d
		}
	}
}

// WithProbeTimeout sets how long Probe waits for the connect. Default 5s.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

// WithProbeGrace sets how long a successful probe connection stays open.
// Default 1s.
func WithProbeGrace(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.probeGrace = d
		}
	}
}

// Reader is a connection to one SM25 fingerprint reader.
//
// Commands are sent with Send or the command helpers; responses arrive
// asynchronously on the receive goroutine and are reported through the On*
// events. Use Sync for request/response calls.
type Reader struct {
	Host string
	Port int

	cfg config
	log Logger
	ev  events
	dec *Decoder

	mu      sync.Mutex // guards conn, status, cancel, done
	conn    Transport
	status  ConnectionStatus
	cancel  context.CancelFunc
	done    chan struct{}
	writeMu sync.Mutex

	pending   atomic.Pointer[CommandPacket]
	busy      atomic.Bool
	enrolling atomic.Bool
	present   atomic.Bool
	enrollSt  atomic.Int32

	syncOnce sync.Once
	syncer   *Sync
}

// New returns a disconnected Reader for host.
func New(host string, opts ...Option) *Reader {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	r := &Reader{
		Host: host,
		Port: cfg.port,
		cfg:  cfg,
		log:  cfg.log,
		dec:  NewDecoder(cfg.checksum),
	}
	r.OnSend(func(p *CommandPacket) {
		r.log.Printf("SM25 %s > %v", r.Host, p)
	})
	return r
}

// NewPacket builds a command frame using the Reader's checksum.
func (r *Reader) NewPacket(cmd Command, param []byte) *CommandPacket {
	return newCommandPacket(cmd, param, r.cfg.checksum)
}

func (r *Reader) newIntPacket(cmd Command, v int) *CommandPacket {
	return newCommandPacket(cmd, intParam(v), r.cfg.checksum)
}

// Addr is the address handed to the dialer.
func (r *Reader) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

func (r *Reader) Status() ConnectionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Reader) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status == Connected && r.conn != nil
}

// Enrolling reports whether the reader is in the middle of an enrollment.
// Only FPCancel is sent while it is.
func (r *Reader) Enrolling() bool { return r.enrolling.Load() }

func (r *Reader) EnrollState() EnrollState { return EnrollState(r.enrollSt.Load()) }

func (r *Reader) setEnrollState(s EnrollState) { r.enrollSt.Store(int32(s)) }

func (r *Reader) Busy() bool { return r.busy.Load() }

func (r *Reader) SetBusy(b bool) { r.busy.Store(b) }

// Present reports whether the reader has sent anything since New.
func (r *Reader) Present() bool { return r.present.Load() }

// LastSent returns the pending request, the most recently sent frame.
func (r *Reader) LastSent() *CommandPacket { return r.pending.Load() }

// Sync returns the reader's synchronous adapter.
func (r *Reader) Sync() *Sync {
	r.syncOnce.Do(func() { r.syncer = NewSync(r) })
	return r.syncer
}

func (r *Reader) setStatus(s ConnectionStatus) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// Connect opens the transport and starts receiving. Failures are not
// returned: they are logged, the state event reports Disconnected and
// Connected stays false.
func (r *Reader) Connect(ctx context.Context) {
	r.mu.Lock()
	if r.conn != nil {
		r.mu.Unlock()
		return
	}
	r.status = Connecting
	r.mu.Unlock()
	r.ev.connectionState.emit(Connecting)

	r.log.Printf("Connecting to SM25 %s reader", r.Addr())
	conn, err := r.cfg.dial(ctx, r.Addr())
	if err != nil {
		r.log.Printf("Error connecting to SM25 %s reader: %v", r.Addr(), err)
		r.setStatus(Disconnected)
		r.ev.connectionState.emit(Disconnected)
		return
	}

	rxCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.mu.Lock()
	r.conn = conn
	r.cancel = cancel
	r.done = done
	r.status = Connected
	r.mu.Unlock()
	r.dec.Reset()

	go r.receive(rxCtx, conn, done)

	r.log.Printf("SM25 %s reader connected", r.Addr())
	r.ev.connectionState.emit(Connected)
}

// Close cancels a running enrollment, stops the receive goroutine and
// closes the transport. Closing a closed Reader only emits the event.
//
// Close waits for the receive goroutine, so event handlers must not call it
// synchronously.
func (r *Reader) Close() {
	r.close(false)
}

func (r *Reader) close(fromReceive bool) {
	if r.Enrolling() {
		if _, err := r.Send(r.NewPacket(CmdFPCancel, nil)); err != nil {
			r.log.Printf("SM25 %s cancel before close: %v", r.Host, err)
		}
	}

	r.mu.Lock()
	conn, cancel, done := r.conn, r.cancel, r.done
	r.conn, r.cancel, r.done = nil, nil, nil
	if conn != nil {
		r.status = Closing
	}
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		r.log.Printf("Closing SM25 %s reader", r.Host)
		conn.Close()
		if done != nil && !fromReceive {
			<-done
		}
		r.log.Printf("Closed SM25 %s", r.Host)
	}

	r.enrolling.Store(false)
	if st := r.EnrollState(); st != EnrollIdle && !st.Terminal() {
		r.setEnrollState(EnrollCanceled)
	}
	r.setStatus(Disconnected)
	r.ev.connectionState.emit(Disconnected)
}

// Send writes p to the reader and makes it the pending request.
//
// While enrolling every command but FPCancel is dropped: the command is
// returned together with ErrEnrolling and nothing is written.
func (r *Reader) Send(p *CommandPacket) (Command, error) {
	if r.Enrolling() && p.Command() != CmdFPCancel {
		r.log.Printf("Command %v ignored. Expected to finish enroll or FPCancel command.", p.Command())
		return p.Command(), ErrEnrolling
	}

	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return p.Command(), ErrNotConnected
	}

	ser := p.Bytes()
	r.pending.Store(p)

	r.writeMu.Lock()
	nTx, err := conn.Write(ser)
	r.writeMu.Unlock()
	if err != nil {
		if r.closedSince(conn) {
			// Lost the race against Close.
			return p.Command(), ErrNotConnected
		}
		te := classifyTransportError("write", err)
		r.log.Printf("Error writing %v to SM25 %s: %v", p.Command(), r.Host, te)
		if te.broken() {
			// The receive goroutine sees the closed transport and closes
			// the Reader.
			conn.Close()
		}
		return p.Command(), te
	}
	if nTx != len(ser) {
		r.log.Printf("TX mismatch. Want to send %v bytes. Sent: %v bytes.", len(ser), nTx)
	}

	r.ev.send.emit(p)
	return p.Command(), nil
}

// closedSince reports whether conn is no longer the Reader's transport.
func (r *Reader) closedSince(conn Transport) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn != conn
}

func (r *Reader) receive(ctx context.Context, conn Transport, done chan struct{}) {
	defer close(done)

	err := rxTransport(ctx, conn, r.cfg.readBufferSize, r.onRaw)
	if ctx.Err() != nil {
		r.log.Printf("SM25 %s receive cancelled", r.Host)
		return
	}

	te := classifyTransportError("read", err)
	if !te.broken() {
		r.log.Printf("SM25 %s receive stopped: %v", r.Host, te)
		return
	}
	r.log.Printf("Connection closed. Receive response finished. (%v)", te)
	if !r.closedSince(conn) {
		r.close(true)
	}
}

func (r *Reader) onRaw(chunk []byte) {
	r.present.Store(true)
	r.ev.rawResponse.emit(chunk)
	if err := r.ProcessResponse(chunk); err != nil {
		r.log.Printf("SM25 %s ProcessResponse: %v", r.Host, err)
	}
}

// Probe checks that the reader accepts TCP connections without touching the
// main connection. The probe connection is closed after a grace delay.
func (r *Reader) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.probeTimeout)
	defer cancel()

	conn, err := r.cfg.dial(ctx, r.Addr())
	r.log.Printf("SM25 %s Connection Test %v", r.Host, err == nil)
	if err != nil {
		r.log.Printf("SM25 %s Probe Error %v", r.Host, err)
		r.ev.connectionState.emit(Disconnected)
		return false
	}
	r.ev.connectionState.emit(Connected)

	go func() {
		time.Sleep(r.cfg.probeGrace)
		conn.Close()
		r.log.Printf("SM25 %s Connection Test Closed", r.Host)
	}()
	return true
}
