package protocol

import (
	"context"
	"sync"
	"time"
)

// Sync turns the Reader's asynchronous responses into blocking calls.
//
// Each call sends one command and waits for the response with the same
// command code (an FPCancel also accepts an enroll-family response). When
// nothing arrives within the response timeout the call returns nil and no
// error. One call is outstanding at a time.
type Sync struct {
	r       *Reader
	timeout time.Duration

	call sync.Mutex // serializes calls

	mu      sync.Mutex
	waitFor Command
	waiting bool
	resp    *ResponsePacket
	got     chan struct{}

	unsubscribe func()
}

// NewSync attaches a Sync to r. Close detaches it.
func NewSync(r *Reader) *Sync {
	s := &Sync{r: r, timeout: r.cfg.responseTimeout}
	s.unsubscribe = r.OnResponse(s.onResponse)
	return s
}

// Close stops watching the Reader's responses.
func (s *Sync) Close() error {
	s.unsubscribe()
	return nil
}

func (s *Sync) onResponse(resp *ResponsePacket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.waiting || !s.waitFor.matches(resp.Command()) {
		return
	}
	s.resp = resp
	s.waiting = false
	close(s.got)
}

// beforeSend clears the previous response and, while enrolling, cancels the
// enrollment so the next command is not dropped by Send.
func (s *Sync) beforeSend(ctx context.Context, cmd Command) error {
	s.mu.Lock()
	s.resp = nil
	s.mu.Unlock()

	if !s.r.Enrolling() {
		return nil
	}
	s.r.log.Printf("SM25 %s < Sending %v while enrolling. Was sent FPCancel before.", s.r.Host, cmd)
	resp, err := s.exchange(ctx, s.r.NewPacket(CmdFPCancel, nil))
	if err != nil {
		return err
	}
	if resp == nil {
		s.r.log.Printf("SM25 %s < No answer to FPCancel", s.r.Host)
		return nil
	}
	return s.waitEnrollEnd(ctx)
}

// waitEnrollEnd waits for the dispatcher to leave the enrolling state. The
// response event fires before the enrollment handler runs.
func (s *Sync) waitEnrollEnd(ctx context.Context) error {
	deadline := time.Now().Add(s.timeout)
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for s.r.Enrolling() && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}

// exchange sends p and waits for its response.
func (s *Sync) exchange(ctx context.Context, p *CommandPacket) (*ResponsePacket, error) {
	got := make(chan struct{})
	s.mu.Lock()
	s.waitFor = p.Command()
	s.waiting = true
	s.resp = nil
	s.got = got
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.waiting = false
		s.mu.Unlock()
	}()

	if _, err := s.r.Send(p); err != nil {
		return nil, err
	}

	start := time.Now()
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case <-got:
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.r.log.Printf("SM25 %s < Process response total seconds %.3f", s.r.Host, time.Since(start).Seconds())

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resp, nil
}

func (s *Sync) do(ctx context.Context, p *CommandPacket) (*ResponsePacket, error) {
	s.call.Lock()
	defer s.call.Unlock()

	if err := s.beforeSend(ctx, p.Command()); err != nil {
		return nil, err
	}
	return s.exchange(ctx, p)
}

func (s *Sync) GetDeviceName(ctx context.Context) (*ResponsePacket, error) {
	return s.do(ctx, s.r.NewPacket(CmdGetDeviceName, nil))
}

func (s *Sync) GetFWVersion(ctx context.Context) (*ResponsePacket, error) {
	return s.do(ctx, s.r.NewPacket(CmdGetFWVersion, nil))
}

func (s *Sync) GetDeviceID(ctx context.Context) (*ResponsePacket, error) {
	return s.do(ctx, s.r.NewPacket(CmdGetDeviceID, nil))
}

func (s *Sync) GetEmptyID(ctx context.Context) (*ResponsePacket, error) {
	return s.do(ctx, s.r.NewPacket(CmdGetEmptyID, nil))
}

// Enroll returns the first enroll response, normally the request for the
// first sweep. Follow the rest of the enrollment with the Reader's events.
func (s *Sync) Enroll(ctx context.Context, id uint16) (*ResponsePacket, error) {
	return s.do(ctx, s.r.newIntPacket(CmdEnroll, int(id)))
}

func (s *Sync) EnrollAndStoreInRAM(ctx context.Context) (*ResponsePacket, error) {
	return s.do(ctx, s.r.NewPacket(CmdEnrollAndStoreInRAM, nil))
}

// GetEnrollData answers with a data packet stream that has no single
// response.
func (s *Sync) GetEnrollData(ctx context.Context) (*ResponsePacket, error) {
	return nil, ErrUnimplemented
}

func (s *Sync) GetEnrollCount(ctx context.Context) (*ResponsePacket, error) {
	return s.do(ctx, s.r.NewPacket(CmdGetEnrollCount, nil))
}

func (s *Sync) ClearTemplate(ctx context.Context, id uint16) (*ResponsePacket, error) {
	return s.do(ctx, s.r.newIntPacket(CmdClearTemplate, int(id)))
}

func (s *Sync) GetTemplateStatus(ctx context.Context, id uint16) (*ResponsePacket, error) {
	return s.do(ctx, s.r.newIntPacket(CmdGetTemplateStatus, int(id)))
}

func (s *Sync) ClearAllTemplate(ctx context.Context) (*ResponsePacket, error) {
	return s.do(ctx, s.r.NewPacket(CmdClearAllTemplate, nil))
}

func (s *Sync) SetDeviceID(ctx context.Context, id uint16) (*ResponsePacket, error) {
	return s.do(ctx, s.r.newIntPacket(CmdSetDeviceID, int(id)))
}

func (s *Sync) SetFingerTimeOut(ctx context.Context, t uint16) (*ResponsePacket, error) {
	return s.do(ctx, s.r.newIntPacket(CmdSetFingerTimeOut, int(t)))
}

func (s *Sync) GetFingerTimeOut(ctx context.Context) (*ResponsePacket, error) {
	return s.do(ctx, s.r.NewPacket(CmdGetFingerTimeOut, nil))
}

// FPCancel has no synchronous form: the cancel is answered by the operation
// it interrupts. Use Reader.FPCancel.
func (s *Sync) FPCancel(ctx context.Context) (*ResponsePacket, error) {
	return nil, ErrUnimplemented
}

func (s *Sync) GetDuplicationCheck(ctx context.Context) (*ResponsePacket, error) {
	return s.do(ctx, s.r.NewPacket(CmdGetDuplicationCheck, nil))
}

func (s *Sync) SetDuplicationCheck(ctx context.Context, check bool) (*ResponsePacket, error) {
	v := 0
	if check {
		v = 1
	}
	return s.do(ctx, s.r.newIntPacket(CmdSetDuplicationCheck, v))
}

func (s *Sync) GetSecurityLevel(ctx context.Context) (*ResponsePacket, error) {
	return s.do(ctx, s.r.NewPacket(CmdGetSecurityLevel, nil))
}

func (s *Sync) SetSecurityLevel(ctx context.Context, level uint16) (*ResponsePacket, error) {
	return s.do(ctx, s.r.newIntPacket(CmdSetSecurityLevel, int(level)))
}

// ReadTemplate answers with a response followed by a data packet.
func (s *Sync) ReadTemplate(ctx context.Context, id uint16) (*ResponsePacket, error) {
	return nil, ErrUnimplemented
}

func (s *Sync) WriteTemplate(ctx context.Context) (*ResponsePacket, error) {
	return s.do(ctx, s.r.newIntPacket(CmdWriteTemplate, TemplateSize))
}

func (s *Sync) WriteTemplateData(ctx context.Context, id uint16, template []byte) (*ResponsePacket, error) {
	p, err := s.r.templateDataPacket(id, template)
	if err != nil {
		return nil, err
	}
	return s.do(ctx, p)
}

func (s *Sync) TestConnection(ctx context.Context) (*ResponsePacket, error) {
	return s.do(ctx, s.r.NewPacket(CmdTestConnection, nil))
}
