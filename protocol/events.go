package protocol

import "sync"

// handlers is a subscriber list. Emit works on a snapshot, so handlers may
// subscribe or unsubscribe while an event is being delivered.
type handlers[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   []subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

func (h *handlers[T]) add(fn func(T)) (remove func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	subs := make([]subscriber[T], len(h.subs), len(h.subs)+1)
	copy(subs, h.subs)
	h.subs = append(subs, subscriber[T]{id, fn})

	var once sync.Once
	return func() { once.Do(func() { h.remove(id) }) }
}

func (h *handlers[T]) remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := make([]subscriber[T], 0, len(h.subs))
	for _, s := range h.subs {
		if s.id != id {
			subs = append(subs, s)
		}
	}
	h.subs = subs
}

func (h *handlers[T]) emit(v T) {
	h.mu.Lock()
	subs := h.subs
	h.mu.Unlock()
	for _, s := range subs {
		s.fn(v)
	}
}

// EnrollStatus is the detailed outcome of one enroll response.
type EnrollStatus struct {
	Ret            ReturnCode
	GD             GDCode
	DataReturnCode ReturnCode
	State          EnrollState
	// Data is the enrolled template id on success or the conflicting id on
	// DuplicationID. HasData is false otherwise.
	Data    int
	HasData bool
}

// Enroll progress values passed to OnEnroll handlers besides the sweep
// number.
const (
	EnrollProgressComplete = 4
	EnrollProgressCanceled = -1
)

type events struct {
	connectionState handlers[ConnectionStatus]
	send            handlers[*CommandPacket]
	rawResponse     handlers[[]byte]
	response        handlers[*ResponsePacket]
	status          handlers[string]
	idAvailable     handlers[int]
	enroll          handlers[int]
	enrollStatus    handlers[EnrollStatus]
	enrollTimeout   handlers[struct{}]
	generalizeFail  handlers[struct{}]
}

// Every On* method registers fn and returns a function that removes it.
// Handlers attached to response events run on the receive goroutine.

func (r *Reader) OnConnectionStateChanged(fn func(ConnectionStatus)) func() {
	return r.ev.connectionState.add(fn)
}

// OnSend is called after a frame was written to the transport.
func (r *Reader) OnSend(fn func(*CommandPacket)) func() { return r.ev.send.add(fn) }

// OnRawResponse receives every chunk read from the transport, keepalives
// excluded.
func (r *Reader) OnRawResponse(fn func([]byte)) func() { return r.ev.rawResponse.add(fn) }

// OnResponse receives every complete frame before it is validated.
func (r *Reader) OnResponse(fn func(*ResponsePacket)) func() { return r.ev.response.add(fn) }

func (r *Reader) OnStatus(fn func(string)) func() { return r.ev.status.add(fn) }

func (r *Reader) OnIDAvailable(fn func(int)) func() { return r.ev.idAvailable.add(fn) }

// OnEnroll receives the sweep number (1-3), EnrollProgressComplete or
// EnrollProgressCanceled.
func (r *Reader) OnEnroll(fn func(int)) func() { return r.ev.enroll.add(fn) }

func (r *Reader) OnEnrollStatus(fn func(EnrollStatus)) func() { return r.ev.enrollStatus.add(fn) }

func (r *Reader) OnEnrollTimeout(fn func()) func() {
	return r.ev.enrollTimeout.add(func(struct{}) { fn() })
}

func (r *Reader) OnGeneralizationFail(fn func()) func() {
	return r.ev.generalizeFail.add(func(struct{}) { fn() })
}
