package remote

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// ProgressListener receives transfer progress: the bytes moved since the last
// call, the running total, the expected total (-1 when unknown), and the name
// of the file being transferred.
type ProgressListener interface {
	OnTransferProgress(delta, transferred, total int64, fileName string)
}

// ProgressFunc adapts a function to ProgressListener.
type ProgressFunc func(delta, transferred, total int64, fileName string)

func (f ProgressFunc) OnTransferProgress(delta, transferred, total int64, fileName string) {
	f(delta, transferred, total, fileName)
}

// ListenerID identifies a registered listener.
type ListenerID uint64

// transferState is the cancellation flag and listener registry shared by
// transfer operations. Listeners may be added or removed from any goroutine
// while a transfer runs; once RemoveProgressListener returns the listener gets
// no further calls. A listener may call Cancel from its callback but must not
// register or unregister listeners there.
type transferState struct {
	cancelled atomic.Bool

	cancelMu sync.Mutex
	cancelFn context.CancelFunc

	mu        sync.Mutex
	nextID    ListenerID
	listeners map[ListenerID]ProgressListener
}

// Cancel stops the transfer. Safe to call from any goroutine, before or
// during Run. The chunk in flight completes first.
func (s *transferState) Cancel() {
	s.cancelled.Store(true)

	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()

	if s.cancelFn != nil {
		s.cancelFn()
	}
}

// IsCancelled reports whether Cancel was called.
func (s *transferState) IsCancelled() bool {
	return s.cancelled.Load()
}

// AddProgressListener registers l and returns its id.
func (s *transferState) AddProgressListener(l ProgressListener) ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listeners == nil {
		s.listeners = make(map[ListenerID]ProgressListener)
	}

	s.nextID++
	s.listeners[s.nextID] = l

	return s.nextID
}

// RemoveProgressListener unregisters a listener. Unknown ids are ignored.
func (s *transferState) RemoveProgressListener(id ListenerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.listeners, id)
}

func (s *transferState) notify(delta, transferred, total int64, fileName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range s.listeners {
		l.OnTransferProgress(delta, transferred, total, fileName)
	}
}

// bind derives a context that Cancel aborts. The returned release must be
// called when the transfer ends.
func (s *transferState) bind(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	s.cancelMu.Lock()
	s.cancelFn = cancel
	s.cancelMu.Unlock()

	if s.IsCancelled() {
		cancel()
	}

	return ctx, func() {
		s.cancelMu.Lock()
		s.cancelFn = nil
		s.cancelMu.Unlock()

		cancel()
	}
}

// progressReader reports bytes as the HTTP layer consumes a request body and
// fails the read once the transfer is cancelled.
type progressReader struct {
	r           io.Reader
	state       *transferState
	name        string
	total       int64
	transferred int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	if p.state.IsCancelled() {
		return 0, ErrCancelled
	}

	n, err := p.r.Read(b)
	if n > 0 {
		p.transferred += int64(n)
		p.state.notify(int64(n), p.transferred, p.total, p.name)
	}

	return n, err
}
