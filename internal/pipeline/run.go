package pipeline

import (
	"sync"

	"github.com/joseph-ayodele/receipts-extractor/internal/entity"
)

// Run is a document being processed on its own goroutine. The caller
// talks to it only through Progress and Wait.
type Run struct {
	fileID string
	buffer int
	done   chan struct{}
	res    *entity.ProcessedDocumentResult
	err    error

	mu     sync.Mutex
	events []entity.ProcessingProgress
	closed bool
	wake   chan struct{}

	once sync.Once
	out  chan entity.ProcessingProgress
}

func newRun(fileID string, buffer int) *Run {
	return &Run{
		fileID: fileID,
		buffer: buffer,
		done:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
	}
}

func (r *Run) FileID() string { return r.fileID }

// Done is closed once the run reached a terminal stage.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run finishes and returns its outcome.
func (r *Run) Wait() (*entity.ProcessedDocumentResult, error) {
	<-r.done
	return r.res, r.err
}

// Progress streams every event of the run in order and is closed after the
// terminal event. Events are queued on the run, so a slow reader never
// stalls processing, and a caller that only calls Wait leaks nothing.
func (r *Run) Progress() <-chan entity.ProcessingProgress {
	r.once.Do(func() {
		r.out = make(chan entity.ProcessingProgress, r.buffer)
		go r.relay()
	})
	return r.out
}

// Events returns the events published so far.
func (r *Run) Events() []entity.ProcessingProgress {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.ProcessingProgress, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Run) push(ev entity.ProcessingProgress) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	r.signal()
}

func (r *Run) finish(res *entity.ProcessedDocumentResult, err error) {
	r.mu.Lock()
	r.res, r.err = res, err
	r.closed = true
	r.mu.Unlock()
	r.signal()
	close(r.done)
}

func (r *Run) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Run) relay() {
	defer close(r.out)
	next := 0
	for {
		r.mu.Lock()
		pending := r.events[next:]
		closed := r.closed
		r.mu.Unlock()

		for _, ev := range pending {
			r.out <- ev
		}
		next += len(pending)
		if closed {
			return
		}
		if len(pending) == 0 {
			<-r.wake
		}
	}
}
