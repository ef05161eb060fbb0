package download

import "sync"

// worker runs filesystem and persistence jobs one at a time, in submission
// order, off the engine's event goroutine. Submissions never block.
type worker struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

func newWorker() *worker {
	w := &worker{done: make(chan struct{})}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

// submit queues job. It reports false once the worker is closed.
func (w *worker) submit(job func()) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	w.queue = append(w.queue, job)
	w.cond.Signal()
	return true
}

func (w *worker) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.closed {
			w.cond.Wait()
		}
		if len(w.queue) == 0 {
			w.mu.Unlock()
			return
		}
		job := w.queue[0]
		w.queue[0] = nil
		w.queue = w.queue[1:]
		w.mu.Unlock()

		job()
	}
}

// close stops intake and waits until queued jobs have run.
func (w *worker) close() {
	w.mu.Lock()
	w.closed = true
	w.cond.Broadcast()
	w.mu.Unlock()
	<-w.done
}

// flush blocks until every job submitted before the call has run.
func (w *worker) flush() {
	ch := make(chan struct{})
	if !w.submit(func() { close(ch) }) {
		<-w.done
		return
	}
	<-ch
}
