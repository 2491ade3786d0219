package compiler

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Outcome is the result of one Worker request.
type Outcome struct {
	Seq    uint64
	Unit   string
	Result *Result
	Err    error
}

type request struct {
	seq  uint64
	unit Unit
}

// Worker compiles on a background goroutine. Requests for the same unit
// replace each other, and an outcome is only published if no newer request
// for that unit arrived while it was being compiled: the last writer wins.
// Different units queue up in submission order and never supersede each
// other.
type Worker struct {
	c   *Compiler
	log *logrus.Entry

	mu      sync.Mutex
	seq     uint64
	latest  map[string]uint64
	pending map[string]*request
	queue   []string

	wake    chan struct{}
	results chan Outcome
	stop    chan struct{}
	done    chan struct{}
}

// NewWorker starts a worker that owns c. c must not be used by anyone else
// until Close returns.
func NewWorker(c *Compiler) *Worker {
	w := &Worker{
		c:       c,
		log:     c.log.WithField("component", "worker"),
		latest:  make(map[string]uint64),
		pending: make(map[string]*request),
		wake:    make(chan struct{}, 1),
		results: make(chan Outcome, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Submit queues u and returns its sequence number.
func (w *Worker) Submit(u Unit) uint64 {
	w.mu.Lock()
	w.seq++
	seq := w.seq
	if w.pending[u.Name] == nil {
		w.queue = append(w.queue, u.Name)
	}
	w.pending[u.Name] = &request{seq: seq, unit: u}
	w.latest[u.Name] = seq
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return seq
}

// Results delivers outcomes. The worker waits for each one to be received,
// so hosts should keep draining it until Close.
func (w *Worker) Results() <-chan Outcome { return w.results }

// Close stops the worker once the compilation in progress, if any, ends.
func (w *Worker) Close() {
	close(w.stop)
	<-w.done
}

func (w *Worker) current(req *request) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest[req.unit.Name] == req.seq
}

// take pops the oldest unit with a pending request.
func (w *Worker) take() *request {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return nil
	}
	name := w.queue[0]
	w.queue = w.queue[1:]
	req := w.pending[name]
	delete(w.pending, name)
	return req
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
		case <-w.stop:
			return
		}
		for req := w.take(); req != nil; req = w.take() {
			select {
			case <-w.stop:
				return
			default:
			}
			res, err := w.c.Compile(req.unit)
			if !w.current(req) {
				w.log.WithFields(logrus.Fields{"unit": req.unit.Name, "seq": req.seq}).Debug("dropping stale result")
				continue
			}
			if !w.publish(Outcome{Seq: req.seq, Unit: req.unit.Name, Result: res, Err: err}) {
				return
			}
		}
	}
}

func (w *Worker) publish(o Outcome) bool {
	select {
	case w.results <- o:
		return true
	case <-w.stop:
		return false
	}
}
