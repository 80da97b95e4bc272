package generator

import (
	"context"
	"sync"

	"github.com/maauso/photoreel/internal/job"
)

// progressBuffer bounds the number of undelivered progress updates. Slow
// consumers miss intermediate updates but always get the final one.
const progressBuffer = 32

// Progress is a progress update of a running task.
type Progress struct {
	// Fraction is the completed share of the work, in [0, 1].
	Fraction float64
	// Finished is set on the last update, after which the channel closes.
	Finished bool
}

// Result is the terminal outcome of a task. Exactly one of Path and Err is
// set.
type Result struct {
	// Path is the produced file.
	Path string
	// URL is set when the output was published.
	URL string
	// Err describes the failure. It wraps one of the package sentinels or
	// context.Canceled.
	Err error
}

// OK reports whether the task produced an output.
func (r Result) OK() bool { return r.Err == nil }

// Task is a handle on one pipeline invocation.
type Task struct {
	id       string
	kind     job.Kind
	progress chan Progress
	done     chan struct{}
	cancel   context.CancelFunc

	mu     sync.Mutex
	last   float64
	result Result
}

func newTask(id string, kind job.Kind, cancel context.CancelFunc) *Task {
	return &Task{
		id:       id,
		kind:     kind,
		progress: make(chan Progress, progressBuffer),
		done:     make(chan struct{}),
		cancel:   cancel,
	}
}

// ID returns the run ID, which is also the job record ID.
func (t *Task) ID() string { return t.id }

// Kind returns the operation the task runs.
func (t *Task) Kind() job.Kind { return t.kind }

// Progress returns the progress updates. The channel is closed after the
// update with Finished set.
func (t *Task) Progress() <-chan Progress { return t.progress }

// Done is closed once the result is available.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel stops the task. The result is a cancellation unless the task
// already finished.
func (t *Task) Cancel() { t.cancel() }

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Result returns the outcome without blocking. ok is false while the task
// is running.
func (t *Task) Result() (res Result, ok bool) {
	select {
	case <-t.done:
		return t.result, true
	default:
		return Result{}, false
	}
}

// report publishes a progress update. Updates never go backwards and are
// dropped when the buffer is full.
func (t *Task) report(fraction float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fraction = max(0, min(fraction, 1))
	if fraction <= t.last {
		return
	}
	t.last = fraction
	select {
	case t.progress <- Progress{Fraction: fraction}:
	default:
	}
}

// finish stores the result, delivers the final update and closes both
// channels. It must be called exactly once.
func (t *Task) finish(res Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.result = res
	final := Progress{Fraction: t.last, Finished: true}
	if res.OK() {
		final.Fraction = 1
	}
	for {
		select {
		case t.progress <- final:
			close(t.progress)
			close(t.done)
			return
		default:
			// Make room by dropping the oldest pending update.
			select {
			case <-t.progress:
			default:
			}
		}
	}
}
