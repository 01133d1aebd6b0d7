package service

import (
	"context"
	"sync"

	"proptoken/internal/submission/models"
	id "proptoken/pkg/domain"
)

// Run is one verification pass over a submission. It is observable while it
// executes and can be awaited; it finishes exactly once.
type Run struct {
	SubmissionID id.SubmissionID

	cancel context.CancelCauseFunc
	done   chan struct{}

	mu     sync.RWMutex
	status models.Status
	err    error
}

func newRun(subID id.SubmissionID, status models.Status) *Run {
	return &Run{
		SubmissionID: subID,
		done:         make(chan struct{}),
		status:       status,
	}
}

// Done is closed when the run has reached a terminal stage.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Status is the last stage the run recorded.
func (r *Run) Status() models.Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Err is the error that ended the run, nil for runs that reached a verdict.
// A consensus rejection is a verdict, not an error.
func (r *Run) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Wait blocks until the run finishes or ctx is done.
func (r *Run) Wait(ctx context.Context) (models.Status, error) {
	select {
	case <-r.done:
		return r.Status(), r.Err()
	case <-ctx.Done():
		return r.Status(), ctx.Err()
	}
}

func (r *Run) observe(status models.Status) {
	r.mu.Lock()
	r.status = status
	r.mu.Unlock()
}

func (r *Run) finish(status models.Status, err error) {
	r.mu.Lock()
	r.status = status
	r.err = err
	r.mu.Unlock()
	close(r.done)
}
