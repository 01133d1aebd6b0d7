package service

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds for runs that end without a verdict.
const (
	KindRunCancelled   = "RunCancelled"
	KindRunTimeout     = "RunTimeout"
	KindRunInterrupted = "RunInterrupted"
	KindInternal       = "InternalError"
)

// AbortError is the cancellation cause attached to a run's context.
type AbortError struct {
	kind string
	msg  string
}

func (e *AbortError) Error() string { return e.msg }
func (e *AbortError) Kind() string  { return e.kind }

var (
	ErrRunCancelled   = &AbortError{kind: KindRunCancelled, msg: "run cancelled"}
	ErrShuttingDown   = &AbortError{kind: KindRunCancelled, msg: "service shutting down"}
	ErrRunTimeout     = &AbortError{kind: KindRunTimeout, msg: "run exceeded its time budget"}
	ErrRunInterrupted = &AbortError{kind: KindRunInterrupted, msg: "run ended without a verdict; resubmit to verify again"}
)

type kinded interface {
	Kind() string
}

// KindOf names the pipeline error kind carried by err.
func KindOf(err error) string {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindRunTimeout
	case errors.Is(err, context.Canceled):
		return KindRunCancelled
	}
	return KindInternal
}

// logLine renders err the way it is written to a progress log.
func logLine(err error) string {
	return fmt.Sprintf("[%s] %s", KindOf(err), err.Error())
}

// interrupted returns the run's cancellation cause once its context is done.
func interrupted(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	if cause := context.Cause(ctx); cause != nil {
		return cause
	}
	return ctx.Err()
}
