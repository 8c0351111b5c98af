package engine

import (
	"context"
	"fmt"
	"time"
)

// CallOutcome records how a governed agent call went
type CallOutcome struct {
	Elapsed  time.Duration
	TimedOut bool
	Err      error
}

// OK reports whether the call produced an answer in time
func (o CallOutcome) OK() bool {
	return !o.TimedOut && o.Err == nil
}

// Governed runs fn on its own goroutine and waits at most deadline for the
// answer. A late call is cancelled and abandoned; its answer is dropped.
// The returned error is only set when ctx itself is done.
func Governed[T any](ctx context.Context, clock Clock, deadline time.Duration, fn func(context.Context) (T, error)) (T, CallOutcome, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, CallOutcome{}, err
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)

	start := clock.Now()
	timer := clock.After(deadline)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("agent panicked: %v", r)}
			}
		}()
		v, err := fn(callCtx)
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		out := CallOutcome{Elapsed: clock.Now().Sub(start), Err: r.err}
		if r.err != nil {
			return zero, out, nil
		}
		return r.v, out, nil
	case <-timer:
		return zero, CallOutcome{Elapsed: deadline, TimedOut: true}, nil
	case <-ctx.Done():
		return zero, CallOutcome{}, ctx.Err()
	}
}

// Account charges a governed call to the player's time budget. Time beyond
// base comes out of the leeway; failures also count as exceptions.
func (p *PlayerState) Account(out CallOutcome, base time.Duration) {
	if over := out.Elapsed - base; over > 0 {
		p.Leeway -= over
		if p.Leeway < 0 {
			p.Leeway = 0
		}
	}
	if out.OK() {
		p.TimeUsed += out.Elapsed
	} else {
		p.Exceptions++
	}
}
