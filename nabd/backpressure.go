/*
 * Copyright 2025 NABD-Go Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package nabd

import (
	"errors"
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	pushWaitMaxSpins  = 100
	pushWaitBaseSleep = 10 * time.Microsecond
	pushWaitMaxSleep  = time.Millisecond
	pushBackoffCap    = 100 * time.Millisecond
)

// BackpressureConfig wires watermark callbacks around the fill level.
// High and Low are fill percentages with 0 <= Low < High <= 100.
type BackpressureConfig struct {
	High   int
	Low    int
	OnHigh func(q *Queue)
	OnLow  func(q *Queue)
}

// FillLevel returns the fill percentage, 0-100, measured against the
// reclaim cursor. A nil or closed handle returns the negative
// ErrInvalid code.
func (q *Queue) FillLevel() int {
	if q == nil || q.ctrl == nil {
		return int(codeInvalid)
	}
	if q.capacity == 0 {
		return 0
	}
	used := q.ctrl.loadHead() - q.reclaimTail()
	return int(used * 100 / q.capacity)
}

// IsPressured reports whether the fill level has reached threshold.
func (q *Queue) IsPressured(threshold int) bool {
	return q.FillLevel() >= threshold
}

// SetBackpressure validates and installs the watermark configuration.
// The callbacks fire from PushWait when the fill level crosses a
// watermark; invalid pairs are rejected.
func (q *Queue) SetBackpressure(cfg *BackpressureConfig) error {
	if q == nil || cfg == nil {
		return ErrInvalid
	}
	if cfg.High < 0 || cfg.High > 100 || cfg.Low < 0 || cfg.Low > 100 {
		return ErrInvalid
	}
	if cfg.Low >= cfg.High {
		return ErrInvalid
	}
	q.bp = cfg
	return nil
}

// checkWatermarks fires the configured callbacks on crossings. The
// above-high flag is handle-local, so each handle reports its own
// transitions.
func (q *Queue) checkWatermarks(aboveHigh *bool) {
	if q.bp == nil {
		return
	}
	level := q.FillLevel()
	if !*aboveHigh && level >= q.bp.High {
		*aboveHigh = true
		if q.bp.OnHigh != nil {
			q.bp.OnHigh(q)
		}
	} else if *aboveHigh && level <= q.bp.Low {
		*aboveHigh = false
		if q.bp.OnLow != nil {
			q.bp.OnLow(q)
		}
	}
}

// PushWait pushes, retrying while the queue is full: first a bounded
// spin, then sleeps with an ascending delay capped at one millisecond.
// A zero timeout is purely non-blocking; a negative timeout waits
// forever. The deadline is tracked on the host monotonic clock and the
// call returns ErrFull exactly once it has elapsed.
func (q *Queue) PushWait(data []byte, timeout time.Duration) error {
	err := q.Push(data)
	if !errors.Is(err, ErrFull) {
		return err
	}
	if timeout == 0 {
		return ErrFull
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	spins := 0
	aboveHigh := false
	for {
		err = q.Push(data)
		if !errors.Is(err, ErrFull) {
			return err
		}
		q.checkWatermarks(&aboveHigh)

		if timeout > 0 && !time.Now().Before(deadline) {
			return ErrFull
		}

		if spins < pushWaitMaxSpins {
			spins++
			runtime.Gosched()
			continue
		}
		sleep := pushWaitBaseSleep * time.Duration(spins/pushWaitMaxSpins)
		if sleep > pushWaitMaxSleep {
			sleep = pushWaitMaxSleep
		}
		spins++
		time.Sleep(sleep)
	}
}

// PushBackoff pushes with exponential backoff on ErrFull: the delay
// starts at baseDelay, doubles each retry, and is capped at 100ms. It
// gives up with ErrFull after maxRetries attempts; zero retries
// forever. Non-full errors abort immediately.
func (q *Queue) PushBackoff(data []byte, maxRetries int, baseDelay time.Duration) error {
	if q == nil {
		return ErrInvalid
	}
	if baseDelay <= 0 {
		baseDelay = time.Microsecond
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = baseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = pushBackoffCap
	bo.MaxElapsedTime = 0

	retries := 0
	op := func() error {
		err := q.Push(data)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrFull) {
			return backoff.Permanent(err)
		}
		retries++
		if maxRetries > 0 && retries >= maxRetries {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(op, bo)
}
