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
	"sync"
	"time"

	queuepkg "github.com/Workiva/go-datastructures/queue"
	"github.com/panjf2000/ants/v2"
)

const dispatcherIdlePoll = 100 * time.Microsecond

// Dispatcher drains a consumer group and hands each message to a
// handler running on a worker pool. Slot bytes are copied out before
// the group tail advances, so handlers own their payload and may
// outlive slot reuse.
type Dispatcher struct {
	consumer *Consumer
	pool     *ants.Pool
	pending  *queuepkg.Queue
	handler  func(msg []byte)

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewDispatcher builds a dispatcher over the consumer with the given
// worker count. The handler is invoked concurrently from the pool.
func NewDispatcher(c *Consumer, workers int, handler func(msg []byte)) (*Dispatcher, error) {
	if c == nil || c.q == nil || handler == nil || workers <= 0 {
		return nil, ErrInvalid
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, syserr("dispatcher pool", err)
	}
	return &Dispatcher{
		consumer: c,
		pool:     pool,
		pending:  queuepkg.New(int64(c.q.capacity)),
		handler:  handler,
		stop:     make(chan struct{}),
	}, nil
}

// Start launches the drain and dispatch loops.
func (d *Dispatcher) Start() {
	d.wg.Add(2)
	go d.drainLoop()
	go d.dispatchLoop()
}

// drainLoop pops messages off the shared ring into the in-process
// hand-off queue.
func (d *Dispatcher) drainLoop() {
	defer d.wg.Done()
	buf := make([]byte, d.consumer.q.MaxPayload())
	for {
		select {
		case <-d.stop:
			return
		default:
		}

		n, err := d.consumer.Pop(buf)
		if err != nil {
			time.Sleep(dispatcherIdlePoll)
			continue
		}
		msg := make([]byte, n)
		copy(msg, buf[:n])
		if err := d.pending.Put(msg); err != nil {
			return
		}
	}
}

// dispatchLoop feeds pending messages to the worker pool.
func (d *Dispatcher) dispatchLoop() {
	defer d.wg.Done()
	for {
		items, err := d.pending.Poll(1, dispatcherIdlePoll)
		if err != nil {
			if err == queuepkg.ErrDisposed {
				return
			}
			select {
			case <-d.stop:
				return
			default:
				continue
			}
		}
		for _, item := range items {
			msg := item.([]byte)
			if err := d.pool.Submit(func() { d.handler(msg) }); err != nil {
				internalLogger.warnf("dispatcher submit: %v", err)
			}
		}
	}
}

// Stop halts the loops, waits for them, and releases the pool. Messages
// already handed to workers finish; unconsumed ring messages stay
// queued for the group.
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		close(d.stop)
		d.pending.Dispose()
		d.wg.Wait()
		d.pool.Release()
	})
}
