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
	"fmt"
	"time"

	"github.com/valyala/bytebufferpool"
)

// Metrics is a detailed point-in-time view of the queue, derived
// entirely from the counters. TotalPushed/TotalPopped are the monotone
// head and tail: the counters never reset, so they double as lifetime
// operation counts.
type Metrics struct {
	Head        uint64
	Tail        uint64
	Pending     uint64
	Capacity    uint64
	SlotSize    uint64
	UsedBytes   uint64
	FillPct     int
	TotalPushed uint64
	TotalPopped uint64
}

// Snapshot is a lightweight sample for throughput calculation.
type Snapshot struct {
	TimestampNS uint64
	Head        uint64
	Tail        uint64
	Pushed      uint64
	Popped      uint64
}

// Metrics reads the queue counters into a Metrics view.
func (q *Queue) Metrics() (*Metrics, error) {
	if q == nil || q.ctrl == nil {
		return nil, ErrInvalid
	}

	m := &Metrics{
		Head:     q.ctrl.loadHead(),
		Tail:     q.ctrl.loadTail(),
		Capacity: q.capacity,
		SlotSize: q.slotSize,
	}
	if m.Head >= m.Tail {
		m.Pending = m.Head - m.Tail
	}
	m.UsedBytes = m.Pending * q.slotSize
	if q.capacity > 0 {
		m.FillPct = int(m.Pending * 100 / q.capacity)
	}
	m.TotalPushed = m.Head
	m.TotalPopped = m.Tail
	return m, nil
}

// TakeSnapshot samples the counters with a monotonic-clock timestamp.
func (q *Queue) TakeSnapshot() (Snapshot, error) {
	if q == nil || q.ctrl == nil {
		return Snapshot{}, ErrInvalid
	}
	head := q.ctrl.loadHead()
	tail := q.ctrl.loadTail()
	return Snapshot{
		TimestampNS: uint64(monotonicNow()),
		Head:        head,
		Tail:        tail,
		Pushed:      head,
		Popped:      tail,
	}, nil
}

// CalcThroughput returns messages per second between two snapshots,
// counting both pushes and pops. Zero on a zero time delta.
func CalcThroughput(prev, curr *Snapshot) uint64 {
	if prev == nil || curr == nil {
		return 0
	}
	dt := curr.TimestampNS - prev.TimestampNS
	if dt == 0 {
		return 0
	}
	dmsg := (curr.Pushed - prev.Pushed) + (curr.Popped - prev.Popped)
	return dmsg * uint64(time.Second) / dt
}

// FormatMetrics renders a human-readable metrics report.
func FormatMetrics(m *Metrics) string {
	if m == nil {
		return ""
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	fmt.Fprintf(buf, "NABD Queue Metrics:\n")
	fmt.Fprintf(buf, "  Head: %d, Tail: %d, Pending: %d\n", m.Head, m.Tail, m.Pending)
	fmt.Fprintf(buf, "  Capacity: %d slots (%d bytes/slot)\n", m.Capacity, m.SlotSize)
	fmt.Fprintf(buf, "  Fill: %d%% (%d bytes used)\n", m.FillPct, m.UsedBytes)
	fmt.Fprintf(buf, "  Total pushed: %d, popped: %d\n", m.TotalPushed, m.TotalPopped)
	return buf.String()
}

// FormatMetricsJSON renders the metrics as a JSON object.
func FormatMetricsJSON(m *Metrics) string {
	if m == nil {
		return ""
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	fmt.Fprintf(buf, "{\n")
	fmt.Fprintf(buf, "  %q: %d,\n", "head", m.Head)
	fmt.Fprintf(buf, "  %q: %d,\n", "tail", m.Tail)
	fmt.Fprintf(buf, "  %q: %d,\n", "pending", m.Pending)
	fmt.Fprintf(buf, "  %q: %d,\n", "capacity", m.Capacity)
	fmt.Fprintf(buf, "  %q: %d,\n", "slot_size", m.SlotSize)
	fmt.Fprintf(buf, "  %q: %d,\n", "fill_pct", m.FillPct)
	fmt.Fprintf(buf, "  %q: %d,\n", "used_bytes", m.UsedBytes)
	fmt.Fprintf(buf, "  %q: %d,\n", "total_pushed", m.TotalPushed)
	fmt.Fprintf(buf, "  %q: %d\n", "total_popped", m.TotalPopped)
	fmt.Fprintf(buf, "}")
	return buf.String()
}

// monotonicNow returns nanoseconds on the host monotonic clock.
func monotonicNow() int64 {
	return int64(time.Since(processStart)) + processStartNS
}

var (
	processStart   = time.Now()
	processStartNS = processStart.UnixNano()
)
