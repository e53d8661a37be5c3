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

// Consumer is a handle bound to one consumer group. Multiple handles,
// in any mix of processes, may share a group: their pops race on the
// group tail, giving work-sharing semantics within the group. An
// application that needs strict one-message-per-pop inside a group must
// serialise externally or use separate groups.
type Consumer struct {
	q       *Queue
	group   *consumerGroup
	groupID uint32
}

// ConsumerStats is a point-in-time view of one group's cursor.
type ConsumerStats struct {
	GroupID uint32
	Active  bool
	Tail    uint64
	Lag     uint64
}

// ConsumerCreate claims a free group slot and binds a handle to it.
// A zero groupID derives slotIndex+1. The new group's tail starts at
// the current head: it consumes only messages published after it joins.
func (q *Queue) ConsumerCreate(groupID uint32) (*Consumer, error) {
	if q == nil || q.ctrl == nil {
		return nil, ErrInvalid
	}
	if q.multi == nil {
		return nil, ErrInvalid
	}

	for i := range q.multi.groups {
		g := &q.multi.groups[i]
		if !g.claim() {
			continue
		}
		if groupID == 0 {
			groupID = uint32(i) + 1
		}
		g.groupID = groupID
		g.storeTail(q.ctrl.loadHead())
		return &Consumer{q: q, group: g, groupID: groupID}, nil
	}
	return nil, ErrNomem
}

// ConsumerJoin binds a new handle to an existing active group.
func (q *Queue) ConsumerJoin(groupID uint32) (*Consumer, error) {
	if q == nil || q.ctrl == nil {
		return nil, ErrInvalid
	}
	if q.multi == nil {
		return nil, ErrInvalid
	}

	for i := range q.multi.groups {
		g := &q.multi.groups[i]
		if g.isActive() && g.groupID == groupID {
			return &Consumer{q: q, group: g, groupID: groupID}, nil
		}
	}
	return nil, ErrNotFound
}

// Close frees the local handle. The group slot stays active: other
// handles, including ones in other processes, continue to observe it.
func (c *Consumer) Close() error {
	if c == nil || c.q == nil {
		return ErrInvalid
	}
	c.q = nil
	c.group = nil
	return nil
}

// GroupID returns the group the handle is bound to.
func (c *Consumer) GroupID() uint32 { return c.groupID }

// Pop copies this group's next message into buf and advances the group
// tail. Semantics otherwise match Queue.Pop.
func (c *Consumer) Pop(buf []byte) (int, error) {
	if c == nil || c.q == nil {
		return 0, ErrInvalid
	}

	tail := c.group.loadTail()
	head := c.q.ctrl.loadHead()
	if tail >= head {
		return 0, ErrEmpty
	}

	hdr, payload := c.q.slot(tail)
	n := int(hdr.length)
	if n > len(buf) {
		return n, ErrTooBig
	}
	copy(buf, payload[:n])

	c.group.storeTail(tail + 1)
	return n, nil
}

// Peek returns a read-only view of this group's next message without
// advancing the group tail.
func (c *Consumer) Peek() ([]byte, error) {
	if c == nil || c.q == nil {
		return nil, ErrInvalid
	}

	tail := c.group.loadTail()
	head := c.q.ctrl.loadHead()
	if tail >= head {
		return nil, ErrEmpty
	}

	hdr, payload := c.q.slot(tail)
	return payload[:hdr.length], nil
}

// Release consumes the message returned by the previous Peek.
func (c *Consumer) Release() error {
	if c == nil || c.q == nil {
		return ErrInvalid
	}
	tail := c.group.loadTail()
	c.group.storeTail(tail + 1)
	return nil
}

// Stats reads the group cursor.
func (c *Consumer) Stats() (ConsumerStats, error) {
	if c == nil || c.q == nil {
		return ConsumerStats{}, ErrInvalid
	}
	tail := c.group.loadTail()
	head := c.q.ctrl.loadHead()
	lag := uint64(0)
	if head > tail {
		lag = head - tail
	}
	return ConsumerStats{
		GroupID: c.groupID,
		Active:  c.group.isActive(),
		Tail:    tail,
		Lag:     lag,
	}, nil
}

// minActiveTail scans the group table for the minimum tail across
// active groups. ok is false when no group is active.
func (q *Queue) minActiveTail() (uint64, bool) {
	var (
		minTail uint64
		found   bool
	)
	for i := range q.multi.groups {
		g := &q.multi.groups[i]
		if !g.isActive() {
			continue
		}
		t := g.loadTail()
		if !found || t < minTail {
			minTail = t
			found = true
		}
	}
	return minTail, found
}

// MinTail returns the minimum tail across all active groups, falling
// back to the control-block tail when none is active. This is the
// cursor the producer's full-check honours, so a slot is reclaimed only
// once every group has consumed it.
func (q *Queue) MinTail() uint64 {
	if q == nil || q.ctrl == nil {
		return 0
	}
	return q.reclaimTail()
}

// GroupStats reads the cursors of every active group.
func (q *Queue) GroupStats() []ConsumerStats {
	if q == nil || q.multi == nil {
		return nil
	}
	head := q.ctrl.loadHead()
	var out []ConsumerStats
	for i := range q.multi.groups {
		g := &q.multi.groups[i]
		if !g.isActive() {
			continue
		}
		tail := g.loadTail()
		lag := uint64(0)
		if head > tail {
			lag = head - tail
		}
		out = append(out, ConsumerStats{
			GroupID: g.groupID,
			Active:  true,
			Tail:    tail,
			Lag:     lag,
		})
	}
	return out
}
