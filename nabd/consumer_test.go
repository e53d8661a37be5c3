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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumerCreateAssignsIDs(t *testing.T) {
	q := newTestQueue(t, 8, 64)

	c1, err := q.ConsumerCreate(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), c1.GroupID(), "zero id derives slot index + 1")

	c2, err := q.ConsumerCreate(42)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), c2.GroupID())
}

func TestConsumerCreateExhaustsTable(t *testing.T) {
	q := newTestQueue(t, 8, 64)

	for i := 0; i < MaxConsumerGroups; i++ {
		_, err := q.ConsumerCreate(uint32(100 + i))
		require.NoError(t, err)
	}
	_, err := q.ConsumerCreate(999)
	assert.ErrorIs(t, err, ErrNomem)
}

func TestConsumerJoin(t *testing.T) {
	q := newTestQueue(t, 8, 64)

	_, err := q.ConsumerJoin(7)
	assert.ErrorIs(t, err, ErrNotFound)

	c, err := q.ConsumerCreate(7)
	require.NoError(t, err)

	peer, err := q.ConsumerJoin(7)
	require.NoError(t, err)
	assert.Equal(t, c.GroupID(), peer.GroupID())

	// Handles in the same group share one cursor.
	require.NoError(t, q.Push([]byte("only")))
	buf := make([]byte, 64)
	_, err = c.Pop(buf)
	require.NoError(t, err)
	_, err = peer.Pop(buf)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestNewGroupStartsAtHead(t *testing.T) {
	q := newTestQueue(t, 8, 64)

	require.NoError(t, q.Push([]byte("before")))
	require.NoError(t, q.Push([]byte("before")))

	c, err := q.ConsumerCreate(1)
	require.NoError(t, err)

	buf := make([]byte, 64)
	_, err = c.Pop(buf)
	assert.ErrorIs(t, err, ErrEmpty, "groups consume only messages published after they join")

	require.NoError(t, q.Push([]byte("after")))
	n, err := c.Pop(buf)
	require.NoError(t, err)
	assert.Equal(t, "after", string(buf[:n]))
}

func TestFanoutIndependentGroups(t *testing.T) {
	q := newTestQueue(t, 8, 64)

	g1, err := q.ConsumerCreate(1)
	require.NoError(t, err)
	g2, err := q.ConsumerCreate(2)
	require.NoError(t, err)

	buf1 := make([]byte, 64)
	buf2 := make([]byte, 64)
	var got1, got2 []string

	// Push ten messages; the ring holds eight, so drain both groups
	// half way through.
	for i := 0; i < 10; i++ {
		msg := fmt.Sprintf("m%d", i)
		if err := q.Push([]byte(msg)); err != nil {
			require.ErrorIs(t, err, ErrFull)
			for len(got1) < 5 {
				n, err := g1.Pop(buf1)
				require.NoError(t, err)
				got1 = append(got1, string(buf1[:n]))
			}
			for len(got2) < 5 {
				n, err := g2.Pop(buf2)
				require.NoError(t, err)
				got2 = append(got2, string(buf2[:n]))
			}
			assert.Equal(t, uint64(5), q.MinTail(), "min tail after both groups consumed 5")
			require.NoError(t, q.Push([]byte(msg)))
		}
	}

	for len(got1) < 10 {
		n, err := g1.Pop(buf1)
		require.NoError(t, err)
		got1 = append(got1, string(buf1[:n]))
	}
	for len(got2) < 10 {
		n, err := g2.Pop(buf2)
		require.NoError(t, err)
		got2 = append(got2, string(buf2[:n]))
	}

	want := make([]string, 10)
	for i := range want {
		want[i] = fmt.Sprintf("m%d", i)
	}
	assert.Equal(t, want, got1, "group 1 observes the full stream in order")
	assert.Equal(t, want, got2, "group 2 observes the full stream in order")
}

func TestProducerFullCheckHonoursSlowestGroup(t *testing.T) {
	q := newTestQueue(t, 2, 64)

	_, err := q.ConsumerCreate(1)
	require.NoError(t, err)

	require.NoError(t, q.Push([]byte("a")))
	require.NoError(t, q.Push([]byte("b")))

	// The control-block tail advances, but the group has consumed
	// nothing: the producer stays blocked on the group's cursor.
	buf := make([]byte, 64)
	_, err = q.Pop(buf)
	require.NoError(t, err)
	assert.ErrorIs(t, q.Push([]byte("c")), ErrFull)
}

func TestMinTailFallsBackToControlTail(t *testing.T) {
	q := newTestQueue(t, 8, 64)

	require.NoError(t, q.Push([]byte("a")))
	require.NoError(t, q.Push([]byte("b")))
	buf := make([]byte, 64)
	_, err := q.Pop(buf)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), q.MinTail(), "no active groups: control-block tail")
}

func TestMinTailIsMinimum(t *testing.T) {
	q := newTestQueue(t, 16, 64)

	g1, err := q.ConsumerCreate(1)
	require.NoError(t, err)
	g2, err := q.ConsumerCreate(2)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		require.NoError(t, q.Push([]byte("m")))
	}

	buf := make([]byte, 64)
	for i := 0; i < 4; i++ {
		_, err := g1.Pop(buf)
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := g2.Pop(buf)
		require.NoError(t, err)
	}

	assert.Equal(t, uint64(2), q.MinTail())

	s1, err := g1.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), s1.Tail)
	assert.Equal(t, uint64(2), s1.Lag)

	s2, err := g2.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), s2.Tail)
	assert.Equal(t, uint64(4), s2.Lag)
}

func TestConsumerPeekRelease(t *testing.T) {
	q := newTestQueue(t, 8, 64)
	c, err := q.ConsumerCreate(1)
	require.NoError(t, err)

	require.NoError(t, q.Push([]byte("first")))
	require.NoError(t, q.Push([]byte("second")))

	for i := 0; i < 3; i++ {
		view, err := c.Peek()
		require.NoError(t, err)
		assert.Equal(t, "first", string(view))
	}
	require.NoError(t, c.Release())

	view, err := c.Peek()
	require.NoError(t, err)
	assert.Equal(t, "second", string(view))
}

func TestConsumerCloseKeepsGroupActive(t *testing.T) {
	q := newTestQueue(t, 8, 64)

	c, err := q.ConsumerCreate(5)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	// The group identity survives the handle.
	peer, err := q.ConsumerJoin(5)
	require.NoError(t, err)
	st, err := peer.Stats()
	require.NoError(t, err)
	assert.True(t, st.Active)

	_, err = c.Pop(make([]byte, 8))
	assert.ErrorIs(t, err, ErrInvalid, "closed handle is unusable")
}

func TestConsumerPopBufferTooSmall(t *testing.T) {
	q := newTestQueue(t, 8, 64)
	c, err := q.ConsumerCreate(1)
	require.NoError(t, err)

	require.NoError(t, q.Push([]byte("a long-ish payload")))
	n, err := c.Pop(make([]byte, 2))
	assert.ErrorIs(t, err, ErrTooBig)
	assert.Equal(t, 18, n)
}

func TestGroupStats(t *testing.T) {
	q := newTestQueue(t, 8, 64)

	assert.Nil(t, q.GroupStats())

	_, err := q.ConsumerCreate(3)
	require.NoError(t, err)
	require.NoError(t, q.Push([]byte("x")))

	all := q.GroupStats()
	require.Len(t, all, 1)
	assert.Equal(t, uint32(3), all[0].GroupID)
	assert.Equal(t, uint64(1), all[0].Lag)
}
