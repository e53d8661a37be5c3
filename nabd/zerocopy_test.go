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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveCommit(t *testing.T) {
	q := newTestQueue(t, 4, 32)

	payload, err := q.Reserve(20)
	require.NoError(t, err)
	require.Len(t, payload, 32-SlotHeaderSize)
	for i := 0; i < 20; i++ {
		payload[i] = 0xAA
	}
	require.NoError(t, q.Commit(20))

	buf := make([]byte, 32)
	n, err := q.Pop(buf)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Equal(t, bytes.Repeat([]byte{0xAA}, 20), buf[:n])
}

func TestReserveSingleOutstanding(t *testing.T) {
	q := newTestQueue(t, 4, 32)

	_, err := q.Reserve(8)
	require.NoError(t, err)

	_, err = q.Reserve(8)
	assert.ErrorIs(t, err, ErrInvalid, "second reserve without commit")

	require.NoError(t, q.Commit(8))
	_, err = q.Reserve(8)
	assert.NoError(t, err, "reserve allowed again after commit")
	require.NoError(t, q.Commit(8))
}

func TestReserveCommitEquivalentToPush(t *testing.T) {
	q := newTestQueue(t, 8, 64)
	data := []byte("equivalence check payload")

	require.NoError(t, q.Push(data))

	payload, err := q.Reserve(uint64(len(data)))
	require.NoError(t, err)
	copy(payload, data)
	require.NoError(t, q.Commit(uint64(len(data))))

	buf := make([]byte, 64)
	n1, err := q.Pop(buf)
	require.NoError(t, err)
	first := append([]byte(nil), buf[:n1]...)

	n2, err := q.Pop(buf)
	require.NoError(t, err)
	assert.Equal(t, first, buf[:n2], "consumers observe byte-identical messages")
	assert.Equal(t, data, buf[:n2])
}

func TestCommitShorterThanReserve(t *testing.T) {
	q := newTestQueue(t, 4, 64)

	payload, err := q.Reserve(40)
	require.NoError(t, err)
	copy(payload, "short")
	require.NoError(t, q.Commit(5))

	buf := make([]byte, 64)
	n, err := q.Pop(buf)
	require.NoError(t, err)
	assert.Equal(t, "short", string(buf[:n]))
}

func TestReserveTooBig(t *testing.T) {
	q := newTestQueue(t, 4, 32)
	_, err := q.Reserve(q.MaxPayload() + 1)
	assert.ErrorIs(t, err, ErrTooBig)
}

func TestReserveFull(t *testing.T) {
	q := newTestQueue(t, 2, 32)
	require.NoError(t, q.Push([]byte("a")))
	require.NoError(t, q.Push([]byte("b")))
	_, err := q.Reserve(1)
	assert.ErrorIs(t, err, ErrFull)
}

func TestCommitWithoutReserve(t *testing.T) {
	q := newTestQueue(t, 4, 32)
	assert.ErrorIs(t, q.Commit(4), ErrInvalid)
}

func TestAbandonedReservationIsInvisible(t *testing.T) {
	q := newTestQueue(t, 4, 32)

	payload, err := q.Reserve(8)
	require.NoError(t, err)
	copy(payload, "garbage!")

	// The reservation is never committed: no consumer observes the
	// slot, and a direct push overwrites those bytes.
	require.NoError(t, q.Push([]byte("real")))

	buf := make([]byte, 32)
	n, err := q.Pop(buf)
	require.NoError(t, err)
	assert.Equal(t, "real", string(buf[:n]))

	_, err = q.Pop(buf)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestPeekIdempotent(t *testing.T) {
	q := newTestQueue(t, 4, 64)
	require.NoError(t, q.Push([]byte("first")))
	require.NoError(t, q.Push([]byte("second")))

	var views [][]byte
	for i := 0; i < 3; i++ {
		view, err := q.Peek()
		require.NoError(t, err)
		views = append(views, append([]byte(nil), view...))
	}
	assert.Equal(t, views[0], views[1])
	assert.Equal(t, views[1], views[2])
	assert.Equal(t, "first", string(views[0]))

	require.NoError(t, q.Release())

	view, err := q.Peek()
	require.NoError(t, err)
	assert.Equal(t, "second", string(view), "N peeks and one release consume exactly one message")
}

func TestPeekEmpty(t *testing.T) {
	q := newTestQueue(t, 4, 64)
	_, err := q.Peek()
	assert.ErrorIs(t, err, ErrEmpty)
}
