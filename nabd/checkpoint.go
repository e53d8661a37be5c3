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
	"encoding/binary"
	"math/bits"
	"os"
	"path/filepath"
	"time"
)

// CheckpointMagic identifies a consumer checkpoint file.
const CheckpointMagic = 0x434B5054414244

// checkpointSize is the fixed on-disk size:
// magic + timestamp + group_id + pad + tail + checksum.
const checkpointSize = 8 + 8 + 4 + 4 + 8 + 8

// Checkpoint is a durable record of one group's read cursor, written
// outside the region. It gives coarse-grained recovery at the
// application layer; the region itself holds no durable payload.
type Checkpoint struct {
	Magic       uint64
	TimestampNS uint64
	GroupID     uint32
	Tail        uint64
	Checksum    uint64
}

// checksum mixes every recorded field so any single-bit flip outside
// the padding is detected on load.
func (c *Checkpoint) checksum() uint64 {
	sum := c.Magic
	sum ^= c.TimestampNS
	sum ^= uint64(c.GroupID)
	sum ^= c.Tail
	return bits.RotateLeft64(sum, 13)
}

func (c *Checkpoint) marshal() []byte {
	buf := make([]byte, checkpointSize)
	binary.LittleEndian.PutUint64(buf[0:], c.Magic)
	binary.LittleEndian.PutUint64(buf[8:], c.TimestampNS)
	binary.LittleEndian.PutUint32(buf[16:], c.GroupID)
	binary.LittleEndian.PutUint64(buf[24:], c.Tail)
	binary.LittleEndian.PutUint64(buf[32:], c.Checksum)
	return buf
}

func (c *Checkpoint) unmarshal(buf []byte) error {
	if len(buf) != checkpointSize {
		return ErrCorrupted
	}
	c.Magic = binary.LittleEndian.Uint64(buf[0:])
	c.TimestampNS = binary.LittleEndian.Uint64(buf[8:])
	c.GroupID = binary.LittleEndian.Uint32(buf[16:])
	c.Tail = binary.LittleEndian.Uint64(buf[24:])
	c.Checksum = binary.LittleEndian.Uint64(buf[32:])
	return nil
}

// CheckpointSave captures the group's current cursor and writes it
// atomically to path via a temp file and rename.
func (c *Consumer) CheckpointSave(path string) error {
	if c == nil || c.q == nil || path == "" {
		return ErrInvalid
	}

	ckpt := Checkpoint{
		Magic:       CheckpointMagic,
		TimestampNS: uint64(time.Now().UnixNano()),
		GroupID:     c.groupID,
		Tail:        c.group.loadTail(),
	}
	ckpt.Checksum = ckpt.checksum()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".ckpt-*")
	if err != nil {
		return syserr("checkpoint save", err)
	}
	if _, err := tmp.Write(ckpt.marshal()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return syserr("checkpoint write", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return syserr("checkpoint close", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return syserr("checkpoint rename", err)
	}
	return nil
}

// CheckpointLoad reads and validates a checkpoint file. A bad magic or
// checksum returns ErrCorrupted; a missing file returns ErrNotFound.
func CheckpointLoad(path string) (*Checkpoint, error) {
	if path == "" {
		return nil, ErrInvalid
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, syserr("checkpoint load", err)
	}

	var ckpt Checkpoint
	if err := ckpt.unmarshal(buf); err != nil {
		return nil, err
	}
	if ckpt.Magic != CheckpointMagic {
		return nil, ErrCorrupted
	}
	if ckpt.Checksum != ckpt.checksum() {
		return nil, ErrCorrupted
	}
	return &ckpt, nil
}

// ConsumerResume joins or creates the checkpoint's group and restores
// its cursor. A checkpoint ahead of the current head is clamped to head
// rather than accepted: slots past head were never published and must
// not be read.
func (q *Queue) ConsumerResume(ckpt *Checkpoint) (*Consumer, error) {
	if q == nil || q.ctrl == nil || ckpt == nil {
		return nil, ErrInvalid
	}

	// Join first so a still-active group is reused instead of a second
	// slot being claimed under the same id.
	c, err := q.ConsumerJoin(ckpt.GroupID)
	if err != nil {
		c, err = q.ConsumerCreate(ckpt.GroupID)
		if err != nil {
			return nil, err
		}
	}

	head := q.ctrl.loadHead()
	tail := ckpt.Tail
	if tail > head {
		tail = head
	}
	c.group.storeTail(tail)
	return c, nil
}

// LastActivity reports the region's last-activity timestamp. The v1
// layout records none, so this is the current time; a future version
// may add a producer-side timestamp in the reserved control-block line.
func (q *Queue) LastActivity() uint64 {
	if q == nil {
		return 0
	}
	return uint64(time.Now().UnixNano())
}
