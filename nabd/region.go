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
	"os"
	"unsafe"

	"github.com/nabdio/nabd-go/internal/shm"
)

// Open flags.
const (
	Create   = 0x01
	Producer = 0x02
	Consumer = 0x04
)

// Queue is a handle on a shared-memory queue region. The region is the
// only shared state; everything on the handle is process-local
// bookkeeping (cached geometry, the zero-copy reservation flag).
//
// A handle is not safe for concurrent use by multiple goroutines, except
// that one goroutine may push while another pops; the cross-process
// contract is single producer, and per-group consumers race only on
// their group's tail.
type Queue struct {
	name   string
	flags  int
	region *shm.MappedRegion

	ctrl  *controlBlock
	buf   []byte
	multi *consumerTable

	// Cached geometry for hot-path addressing.
	capacity uint64
	slotSize uint64
	mask     uint64

	// Zero-copy reservation state, local to this handle.
	reserved   bool
	reservePos uint64

	bp *BackpressureConfig
}

// Open creates or attaches the named queue region.
//
// With Create, capacity defaults to 1024 and slotSize to 4096; capacity
// is rounded up to a power of two and slotSize raised to the minimum.
// If the name already exists the call falls back to an attach, reading
// the geometry from the region's control block.
func Open(name string, capacity, slotSize uint64, flags int) (*Queue, error) {
	if name == "" || flags&(Producer|Consumer) == 0 {
		return nil, ErrInvalid
	}

	q := &Queue{name: name, flags: flags}

	if flags&Create != 0 {
		if capacity == 0 {
			capacity = DefaultCapacity
		}
		if slotSize == 0 {
			slotSize = DefaultSlotSize
		}
		if !isPowerOfTwo(capacity) {
			capacity = nextPowerOfTwo(capacity)
		}
		if slotSize < MinSlotSize {
			slotSize = MinSlotSize
		}

		created, err := q.create(capacity, slotSize)
		if err != nil {
			return nil, err
		}
		if created {
			registerQueue(q)
			return q, nil
		}
		// Name exists, fall back to attach.
	}

	if err := q.attach(); err != nil {
		return nil, err
	}
	registerQueue(q)
	return q, nil
}

// create builds a fresh region. Returns false when the name already
// exists and the caller should attach instead.
func (q *Queue) create(capacity, slotSize uint64) (bool, error) {
	total := regionSize(capacity, slotSize)
	if !canCreateOnDevShm(total, shm.RegionPath(q.name)) {
		return false, ErrNomem
	}

	region, err := shm.Map(shm.MapOptions{
		Name:   q.name,
		Size:   int(total),
		Create: true,
		Excl:   true,
	})
	if err != nil {
		var oe *shm.OpenError
		if asOpenError(err, &oe) && os.IsExist(oe.Err) {
			return false, nil
		}
		if asOpenError(err, &oe) && os.IsPermission(oe.Err) {
			return false, ErrPermission
		}
		return false, syserr("create region", err)
	}

	q.bindRegion(region, capacity, slotSize)

	// Zero the whole control block, then write the immutable fields and reset the
	// cursors. The region arrives zeroed from ftruncate, but a recycled
	// name may carry stale bytes.
	for i := range region.Addr[:ControlBlockSize] {
		region.Addr[i] = 0
	}
	q.ctrl.magic = Magic
	q.ctrl.version = Version
	q.ctrl.capacity = capacity
	q.ctrl.slotSize = slotSize
	q.ctrl.bufferOffset = ControlBlockSize
	q.ctrl.storeHead(0)
	q.ctrl.storeTail(0)

	q.multi.magic = consumerTableMagic
	q.multi.numGroups = MaxConsumerGroups

	internalLogger.infof("created queue %s capacity=%d slot_size=%d", q.name, capacity, slotSize)
	return true, nil
}

// attach maps an existing region, probing the control block first to
// discover the geometry.
func (q *Queue) attach() error {
	probe, err := shm.Map(shm.MapOptions{Name: q.name, Size: ControlBlockSize})
	if err != nil {
		var oe *shm.OpenError
		if asOpenError(err, &oe) {
			if os.IsNotExist(oe.Err) {
				return ErrNotFound
			}
			if os.IsPermission(oe.Err) {
				return ErrPermission
			}
		}
		return syserr("attach region", err)
	}

	ctrl := (*controlBlock)(unsafe.Pointer(&probe.Addr[0]))
	if ctrl.magic != Magic {
		_ = probe.Unmap()
		return ErrInvalid
	}
	capacity := ctrl.capacity
	slotSize := ctrl.slotSize
	if err := probe.Unmap(); err != nil {
		return syserr("unmap probe", err)
	}
	if !isPowerOfTwo(capacity) || slotSize < MinSlotSize {
		return ErrInvalid
	}

	// Map only what the backing file holds: regions written by older
	// producers may not carry the group table after the ring.
	info, err := os.Stat(shm.RegionPath(q.name))
	if err != nil {
		return syserr("stat region", err)
	}
	plain := ControlBlockSize + ringSize(capacity, slotSize)
	total := regionSize(capacity, slotSize)
	mapSize := plain
	if uint64(info.Size()) >= total {
		mapSize = total
	} else if uint64(info.Size()) < plain {
		return ErrCorrupted
	}

	region, err := shm.Map(shm.MapOptions{Name: q.name, Size: int(mapSize)})
	if err != nil {
		return syserr("remap region", err)
	}
	q.bindRegion(region, capacity, slotSize)
	if q.multi != nil && q.multi.magic != consumerTableMagic {
		q.multi = nil
	}
	return nil
}

// bindRegion caches typed pointers into the mapping.
func (q *Queue) bindRegion(region *shm.MappedRegion, capacity, slotSize uint64) {
	q.region = region
	q.ctrl = (*controlBlock)(unsafe.Pointer(&region.Addr[0]))
	ringEnd := ControlBlockSize + ringSize(capacity, slotSize)
	q.buf = region.Addr[ControlBlockSize:ringEnd:ringEnd]
	if uint64(len(region.Addr)) >= regionSize(capacity, slotSize) {
		q.multi = (*consumerTable)(unsafe.Pointer(&region.Addr[ringEnd]))
	}
	q.capacity = capacity
	q.slotSize = slotSize
	q.mask = capacity - 1
}

// Close unmaps the region and frees the handle. It deliberately does
// not unlink: other processes keep their mappings.
func (q *Queue) Close() error {
	if q == nil || q.region == nil {
		return ErrInvalid
	}
	deregisterQueue(q)
	err := q.region.Unmap()
	q.region = nil
	q.ctrl = nil
	q.buf = nil
	q.multi = nil
	if err != nil {
		internalLogger.warnf("close queue %s: %v", q.name, err)
		return syserr("close", err)
	}
	return nil
}

// Unlink removes the named region from the namespace. Already-mapped
// processes retain access until they unmap.
func Unlink(name string) error {
	if name == "" {
		return ErrInvalid
	}
	if err := shm.Unlink(name); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return syserr("unlink", err)
	}
	return nil
}

// Name returns the region name the handle was opened with.
func (q *Queue) Name() string { return q.name }

// Capacity returns the number of slots.
func (q *Queue) Capacity() uint64 { return q.capacity }

// SlotSize returns the per-slot byte size, header included.
func (q *Queue) SlotSize() uint64 { return q.slotSize }

// MaxPayload returns the largest message the queue accepts.
func (q *Queue) MaxPayload() uint64 { return q.slotSize - SlotHeaderSize }
