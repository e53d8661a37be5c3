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

// State classifies the health of a region as seen by a detached
// observer.
type State int

const (
	// StateOK means the region is valid and holds pending messages.
	StateOK State = iota
	// StateEmpty means the region is valid with nothing pending.
	StateEmpty
	// StateCorrupted means the magic is wrong or the counters are
	// inconsistent (pending exceeds capacity).
	StateCorrupted
	// StateVersionErr means the magic is good but the version differs.
	StateVersionErr
	// StateIncomplete means the region is missing or unreadable.
	StateIncomplete
)

func (s State) String() string {
	switch s {
	case StateOK:
		return "ok"
	case StateEmpty:
		return "empty"
	case StateCorrupted:
		return "corrupted"
	case StateVersionErr:
		return "version mismatch"
	case StateIncomplete:
		return "incomplete"
	}
	return "unknown"
}

// Diagnostic is the result of a read-only inspection of a region's
// control block.
type Diagnostic struct {
	State     State
	MagicOK   bool
	VersionOK bool
	Head      uint64
	Tail      uint64
	Capacity  uint64
	SlotSize  uint64
	Pending   uint64
}

// Diagnose inspects the named region without mutating it: only the
// 256-byte control block is mapped, read-only. A missing region returns
// ErrNotFound with StateIncomplete. Inconsistent counters classify as
// corrupted rather than failing the caller.
func Diagnose(name string) (*Diagnostic, error) {
	if name == "" {
		return nil, ErrInvalid
	}

	diag := &Diagnostic{State: StateCorrupted}

	probe, err := shm.Map(shm.MapOptions{Name: name, Size: ControlBlockSize, ReadOnly: true})
	if err != nil {
		diag.State = StateIncomplete
		var oe *shm.OpenError
		if asOpenError(err, &oe) && os.IsNotExist(oe.Err) {
			return diag, ErrNotFound
		}
		return diag, syserr("diagnose", err)
	}
	defer func() {
		if uerr := probe.Unmap(); uerr != nil {
			internalLogger.warnf("diagnose unmap %s: %v", name, uerr)
		}
	}()

	ctrl := (*controlBlock)(unsafe.Pointer(&probe.Addr[0]))

	diag.MagicOK = ctrl.magic == Magic
	if !diag.MagicOK {
		diag.State = StateCorrupted
		return diag, nil
	}

	diag.VersionOK = ctrl.version == Version
	if !diag.VersionOK {
		diag.State = StateVersionErr
		return diag, nil
	}

	diag.Head = ctrl.loadHead()
	diag.Tail = ctrl.loadTail()
	diag.Capacity = ctrl.capacity
	diag.SlotSize = ctrl.slotSize
	if diag.Head >= diag.Tail {
		diag.Pending = diag.Head - diag.Tail
	}

	switch {
	case diag.Pending > diag.Capacity:
		diag.State = StateCorrupted
	case diag.Pending == 0:
		diag.State = StateEmpty
	default:
		diag.State = StateOK
	}
	return diag, nil
}

// Recover attempts to bring the named region back to a usable state.
// Without force, healthy regions and version mismatches are left alone
// and a corrupted region returns ErrCorrupted. With force, any region
// that is present is repaired the only way there is: pending messages
// are discarded by moving tail up to head; payload bytes are never
// inspected or salvaged. A missing region is unlinked so the next
// producer can recreate it.
func Recover(name string, force bool) error {
	diag, err := Diagnose(name)
	if err != nil && diag.State != StateIncomplete {
		return err
	}

	switch diag.State {
	case StateOK, StateEmpty:
		if !force {
			return nil
		}
	case StateCorrupted:
		if !force {
			return ErrCorrupted
		}
	case StateIncomplete:
		_ = Unlink(name)
		return nil
	}

	if !force {
		return nil
	}

	region, err := shm.Map(shm.MapOptions{Name: name, Size: ControlBlockSize})
	if err != nil {
		return syserr("recover", err)
	}
	defer func() {
		if uerr := region.Unmap(); uerr != nil {
			internalLogger.warnf("recover unmap %s: %v", name, uerr)
		}
	}()

	ctrl := (*controlBlock)(unsafe.Pointer(&region.Addr[0]))
	head := ctrl.loadHead()
	ctrl.storeTail(head)
	internalLogger.infof("recovered queue %s: tail reset to %d", name, head)
	return nil
}
