// Package nabd implements a single-node, lock-free, zero-copy
// inter-process message queue over a POSIX shared-memory region.
//
// A producer writes fixed-maximum-size messages into a ring of slots;
// one or more consumers read them independently. The region starts
// with a 256-byte control block (magic, version, geometry, and the
// head/tail counters on separate cache lines), followed by
// capacity*slotSize bytes of ring and a fixed table of consumer group
// cursors for fan-out.
//
// The publication protocol is single-producer: the producer writes the
// slot payload and header with plain stores, then publishes with an
// atomic store of head; consumers pair that with an atomic load of
// head before touching the slot. Counters are 64-bit and monotone, so
// head == tail means empty and head - tail == capacity means full
// without wasting a slot.
//
// Consumer groups give SPMC fan-out: each group owns a cursor in the
// region, every group sees the full stream, and the producer's
// full-check honours the minimum cursor across active groups.
package nabd
