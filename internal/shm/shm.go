// Package shm wraps the host shared-memory primitives used by the queue:
// named region creation under the POSIX shm namespace, mmap/munmap, and
// unlink. Callers pass region names in POSIX form ("/name").
package shm

// MapOptions describes how a region should be created or attached.
type MapOptions struct {
	// Name is the POSIX shared-memory name, with leading slash.
	Name string
	// Size is the number of bytes to map.
	Size int
	// Create opens the region with O_CREAT.
	Create bool
	// Excl combines with Create to demand exclusive creation.
	Excl bool
	// ReadOnly maps the region PROT_READ.
	ReadOnly bool
}

// MappedRegion is a live mapping of a shared-memory region.
type MappedRegion struct {
	// Addr is the mapped byte range. Its backing memory is shared with
	// every other process that maps the same region.
	Addr []byte

	fd   int
	path string
}

// Path returns the filesystem path backing the mapping.
func (r *MappedRegion) Path() string { return r.path }

// OpenError reports a failed open of a region's backing file, keeping
// the raw errno reachable for callers that map it to protocol codes.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string { return "open " + e.Path + ": " + e.Err.Error() }

func (e *OpenError) Unwrap() error { return e.Err }
