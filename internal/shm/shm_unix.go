//go:build linux || darwin

package shm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// shmDir returns the directory backing the POSIX shm namespace. Linux
// exposes it as /dev/shm; elsewhere we fall back to the temp directory,
// which still gives every process the same file to map.
func shmDir() string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

// RegionPath translates a POSIX-style region name into the backing path.
func RegionPath(name string) string {
	return filepath.Join(shmDir(), strings.TrimPrefix(name, "/"))
}

// Exists reports whether the named region is present in the namespace.
func Exists(name string) bool {
	_, err := os.Stat(RegionPath(name))
	return err == nil
}

// Map creates or attaches the named region and maps opts.Size bytes of it.
func Map(opts MapOptions) (*MappedRegion, error) {
	flags := unix.O_RDWR
	prot := unix.PROT_READ | unix.PROT_WRITE
	if opts.ReadOnly {
		flags = unix.O_RDONLY
		prot = unix.PROT_READ
	}
	if opts.Create {
		flags |= unix.O_CREAT
		if opts.Excl {
			flags |= unix.O_EXCL
		}
	}

	path := RegionPath(opts.Name)
	fd, err := unix.Open(path, flags, 0o666)
	if err != nil {
		return nil, &OpenError{Path: path, Err: err}
	}
	if opts.Create {
		if err := unix.Ftruncate(fd, int64(opts.Size)); err != nil {
			_ = unix.Close(fd)
			_ = unix.Unlink(path)
			return nil, fmt.Errorf("ftruncate %s: %w", path, err)
		}
	}

	addr, err := unix.Mmap(fd, 0, opts.Size, prot, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &MappedRegion{Addr: addr, fd: fd, path: path}, nil
}

// Unmap releases the mapping and closes the backing descriptor. The
// region itself stays in the namespace until Unlink.
func (r *MappedRegion) Unmap() error {
	if r == nil || r.Addr == nil {
		return nil
	}
	err := unix.Munmap(r.Addr)
	r.Addr = nil
	if cerr := unix.Close(r.fd); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("munmap %s: %w", r.path, err)
	}
	return nil
}

// Unlink removes the named region from the namespace. Processes that
// already mapped it keep their mappings until they unmap.
func Unlink(name string) error {
	return unix.Unlink(RegionPath(name))
}
