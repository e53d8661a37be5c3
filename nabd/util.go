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
	"errors"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/nabdio/nabd-go/internal/shm"
)

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// canCreateOnDevShm checks free space before creating a region on
// /dev/shm. Paths outside /dev/shm always pass; tmpfs exhaustion there
// surfaces as SIGBUS on first touch, so refusing up front is the only
// safe report.
func canCreateOnDevShm(size uint64, path string) bool {
	if !strings.HasPrefix(path, "/dev/shm") {
		return true
	}
	usage, err := disk.Usage("/dev/shm")
	if err != nil {
		internalLogger.warnf("disk usage of /dev/shm: %v", err)
		return true
	}
	return usage.Free >= size
}

func asOpenError(err error, target **shm.OpenError) bool {
	return errors.As(err, target)
}
