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
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// testRegionName derives a per-test region name so parallel packages
// and leftover regions from crashed runs never collide.
func testRegionName(t *testing.T) string {
	t.Helper()
	clean := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	return fmt.Sprintf("/nabd_test_%s_%d", clean, os.Getpid())
}

// newTestQueue creates a fresh queue region and tears it down with the
// test.
func newTestQueue(t *testing.T, capacity, slotSize uint64) *Queue {
	t.Helper()
	name := testRegionName(t)
	_ = Unlink(name)
	q, err := Open(name, capacity, slotSize, Create|Producer|Consumer)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = q.Close()
		_ = Unlink(name)
	})
	return q
}
