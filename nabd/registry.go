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
	cmap "github.com/orcaman/concurrent-map/v2"
)

// openQueues tracks this process's open handles by region name, for
// debug dumps and metrics exporters that enumerate live queues. The
// latest handle opened on a name wins.
var openQueues = cmap.New[*Queue]()

func registerQueue(q *Queue) {
	openQueues.Set(q.name, q)
}

func deregisterQueue(q *Queue) {
	openQueues.RemoveCb(q.name, func(_ string, cur *Queue, exists bool) bool {
		return exists && cur == q
	})
}

// OpenQueues returns the queues currently open in this process.
func OpenQueues() []*Queue {
	out := make([]*Queue, 0, openQueues.Count())
	for _, q := range openQueues.Items() {
		out = append(out, q)
	}
	return out
}

// DebugAllQueues prints the control state of every open queue.
func DebugAllQueues() {
	for _, q := range OpenQueues() {
		DebugQueueDetail(q.Name())
	}
}
