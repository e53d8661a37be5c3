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
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

const (
	levelTrace = iota
	levelDebug
	levelInfo
	levelWarn
	levelError
	levelNoPrint
)

var (
	level          = levelWarn
	internalLogger = &logger{out: os.Stdout, callDepth: 3}

	levelName = []string{"Trace", "Debug", "Info", "Warn", "Error"}
)

func init() {
	if v := os.Getenv("NABD_LOG_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n <= levelNoPrint {
			level = n
		}
	}
}

// SetLogLevel changes the internal logger's level; the default is
// Warning. The env `NABD_LOG_LEVEL` also sets it.
func SetLogLevel(l int) {
	if l <= levelNoPrint {
		level = l
	}
}

type logger struct {
	out       io.Writer
	callDepth int
}

func (l *logger) logf(lv int, format string, a ...interface{}) {
	if level > lv {
		return
	}
	if _, err := fmt.Fprintf(l.out, l.prefix(lv)+format+"\n", a...); err != nil {
		fmt.Fprintf(os.Stderr, "logger write failed: %v\n", err)
	}
}

func (l *logger) errorf(format string, a ...interface{}) { l.logf(levelError, format, a...) }
func (l *logger) warnf(format string, a ...interface{})  { l.logf(levelWarn, format, a...) }
func (l *logger) infof(format string, a ...interface{})  { l.logf(levelInfo, format, a...) }
func (l *logger) debugf(format string, a ...interface{}) { l.logf(levelDebug, format, a...) }

func (l *logger) prefix(lv int) string {
	_, file, line, ok := runtime.Caller(l.callDepth)
	if !ok {
		file, line = "???", 0
	}
	return levelName[lv] + " " +
		time.Now().Format("2006-01-02 15:04:05.999999") + " " +
		filepath.Base(file) + ":" + strconv.Itoa(line) + " "
}

// DebugQueueDetail prints the control state of the named region.
func DebugQueueDetail(name string) {
	diag, err := Diagnose(name)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("name:%s state:%s head:%d tail:%d pending:%d capacity:%d slot_size:%d\n",
		name, diag.State, diag.Head, diag.Tail, diag.Pending, diag.Capacity, diag.SlotSize)
}
