// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hooks

import (
	"fmt"
	"os"
	"sync"
	"time"

	"netwatch/pkg/netwatch/event"
)

// logFileCache keeps one open, mutex-guarded file handle per path so
// repeated triggers of the same rule don't reopen the file every time;
// adapted from the teacher's buffered file sinks (append-only, flush on
// every write since log lines are low-volume compared to the teacher's
// batch sinks).
type logFileCache struct {
	mu    sync.Mutex
	files map[string]*os.File
}

var logFiles = &logFileCache{files: make(map[string]*os.File)}

func (c *logFileCache) open(path string, appendMode bool) (*os.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.files[path]; ok {
		return f, nil
	}
	flag := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flag |= os.O_APPEND
	} else {
		flag |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, err
	}
	c.files[path] = f
	return f, nil
}

// runLog appends one line to a.Path: ISO-local time, severity, rule
// name, and an event summary (§4.I). The truncate-vs-append flag only
// applies the first time a given path is opened by this process.
func runLog(a LogAction, rule Rule, e *event.Event, now time.Time) error {
	f, err := logFiles.open(a.Path, a.Append)
	if err != nil {
		return fmt.Errorf("log action: open %s: %w", a.Path, err)
	}

	line := fmt.Sprintf("%s [%s] %s interface=%s message_type=%d sequence=%d\n",
		now.Format("2006-01-02T15:04:05.000"), rule.Severity, rule.Name, e.Interface, e.MessageType, e.Sequence)

	logFiles.mu.Lock()
	defer logFiles.mu.Unlock()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("log action: write %s: %w", a.Path, err)
	}
	return nil
}
