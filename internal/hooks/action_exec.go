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
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"netwatch/pkg/netwatch/event"
)

const defaultExecTimeout = 30 * time.Second

// execEnv builds the event's env-var mapping (§6): TIMESTAMP, SEQUENCE,
// EVENT_TYPE, MESSAGE_TYPE, INTERFACE, plus a minimal PATH.
func execEnv(e *event.Event) []string {
	return []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"TIMESTAMP=" + strconv.FormatInt(e.Timestamp, 10),
		"SEQUENCE=" + strconv.FormatUint(e.Sequence, 10),
		"EVENT_TYPE=" + strconv.FormatUint(uint64(e.EventType), 10),
		"MESSAGE_TYPE=" + strconv.FormatUint(uint64(e.MessageType), 10),
		"INTERFACE=" + e.Interface,
	}
}

// runExec spawns a.Script under /bin/sh -c, enforcing a.TimeoutMS. On
// timeout the child is killed and (err, true) is returned; per Open
// Question #2 this applies identically whether the hook's Async flag is
// set or not -- the synchronous path gets the same timer-enforced kill,
// not just a computed-but-unused deadline.
func runExec(a ExecAction, e *event.Event) (err error, timedOut bool) {
	timeout := defaultExecTimeout
	if a.TimeoutMS > 0 {
		timeout = time.Duration(a.TimeoutMS) * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", a.Script)
	cmd.Env = execEnv(e)

	var capture bytes.Buffer
	if a.Capture {
		cmd.Stdout = &capture
		cmd.Stderr = &capture
	}

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("exec action timed out after %s", timeout), true
	}
	if runErr != nil {
		return fmt.Errorf("exec action failed: %w", runErr), false
	}
	return nil, false
}
