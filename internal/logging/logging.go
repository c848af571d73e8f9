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

// Package logging provides the same plain, timestamped stdout/stderr
// logging the teacher's demo binaries use (fmt.Printf summaries,
// log.Fatalf for fatal startup errors) — no structured logging library,
// matching the teacher's own ambient choice.
package logging

import (
	"fmt"
	"os"
	"time"
)

const (
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
	ansiReset  = "\x1b[0m"
)

// Infof prints a timestamped informational line to stdout.
func Infof(format string, args ...any) {
	fmt.Printf("[%s] %s\n", timestamp(), fmt.Sprintf(format, args...))
}

// Warnf prints a timestamped yellow warning line to stdout.
func Warnf(format string, args ...any) {
	fmt.Printf("%s[%s] WARN %s%s\n", ansiYellow, timestamp(), fmt.Sprintf(format, args...), ansiReset)
}

// Errorf prints a timestamped red error line to stderr.
func Errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s[%s] ERROR %s%s\n", ansiRed, timestamp(), fmt.Sprintf(format, args...), ansiReset)
}

func timestamp() string {
	return time.Now().Format(time.RFC3339)
}
