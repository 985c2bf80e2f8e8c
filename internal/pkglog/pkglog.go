// Copyright © 2018 Intel Corporation
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

// Package pkglog provides the tagged, leveled logger shared by every
// component of the install/upgrade engine. Progress goes to stdout,
// failures to stderr, matching the user-visible output contract.
package pkglog

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Log levels, from least to most verbose.
const (
	LevelError = iota + 1
	LevelWarning
	LevelInfo
	LevelDebug
)

// Component tags used across the engine.
const (
	DB        = "STATEDB"
	Resolve   = "RESOLVE"
	Catalog   = "CATALOG"
	Manifest  = "MANIFEST"
	Backup    = "BACKUP"
	Conflict  = "CONFLICT"
	Batch     = "BATCH"
	Uninstall = "UNINSTALL"
	Fetch     = "FETCH"
)

var (
	level      = LevelInfo
	fileHandle *os.File
	logging    bool
)

// ParseLevel maps a config/CLI level name ("error", "warning", "info",
// "debug", case-insensitive) to its Level constant.
func ParseLevel(name string) (int, bool) {
	switch strings.ToLower(name) {
	case "error":
		return LevelError, true
	case "warning":
		return LevelWarning, true
	case "info":
		return LevelInfo, true
	case "debug":
		return LevelDebug, true
	default:
		return 0, false
	}
}

// SetLevel sets the minimum level that will be printed.
func SetLevel(l int) {
	if l < LevelError {
		l = LevelError
	} else if l > LevelDebug {
		l = LevelDebug
	}
	level = l
}

// SetOutputFile redirects all log output (not the user-facing stdout/stderr
// progress messages) to a file.
func SetOutputFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}
	fileHandle = f
	log.SetOutput(f)
	logging = true
	return f, nil
}

// Close closes the log output file, if one was opened with SetOutputFile.
func Close() {
	if logging && fileHandle != nil {
		_ = fileHandle.Close()
		logging = false
	}
}

func logTag(lvl int, tagName, component, format string, a ...interface{}) {
	if lvl > level {
		return
	}
	if len(a) == 0 {
		format = strings.ReplaceAll(format, "%", "%%")
	}
	log.Printf("[%s][%s] %s\n", tagName, component, fmt.Sprintf(format, a...))
}

// Error logs at error level.
func Error(component, format string, a ...interface{}) { logTag(LevelError, "ERR", component, format, a...) }

// Warning logs at warning level.
func Warning(component, format string, a ...interface{}) {
	logTag(LevelWarning, "WRN", component, format, a...)
}

// Info logs at info level.
func Info(component, format string, a ...interface{}) { logTag(LevelInfo, "INF", component, format, a...) }

// Debug logs at debug level.
func Debug(component, format string, a ...interface{}) { logTag(LevelDebug, "DBG", component, format, a...) }

// Progress writes a user-visible progress line to stdout, e.g.
// "Downloading foo-1.2.cab..." or "Installing foo version 1.2 (1/3)...".
func Progress(format string, a ...interface{}) {
	fmt.Printf(format+"\n", a...)
}

// Fail writes a user-visible failure line to stderr.
func Fail(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
}
