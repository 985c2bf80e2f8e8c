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

// Package pkgerr defines the error taxonomy shared by every component of
// the install/upgrade engine.
package pkgerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors. Compare with errors.Is; wrap with errors.Wrap/Wrapf to
// add context as an error crosses a component boundary.
var (
	ErrNotEnoughMemory     = errors.New("not enough memory")
	ErrPackageNotInstalled = errors.New("package not installed")
	ErrNoUpgradePath       = errors.New("package has no upgrade path")
	ErrNoSourcePath        = errors.New("package has no source path")
	ErrNoSymbolPath        = errors.New("package has no symbol path")
	ErrMalformed           = errors.New("manifest is malformed")
	ErrWriteFault          = errors.New("write fault")
	ErrAlreadyCurrent      = errors.New("requested version is already installed")
)

// NetworkError reports a condition surfaced by the fetcher.
type NetworkError struct {
	Kind string
	Err  error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("network error (%s): %s", e.Kind, e.Err)
	}
	return fmt.Sprintf("network error (%s)", e.Kind)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *NetworkError) Unwrap() error { return e.Err }

// WrongOSVersion is not a terminal error: it drives the redirect loop in
// the batch orchestrator. Fallback is empty when no older-build path was
// offered by the manifest.
type WrongOSVersion struct {
	MinimumOSBuild int
	HostBuild      int
	Fallback       string
}

func (e *WrongOSVersion) Error() string {
	if e.Fallback != "" {
		return fmt.Sprintf("requires OS build %d, host is %d, fallback available at %s", e.MinimumOSBuild, e.HostBuild, e.Fallback)
	}
	return fmt.Sprintf("requires OS build %d, host is %d", e.MinimumOSBuild, e.HostBuild)
}

// HasFallback reports whether a PackagePathForOlderBuilds was offered.
func (e *WrongOSVersion) HasFallback() bool { return e.Fallback != "" }

// FileConflict reports that extraction would overwrite a file owned by
// another installed package.
type FileConflict struct {
	Path  string
	Owner string
}

func (e *FileConflict) Error() string {
	return fmt.Sprintf("file %q is owned by installed package %q", e.Path, e.Owner)
}
