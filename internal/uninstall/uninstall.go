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

// Package uninstall implements the uninstall engine (spec §4.H): delete
// a package's files, prune now-empty parent directories, and remove its
// index entries.
package uninstall

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl/internal/pkgerr"
	"github.com/pkgctl/pkgctl/internal/pkglog"
	"github.com/pkgctl/pkgctl/internal/statedb"
)

// DeleteAttempts and DeleteRetryDelay bound the "small bounded retry
// spaced by short sleeps" spec.md §4.H.2 asks for to tolerate transient
// sharing locks. The teacher's own deletes assume a single writer and
// never retry; pkgctl's spec explicitly does not, so this generalizes
// the teacher's defensive os.Remove calls with a bounded retry loop.
var (
	DeleteAttempts   = 3
	DeleteRetryDelay = 20 * time.Millisecond
)

// Engine deletes installed packages' files and cleans up their index
// entries, rooted at InstallRoot.
type Engine struct {
	DB          *statedb.DB
	InstallRoot string

	// SelfPath, when set, excludes the currently-running executable
	// from the pre-check in spec.md §4.H.1 ("the currently-running
	// executable is permitted to appear undeletable").
	SelfPath string
}

// New returns an Engine rooted at installRoot.
func New(db *statedb.DB, installRoot string) *Engine {
	return &Engine{DB: db, InstallRoot: installRoot}
}

// absPath resolves a relative-file-list entry the same way backup.Ledger
// does: a path prefixed with the reserved "!" marker is fully qualified
// and used verbatim after stripping the marker.
func (e *Engine) absPath(rel string) string {
	if len(rel) > 0 && rel[0] == outsideRootPrefix {
		return rel[1:]
	}
	return filepath.Join(e.InstallRoot, rel)
}

const outsideRootPrefix = '!'

// PreCheck implements spec.md §4.H.1: attempt to open every file of name
// with delete intent, without deleting, to decide whether the uninstall
// can proceed. The currently running executable (e.SelfPath) is excluded
// from the check and is permitted to appear undeletable.
func (e *Engine) PreCheck(name string) error {
	rec, ok := e.DB.GetPackage(name)
	if !ok {
		return pkgerr.ErrPackageNotInstalled
	}
	for _, rel := range rec.Files {
		abs := e.absPath(rel)
		if e.SelfPath != "" && abs == e.SelfPath {
			continue
		}
		if err := checkDeletable(abs); err != nil {
			return errors.Wrapf(err, "cannot delete %s", abs)
		}
	}
	return nil
}

// checkDeletable probes whether abs can later be deleted, without
// deleting it. A missing file is not a precheck failure: it is simply
// nothing to delete.
func checkDeletable(abs string) error {
	f, err := os.OpenFile(abs, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return f.Close()
}

// Uninstall implements spec.md §4.H.2-4: delete every Filek with a small
// bounded retry, prune now-empty parent directories after each
// successful delete, then remove the package's index entries.
//
// If the first file cannot be deleted, Uninstall aborts immediately and
// the state DB is left untouched. If a later file cannot be deleted, the
// failure is logged and torn-down continues regardless, since the
// package is already inconsistent; the index is still fully cleaned up
// at the end.
func (e *Engine) Uninstall(name string) error {
	rec, ok := e.DB.GetPackage(name)
	if !ok {
		return pkgerr.ErrPackageNotInstalled
	}

	for i, rel := range rec.Files {
		abs := e.absPath(rel)
		if err := deleteWithRetry(abs); err != nil {
			if i == 0 {
				return errors.Wrapf(err, "deleting %s", abs)
			}
			pkglog.Warning(pkglog.Uninstall, "failed to delete %s: %s", abs, err)
			continue
		}
		pruneEmptyParents(filepath.Dir(abs), e.InstallRoot)
	}

	return e.DB.RemovePackage(name)
}

// deleteWithRetry attempts to remove abs, retrying a few times spaced by
// a short sleep to tolerate transient sharing locks. A missing file is
// treated as already deleted.
func deleteWithRetry(abs string) error {
	var lastErr error
	for attempt := 0; attempt < DeleteAttempts; attempt++ {
		err := os.Remove(abs)
		if err == nil || os.IsNotExist(err) {
			return nil
		}
		lastErr = err
		time.Sleep(DeleteRetryDelay)
	}
	return lastErr
}

// pruneEmptyParents walks up from dir toward (and not above) root,
// removing directories that are now empty, stopping at the first
// non-empty one.
func pruneEmptyParents(dir, root string) {
	root = filepath.Clean(root)
	for {
		dir = filepath.Clean(dir)
		if dir == root || len(dir) <= len(root) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
