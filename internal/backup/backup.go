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

// Package backup implements the backup ledger (spec §4.E): the
// transactional core that shadow-renames a superseded package's files,
// clears its index entries, and either commits (deletes the shadows) or
// rolls back (restores them) the whole batch.
package backup

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl/internal/pkglog"
	"github.com/pkgctl/pkgctl/internal/statedb"
)

// FileRecord is one file within a backup entry.
type FileRecord struct {
	OriginalAbs string
	OriginalRel string
	ShadowAbs   string // empty if the original file was absent on disk
}

// Entry is one package's backup: its prior index record, plus the
// shadow-renamed files that back it.
type Entry struct {
	Name   string
	Record statedb.PackageRecord
	Files  []FileRecord
}

// ShadowNamer generates a unique shadow path for an original absolute
// path, in the same directory. The default implementation appends a
// random hex suffix; spec §4.E leaves uniqueness to an external
// primitive, which this is standing in for.
type ShadowNamer func(originalAbs string) (string, error)

// DefaultShadowNamer is ShadowNamer's default implementation.
func DefaultShadowNamer(originalAbs string) (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return originalAbs + ".pkgctl-bak-" + hex.EncodeToString(buf[:]), nil
}

// Ledger accumulates backup entries for one batch. Its zero value is
// ready to use. Rollback restores every entry it holds; Commit deletes
// their shadow files. Per spec §9's "value type whose destructor
// performs rollback unless commit has consumed it" guidance, callers
// defer a call that rolls back whatever the ledger still holds — see
// batch.Batch.Teardown for the concrete wiring.
type Ledger struct {
	DB          *statedb.DB
	Namer       ShadowNamer
	InstallRoot string
	entries     []Entry
}

// New returns a ready-to-use Ledger over db, resolving relative file
// entries under installRoot.
func New(db *statedb.DB, installRoot string) *Ledger {
	return &Ledger{DB: db, Namer: DefaultShadowNamer, InstallRoot: installRoot}
}

// Entries returns the accumulated backup entries, in the order they
// were added.
func (l *Ledger) Entries() []Entry { return l.entries }

// Empty reports whether the ledger holds no entries — spec §3 invariant
//5's "empty iff not mid-batch" condition.
func (l *Ledger) Empty() bool { return len(l.entries) == 0 }

// BackUp shadow-renames every file of the named installed package,
// clears its section and [Installed] entry, and appends the resulting
// entry to the ledger. If any rename after the first fails with
// something other than FileNotFound, every rename already performed in
// this call is undone before the error is returned.
func (l *Ledger) BackUp(name string) error {
	rec, ok := l.DB.GetPackage(name)
	if !ok {
		return errors.Errorf("cannot back up %q: not installed", name)
	}

	namer := l.Namer
	if namer == nil {
		namer = DefaultShadowNamer
	}

	entry := Entry{Name: name, Record: rec}
	for _, rel := range rec.Files {
		abs := l.absPath(rel)
		fr := FileRecord{OriginalAbs: abs, OriginalRel: rel}

		if _, err := os.Lstat(abs); err != nil {
			if os.IsNotExist(err) {
				entry.Files = append(entry.Files, fr)
				continue
			}
			undoRenames(entry.Files)
			return errors.Wrapf(err, "backing up %s", abs)
		}

		shadow, err := namer(abs)
		if err != nil {
			undoRenames(entry.Files)
			return errors.Wrapf(err, "generating shadow name for %s", abs)
		}
		if err := os.Rename(abs, shadow); err != nil {
			if os.IsNotExist(err) {
				entry.Files = append(entry.Files, fr)
				continue
			}
			undoRenames(entry.Files)
			return errors.Wrapf(err, "renaming %s to shadow", abs)
		}
		fr.ShadowAbs = shadow
		entry.Files = append(entry.Files, fr)
	}

	if err := l.DB.RemovePackage(name); err != nil {
		undoRenames(entry.Files)
		return errors.Wrapf(err, "clearing index entry for %s", name)
	}

	l.entries = append(l.entries, entry)
	pkglog.Debug(pkglog.Backup, "backed up %s %s (%d files)", name, rec.Version, len(entry.Files))
	return nil
}

func undoRenames(files []FileRecord) {
	for _, fr := range files {
		if fr.ShadowAbs == "" {
			continue
		}
		if err := os.Rename(fr.ShadowAbs, fr.OriginalAbs); err != nil {
			pkglog.Warning(pkglog.Backup, "failed to undo shadow rename of %s: %s", fr.OriginalAbs, err)
		}
	}
}

// Commit best-effort deletes every shadow file in the ledger and clears
// it. Commit never fails: remaining shadows are benign garbage (spec
// §4.E).
func (l *Ledger) Commit() {
	for _, entry := range l.entries {
		for _, fr := range entry.Files {
			if fr.ShadowAbs == "" {
				continue
			}
			if err := os.Remove(fr.ShadowAbs); err != nil && !os.IsNotExist(err) {
				pkglog.Warning(pkglog.Backup, "failed to remove shadow %s: %s", fr.ShadowAbs, err)
			}
		}
	}
	l.entries = nil
}

// Rollback restores every entry in the ledger, in the order they were
// added (so the first package backed up is restored first), and clears
// the ledger.
func (l *Ledger) Rollback() {
	for _, entry := range l.entries {
		l.rollbackOne(entry)
	}
	l.entries = nil
}

func (l *Ledger) rollbackOne(entry Entry) {
	if err := l.DB.DeleteSection(entry.Name); err != nil {
		pkglog.Warning(pkglog.Backup, "rollback: failed to clear section %s: %s", entry.Name, err)
	}

	for _, fr := range entry.Files {
		if fr.ShadowAbs == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(fr.OriginalAbs), 0755); err != nil {
			pkglog.Warning(pkglog.Backup, "rollback: failed to recreate directory for %s: %s", fr.OriginalAbs, err)
			continue
		}
		if err := os.Rename(fr.ShadowAbs, fr.OriginalAbs); err != nil {
			pkglog.Warning(pkglog.Backup, "rollback: failed to restore %s: %s", fr.OriginalAbs, err)
		}
	}

	if err := l.DB.PutPackage(entry.Name, entry.Record); err != nil {
		pkglog.Warning(pkglog.Backup, "rollback: failed to restore index for %s: %s", entry.Name, err)
	}
}

// absPath resolves a relative-file-list entry. A path prefixed with the
// reserved "!" marker (spec §3: "a fully-qualified path marked by a
// reserved prefix to indicate it is outside the root") is used verbatim
// after stripping the marker; otherwise it is joined under InstallRoot.
func (l *Ledger) absPath(rel string) string {
	if len(rel) > 0 && rel[0] == OutsideRootPrefix {
		return rel[1:]
	}
	return filepath.Join(l.InstallRoot, rel)
}

// OutsideRootPrefix marks a File entry as a fully-qualified path outside
// the install root (spec §3).
const OutsideRootPrefix = '!'
