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

// Package batch implements the pending-batch orchestrator (spec §4.G):
// the core that stages candidate packages, drives the manifest/backup/
// conflict components, follows the OS-build redirect chain, extracts
// payloads, and commits or rolls back the whole batch as a unit.
package batch

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl/internal/backup"
	"github.com/pkgctl/pkgctl/internal/cabinet"
	"github.com/pkgctl/pkgctl/internal/conflict"
	"github.com/pkgctl/pkgctl/internal/manifest"
	"github.com/pkgctl/pkgctl/internal/pkgerr"
	"github.com/pkgctl/pkgctl/internal/pkglog"
	"github.com/pkgctl/pkgctl/internal/resolve"
	"github.com/pkgctl/pkgctl/internal/statedb"
)

// MaxRedirectHops bounds the OS-build fallback chain (spec §4.G
// "Prepare-with-redirect"); combined with cycle detection on the set of
// URLs already attempted, a malformed chain cannot loop forever.
const MaxRedirectHops = 16

// Pending is a package staged for install: its manifest, the local path
// to its cabinet, and whether that path is a temp download to delete on
// teardown (spec §3).
type Pending struct {
	Manifest  manifest.Manifest
	LocalPath string
	IsTemp    bool
}

// CompressionHint is an injectable, best-effort hook standing in for
// spec §4.G's "optionally initialize filesystem compression for the
// target directory if supported; otherwise fall through." It is called
// synchronously before each pending package's extraction, and once more
// in a detached goroutine after the whole batch succeeds, matching spec
// §5's "implementations may internally parallelize filesystem
// compression of already-extracted files... a detached fire-and-forget
// optimization whose completion is not awaited before commit." A nil
// hint is a no-op either way.
type CompressionHint func(dir string)

// Batch is one invocation of the orchestrator: some number of prepared
// packages, committed or rolled back together.
type Batch struct {
	DB          *statedb.DB
	Resolver    *resolve.Resolver
	Ledger      *backup.Ledger
	InstallRoot string
	HostBuild   int

	// CompressionHint is called per package before extraction, and
	// once more detached after a successful commit. Nil disables it.
	CompressionHint CompressionHint

	openArchive func(path string) (cabinet.Archive, error)

	pending   []Pending
	tempFiles []string
}

// New returns a ready-to-use Batch rooted at installRoot, for a host
// reporting hostBuild as its current OS build number.
func New(db *statedb.DB, installRoot string, hostBuild int) *Batch {
	return &Batch{
		DB:          db,
		Resolver:    resolve.New(),
		Ledger:      backup.New(db, installRoot),
		InstallRoot: installRoot,
		HostBuild:   hostBuild,
		openArchive: cabinet.Open,
	}
}

// Pending returns the packages staged so far, in the order they were
// added.
func (b *Batch) Pending() []Pending { return b.pending }

// Teardown rolls back any backups the ledger still holds (a batch that
// was prepared but never committed) and deletes every temporary file
// recorded during resolve or manifest staging, regardless of outcome
// (spec §5's scoped resources). Safe to call multiple times.
func (b *Batch) Teardown() {
	if b.Ledger != nil && !b.Ledger.Empty() {
		b.Ledger.Rollback()
	}
	for _, p := range b.tempFiles {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			pkglog.Warning(pkglog.Batch, "failed to remove temp file %s: %s", p, err)
		}
	}
	b.tempFiles = nil
}

// Prepare stages one package (spec §4.G "Prepare one URL"): resolve,
// read its manifest, check applicability, back up whatever it and its
// Replaces list supersede, and append a pending record.
//
// Returns pkgerr.ErrAlreadyCurrent (not a failure — callers treat it as
// success with no state change) when the requested version is already
// installed, and *pkgerr.WrongOSVersion (non-terminal; drives the
// redirect loop in PrepareWithRedirect) when the host build is too old.
func (b *Batch) Prepare(userPath string) error {
	res, err := b.Resolver.Resolve(userPath, b.DB)
	if err != nil {
		return err
	}
	if res.IsTemp {
		b.tempFiles = append(b.tempFiles, res.LocalPath)
	}

	m, err := manifest.Read(res.LocalPath)
	if err != nil {
		return err
	}

	if installed, ok := b.DB.InstalledVersion(m.Name); ok && installed == m.Version {
		pkglog.Progress("%s version %s is already installed", m.Name, m.Version)
		return pkgerr.ErrAlreadyCurrent
	}

	if m.MinimumOSBuild > b.HostBuild {
		return &pkgerr.WrongOSVersion{
			MinimumOSBuild: m.MinimumOSBuild,
			HostBuild:      b.HostBuild,
			Fallback:       m.PackagePathForOlderBuilds,
		}
	}

	if _, ok := b.DB.InstalledVersion(m.Name); ok {
		if err := b.Ledger.BackUp(m.Name); err != nil {
			return errors.Wrapf(err, "backing up %s", m.Name)
		}
	}
	for _, replaced := range m.Replaces {
		if _, ok := b.DB.InstalledVersion(replaced); ok {
			if err := b.Ledger.BackUp(replaced); err != nil {
				return errors.Wrapf(err, "backing up %s (replaced by %s)", replaced, m.Name)
			}
		}
	}

	b.pending = append(b.pending, Pending{Manifest: m, LocalPath: res.LocalPath, IsTemp: res.IsTemp})
	return nil
}

// PrepareWithRedirect wraps Prepare with spec §4.G's "Prepare-with-
// redirect": on a WrongOSVersion with a fallback URL, it announces the
// hop and retries against that URL, up to MaxRedirectHops, detecting
// cycles in malformed chains. On a WrongOSVersion with no fallback, or
// any other error, it returns that error. ErrAlreadyCurrent is treated
// as success, per spec §7.
func (b *Batch) PrepareWithRedirect(userPath string) error {
	seen := make(map[string]bool)
	url := userPath

	for hop := 0; hop < MaxRedirectHops; hop++ {
		if seen[url] {
			return errors.Errorf("redirect cycle detected at %s", url)
		}
		seen[url] = true

		err := b.Prepare(url)
		if err == nil || err == pkgerr.ErrAlreadyCurrent {
			return nil
		}

		wrong, ok := err.(*pkgerr.WrongOSVersion)
		if !ok || !wrong.HasFallback() {
			return err
		}

		pkglog.Progress("OS too old, attempting %s", wrong.Fallback)
		url = wrong.Fallback
	}
	return errors.Errorf("exceeded maximum redirect chain length (%d)", MaxRedirectHops)
}

// Commit runs spec §4.G "Commit the batch": build the conflict index
// over surviving installed packages, extract every pending package in
// order under a per-file conflict check, and either commit the backup
// ledger on full success or roll it back on the first failure.
func (b *Batch) Commit() error {
	defer b.Teardown()

	replaced := make(map[string]bool)
	for _, e := range b.Ledger.Entries() {
		replaced[e.Name] = true
	}
	idx := conflict.Build(b.DB, replaced)

	for i, p := range b.pending {
		m := p.Manifest
		pkglog.Progress("Installing %s version %s (%d/%d)...", m.Name, m.Version, i+1, len(b.pending))

		if err := b.DB.Set(statedb.InstalledSection, m.Name, "0"); err != nil {
			pkglog.Fail("%s", err)
			b.Ledger.Rollback()
			return errors.Wrapf(err, "writing sentinel for %s", m.Name)
		}

		if b.CompressionHint != nil {
			b.CompressionHint(b.InstallRoot)
		}

		if err := b.extractOne(idx, p); err != nil {
			pkglog.Fail("installing %s: %s", m.Name, err)
			b.abortPackage(m.Name)
			b.Ledger.Rollback()
			return err
		}
	}

	b.Ledger.Commit()
	if b.CompressionHint != nil {
		go b.CompressionHint(b.InstallRoot)
	}
	b.pending = nil
	return nil
}

// extractOne drives cabinet extraction for one pending package over
// every entry except the manifest, rejecting any file already owned by
// a surviving installed package (spec §4.F), then writes the finalized
// record.
func (b *Batch) extractOne(idx conflict.Index, p Pending) error {
	m := p.Manifest

	arc, err := b.openArchive(p.LocalPath)
	if err != nil {
		return errors.Wrap(pkgerr.ErrWriteFault, err.Error())
	}
	defer func() { _ = arc.Close() }()

	var files []string
	before := func(relPath string, mode os.FileMode) error {
		if owner, ok := idx.Owner(relPath); ok {
			return &pkgerr.FileConflict{Path: relPath, Owner: owner}
		}
		files = append(files, relPath)
		return nil
	}

	if err := arc.ExtractAll(b.InstallRoot, manifest.EntryName, before); err != nil {
		for _, f := range files {
			if rerr := os.Remove(filepath.Join(b.InstallRoot, filepath.FromSlash(f))); rerr != nil && !os.IsNotExist(rerr) {
				pkglog.Warning(pkglog.Batch, "failed to remove partially extracted %s: %s", f, rerr)
			}
		}
		return err
	}

	for _, f := range files {
		idx.Add(f, m.Name)
	}

	return b.DB.PutPackage(m.Name, m.ToRecord(files))
}

// abortPackage clears a package's partial section and sentinel
// [Installed] entry after a failed install, so the batch leaves no
// orphaned trace of the attempt (spec §4.G "clear Installed[name]").
func (b *Batch) abortPackage(name string) {
	if err := b.DB.DeleteSection(name); err != nil {
		pkglog.Warning(pkglog.Batch, "failed to clear section %s after abort: %s", name, err)
	}
	if err := b.DB.DeleteKey(statedb.InstalledSection, name); err != nil {
		pkglog.Warning(pkglog.Batch, "failed to clear installed entry %s after abort: %s", name, err)
	}
}
