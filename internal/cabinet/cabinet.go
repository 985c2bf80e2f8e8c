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

// Package cabinet is the external archive-codec collaborator named but
// not specified by spec §1. Archive is the abstract contract the batch
// orchestrator and manifest reader need; ZipArchive is the concrete
// implementation this repository ships (see DESIGN.md: no cabinet-format
// library exists anywhere in the retrieval pack, so the interface is
// satisfied with the closest stdlib archive container instead of a
// fabricated dependency).
package cabinet

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Entry is one file inside a cabinet.
type Entry struct {
	Name string // relative path within the archive, forward-slash separated
	Mode os.FileMode
}

// PerFileFunc is called before each non-manifest entry is written during
// extraction. Returning an error aborts extraction of that file (and,
// per spec §4.G, the whole package).
type PerFileFunc func(relPath string, mode os.FileMode) error

// Archive is the abstract contract required of a cabinet file: list its
// entries, read one entry's bytes, and drive a full extraction while
// invoking a per-file callback before each write (spec §4.G's
// extraction callback a/b/c).
type Archive interface {
	// Entries lists every entry in the archive, including the manifest.
	Entries() ([]Entry, error)
	// ReadEntry returns the raw bytes of one named entry.
	ReadEntry(name string) ([]byte, error)
	// ExtractAll writes every entry except skipName to destDir,
	// calling before(relPath, mode) prior to each write. If before
	// returns an error, extraction stops immediately and that error is
	// returned.
	ExtractAll(destDir, skipName string, before PerFileFunc) error
	// Close releases any resources held by the archive.
	Close() error
}

// Open opens path as a cabinet. The on-disk container format is
// zip (see package doc); callers never depend on this directly.
func Open(path string) (Archive, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening cabinet %s", path)
	}
	return &ZipArchive{r: r}, nil
}

// ZipArchive is the stdlib-backed Archive implementation.
type ZipArchive struct {
	r *zip.ReadCloser
}

// Entries implements Archive.
func (z *ZipArchive) Entries() ([]Entry, error) {
	out := make([]Entry, 0, len(z.r.File))
	for _, f := range z.r.File {
		out = append(out, Entry{Name: f.Name, Mode: f.Mode()})
	}
	return out, nil
}

// ReadEntry implements Archive.
func (z *ZipArchive) ReadEntry(name string) ([]byte, error) {
	for _, f := range z.r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "opening cabinet entry %s", name)
		}
		defer func() { _ = rc.Close() }()
		return io.ReadAll(rc)
	}
	return nil, errors.Errorf("cabinet entry %q not found", name)
}

// ExtractAll implements Archive.
func (z *ZipArchive) ExtractAll(destDir, skipName string, before PerFileFunc) error {
	for _, f := range z.r.File {
		if f.Name == skipName {
			continue
		}
		if err := extractOne(destDir, f, before); err != nil {
			return err
		}
	}
	return nil
}

func extractOne(destDir string, f *zip.File, before PerFileFunc) error {
	if f.FileInfo().IsDir() {
		return os.MkdirAll(filepath.Join(destDir, filepath.FromSlash(f.Name)), 0755)
	}

	if before != nil {
		if err := before(f.Name, f.Mode()); err != nil {
			return err
		}
	}

	dest := filepath.Join(destDir, filepath.FromSlash(f.Name))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.Wrapf(err, "creating directory for %s", dest)
	}

	rc, err := f.Open()
	if err != nil {
		return errors.Wrapf(err, "reading cabinet entry %s", f.Name)
	}
	defer func() { _ = rc.Close() }()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, f.Mode())
	if err != nil {
		return errors.Wrapf(err, "writing %s", dest)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, rc); err != nil {
		return errors.Wrapf(err, "extracting %s", dest)
	}
	return nil
}

// Close implements Archive.
func (z *ZipArchive) Close() error {
	return z.r.Close()
}
