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

package cmd

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl/internal/pkgerr"
	"github.com/pkgctl/pkgctl/internal/pkglog"
)

// runFetchAuxiliary implements "install --source <name>" / "--symbols
// <name>": fetch the SourcePath or SymbolPath URL recorded for an
// already-installed package, reusing resolve.Resolve for mirror
// substitution and download (spec.md §7 NoSourcePath/NoSymbolPath).
func runFetchAuxiliary(name string, wantSource bool) error {
	db, err := openDB()
	if err != nil {
		return err
	}

	rec, ok := db.GetPackage(name)
	if !ok {
		return pkgerr.ErrPackageNotInstalled
	}

	url := rec.SymbolPath
	kind := "symbols"
	if wantSource {
		url = rec.SourcePath
		kind = "source"
	}
	if url == "" {
		if wantSource {
			return pkgerr.ErrNoSourcePath
		}
		return pkgerr.ErrNoSymbolPath
	}

	cfg, err := openToolConfig()
	if err != nil {
		return err
	}
	r, err := newResolver(cfg)
	if err != nil {
		return err
	}
	res, err := r.Resolve(url, db)
	if err != nil {
		return errors.Wrapf(err, "fetching %s for %s", kind, name)
	}
	if !res.IsTemp {
		pkglog.Progress("%s %s already local at %s", name, kind, res.LocalPath)
		return nil
	}

	dest := filepath.Join(rootFlags.installDir, destFileName(url, res))
	if err := os.Rename(res.LocalPath, dest); err != nil {
		return errors.Wrapf(err, "saving %s for %s", kind, name)
	}
	pkglog.Progress("%s %s saved to %s", name, kind, dest)
	return nil
}
