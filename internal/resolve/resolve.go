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

// Package resolve implements the path resolver (spec §4.B): mirror
// substitution followed by either a network fetch to a temp file or
// filesystem path expansion.
package resolve

import (
	"os"
	"path/filepath"

	"github.com/pkgctl/pkgctl/internal/fetch"
	"github.com/pkgctl/pkgctl/internal/mirror"
	"github.com/pkgctl/pkgctl/internal/pkglog"
	"github.com/pkgctl/pkgctl/internal/statedb"
)

// Result is the outcome of resolving a user-supplied path or URL.
type Result struct {
	LocalPath string
	IsTemp    bool
}

// Resolver composes mirror substitution with a Fetcher to turn a
// user-supplied path or URL into a local file.
type Resolver struct {
	Fetcher fetch.Fetcher
	TempDir string
}

// New returns a Resolver using the default HTTP fetcher and os.TempDir.
func New() *Resolver {
	return &Resolver{Fetcher: fetch.NewHTTPFetcher(), TempDir: os.TempDir()}
}

func mirrorRules(db *statedb.DB) []mirror.Rule {
	kv := db.Mirrors()
	rules := make([]mirror.Rule, 0, len(kv))
	for _, p := range kv {
		rules = append(rules, mirror.Rule{Find: p.Key, Replace: p.Value})
	}
	return rules
}

// Resolve implements spec §4.B: apply mirror substitution, then either
// fetch a URL to a temp file or expand a filesystem path to absolute.
func (r *Resolver) Resolve(userPath string, db *statedb.DB) (Result, error) {
	path := userPath
	if db != nil {
		rewritten, rewrote := mirror.Apply(userPath, mirrorRules(db))
		if rewrote {
			pkglog.Debug(pkglog.Resolve, "mirror rewrote %s to %s", userPath, rewritten)
			path = rewritten
		}
	}

	if fetch.Recognized(path) {
		pkglog.Progress("Downloading %s...", path)
		local, err := r.Fetcher.FetchToTemp(path, r.TempDir)
		if err != nil {
			return Result{}, err
		}
		return Result{LocalPath: local, IsTemp: true}, nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{}, err
	}
	return Result{LocalPath: abs, IsTemp: false}, nil
}
