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

// Package catalog parses remote pkglist.ini sources, follows source
// chaining, and selects the best match for a requested package (spec
// §4.C).
package catalog

import (
	"os"
	"strconv"
	"strings"

	"github.com/go-ini/ini"
	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl/internal/fetch"
	"github.com/pkgctl/pkgctl/internal/pkgid"
	"github.com/pkgctl/pkgctl/internal/pkglog"
)

// ListFileName is the fixed name of a source's catalog file.
const ListFileName = "pkglist.ini"

// Package is one (name, version, architecture) entry provided by a
// source, with the relative cabinet path and optional OS-build fallback
// fields for that architecture.
type Package struct {
	pkgid.ID
	RelPath                   string
	MinimumOSBuild            int
	PackagePathForOlderBuilds string
	SourceRoot                string
}

// URL returns the absolute cabinet URL for this package entry.
func (p Package) URL() string {
	return strings.TrimSuffix(p.SourceRoot, "/") + "/" + strings.TrimPrefix(p.RelPath, "/")
}

// knownArches is the set of architecture keys recognized inside a
// per-package pkglist.ini section. Selection when no architecture is
// requested uses pkgid.PreferenceOrder, not this list's order.
var knownArches = []string{pkgid.ArchAMD64, pkgid.ArchWin32, pkgid.ArchNoarch}

// Fetch downloads and parses one source's pkglist.ini, returning its
// chained sources and the packages it provides.
func Fetch(f fetch.Fetcher, sourceRoot, tempDir string) (sources []string, packages []Package, err error) {
	listURL := strings.TrimSuffix(sourceRoot, "/") + "/" + ListFileName
	local, err := f.FetchToTemp(listURL, tempDir)
	if err != nil {
		return nil, nil, err
	}

	raw, err := os.ReadFile(local)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := ini.InsensitiveLoad(raw)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "parsing %s", listURL)
	}

	if s, serr := cfg.GetSection("Sources"); serr == nil {
		for _, k := range s.Keys() {
			sources = append(sources, k.Value())
		}
	}

	provides, perr := cfg.GetSection("Provides")
	if perr != nil {
		return sources, nil, nil
	}

	for _, k := range provides.Keys() {
		name := k.Name()
		sec, serr := cfg.GetSection(name)
		if serr != nil {
			continue
		}
		version := sec.Key("Version").Value()
		for _, arch := range knownArches {
			relKey := sec.Key(arch)
			if relKey.Value() == "" {
				continue
			}
			pkg := Package{
				ID:         pkgid.ID{Name: name, Version: version, Arch: arch},
				RelPath:    relKey.Value(),
				SourceRoot: sourceRoot,
			}
			if v := sec.Key(arch + ".minimumosbuild").Value(); v != "" {
				if n, nerr := strconv.Atoi(v); nerr == nil {
					pkg.MinimumOSBuild = n
				}
			}
			pkg.PackagePathForOlderBuilds = sec.Key(arch + ".packagepathforolderbuilds").Value()
			packages = append(packages, pkg)
		}
	}

	return sources, packages, nil
}

// CollectAll performs a breadth-first traversal of the source chain
// starting at initial, deduplicating by URL, and returns every
// discovered source and package.
func CollectAll(f fetch.Fetcher, initial []string, tempDir string) (sources []string, packages []Package, err error) {
	seen := map[string]bool{}
	queue := append([]string{}, initial...)

	for len(queue) > 0 {
		root := queue[0]
		queue = queue[1:]
		if seen[root] {
			continue
		}
		seen[root] = true
		sources = append(sources, root)

		chained, pkgs, ferr := Fetch(f, root, tempDir)
		if ferr != nil {
			pkglog.Warning(pkglog.Catalog, "failed to fetch source %s: %s", root, ferr)
			continue
		}
		packages = append(packages, pkgs...)
		for _, c := range chained {
			if !seen[c] {
				queue = append(queue, c)
			}
		}
	}

	return sources, packages, nil
}

// Find selects, for each requested name, the best matching package: the
// highest lexicographic version if version is empty, then the requested
// architecture or the fixed preference order if arch is empty. Ties
// within equal preference resolve to first-found.
func Find(packages []Package, names []string, version, arch string) []Package {
	var out []Package
	for _, name := range names {
		match, ok := findOne(packages, name, version, arch)
		if ok {
			out = append(out, match)
		}
	}
	return out
}

func findOne(packages []Package, name, version, arch string) (Package, bool) {
	var candidates []Package
	for _, p := range packages {
		if p.Name == name {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return Package{}, false
	}

	wantVersion := version
	if wantVersion == "" {
		versions := make([]string, 0, len(candidates))
		for _, c := range candidates {
			versions = append(versions, c.Version)
		}
		wantVersion = pkgid.Newest(versions)
	}

	var atVersion []Package
	for _, c := range candidates {
		if c.Version == wantVersion {
			atVersion = append(atVersion, c)
		}
	}
	if len(atVersion) == 0 {
		return Package{}, false
	}

	if arch != "" {
		for _, c := range atVersion {
			if c.Arch == arch {
				return c, true
			}
		}
		return Package{}, false
	}

	for _, pref := range pkgid.PreferenceOrder() {
		for _, c := range atVersion {
			if c.Arch == pref {
				return c, true
			}
		}
	}
	return atVersion[0], true
}
