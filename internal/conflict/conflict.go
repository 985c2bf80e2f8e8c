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

// Package conflict builds the hash set of files owned by surviving
// installed packages (spec §4.F), so extraction can reject payloads
// that would overwrite another package's files.
package conflict

import "github.com/pkgctl/pkgctl/internal/statedb"

// Index maps a relative file path to the name of the installed package
// that owns it. A plain map is used rather than a generic set library:
// spec §4.F needs both O(1) membership and the owning package's name for
// FileConflict diagnostics, and the teacher's own internal/stringset is
// exactly this map shape with no value — see DESIGN.md.
type Index map[string]string

// Build walks every name in db's [Installed] section except those in
// excluded (packages already moved to the backup ledger in the current
// batch) and inserts each of its File1..FileCount entries.
func Build(db *statedb.DB, excluded map[string]bool) Index {
	idx := make(Index)
	for _, name := range db.InstalledNames() {
		if excluded[name] {
			continue
		}
		rec, ok := db.GetPackage(name)
		if !ok {
			continue
		}
		for _, f := range rec.Files {
			idx[f] = name
		}
	}
	return idx
}

// Owner returns the package name owning path, and whether it is owned
// at all.
func (idx Index) Owner(path string) (string, bool) {
	owner, ok := idx[path]
	return owner, ok
}

// Add records path as owned by name. The batch calls it after a package
// has been extracted, so later packages in the same batch conflict with
// that package's files.
func (idx Index) Add(path, name string) {
	idx[path] = name
}
