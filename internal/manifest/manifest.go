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

// Package manifest extracts and parses the pkginfo.ini manifest embedded
// in every cabinet (spec §4.D).
package manifest

import (
	"strconv"

	"github.com/go-ini/ini"
	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl/internal/cabinet"
	"github.com/pkgctl/pkgctl/internal/pkgerr"
	"github.com/pkgctl/pkgctl/internal/statedb"
)

// EntryName is the fixed name of the embedded manifest inside every
// cabinet.
const EntryName = "pkginfo.ini"

// Manifest is the parsed contents of pkginfo.ini (spec §3).
type Manifest struct {
	Name                      string
	Version                   string
	Architecture              string
	MinimumOSBuild            int
	PackagePathForOlderBuilds string
	UpgradePath               string
	SourcePath                string
	SymbolPath                string
	Replaces                  []string
}

// Read extracts pkginfo.ini from the cabinet at path and parses it.
func Read(path string) (Manifest, error) {
	a, err := cabinet.Open(path)
	if err != nil {
		return Manifest{}, errors.Wrap(pkgerr.ErrWriteFault, err.Error())
	}
	defer func() { _ = a.Close() }()
	return ReadFromArchive(a)
}

// ReadFromArchive reads and parses pkginfo.ini from an already-open
// archive.
func ReadFromArchive(a cabinet.Archive) (Manifest, error) {
	raw, err := a.ReadEntry(EntryName)
	if err != nil {
		return Manifest{}, errors.Wrapf(pkgerr.ErrWriteFault, "extracting %s: %s", EntryName, err)
	}
	if len(raw) > statedb.SectionSizeCap {
		raw = raw[:statedb.SectionSizeCap]
	}
	return Parse(raw)
}

// Parse parses raw pkginfo.ini bytes into a Manifest, failing with
// ErrMalformed if a required field is missing.
func Parse(raw []byte) (Manifest, error) {
	f, err := ini.InsensitiveLoad(raw)
	if err != nil {
		return Manifest{}, errors.Wrapf(pkgerr.ErrMalformed, "parsing manifest: %s", err)
	}

	pkg, err := f.GetSection("Package")
	if err != nil {
		return Manifest{}, errors.Wrapf(pkgerr.ErrMalformed, "missing [Package] section")
	}

	m := Manifest{
		Name:                      pkg.Key("Name").Value(),
		Version:                   pkg.Key("Version").Value(),
		Architecture:              pkg.Key("Architecture").Value(),
		PackagePathForOlderBuilds: pkg.Key("PackagePathForOlderBuilds").Value(),
		UpgradePath:               pkg.Key("UpgradePath").Value(),
		SourcePath:                pkg.Key("SourcePath").Value(),
		SymbolPath:                pkg.Key("SymbolPath").Value(),
	}

	if m.Name == "" || m.Version == "" || m.Architecture == "" {
		return Manifest{}, errors.Wrapf(pkgerr.ErrMalformed, "missing required field(s) in [Package]")
	}

	if v := pkg.Key("MinimumOSBuild").Value(); v != "" {
		n, cerr := strconv.Atoi(v)
		if cerr != nil {
			return Manifest{}, errors.Wrapf(pkgerr.ErrMalformed, "invalid MinimumOSBuild: %s", v)
		}
		m.MinimumOSBuild = n
	}

	if replaces, rerr := f.GetSection("Replaces"); rerr == nil {
		for _, k := range replaces.Keys() {
			m.Replaces = append(m.Replaces, k.Name())
		}
	}

	return m, nil
}

// ToRecord converts a manifest and its final file list into the
// statedb.PackageRecord written on install (spec §4.G commit step).
func (m Manifest) ToRecord(files []string) statedb.PackageRecord {
	return statedb.PackageRecord{
		Version:      m.Version,
		Architecture: m.Architecture,
		Files:        files,
		UpgradePath:  m.UpgradePath,
		SourcePath:   m.SourcePath,
		SymbolPath:   m.SymbolPath,
	}
}
