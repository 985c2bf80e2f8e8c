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

// Package statedb implements the durable INI-structured index of
// installed packages, their file manifests, and the configured
// sources/mirrors (spec §4.A).
package statedb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-ini/ini"
	"github.com/pkg/errors"
)

// SectionSizeCap is the maximum raw text size, in bytes, that
// GetSectionPairs will return for one section before reporting a configuration error.
const SectionSizeCap = 64 * 1024

// InstalledSection is the section mapping package name to installed
// version.
const InstalledSection = "Installed"

// SourcesSection lists configured remote sources, Source1, Source2, ...
const SourcesSection = "Sources"

// MirrorsSection lists find=replace URL prefix substitution rules.
const MirrorsSection = "Mirrors"

// DB is the state database: an INI file tracking installed packages and
// their files, plus sources/mirrors configuration. All mutations are
// flushed to disk before the call returns.
type DB struct {
	path string
	file *ini.File
}

// Open loads the state database from path, creating an empty one in
// memory if the file does not yet exist on disk (it is created on first
// Save-triggering mutation).
func Open(path string) (*DB, error) {
	opts := ini.LoadOptions{Loose: true, Insensitive: false, IgnoreInlineComment: true}
	f, err := ini.LoadSources(opts, path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening state database %s", path)
	}
	return &DB{path: path, file: f}, nil
}

func (db *DB) save() error {
	if err := db.file.SaveTo(db.path); err != nil {
		return errors.Wrapf(err, "saving state database %s", db.path)
	}
	return nil
}

// Get returns the value of section/key, or "" if absent.
func (db *DB) Get(section, key string) string {
	s, err := db.file.GetSection(section)
	if err != nil {
		return ""
	}
	k, err := s.GetKey(key)
	if err != nil {
		return ""
	}
	return k.Value()
}

// ReadInt returns the integer value of section/key, or def if absent or
// unparsable.
func (db *DB) ReadInt(section, key string, def int) int {
	v := db.Get(section, key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// KV is an ordered key/value pair, as returned by GetSectionPairs.
type KV struct {
	Key   string
	Value string
}

// GetSectionPairs returns every key=value pair in section, in file
// order, enforcing the §6 64 KiB raw-section size cap.
func (db *DB) GetSectionPairs(section string) ([]KV, error) {
	s, err := db.file.GetSection(section)
	if err != nil {
		return nil, nil
	}
	var size int
	pairs := make([]KV, 0, len(s.Keys()))
	for _, k := range s.Keys() {
		size += len(k.Name()) + len(k.Value()) + 2
		if size > SectionSizeCap {
			return nil, errors.Errorf("section %q exceeds %d byte configuration cap", section, SectionSizeCap)
		}
		pairs = append(pairs, KV{Key: k.Name(), Value: k.Value()})
	}
	return pairs, nil
}

// Set stores value under section/key, creating the section if needed,
// and persists immediately.
func (db *DB) Set(section, key, value string) error {
	db.file.Section(section).Key(key).SetValue(value)
	return db.save()
}

// SetInt is Set for integer values.
func (db *DB) SetInt(section, key string, value int) error {
	return db.Set(section, key, strconv.Itoa(value))
}

// DeleteKey removes section/key if present and persists immediately. A
// no-op, not an error, if the key or section is absent.
func (db *DB) DeleteKey(section, key string) error {
	s, err := db.file.GetSection(section)
	if err != nil {
		return nil
	}
	s.DeleteKey(key)
	return db.save()
}

// DeleteSection removes an entire section (and all its keys) and
// persists immediately.
func (db *DB) DeleteSection(section string) error {
	db.file.DeleteSection(section)
	return db.save()
}

// HasSection reports whether section exists.
func (db *DB) HasSection(section string) bool {
	_, err := db.file.GetSection(section)
	return err == nil
}

// PackageRecord is the set of index keys describing one installed
// package (spec §3).
type PackageRecord struct {
	Version      string
	Architecture string
	Files        []string
	UpgradePath  string
	SourcePath   string
	SymbolPath   string
}

// InstalledVersion returns the version recorded in [Installed] for name,
// and whether an entry exists at all.
func (db *DB) InstalledVersion(name string) (string, bool) {
	s, err := db.file.GetSection(InstalledSection)
	if err != nil {
		return "", false
	}
	k, err := s.GetKey(name)
	if err != nil {
		return "", false
	}
	return k.Value(), true
}

// InstalledNames returns every package name in [Installed], in file
// order.
func (db *DB) InstalledNames() []string {
	s, err := db.file.GetSection(InstalledSection)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(s.Keys()))
	for _, k := range s.Keys() {
		names = append(names, k.Name())
	}
	return names
}

// GetPackage reads the full record for an installed package, walking
// File1..FileCount per the §3 invariant (gaps are never produced by this
// implementation, so enumeration always walks the full contiguous
// range rather than stopping at the first missing index).
func (db *DB) GetPackage(name string) (PackageRecord, bool) {
	s, err := db.file.GetSection(name)
	if err != nil {
		return PackageRecord{}, false
	}
	rec := PackageRecord{
		Version:      s.Key("Version").Value(),
		Architecture: s.Key("Architecture").Value(),
		UpgradePath:  s.Key("UpgradePath").Value(),
		SourcePath:   s.Key("SourcePath").Value(),
		SymbolPath:   s.Key("SymbolPath").Value(),
	}
	count, _ := strconv.Atoi(s.Key("FileCount").Value())
	for i := 1; i <= count; i++ {
		k, kerr := s.GetKey(fmt.Sprintf("File%d", i))
		if kerr != nil {
			continue
		}
		rec.Files = append(rec.Files, k.Value())
	}
	return rec, true
}

// PutPackage writes the full record for name (Version, Architecture,
// FileCount, File1..FileN, and any present optional URL fields), then
// sets [Installed][name] = rec.Version, persisting once.
func (db *DB) PutPackage(name string, rec PackageRecord) error {
	s := db.file.Section(name)
	s.Key("Version").SetValue(rec.Version)
	s.Key("Architecture").SetValue(rec.Architecture)
	s.Key("FileCount").SetValue(strconv.Itoa(len(rec.Files)))
	for i, f := range rec.Files {
		s.Key(fmt.Sprintf("File%d", i+1)).SetValue(f)
	}
	setOrClear(s, "UpgradePath", rec.UpgradePath)
	setOrClear(s, "SourcePath", rec.SourcePath)
	setOrClear(s, "SymbolPath", rec.SymbolPath)
	db.file.Section(InstalledSection).Key(name).SetValue(rec.Version)
	return db.save()
}

func setOrClear(s *ini.Section, key, value string) {
	if value == "" {
		s.DeleteKey(key)
		return
	}
	s.Key(key).SetValue(value)
}

// RemovePackage deletes the package's section and its [Installed] entry
// in one persisted write.
func (db *DB) RemovePackage(name string) error {
	db.file.DeleteSection(name)
	if s, err := db.file.GetSection(InstalledSection); err == nil {
		s.DeleteKey(name)
	}
	return db.save()
}

// Sources returns the configured source URLs in key order
// (Source1, Source2, ...).
func (db *DB) Sources() []string {
	s, err := db.file.GetSection(SourcesSection)
	if err != nil {
		return nil
	}
	keys := s.Keys()
	index := func(name string) int {
		n, _ := strconv.Atoi(strings.TrimPrefix(name, "Source"))
		return n
	}
	sort.SliceStable(keys, func(i, j int) bool { return index(keys[i].Name()) < index(keys[j].Name()) })
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.Value())
	}
	return out
}

// AddSource appends (or, if prepend is true, prepends) a source URL.
func (db *DB) AddSource(url string, prepend bool) error {
	existing := db.Sources()
	var next []string
	if prepend {
		next = append([]string{url}, existing...)
	} else {
		next = append(existing, url)
	}
	db.file.DeleteSection(SourcesSection)
	s := db.file.Section(SourcesSection)
	for i, u := range next {
		s.Key(fmt.Sprintf("Source%d", i+1)).SetValue(u)
	}
	return db.save()
}

// RemoveSource removes the first source matching url.
func (db *DB) RemoveSource(url string) error {
	existing := db.Sources()
	next := make([]string, 0, len(existing))
	removed := false
	for _, u := range existing {
		if !removed && u == url {
			removed = true
			continue
		}
		next = append(next, u)
	}
	db.file.DeleteSection(SourcesSection)
	s := db.file.Section(SourcesSection)
	for i, u := range next {
		s.Key(fmt.Sprintf("Source%d", i+1)).SetValue(u)
	}
	return db.save()
}

// Mirrors returns the configured find->replace mirror rules, in file
// order. Keys/values with a literal "=" encode it as "%" (see
// internal/mirror for the decode side).
func (db *DB) Mirrors() []KV {
	pairs, _ := db.GetSectionPairs(MirrorsSection)
	return pairs
}

// SetMirror adds or updates a find->replace mirror rule.
func (db *DB) SetMirror(find, replace string) error {
	return db.Set(MirrorsSection, find, replace)
}

// RemoveMirror removes a mirror rule by its find key.
func (db *DB) RemoveMirror(find string) error {
	return db.DeleteKey(MirrorsSection, find)
}

// RawSection returns the raw "key = value" text of a section, for
// diagnostic dumps (cmd/pkgctl --show-raw). A section larger than
// SectionSizeCap is reported as an error rather than truncated.
func (db *DB) RawSection(section string) (string, error) {
	pairs, err := db.GetSectionPairs(section)
	if err != nil {
		return "", err
	}
	out := ""
	for _, p := range pairs {
		out += p.Key + " = " + p.Value + "\n"
	}
	return out, nil
}
