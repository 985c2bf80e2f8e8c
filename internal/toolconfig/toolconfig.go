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

// Package toolconfig holds operator-level pkgctl preferences, read from
// and written to pkgctl.toml. This is deliberately a different file,
// with a different lifecycle, from the transactional state database in
// internal/statedb: pkgctl.toml holds operator preference (default
// architecture, log level, offline mode, fetch timeout), never
// installed-package or file data.
package toolconfig

import (
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config is the set of operator preferences found in pkgctl.toml.
type Config struct {
	Client clientConf
	Log    logConf

	filename string
}

type clientConf struct {
	DefaultArch  string `toml:"DEFAULT_ARCH"`
	Offline      bool   `toml:"OFFLINE"`
	FetchTimeout int    `toml:"FETCH_TIMEOUT_SECONDS"`
}

type logConf struct {
	Level string `toml:"LEVEL"`
	File  string `toml:"FILE"`
}

// FileName is the default name of the tool config file.
const FileName = "pkgctl.toml"

// LoadDefaults sets sane default values for every property, rooted at
// dir.
func (c *Config) LoadDefaults(dir string) {
	c.Client.DefaultArch = ""
	c.Client.Offline = false
	c.Client.FetchTimeout = 30
	c.Log.Level = "info"
	c.Log.File = ""
	c.filename = filepath.Join(dir, FileName)
}

// Load reads pkgctl.toml from path, if it exists, into a fresh Config;
// properties the file does not set keep their zero values. A missing
// file is not an error: a zero-value Config that saves to path is
// returned.
func Load(path string) (*Config, error) {
	c := &Config{filename: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return c, nil
	}
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, errors.Wrapf(err, "parsing tool config %s", path)
	}
	c.filename = path
	return c, nil
}

// Save writes c to its configured filename as TOML.
func (c *Config) Save() error {
	w, err := os.OpenFile(c.filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "opening tool config %s", c.filename)
	}
	defer func() { _ = w.Close() }()

	enc := toml.NewEncoder(w)
	if err := enc.Encode(c); err != nil {
		return errors.Wrapf(err, "encoding tool config %s", c.filename)
	}
	return nil
}

// SetProperty parses a "Section.Property" path, finds and sets it within
// the config structure, and saves the file. Values are parsed according
// to the field's Go type (bool, int, or string).
func (c *Config) SetProperty(propertyPath, value string) error {
	tokens := strings.SplitN(propertyPath, ".", 2)
	if len(tokens) != 2 {
		return errors.Errorf("property must be in Section.Property form, got %q", propertyPath)
	}
	section, property := tokens[0], tokens[1]

	v := reflect.ValueOf(c).Elem().FieldByName(section)
	if !v.IsValid() {
		return errors.Errorf("unknown config section %q", section)
	}

	t := reflect.TypeOf(v.Interface())
	for i := 0; i < v.NumField(); i++ {
		tag, ok := t.Field(i).Tag.Lookup("toml")
		if !ok || tag != property {
			continue
		}
		field := v.Field(i)
		switch field.Kind() {
		case reflect.Bool:
			b, err := strconv.ParseBool(value)
			if err != nil {
				return errors.Wrapf(err, "parsing %s as bool", propertyPath)
			}
			field.SetBool(b)
		case reflect.Int:
			n, err := strconv.Atoi(value)
			if err != nil {
				return errors.Wrapf(err, "parsing %s as int", propertyPath)
			}
			field.SetInt(int64(n))
		default:
			field.SetString(value)
		}
		return c.Save()
	}
	return errors.Errorf("property not found in config: %q", propertyPath)
}
