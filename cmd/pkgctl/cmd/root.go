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
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pkgctl/pkgctl/internal/batch"
	"github.com/pkgctl/pkgctl/internal/fetch"
	"github.com/pkgctl/pkgctl/internal/pkglog"
	"github.com/pkgctl/pkgctl/internal/resolve"
	"github.com/pkgctl/pkgctl/internal/statedb"
	"github.com/pkgctl/pkgctl/internal/toolconfig"
	"github.com/pkgctl/pkgctl/internal/uninstall"
)

var rootFlags struct {
	statePath  string
	installDir string
	configPath string
	hostBuild  int
	verbose    bool
	logFile    string
}

var persistentFlags *pflag.FlagSet

// RootCmd is the base command when pkgctl is invoked without a
// subcommand.
var RootCmd = &cobra.Command{
	Use:           "pkgctl",
	Short:         "Install, upgrade, and remove cabinet-format packages",
	Long:          `pkgctl installs, upgrades, and removes packages distributed as cabinet archives, tracked in a durable state database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := openToolConfig()
		if err != nil {
			return err
		}

		switch {
		case rootFlags.verbose:
			pkglog.SetLevel(pkglog.LevelDebug)
		case cfg.Log.Level != "":
			if lvl, ok := pkglog.ParseLevel(cfg.Log.Level); ok {
				pkglog.SetLevel(lvl)
			}
		}

		logFile := rootFlags.logFile
		if logFile == "" {
			logFile = cfg.Log.File
		}
		if logFile != "" {
			if _, err := pkglog.SetOutputFile(logFile); err != nil {
				return err
			}
		}
		return nil
	},
}

// Execute runs RootCmd, returning its exit code.
func Execute() int {
	if err := RootCmd.Execute(); err != nil {
		pkglog.Fail("%s", err)
		return 1
	}
	return 0
}

func init() {
	RootCmd.PersistentFlags().StringVar(&rootFlags.statePath, "state", "pkgctl.state", "path to the state database")
	RootCmd.PersistentFlags().StringVar(&rootFlags.installDir, "root", ".", "install root directory")
	RootCmd.PersistentFlags().StringVarP(&rootFlags.configPath, "config", "c", "", "path to pkgctl.toml (defaults to <root>/pkgctl.toml)")
	RootCmd.PersistentFlags().IntVar(&rootFlags.hostBuild, "host-build", 0, "host OS build number, for MinimumOSBuild checks")
	RootCmd.PersistentFlags().BoolVarP(&rootFlags.verbose, "verbose", "v", false, "enable debug logging")
	RootCmd.PersistentFlags().StringVar(&rootFlags.logFile, "log-file", "", "redirect log output to a file")

	persistentFlags = RootCmd.PersistentFlags()
}

// openDB opens the configured state database.
func openDB() (*statedb.DB, error) {
	return statedb.Open(rootFlags.statePath)
}

// configPath resolves the effective pkgctl.toml path: the explicit
// --config flag, or <root>/pkgctl.toml.
func configPath() string {
	if rootFlags.configPath != "" {
		return rootFlags.configPath
	}
	return filepath.Join(rootFlags.installDir, toolconfig.FileName)
}

// openToolConfig loads the operator preferences file, filling in sane
// defaults for any property a not-yet-existing (or partially filled)
// file left unset. Unlike toolconfig.Config.LoadDefaults, this never
// changes the file's own save path, so a loaded or missing file at an
// explicit --config path keeps saving back to that same path.
func openToolConfig() (*toolconfig.Config, error) {
	c, err := toolconfig.Load(configPath())
	if err != nil {
		return nil, err
	}
	defaults := &toolconfig.Config{}
	defaults.LoadDefaults(rootFlags.installDir)
	if c.Client.FetchTimeout == 0 {
		c.Client.FetchTimeout = defaults.Client.FetchTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	return c, nil
}

// newFetcher builds the HTTP fetcher from operator preferences: a
// configured fetch timeout, and a hard failure if Client.OFFLINE is
// set, since every Fetcher implementation pkgctl ships talks to the
// network.
func newFetcher(cfg *toolconfig.Config) (fetch.Fetcher, error) {
	if cfg.Client.Offline {
		return nil, errors.New("network access disabled: Client.OFFLINE is set in pkgctl.toml")
	}
	return fetch.NewHTTPFetcherWithTimeout(cfg.Client.FetchTimeout), nil
}

// newResolver builds a path resolver using the operator-configured
// fetcher.
func newResolver(cfg *toolconfig.Config) (*resolve.Resolver, error) {
	f, err := newFetcher(cfg)
	if err != nil {
		return nil, err
	}
	return &resolve.Resolver{Fetcher: f, TempDir: os.TempDir()}, nil
}

// newBatch opens the state database and returns a fresh Batch rooted at
// the configured install directory and host build, with its resolver's
// fetcher built from operator preferences (fetch timeout, offline
// mode).
func newBatch() (*batch.Batch, *statedb.DB, error) {
	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := openToolConfig()
	if err != nil {
		return nil, nil, err
	}
	r, err := newResolver(cfg)
	if err != nil {
		return nil, nil, err
	}
	b := batch.New(db, rootFlags.installDir, rootFlags.hostBuild)
	b.Resolver = r
	return b, db, nil
}

// newUninstaller opens the state database and returns a fresh uninstall
// Engine rooted at the configured install directory.
func newUninstaller() (*uninstall.Engine, *statedb.DB, error) {
	db, err := openDB()
	if err != nil {
		return nil, nil, err
	}
	return uninstall.New(db, rootFlags.installDir), db, nil
}
