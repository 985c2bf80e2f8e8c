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

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pkgctl/pkgctl/internal/catalog"
	"github.com/pkgctl/pkgctl/internal/fetch"
	"github.com/pkgctl/pkgctl/internal/pkglog"
	"github.com/pkgctl/pkgctl/internal/statedb"
)

var installFlags struct {
	source  bool
	symbols bool
}

var installCmd = &cobra.Command{
	Use:   "install <path-or-url>",
	Short: "Install a package from a local path or remote URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runInstall,
}

func init() {
	installCmd.Flags().BoolVar(&installFlags.source, "source", false, "fetch the package's SourcePath instead of installing it")
	installCmd.Flags().BoolVar(&installFlags.symbols, "symbols", false, "fetch the package's SymbolPath instead of installing it")
	RootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	if installFlags.source || installFlags.symbols {
		return runFetchAuxiliary(args[0], installFlags.source)
	}

	b, db, err := newBatch()
	if err != nil {
		return err
	}
	defer b.Teardown()

	target, err := resolveInstallArg(args[0], db)
	if err != nil {
		return err
	}

	if err := b.PrepareWithRedirect(target); err != nil {
		return errors.Wrapf(err, "preparing %s", args[0])
	}
	staged := b.Pending()
	if err := b.Commit(); err != nil {
		return errors.Wrapf(err, "committing %s", args[0])
	}
	for _, p := range staged {
		pkglog.Progress("%s version %s installed", p.Manifest.Name, p.Manifest.Version)
	}
	return nil
}

// resolveInstallArg disambiguates "pkgctl install <arg>" by URL scheme
// and path existence: a recognized URL or an existing local path is
// passed straight through to the resolver, anything else is looked up
// by name in the configured sources' catalogs, the same way runUpgrade
// resolves the names it is given.
func resolveInstallArg(arg string, db *statedb.DB) (string, error) {
	if fetch.Recognized(arg) {
		return arg, nil
	}
	if _, err := os.Stat(arg); err == nil {
		return arg, nil
	}

	cfg, err := openToolConfig()
	if err != nil {
		return "", err
	}
	f, err := newFetcher(cfg)
	if err != nil {
		return "", err
	}

	_, pkgs, err := catalog.CollectAll(f, db.Sources(), os.TempDir())
	if err != nil {
		return "", errors.Wrap(err, "collecting remote catalog")
	}
	matches := catalog.Find(pkgs, []string{arg}, "", cfg.Client.DefaultArch)
	if len(matches) == 0 {
		return "", errors.Errorf("%s: no matching package in configured sources", arg)
	}
	return matches[0].URL(), nil
}
