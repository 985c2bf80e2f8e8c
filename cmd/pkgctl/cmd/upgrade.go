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
	"github.com/pkgctl/pkgctl/internal/pkgerr"
	"github.com/pkgctl/pkgctl/internal/pkglog"
)

var upgradeFlags struct {
	all    bool
	stable bool
	daily  bool
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [name...]",
	Short: "Upgrade installed packages from their configured sources",
	RunE:  runUpgrade,
}

func init() {
	upgradeCmd.Flags().BoolVar(&upgradeFlags.all, "all", false, "upgrade every installed package")
	upgradeCmd.Flags().BoolVar(&upgradeFlags.stable, "stable", false, "prefer the stable channel, where a source distinguishes one")
	upgradeCmd.Flags().BoolVar(&upgradeFlags.daily, "daily", false, "prefer the daily channel, where a source distinguishes one")
	RootCmd.AddCommand(upgradeCmd)
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	if !upgradeFlags.all && len(args) == 0 {
		return errors.New("upgrade requires package names or --all")
	}

	b, db, err := newBatch()
	if err != nil {
		return err
	}
	defer b.Teardown()

	names := args
	if upgradeFlags.all {
		names = db.InstalledNames()
	}
	if len(names) == 0 {
		pkglog.Progress("nothing installed to upgrade")
		return nil
	}

	cfg, err := openToolConfig()
	if err != nil {
		return err
	}
	f, err := newFetcher(cfg)
	if err != nil {
		return err
	}

	tempDir := os.TempDir()
	_, pkgs, err := catalog.CollectAll(f, db.Sources(), tempDir)
	if err != nil {
		return errors.Wrap(err, "collecting remote catalog")
	}

	matches := catalog.Find(pkgs, names, "", cfg.Client.DefaultArch)
	found := make(map[string]bool, len(matches))
	for _, m := range matches {
		found[m.Name] = true
		if err := b.PrepareWithRedirect(m.URL()); err != nil {
			return errors.Wrapf(err, "preparing %s", m.Name)
		}
	}
	for _, n := range names {
		if !found[n] {
			pkglog.Fail("%s: %s", n, pkgerr.ErrNoUpgradePath)
		}
	}

	staged := b.Pending()
	if err := b.Commit(); err != nil {
		return errors.Wrap(err, "committing upgrade batch")
	}
	for _, p := range staged {
		pkglog.Progress("%s version %s installed", p.Manifest.Name, p.Manifest.Version)
	}
	return nil
}
