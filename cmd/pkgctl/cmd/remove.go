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
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pkgctl/pkgctl/internal/pkglog"
)

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Uninstall a package",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

var uninstallAllCmd = &cobra.Command{
	Use:   "uninstall-all",
	Short: "Uninstall every installed package",
	Args:  cobra.NoArgs,
	RunE:  runUninstallAll,
}

func init() {
	RootCmd.AddCommand(removeCmd)
	RootCmd.AddCommand(uninstallAllCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	e, _, err := newUninstaller()
	if err != nil {
		return err
	}
	if err := e.PreCheck(args[0]); err != nil {
		return errors.Wrapf(err, "cannot uninstall %s", args[0])
	}
	if err := e.Uninstall(args[0]); err != nil {
		return errors.Wrapf(err, "uninstalling %s", args[0])
	}
	pkglog.Progress("%s removed", args[0])
	return nil
}

func runUninstallAll(cmd *cobra.Command, args []string) error {
	e, db, err := newUninstaller()
	if err != nil {
		return err
	}
	for _, name := range db.InstalledNames() {
		if err := e.Uninstall(name); err != nil {
			pkglog.Fail("uninstalling %s: %s", name, err)
			continue
		}
		pkglog.Progress("%s removed", name)
	}
	return nil
}
