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

	"github.com/spf13/cobra"

	"github.com/pkgctl/pkgctl/internal/backup"
	"github.com/pkgctl/pkgctl/internal/pkglog"
)

// absInstalledPath resolves a recorded File entry the same way
// backup.Ledger and uninstall.Engine do: a path prefixed with the
// reserved "!" marker is a fully-qualified path outside the install
// root and is used verbatim, otherwise it is joined under installDir.
func absInstalledPath(installDir, rel string) string {
	if len(rel) > 0 && rel[0] == backup.OutsideRootPrefix {
		return rel[1:]
	}
	return filepath.Join(installDir, rel)
}

// doctorCmd re-walks the state database the way the teacher's bundle
// validator re-walks a built bundle: read-only, reporting every
// violation it finds rather than stopping at the first or attempting
// to repair it. Repair is left to remove/install, which already know
// how to undo a bad state transactionally.
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Validate the state database against its own invariants without modifying it",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}

	owner := make(map[string]string)
	problems := 0

	for _, name := range db.InstalledNames() {
		rec, ok := db.GetPackage(name)
		if !ok {
			pkglog.Fail("%s: listed in Installed but has no package section", name)
			problems++
			continue
		}
		if rec.Version == "" {
			pkglog.Fail("%s: missing Version", name)
			problems++
		}
		for _, f := range rec.Files {
			if prev, seen := owner[f]; seen {
				pkglog.Fail("%s: file %s also owned by %s", name, f, prev)
				problems++
				continue
			}
			owner[f] = name

			abs := absInstalledPath(rootFlags.installDir, f)
			if _, err := os.Lstat(abs); err != nil {
				if os.IsNotExist(err) {
					pkglog.Fail("%s: recorded file %s is missing on disk", name, f)
					problems++
					continue
				}
				pkglog.Fail("%s: checking %s: %s", name, f, err)
				problems++
			}
		}
	}

	if problems == 0 {
		pkglog.Progress("state database is consistent: %d packages checked", len(db.InstalledNames()))
		return nil
	}
	pkglog.Fail("found %d problem(s)", problems)
	return nil
}
