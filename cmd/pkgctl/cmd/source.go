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
	"github.com/spf13/cobra"

	"github.com/pkgctl/pkgctl/internal/pkglog"
)

var sourceFlags struct {
	prepend bool
}

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Add or remove configured package sources (list them with list --sources)",
}

var sourceAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Add a source URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourceAdd,
}

var sourceRemoveCmd = &cobra.Command{
	Use:   "remove <url>",
	Short: "Remove a source URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourceRemove,
}

func init() {
	sourceAddCmd.Flags().BoolVar(&sourceFlags.prepend, "prepend", false, "resolve this source before existing ones")
	sourceCmd.AddCommand(sourceAddCmd, sourceRemoveCmd)
	RootCmd.AddCommand(sourceCmd)
}

func runSourceAdd(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	if err := db.AddSource(args[0], sourceFlags.prepend); err != nil {
		return err
	}
	pkglog.Progress("added source %s", args[0])
	return nil
}

func runSourceRemove(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	if err := db.RemoveSource(args[0]); err != nil {
		return err
	}
	pkglog.Progress("removed source %s", args[0])
	return nil
}
