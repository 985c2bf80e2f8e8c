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

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Add or remove URL-prefix mirror rules (list them with list --mirrors)",
}

var mirrorAddCmd = &cobra.Command{
	Use:   "add <find> <replace>",
	Short: "Add a mirror rule rewriting <find> to <replace>",
	Args:  cobra.ExactArgs(2),
	RunE:  runMirrorAdd,
}

var mirrorRemoveCmd = &cobra.Command{
	Use:   "remove <find>",
	Short: "Remove the mirror rule for <find>",
	Args:  cobra.ExactArgs(1),
	RunE:  runMirrorRemove,
}

func init() {
	mirrorCmd.AddCommand(mirrorAddCmd, mirrorRemoveCmd)
	RootCmd.AddCommand(mirrorCmd)
}

func runMirrorAdd(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	if err := db.SetMirror(args[0], args[1]); err != nil {
		return err
	}
	pkglog.Progress("mirror %s -> %s added", args[0], args[1])
	return nil
}

func runMirrorRemove(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	if err := db.RemoveMirror(args[0]); err != nil {
		return err
	}
	pkglog.Progress("mirror for %s removed", args[0])
	return nil
}
