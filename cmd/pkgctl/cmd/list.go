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
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pkgctl/pkgctl/internal/catalog"
	"github.com/pkgctl/pkgctl/internal/mirror"
)

var listFlags struct {
	verbose bool
	remote  bool
	sources bool
	mirrors bool
	showRaw string
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed packages, remote packages, sources, or mirrors",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listFlags.verbose, "verbose", "V", false, "show version and architecture for each installed package")
	listCmd.Flags().BoolVar(&listFlags.remote, "remote", false, "list packages available from configured sources")
	listCmd.Flags().BoolVar(&listFlags.sources, "sources", false, "list configured source URLs")
	listCmd.Flags().BoolVar(&listFlags.mirrors, "mirrors", false, "list configured mirror rules")
	listCmd.Flags().StringVar(&listFlags.showRaw, "show-raw", "", "dump the raw INI text of one state-database section")
	RootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}

	if listFlags.showRaw != "" {
		raw, err := db.RawSection(listFlags.showRaw)
		if err != nil {
			return err
		}
		fmt.Print(raw)
		return nil
	}

	if listFlags.sources {
		for _, s := range db.Sources() {
			fmt.Println(s)
		}
		return nil
	}

	if listFlags.mirrors {
		for _, kv := range db.Mirrors() {
			fmt.Printf("%s -> %s\n", mirror.Decode(kv.Key), mirror.Decode(kv.Value))
		}
		return nil
	}

	if listFlags.remote {
		cfg, err := openToolConfig()
		if err != nil {
			return err
		}
		f, err := newFetcher(cfg)
		if err != nil {
			return err
		}
		_, pkgs, err := catalog.CollectAll(f, db.Sources(), os.TempDir())
		if err != nil {
			return errors.Wrap(err, "collecting remote catalog")
		}
		for _, p := range pkgs {
			fmt.Printf("%s %s %s\n", p.Name, p.Version, p.Arch)
		}
		return nil
	}

	for _, name := range db.InstalledNames() {
		if !listFlags.verbose {
			fmt.Println(name)
			continue
		}
		rec, _ := db.GetPackage(name)
		fmt.Printf("%s %s %s\n", name, rec.Version, rec.Architecture)
	}
	return nil
}
