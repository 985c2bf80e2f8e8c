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

var configCmd = &cobra.Command{
	Use:   "config <Section.Property> <value>",
	Short: "Set an operator preference in pkgctl.toml",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfig,
}

func init() {
	RootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := openToolConfig()
	if err != nil {
		return err
	}
	if err := cfg.SetProperty(args[0], args[1]); err != nil {
		return err
	}
	pkglog.Progress("%s set to %s", args[0], args[1])
	return nil
}
