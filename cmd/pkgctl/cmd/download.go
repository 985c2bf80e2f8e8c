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
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pkgctl/pkgctl/internal/pkglog"
	"github.com/pkgctl/pkgctl/internal/resolve"
)

var downloadCmd = &cobra.Command{
	Use:   "download <path-or-url> <dir>",
	Short: "Resolve and download a package to a directory without installing it",
	Args:  cobra.ExactArgs(2),
	RunE:  runDownload,
}

func init() {
	RootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}

	cfg, err := openToolConfig()
	if err != nil {
		return err
	}
	r, err := newResolver(cfg)
	if err != nil {
		return err
	}
	res, err := r.Resolve(args[0], db)
	if err != nil {
		return errors.Wrapf(err, "resolving %s", args[0])
	}

	destDir := args[1]
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return errors.Wrapf(err, "creating %s", destDir)
	}
	dest := filepath.Join(destDir, destFileName(args[0], res))

	if res.IsTemp {
		if err := os.Rename(res.LocalPath, dest); err != nil {
			return errors.Wrapf(err, "saving to %s", dest)
		}
	} else if err := copyFile(res.LocalPath, dest); err != nil {
		return errors.Wrapf(err, "copying to %s", dest)
	}

	pkglog.Progress("downloaded to %s", dest)
	return nil
}

// destFileName picks a meaningful local file name for a resolved
// download. For a temp-fetched URL, res.LocalPath is a random
// "pkgctl-fetch-*" name, so the URL's own basename is used instead;
// for an already-local path, the path's basename is used as-is.
func destFileName(userArg string, res resolve.Result) string {
	if !res.IsTemp {
		return filepath.Base(res.LocalPath)
	}
	if u, err := url.Parse(userArg); err == nil && u.Path != "" {
		if base := path.Base(u.Path); base != "." && base != "/" {
			return base
		}
	}
	return filepath.Base(res.LocalPath)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
