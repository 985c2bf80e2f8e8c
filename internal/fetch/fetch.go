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

// Package fetch is the external network collaborator named but not
// specified by spec §1: streaming a URL to a local temporary file.
// Grounded on the teacher's helpers.DownloadFile and
// internal/client.Download: write to a sibling temp file, validate, and
// only then make the final name visible.
package fetch

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/pkgctl/pkgctl/internal/pkgerr"
)

// Fetcher streams a URL to a local file. The HTTP implementation is the
// only one pkgctl ships; tests substitute a fake.
type Fetcher interface {
	// FetchToTemp streams url into a fresh temporary file under dir and
	// returns its path. The caller owns deletion of the returned file.
	FetchToTemp(url, dir string) (string, error)
}

// Recognized reports whether url has a scheme the fetcher understands.
func Recognized(url string) bool {
	return len(url) > 7 && (url[:7] == "http://" || (len(url) > 8 && url[:8] == "https://"))
}

// HTTPFetcher is the default Fetcher, using net/http.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher using http.DefaultClient.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: http.DefaultClient}
}

// NewHTTPFetcherWithTimeout returns a fetcher whose client aborts a
// request after timeoutSeconds (the tool config's
// Client.FETCH_TIMEOUT_SECONDS). A non-positive value means no timeout,
// matching http.Client's own zero-value behavior.
func NewHTTPFetcherWithTimeout(timeoutSeconds int) *HTTPFetcher {
	if timeoutSeconds <= 0 {
		return NewHTTPFetcher()
	}
	return &HTTPFetcher{Client: &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second}}
}

// FetchToTemp implements Fetcher.
func (f *HTTPFetcher) FetchToTemp(url, dir string) (string, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	tmp, err := os.CreateTemp(dir, "pkgctl-fetch-*")
	if err != nil {
		return "", &pkgerr.NetworkError{Kind: "WriteFault", Err: errors.Wrap(err, "creating temp file")}
	}
	tmpPath := tmp.Name()

	resp, err := client.Get(url)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", &pkgerr.NetworkError{Kind: "ConnectFailed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", &pkgerr.NetworkError{
			Kind: "HTTPStatus",
			Err:  fmt.Errorf("got status %q fetching %s", resp.Status, url),
		}
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", &pkgerr.NetworkError{Kind: "TransferFailed", Err: err}
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", &pkgerr.NetworkError{Kind: "WriteFault", Err: err}
	}

	return tmpPath, nil
}

// FetchToFile streams url to the specific destination path, writing to a
// sibling temp file (FetchToTemp's "pkgctl-fetch-*" name) first and
// renaming into place only on success, for callers that want a fixed
// destination name.
func FetchToFile(f Fetcher, url, destPath string) error {
	tmp, err := f.FetchToTemp(url, filepath.Dir(destPath))
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, destPath); err != nil {
		_ = os.Remove(tmp)
		return &pkgerr.NetworkError{Kind: "WriteFault", Err: err}
	}
	return nil
}
