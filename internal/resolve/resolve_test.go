package resolve

import (
	"path/filepath"
	"testing"

	"github.com/pkgctl/pkgctl/internal/statedb"
)

type fakeFetcher struct {
	lastURL string
	path    string
	err     error
}

func (f *fakeFetcher) FetchToTemp(url, dir string) (string, error) {
	f.lastURL = url
	if f.err != nil {
		return "", f.err
	}
	return filepath.Join(dir, "fetched"), nil
}

func newTestDB(t *testing.T) *statedb.DB {
	t.Helper()
	db, err := statedb.Open(filepath.Join(t.TempDir(), "state.ini"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return db
}

func TestResolveLocalPath(t *testing.T) {
	db := newTestDB(t)
	r := &Resolver{Fetcher: &fakeFetcher{}, TempDir: t.TempDir()}
	res, err := r.Resolve("some/relative.cab", db)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.IsTemp {
		t.Fatal("expected non-temp result for local path")
	}
	if !filepath.IsAbs(res.LocalPath) {
		t.Fatalf("expected absolute path, got %q", res.LocalPath)
	}
}

func TestResolveURLFetches(t *testing.T) {
	db := newTestDB(t)
	ff := &fakeFetcher{}
	r := &Resolver{Fetcher: ff, TempDir: t.TempDir()}
	res, err := r.Resolve("http://example/pkg.cab", db)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.IsTemp {
		t.Fatal("expected temp result for URL")
	}
	if ff.lastURL != "http://example/pkg.cab" {
		t.Fatalf("fetcher saw %q", ff.lastURL)
	}
}

func TestResolveAppliesMirrorBeforeFetch(t *testing.T) {
	db := newTestDB(t)
	if err := db.SetMirror("http://upstream/", "http://local/"); err != nil {
		t.Fatal(err)
	}
	ff := &fakeFetcher{}
	r := &Resolver{Fetcher: ff, TempDir: t.TempDir()}
	if _, err := r.Resolve("http://upstream/pkg.cab", db); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ff.lastURL != "http://local/pkg.cab" {
		t.Fatalf("fetcher saw %q, want mirror-rewritten URL", ff.lastURL)
	}
}
