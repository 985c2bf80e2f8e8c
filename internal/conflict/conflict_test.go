package conflict

import (
	"path/filepath"
	"testing"

	"github.com/pkgctl/pkgctl/internal/statedb"
)

func TestBuildExcludesReplacedPackages(t *testing.T) {
	db, err := statedb.Open(filepath.Join(t.TempDir(), "state.ini"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.PutPackage("ex", statedb.PackageRecord{Version: "1.0", Architecture: "noarch", Files: []string{"bin/ex.exe"}}); err != nil {
		t.Fatal(err)
	}
	if err := db.PutPackage("dep", statedb.PackageRecord{Version: "2.0", Architecture: "noarch", Files: []string{"bin/dep.exe"}}); err != nil {
		t.Fatal(err)
	}

	idx := Build(db, map[string]bool{"dep": true})
	if owner, ok := idx.Owner("bin/ex.exe"); !ok || owner != "ex" {
		t.Fatalf("expected bin/ex.exe owned by ex, got %q, %v", owner, ok)
	}
	if _, ok := idx.Owner("bin/dep.exe"); ok {
		t.Fatal("expected bin/dep.exe to be excluded from the index")
	}
}

func TestOwnerUnknownPath(t *testing.T) {
	idx := Index{}
	if _, ok := idx.Owner("nope"); ok {
		t.Fatal("expected unknown path to report false")
	}
}
