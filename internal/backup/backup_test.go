package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkgctl/pkgctl/internal/statedb"
)

func setupInstalled(t *testing.T, root string, db *statedb.DB, name string, files []string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(name+":"+f), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.PutPackage(name, statedb.PackageRecord{Version: "1.0", Architecture: "noarch", Files: files}); err != nil {
		t.Fatal(err)
	}
}

func newTestLedger(t *testing.T) (*Ledger, *statedb.DB, string) {
	t.Helper()
	root := t.TempDir()
	db, err := statedb.Open(filepath.Join(t.TempDir(), "state.ini"))
	if err != nil {
		t.Fatal(err)
	}
	return New(db, root), db, root
}

func TestBackUpShadowsFilesAndClearsIndex(t *testing.T) {
	l, db, root := newTestLedger(t)
	setupInstalled(t, root, db, "ex", []string{"bin/ex.exe", "share/ex.dat"})

	if err := l.BackUp("ex"); err != nil {
		t.Fatalf("BackUp: %v", err)
	}
	if _, ok := db.InstalledVersion("ex"); ok {
		t.Fatal("expected ex to be cleared from the index during backup")
	}
	if _, err := os.Stat(filepath.Join(root, "bin/ex.exe")); !os.IsNotExist(err) {
		t.Fatal("expected original file to be shadow-renamed away")
	}

	entries := l.Entries()
	if len(entries) != 1 || len(entries[0].Files) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	for _, fr := range entries[0].Files {
		if _, err := os.Stat(fr.ShadowAbs); err != nil {
			t.Fatalf("shadow file missing: %v", err)
		}
	}
}

func TestCommitDeletesShadows(t *testing.T) {
	l, db, root := newTestLedger(t)
	setupInstalled(t, root, db, "ex", []string{"bin/ex.exe"})
	if err := l.BackUp("ex"); err != nil {
		t.Fatal(err)
	}
	shadow := l.Entries()[0].Files[0].ShadowAbs

	l.Commit()

	if _, err := os.Stat(shadow); !os.IsNotExist(err) {
		t.Fatal("expected shadow file to be deleted on commit")
	}
	if !l.Empty() {
		t.Fatal("expected ledger empty after commit")
	}
}

func TestRollbackRestoresFilesAndIndex(t *testing.T) {
	l, db, root := newTestLedger(t)
	setupInstalled(t, root, db, "ex", []string{"bin/ex.exe", "share/ex.dat"})

	if err := l.BackUp("ex"); err != nil {
		t.Fatal(err)
	}

	// Simulate a failed new-version write clobbering the section.
	if err := db.PutPackage("ex", statedb.PackageRecord{Version: "0", Architecture: "", Files: nil}); err != nil {
		t.Fatal(err)
	}

	l.Rollback()

	rec, ok := db.GetPackage("ex")
	if !ok {
		t.Fatal("expected ex restored in index")
	}
	if rec.Version != "1.0" {
		t.Fatalf("restored version = %q, want 1.0", rec.Version)
	}
	for _, f := range []string{"bin/ex.exe", "share/ex.dat"} {
		data, err := os.ReadFile(filepath.Join(root, f))
		if err != nil {
			t.Fatalf("restored file %s missing: %v", f, err)
		}
		if string(data) != "ex:"+f {
			t.Fatalf("restored file %s contents = %q", f, data)
		}
	}
	if !l.Empty() {
		t.Fatal("expected ledger empty after rollback")
	}
}

func TestBackUpToleratesMissingFile(t *testing.T) {
	l, db, root := newTestLedger(t)
	setupInstalled(t, root, db, "ex", []string{"bin/ex.exe"})
	// Remove the file out from under the index before backing up.
	if err := os.Remove(filepath.Join(root, "bin/ex.exe")); err != nil {
		t.Fatal(err)
	}

	if err := l.BackUp("ex"); err != nil {
		t.Fatalf("BackUp should tolerate a missing file: %v", err)
	}
	entries := l.Entries()
	if len(entries) != 1 || entries[0].Files[0].ShadowAbs != "" {
		t.Fatalf("expected empty shadow name for missing file, got %+v", entries)
	}
}

func TestRollbackRestoresEveryEntry(t *testing.T) {
	l, db, root := newTestLedger(t)
	setupInstalled(t, root, db, "first", []string{"a"})
	setupInstalled(t, root, db, "second", []string{"b"})

	if err := l.BackUp("first"); err != nil {
		t.Fatal(err)
	}
	if err := l.BackUp("second"); err != nil {
		t.Fatal(err)
	}

	l.Rollback()

	if _, ok := db.GetPackage("first"); !ok {
		t.Fatal("expected first restored")
	}
	if _, ok := db.GetPackage("second"); !ok {
		t.Fatal("expected second restored")
	}
}
