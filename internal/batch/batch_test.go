package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkgctl/pkgctl/internal/cabinet/cabinettest"
	"github.com/pkgctl/pkgctl/internal/statedb"
)

func newTestBatch(t *testing.T, hostBuild int) (*Batch, *statedb.DB, string) {
	t.Helper()
	root := t.TempDir()
	db, err := statedb.Open(filepath.Join(t.TempDir(), "state.ini"))
	if err != nil {
		t.Fatal(err)
	}
	return New(db, root, hostBuild), db, root
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func mustReadFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		t.Fatalf("reading %s: %v", rel, err)
	}
	return string(data)
}

// S1: empty state, fresh install.
func TestS1FreshInstall(t *testing.T) {
	b, db, root := newTestBatch(t, 0)
	dir := t.TempDir()
	ini := cabinettest.ManifestINI("ex", "1.0", "noarch", nil)
	cab, err := cabinettest.Build(dir, "ex.cab", map[string]string{
		"pkginfo.ini":    ini,
		"bin/ex.exe":     "binary",
		"share/ex.dat":   "data",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Prepare(cab); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := b.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	v, ok := db.InstalledVersion("ex")
	if !ok || v != "1.0" {
		t.Fatalf("Installed[ex] = %q, %v", v, ok)
	}
	rec, ok := db.GetPackage("ex")
	if !ok || len(rec.Files) != 2 {
		t.Fatalf("record = %+v, %v", rec, ok)
	}
	if _, err := os.Stat(filepath.Join(root, "bin/ex.exe")); err != nil {
		t.Fatalf("expected bin/ex.exe on disk: %v", err)
	}
}

// S2: upgrade replaces files, old files disappear.
func TestS2UpgradeReplacesFiles(t *testing.T) {
	b, db, root := newTestBatch(t, 0)
	writeFile(t, root, "bin/ex.exe", "old-binary")
	writeFile(t, root, "share/ex.dat", "old-data")
	if err := db.PutPackage("ex", statedb.PackageRecord{
		Version: "1.0", Architecture: "noarch",
		Files: []string{"bin/ex.exe", "share/ex.dat"},
	}); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	ini := cabinettest.ManifestINI("ex", "1.1", "noarch", nil)
	cab, err := cabinettest.BuildOrdered(dir, "ex2.cab", []cabinettest.FileEntry{
		{Path: "pkginfo.ini", Content: ini},
		{Path: "bin/ex.exe", Content: "new-binary"},
		{Path: "share/ex2.dat", Content: "new-data"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Prepare(cab); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := b.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	v, _ := db.InstalledVersion("ex")
	if v != "1.1" {
		t.Fatalf("version = %q, want 1.1", v)
	}
	rec, _ := db.GetPackage("ex")
	if len(rec.Files) != 2 || rec.Files[0] != "bin/ex.exe" || rec.Files[1] != "share/ex2.dat" {
		t.Fatalf("files = %v", rec.Files)
	}
	if _, err := os.Stat(filepath.Join(root, "share/ex.dat")); !os.IsNotExist(err) {
		t.Fatal("expected share/ex.dat to be gone")
	}
	if got := mustReadFile(t, root, "bin/ex.exe"); got != "new-binary" {
		t.Fatalf("bin/ex.exe = %q", got)
	}
}

// S3: already installed is a no-op.
func TestS3AlreadyInstalledNoOp(t *testing.T) {
	b, db, root := newTestBatch(t, 0)
	writeFile(t, root, "bin/ex.exe", "binary")
	if err := db.PutPackage("ex", statedb.PackageRecord{
		Version: "1.0", Architecture: "noarch", Files: []string{"bin/ex.exe"},
	}); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	ini := cabinettest.ManifestINI("ex", "1.0", "noarch", nil)
	cab, err := cabinettest.Build(dir, "ex.cab", map[string]string{
		"pkginfo.ini": ini,
		"bin/ex.exe":  "binary",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := b.PrepareWithRedirect(cab); err != nil {
		t.Fatalf("PrepareWithRedirect should treat AlreadyCurrent as success: %v", err)
	}
	if len(b.Pending()) != 0 {
		t.Fatalf("expected no pending package, got %+v", b.Pending())
	}
	if err := b.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	rec, ok := db.GetPackage("ex")
	if !ok || rec.Version != "1.0" || len(rec.Files) != 1 {
		t.Fatalf("unexpected mutation: %+v, %v", rec, ok)
	}
}

// S4: Replaces supersedes multiple packages in one install.
func TestS4ReplacesSupersedesMultiple(t *testing.T) {
	b, db, root := newTestBatch(t, 0)
	writeFile(t, root, "bin/ex.exe", "ex-binary")
	writeFile(t, root, "bin/dep.exe", "dep-binary")
	if err := db.PutPackage("ex", statedb.PackageRecord{Version: "1.0", Architecture: "noarch", Files: []string{"bin/ex.exe"}}); err != nil {
		t.Fatal(err)
	}
	if err := db.PutPackage("dep", statedb.PackageRecord{Version: "2.0", Architecture: "noarch", Files: []string{"bin/dep.exe"}}); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	ini := cabinettest.ManifestINI("super", "3.0", "noarch", map[string]string{"__replaces__": "ex,dep"})
	cab, err := cabinettest.Build(dir, "super.cab", map[string]string{
		"pkginfo.ini":    ini,
		"bin/super.exe":  "super-binary",
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Prepare(cab); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := b.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	names := db.InstalledNames()
	if len(names) != 1 || names[0] != "super" {
		t.Fatalf("Installed = %v, want only super", names)
	}
	for _, gone := range []string{"bin/ex.exe", "bin/dep.exe"} {
		if _, err := os.Stat(filepath.Join(root, gone)); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed", gone)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "bin/super.exe")); err != nil {
		t.Fatalf("expected bin/super.exe present: %v", err)
	}
}

// S5: rollback completeness on a mid-extraction conflict.
func TestS5RollbackOnExtractionFailure(t *testing.T) {
	b, db, root := newTestBatch(t, 0)
	writeFile(t, root, "bin/ex.exe", "orig-binary")
	writeFile(t, root, "share/ex.dat", "orig-data")
	if err := db.PutPackage("ex", statedb.PackageRecord{
		Version: "1.0", Architecture: "noarch",
		Files: []string{"bin/ex.exe", "share/ex.dat"},
	}); err != nil {
		t.Fatal(err)
	}
	// A surviving package that happens to already own the path the
	// new ex payload's second file will try to write.
	writeFile(t, root, "share/ex2.dat", "other-data")
	if err := db.PutPackage("other", statedb.PackageRecord{
		Version: "1.0", Architecture: "noarch", Files: []string{"share/ex2.dat"},
	}); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	ini := cabinettest.ManifestINI("ex", "1.1", "noarch", nil)
	cab, err := cabinettest.BuildOrdered(dir, "ex2.cab", []cabinettest.FileEntry{
		{Path: "pkginfo.ini", Content: ini},
		{Path: "bin/ex.exe", Content: "new-binary"},
		{Path: "share/ex2.dat", Content: "conflicting-data"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Prepare(cab); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := b.Commit(); err == nil {
		t.Fatal("expected Commit to fail on file conflict")
	}

	v, ok := db.InstalledVersion("ex")
	if !ok || v != "1.0" {
		t.Fatalf("expected ex restored to 1.0, got %q, %v", v, ok)
	}
	rec, ok := db.GetPackage("ex")
	if !ok || len(rec.Files) != 2 {
		t.Fatalf("expected ex record restored, got %+v, %v", rec, ok)
	}
	if got := mustReadFile(t, root, "bin/ex.exe"); got != "orig-binary" {
		t.Fatalf("bin/ex.exe = %q, want original restored", got)
	}
	if got := mustReadFile(t, root, "share/ex.dat"); got != "orig-data" {
		t.Fatalf("share/ex.dat = %q, want original restored", got)
	}
	if got := mustReadFile(t, root, "share/ex2.dat"); got != "other-data" {
		t.Fatalf("share/ex2.dat = %q, expected untouched owner file", got)
	}
	if !b.Ledger.Empty() {
		t.Fatal("expected ledger empty after rollback")
	}
}

// S6: OS-build redirect chain resolves to the fallback package.
func TestS6OSBuildRedirectChain(t *testing.T) {
	b, db, root := newTestBatch(t, 9000)

	dirB := t.TempDir()
	iniB := cabinettest.ManifestINI("ex", "1.0", "noarch", map[string]string{"MinimumOSBuild": "8000"})
	cabB, err := cabinettest.Build(dirB, "b.cab", map[string]string{
		"pkginfo.ini": iniB,
		"bin/ex.exe":  "binary",
	})
	if err != nil {
		t.Fatal(err)
	}

	dirA := t.TempDir()
	iniA := cabinettest.ManifestINI("ex", "2.0", "noarch", map[string]string{
		"MinimumOSBuild":            "10000",
		"PackagePathForOlderBuilds": cabB,
	})
	cabA, err := cabinettest.Build(dirA, "a.cab", map[string]string{
		"pkginfo.ini": iniA,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := b.PrepareWithRedirect(cabA); err != nil {
		t.Fatalf("PrepareWithRedirect: %v", err)
	}
	if len(b.Pending()) != 1 || b.Pending()[0].Manifest.Version != "1.0" {
		t.Fatalf("expected fallback package 1.0 staged, got %+v", b.Pending())
	}
	if err := b.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	v, ok := db.InstalledVersion("ex")
	if !ok || v != "1.0" {
		t.Fatalf("expected ex=1.0 (the fallback) installed, got %q, %v", v, ok)
	}
	if _, err := os.Stat(filepath.Join(root, "bin/ex.exe")); err != nil {
		t.Fatalf("expected bin/ex.exe present: %v", err)
	}
}

func TestRedirectFailsWithoutFallback(t *testing.T) {
	b, _, _ := newTestBatch(t, 9000)
	dir := t.TempDir()
	ini := cabinettest.ManifestINI("ex", "2.0", "noarch", map[string]string{"MinimumOSBuild": "10000"})
	cab, err := cabinettest.Build(dir, "a.cab", map[string]string{"pkginfo.ini": ini})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.PrepareWithRedirect(cab); err == nil {
		t.Fatal("expected failure with no fallback available")
	}
}
