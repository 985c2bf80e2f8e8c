package cabinet

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func buildTestCabinet(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pkg.cab")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return path
}

func TestEntriesAndReadEntry(t *testing.T) {
	path := buildTestCabinet(t, map[string]string{
		"pkginfo.ini": "[Package]\nName=ex\n",
		"bin/ex.exe":  "binary",
	})
	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = a.Close() }()

	entries, err := a.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	data, err := a.ReadEntry("pkginfo.ini")
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if string(data) != "[Package]\nName=ex\n" {
		t.Fatalf("got %q", data)
	}
}

func TestExtractAllSkipsManifestAndInvokesCallback(t *testing.T) {
	path := buildTestCabinet(t, map[string]string{
		"pkginfo.ini":  "[Package]\nName=ex\n",
		"bin/ex.exe":   "binary",
		"share/ex.dat": "data",
	})
	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = a.Close() }()

	dest := t.TempDir()
	var seen []string
	err = a.ExtractAll(dest, "pkginfo.ini", func(rel string, mode os.FileMode) error {
		seen = append(seen, rel)
		return nil
	})
	if err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("callback invoked %d times, want 2: %v", len(seen), seen)
	}
	if _, err := os.Stat(filepath.Join(dest, "pkginfo.ini")); !os.IsNotExist(err) {
		t.Fatal("pkginfo.ini should not have been extracted")
	}
	if _, err := os.Stat(filepath.Join(dest, "bin/ex.exe")); err != nil {
		t.Fatalf("bin/ex.exe missing: %v", err)
	}
}

func TestExtractAllAbortsOnCallbackError(t *testing.T) {
	path := buildTestCabinet(t, map[string]string{
		"pkginfo.ini": "x",
		"a":           "1",
		"b":           "2",
	})
	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = a.Close() }()

	dest := t.TempDir()
	callCount := 0
	err = a.ExtractAll(dest, "pkginfo.ini", func(rel string, mode os.FileMode) error {
		callCount++
		if rel == "b" {
			return os.ErrPermission
		}
		return nil
	})
	if err == nil {
		t.Fatal("expected error from callback to propagate")
	}
}
