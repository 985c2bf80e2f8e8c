package manifest

import (
	"testing"

	"github.com/pkgctl/pkgctl/internal/cabinet/cabinettest"
)

func TestReadBasicManifest(t *testing.T) {
	dir := t.TempDir()
	ini := cabinettest.ManifestINI("ex", "1.0", "noarch", nil)
	path, err := cabinettest.Build(dir, "ex.cab", map[string]string{
		"pkginfo.ini": ini,
		"bin/ex.exe":  "bin",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	m, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if m.Name != "ex" || m.Version != "1.0" || m.Architecture != "noarch" {
		t.Fatalf("got %+v", m)
	}
}

func TestReadMissingRequiredFieldIsMalformed(t *testing.T) {
	dir := t.TempDir()
	path, err := cabinettest.Build(dir, "bad.cab", map[string]string{
		"pkginfo.ini": "[Package]\nName=ex\n",
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := Read(path); err == nil {
		t.Fatal("expected malformed error for missing Version/Architecture")
	}
}

func TestReadMinimumOSBuildAndReplaces(t *testing.T) {
	dir := t.TempDir()
	extra := map[string]string{
		"MinimumOSBuild":            "10000",
		"PackagePathForOlderBuilds": "http://example/old.cab",
		"__replaces__":              "ex,dep",
	}
	ini := cabinettest.ManifestINI("super", "3.0", "noarch", extra)
	path, err := cabinettest.Build(dir, "super.cab", map[string]string{"pkginfo.ini": ini})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	m, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if m.MinimumOSBuild != 10000 {
		t.Fatalf("MinimumOSBuild = %d, want 10000", m.MinimumOSBuild)
	}
	if m.PackagePathForOlderBuilds != "http://example/old.cab" {
		t.Fatalf("PackagePathForOlderBuilds = %q", m.PackagePathForOlderBuilds)
	}
	want := map[string]bool{"ex": true, "dep": true}
	if len(m.Replaces) != 2 {
		t.Fatalf("Replaces = %v", m.Replaces)
	}
	for _, r := range m.Replaces {
		if !want[r] {
			t.Fatalf("unexpected Replaces entry %q", r)
		}
	}
}

func TestReadMissingEntryIsWriteFault(t *testing.T) {
	dir := t.TempDir()
	path, err := cabinettest.Build(dir, "empty.cab", map[string]string{"bin/ex.exe": "x"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := Read(path); err == nil {
		t.Fatal("expected error when pkginfo.ini is absent")
	}
}
