package toolconfig

import (
	"path/filepath"
	"testing"
)

func TestLoadDefaultsAndSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := &Config{}
	c.LoadDefaults(dir)

	if err := c.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Client.FetchTimeout != 30 {
		t.Fatalf("FetchTimeout = %d, want 30", loaded.Client.FetchTimeout)
	}
	if loaded.Log.Level != "info" {
		t.Fatalf("Log.Level = %q, want info", loaded.Log.Level)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Client.DefaultArch != "" {
		t.Fatalf("expected zero-value config, got %+v", c)
	}
}

func TestSetPropertySetsAndPersists(t *testing.T) {
	dir := t.TempDir()
	c := &Config{}
	c.LoadDefaults(dir)
	if err := c.Save(); err != nil {
		t.Fatal(err)
	}

	if err := c.SetProperty("Client.OFFLINE", "true"); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}
	if !c.Client.Offline {
		t.Fatal("expected Offline set to true")
	}

	reloaded, err := Load(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatal(err)
	}
	if !reloaded.Client.Offline {
		t.Fatal("expected persisted change to survive reload")
	}
}

func TestSetPropertyUnknownSection(t *testing.T) {
	c := &Config{}
	c.LoadDefaults(t.TempDir())
	if err := c.SetProperty("Nope.FOO", "x"); err == nil {
		t.Fatal("expected error for unknown section")
	}
}
