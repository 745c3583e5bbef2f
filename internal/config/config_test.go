package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fieldbusd.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	path := writeTOML(t, `[ethercat]
interface = "eth1"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Ethercat.Interface != "eth1" {
		t.Fatalf("Interface = %q, want eth1", cfg.Ethercat.Interface)
	}
	if cfg.HTTP.ListenAddr != defaults.HTTP.ListenAddr {
		t.Fatalf("ListenAddr = %q, want default %q", cfg.HTTP.ListenAddr, defaults.HTTP.ListenAddr)
	}
}

func TestCyclePeriodClampsExtremeValues(t *testing.T) {
	path := writeTOML(t, `[ethercat]
interface = "eth0"
cycle_period = "5s"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d, err := cfg.CyclePeriod()
	if err != nil {
		t.Fatalf("CyclePeriod: %v", err)
	}
	if d != maxCyclePeriod {
		t.Fatalf("CyclePeriod() = %v, want clamped to %v", d, maxCyclePeriod)
	}
}

func TestLoadRejectsEmptyInterface(t *testing.T) {
	path := writeTOML(t, `[ethercat]
interface = ""
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("Load should reject an empty interface")
	}
}
