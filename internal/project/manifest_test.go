package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseManifest(t *testing.T) {
	m, err := Parse([]byte(`
name: telemetry
version: 1.2.0
compiler: ">= 0.1.0"
sources:
  - src/main.rpl
  - src/collector.rpl
`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if m.Name != "telemetry" {
		t.Errorf("name = %q", m.Name)
	}
	if m.Version != "1.2.0" {
		t.Errorf("version = %q", m.Version)
	}
	if len(m.Sources) != 2 || m.Sources[1] != "src/collector.rpl" {
		t.Errorf("sources = %v", m.Sources)
	}
}

func TestParseRejectsMissingName(t *testing.T) {
	_, err := Parse([]byte("version: 1.0.0\n"))
	if err == nil || !strings.Contains(err.Error(), "missing project name") {
		t.Fatalf("got err %v, want missing project name", err)
	}
}

func TestParseRejectsBadVersion(t *testing.T) {
	_, err := Parse([]byte("name: demo\nversion: not-a-version\n"))
	if err == nil {
		t.Fatal("invalid version accepted")
	}
}

func TestParseRejectsBadConstraint(t *testing.T) {
	_, err := Parse([]byte("name: demo\ncompiler: \"~~nope\"\n"))
	if err == nil {
		t.Fatal("invalid constraint accepted")
	}
}

func TestCheckCompiler(t *testing.T) {
	m, err := Parse([]byte("name: demo\ncompiler: \">= 0.1.0, < 1.0.0\"\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if err := m.CheckCompiler("0.2.5"); err != nil {
		t.Errorf("0.2.5 rejected: %v", err)
	}
	if err := m.CheckCompiler("1.0.0"); err == nil {
		t.Error("1.0.0 accepted against < 1.0.0")
	}
}

func TestCheckCompilerWithoutConstraint(t *testing.T) {
	m := &Manifest{Name: "demo"}
	if err := m.CheckCompiler("0.0.1"); err != nil {
		t.Errorf("unconstrained manifest rejected compiler: %v", err)
	}
}

func TestLoadManifestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultManifestName)
	content := "name: ondisk\nversion: 0.3.1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if m.Name != "ondisk" || m.Version != "0.3.1" {
		t.Errorf("manifest = %+v", m)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}
