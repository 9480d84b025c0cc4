package mergecfg

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "prismerge.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}
	return path
}

func TestLoadParsesYAML(t *testing.T) {
	path := writeConfig(t, "schema_path: ./schema.prisma\noutput_path: ./out.db\nmin_inserts: 500\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SchemaPath != "./schema.prisma" || cfg.OutputPath != "./out.db" || cfg.MinInserts != 500 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestDefaultedFillsInZeroFields(t *testing.T) {
	cfg := Config{}
	defaults := cfg.Defaulted()

	if defaults.OutputPath != "./merged.db" {
		t.Fatalf("expected default output path ./merged.db, got %s", defaults.OutputPath)
	}
	if defaults.MinInserts != 1000 {
		t.Fatalf("expected default min-inserts 1000, got %d", defaults.MinInserts)
	}
}

func TestDefaultedPreservesExplicitValues(t *testing.T) {
	cfg := Config{OutputPath: "./custom.db", MinInserts: 42}
	defaults := cfg.Defaulted()

	if defaults.OutputPath != "./custom.db" || defaults.MinInserts != 42 {
		t.Fatalf("expected explicit values preserved, got %+v", defaults)
	}
}
