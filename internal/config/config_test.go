package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestConfigParsing(t *testing.T) {
	configContent := `# Global options
tick-rate 2
log.level debug

[arm]
tick-rate 10
script.timeout 50ms

[base]
tick-rate 0.5`

	config, err := LoadFromReader(strings.NewReader(configContent))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Test global options
	if value, ok := config.GetGlobalOption("tick-rate"); !ok || value != "2" {
		t.Errorf("Expected tick-rate=2, got %s (exists: %v)", value, ok)
	}

	if value, ok := config.GetGlobalOption("log.level"); !ok || value != "debug" {
		t.Errorf("Expected log.level=debug, got %s (exists: %v)", value, ok)
	}

	// Test scheduler options
	if value, ok := config.GetSectionOption("arm", "tick-rate"); !ok || value != "10" {
		t.Errorf("Expected arm.tick-rate=10, got %s (exists: %v)", value, ok)
	}

	if value, ok := config.GetSectionOption("base", "tick-rate"); !ok || value != "0.5" {
		t.Errorf("Expected base.tick-rate=0.5, got %s (exists: %v)", value, ok)
	}

	// Test fallback to global options
	if value, ok := config.GetSectionOption("base", "log.level"); !ok || value != "debug" {
		t.Errorf("Expected base log.level=debug (fallback), got %s (exists: %v)", value, ok)
	}

	// Unknown sections fall back too
	if value, ok := config.GetSectionOption("nonexistent", "tick-rate"); !ok || value != "2" {
		t.Errorf("Expected fallback for unknown section, got %s (exists: %v)", value, ok)
	}

	// Test non-existent option
	if value, ok := config.GetSectionOption("nonexistent", "option"); ok {
		t.Errorf("Expected nonexistent option to not exist, but got %s", value)
	}

	if config.HasWarnings() {
		t.Errorf("Expected no warnings, got %v", config.Warnings)
	}
}

func TestEmptyConfig(t *testing.T) {
	config, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Failed to load empty config: %v", err)
	}

	if len(config.Global) != 0 {
		t.Errorf("Expected empty global config, got %d options", len(config.Global))
	}

	if len(config.Sections) != 0 {
		t.Errorf("Expected empty sections, got %d", len(config.Sections))
	}
}

func TestConfigCommentsAndBlankLines(t *testing.T) {
	config, err := LoadFromReader(strings.NewReader("\n# comment\n   \n  tick-rate   3  \n# another\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if value := config.GetString("tick-rate"); value != "3" {
		t.Errorf("Expected tick-rate=3, got %q", value)
	}
	if len(config.Global) != 1 {
		t.Errorf("Expected 1 global option, got %d", len(config.Global))
	}
}

func TestConfigOptionWithoutValue(t *testing.T) {
	config, err := LoadFromReader(strings.NewReader("metrics.addr\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	value, ok := config.GetGlobalOption("metrics.addr")
	if !ok || value != "" {
		t.Errorf("Expected empty metrics.addr, got %q (exists: %v)", value, ok)
	}
}

func TestConfigValueKeepsInnerSpaces(t *testing.T) {
	config, err := LoadFromReader(strings.NewReader("tree.file /srv/my trees/fetch.yaml\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if value := config.GetString("tree.file"); value != "/srv/my trees/fetch.yaml" {
		t.Errorf("unexpected tree.file %q", value)
	}
}

func TestConfigEmptySectionName(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("[ ]\ntick-rate 1\n"))
	if err == nil {
		t.Fatal("expected error for empty section name")
	}
}

func TestConfigWarnings(t *testing.T) {
	config, err := LoadFromReader(strings.NewReader(`tick-rate fast
colour blue

[arm]
log.file /tmp/arm.log
`))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if !config.HasWarnings() {
		t.Fatal("expected warnings")
	}
	if len(config.Warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %d: %v", len(config.Warnings), config.Warnings)
	}
	joined := strings.Join(config.Warnings, "\n")
	for _, want := range []string{`"tick-rate"`, `"colour"`, `scheduler "arm"`} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected a warning mentioning %s, got %v", want, config.Warnings)
		}
	}
	// invalid values are kept; typed getters treat them as unset
	if got := config.GetFloat("tick-rate"); got != 0 {
		t.Errorf("expected 0 for invalid float, got %v", got)
	}
}

func TestSetOptions(t *testing.T) {
	config := NewConfig()
	config.SetGlobalOption("tick-rate", "5")
	config.SetSectionOption("arm", "tick-rate", "50")

	if value, _ := config.GetGlobalOption("tick-rate"); value != "5" {
		t.Errorf("Expected tick-rate=5, got %s", value)
	}
	if value, _ := config.GetSectionOption("arm", "tick-rate"); value != "50" {
		t.Errorf("Expected arm.tick-rate=50, got %s", value)
	}
	if value, _ := config.GetSectionOption("base", "tick-rate"); value != "5" {
		t.Errorf("Expected base.tick-rate=5 (fallback), got %s", value)
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"true", true, false},
		{"YES", true, false},
		{"1", true, false},
		{"on", true, false},
		{"false", false, false},
		{"No", false, false},
		{"0", false, false},
		{"off", false, false},
		{"maybe", false, true},
		{"", false, true},
	}
	for _, tt := range tests {
		got, err := parseBool(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseBool(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseBool(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	config, err := LoadFromPath(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if len(config.Global) != 0 {
		t.Fatalf("expected empty config, got %v", config.Global)
	}
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	writeFile(t, path, "tick-rate 8\n[arm]\ntick-rate 16\n")

	config, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if value, _ := config.GetSectionOption("arm", "tick-rate"); value != "16" {
		t.Errorf("Expected arm.tick-rate=16, got %s", value)
	}
}

func TestLoadFromPathRejectsSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}
	dir := t.TempDir()
	target := filepath.Join(dir, "real")
	writeFile(t, target, "tick-rate 1\n")
	link := filepath.Join(dir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	_, err := LoadFromPath(link)
	if err == nil || !strings.Contains(err.Error(), "symlink") {
		t.Fatalf("expected symlink error, got %v", err)
	}
}
