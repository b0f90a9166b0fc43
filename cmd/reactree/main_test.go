package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/reactree/internal/config"
	"github.com/joeycumines/reactree/internal/treefile"
)

// isolateEnv points the config at an empty location and clears every
// REACTREE_* override for the duration of the test.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.ConfigEnvVar, filepath.Join(t.TempDir(), "config"))
	for _, opt := range config.DefaultSchema().Options() {
		if opt.EnvVar == "" {
			continue
		}
		t.Setenv(opt.EnvVar, "")
		if err := os.Unsetenv(opt.EnvVar); err != nil {
			t.Fatalf("failed to unset %s: %v", opt.EnvVar, err)
		}
	}
}

func runArgs(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(ctx, args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRunVersionAndHelp(t *testing.T) {
	isolateEnv(t)

	out, _, err := runArgs(t, context.Background(), "-version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "reactree "+version) {
		t.Errorf("unexpected version output %q", out)
	}

	out, _, err = runArgs(t, context.Background(), "-config-help")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "tick-rate") || !strings.Contains(out, "REACTREE_TICK_RATE") {
		t.Errorf("unexpected config help %q", out)
	}

	_, errOut, err := runArgs(t, context.Background(), "-h")
	if err != nil {
		t.Fatalf("expected no error for -h, got %v", err)
	}
	if !strings.Contains(errOut, "Usage: reactree") {
		t.Errorf("expected usage on stderr, got %q", errOut)
	}
}

func TestRunFlagErrors(t *testing.T) {
	isolateEnv(t)

	for _, args := range [][]string{
		{"-no-such-flag"},
		{"extra"},
		{"-rate", "-1"},
		{"-tree", filepath.Join(t.TempDir(), "missing.yaml")},
		{"-log-level", "loud"},
	} {
		if _, _, err := runArgs(t, context.Background(), args...); err == nil {
			t.Errorf("expected error for %v", args)
		}
	}
}

func TestRunOnceBuiltinDemo(t *testing.T) {
	isolateEnv(t)

	out, _, err := runArgs(t, context.Background(), "-once", "-log-level", "error")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"tick: 1",
		"node: ballfetch",
		"status: READY",
		"outcome: true",
		"AT_WALL: true",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRunOncePlannedDemo(t *testing.T) {
	isolateEnv(t)

	out, _, err := runArgs(t, context.Background(), "-once", "-planned", "-log-level", "error")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "node: ballfetch") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunOnceTreeFile(t *testing.T) {
	isolateEnv(t)

	out, _, err := runArgs(t, context.Background(), "-once", "-tree", filepath.Join("testdata", "patrol.yaml"), "-log-level", "error")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		"node: charge",
		"node: advance",
		"battery: 50",
		"waypoint: 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "error:") {
		t.Errorf("unexpected fault in output:\n%s", out)
	}
}

func TestRunTreeFileFromConfig(t *testing.T) {
	isolateEnv(t)

	abs, err := filepath.Abs(filepath.Join("testdata", "patrol.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(cfgPath, []byte("tree.file "+abs+"\nlog.level error\n"), 0600); err != nil {
		t.Fatal(err)
	}

	out, _, err := runArgs(t, context.Background(), "-once", "-config", cfgPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "node: advance") {
		t.Errorf("expected the configured tree to run:\n%s", out)
	}
}

func TestRunLogsConfigWarnings(t *testing.T) {
	isolateEnv(t)

	cfgPath := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(cfgPath, []byte("tick-rat 5\nlog.format xml\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, errOut, err := runArgs(t, context.Background(), "-once", "-config", cfgPath, "-log-format", "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"config warning", "tick-rat", "log.format"} {
		if !strings.Contains(errOut, want) {
			t.Errorf("expected stderr to contain %q:\n%s", want, errOut)
		}
	}
}

func TestRunUntilCancelled(t *testing.T) {
	isolateEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, errOut, err := runArgs(t, ctx, "-rate", "200", "-metrics-addr", "127.0.0.1:0", "-log-level", "info")
	if err != nil {
		t.Fatalf("expected a clean stop, got %v", err)
	}
	for _, want := range []string{"serving metrics", "scheduler started", "scheduler stopped"} {
		if !strings.Contains(errOut, want) {
			t.Errorf("expected %q in log:\n%s", want, errOut)
		}
	}
}

func TestResolveRate(t *testing.T) {
	isolateEnv(t)

	schema := config.DefaultSchema()
	doc := &treefile.Document{Name: "patrol", Rate: 20}

	cfg := config.NewConfig()
	if got, err := resolveRate(0, nil, cfg, schema, "ballfetch"); err != nil || got != 1 {
		t.Errorf("expected schema default 1, got %v (%v)", got, err)
	}
	if got, _ := resolveRate(0, doc, cfg, schema, "patrol"); got != 20 {
		t.Errorf("expected tree file rate 20, got %v", got)
	}

	cfg.SetGlobalOption("tick-rate", "5")
	if got, _ := resolveRate(0, doc, cfg, schema, "patrol"); got != 5 {
		t.Errorf("expected config rate 5, got %v", got)
	}
	cfg.SetSectionOption("patrol", "tick-rate", "50")
	if got, _ := resolveRate(0, doc, cfg, schema, "patrol"); got != 50 {
		t.Errorf("expected section rate 50, got %v", got)
	}

	t.Setenv("REACTREE_TICK_RATE", "7.5")
	if got, _ := resolveRate(0, doc, cfg, schema, "patrol"); got != 7.5 {
		t.Errorf("expected env rate 7.5, got %v", got)
	}
	if got, _ := resolveRate(3, doc, cfg, schema, "patrol"); got != 3 {
		t.Errorf("expected flag rate 3, got %v", got)
	}

	t.Setenv("REACTREE_TICK_RATE", "fast")
	if _, err := resolveRate(0, doc, cfg, schema, "patrol"); err == nil {
		t.Error("expected error for invalid rate")
	}
}
