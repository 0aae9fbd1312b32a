package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MRsources/Article-MAGMA24-RMRI/pkg/config"
)

func TestInitConfigCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tsefig.yaml")

	if err := runInitConfig(&cobra.Command{}, []string{path}); err != nil {
		t.Fatalf("runInitConfig failed: %v", err)
	}
	loaded, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load written config: %v", err)
	}
	if len(loaded.Variants) != 5 {
		t.Errorf("Expected 5 variants, got %d", len(loaded.Variants))
	}
}

func TestCheckCmd(t *testing.T) {
	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	cfg.SetResolution(16)
	defer func() { cfg = nil }()

	if err := runCheck(&cobra.Command{}, nil); err != nil {
		t.Fatalf("runCheck failed: %v", err)
	}
}

func TestCheckCmdRejectsInvalidConfig(t *testing.T) {
	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	cfg.SetResolution(7)
	defer func() { cfg = nil }()

	if err := runCheck(&cobra.Command{}, nil); err == nil {
		t.Error("Expected an error for an odd resolution")
	}
}

// TestRootCmdWritesFigure runs the whole command at a small resolution
func TestRootCmdWritesFigure(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping figure generation in short mode")
	}
	dir := t.TempDir()
	figure := filepath.Join(dir, "figure.png")

	rootCmd.SetArgs([]string{
		"--config", filepath.Join(dir, "absent.yaml"),
		"--resolution", "16",
		"--workers", "2",
		"--output", figure,
	})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("tsefig failed: %v", err)
	}
	if _, err := os.Stat(figure); err != nil {
		t.Errorf("Expected figure at %s: %v", figure, err)
	}
}
