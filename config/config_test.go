package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestProcessConfigDefaults(t *testing.T) {
	t.Run("keep disabled files default", func(t *testing.T) {
		viper.Reset()
		cfg := Config{}
		processConfigDefaults(&cfg)

		if cfg.KeepDisabledFiles {
			t.Error("Expected KeepDisabledFiles to default to false")
		}
	})

	t.Run("keep disabled files from env", func(t *testing.T) {
		viper.Reset()
		viper.Set("KEEP_DISABLED_FILES", "true")
		cfg := Config{}
		processConfigDefaults(&cfg)

		if !cfg.KeepDisabledFiles {
			t.Error("Expected KeepDisabledFiles to be true")
		}
	})

	t.Run("invalid keep disabled files value", func(t *testing.T) {
		viper.Reset()
		viper.Set("KEEP_DISABLED_FILES", "maybe")
		cfg := Config{}
		processConfigDefaults(&cfg)

		if cfg.KeepDisabledFiles {
			t.Error("Expected invalid value to fall back to false")
		}
	})

	t.Run("derives game root from executable", func(t *testing.T) {
		viper.Reset()
		tmpDir := t.TempDir()
		gameDir := filepath.Join(tmpDir, "steamapps", "common", "SomeGame")
		if err := os.MkdirAll(gameDir, 0755); err != nil {
			t.Fatal(err)
		}
		exe := filepath.Join(gameDir, "game.exe")
		if err := os.WriteFile(exe, []byte("binary"), 0755); err != nil {
			t.Fatal(err)
		}

		cfg := Config{GameExecutable: exe}
		processConfigDefaults(&cfg)

		if cfg.GameRoot != gameDir {
			t.Errorf("Expected GameRoot %s, got %s", gameDir, cfg.GameRoot)
		}
	})
}

func TestValidateAndEnsureDirectories(t *testing.T) {
	t.Run("missing game root", func(t *testing.T) {
		cfg := Config{}
		if err := validateAndEnsureDirectories(&cfg); err == nil {
			t.Error("Expected error for missing GameRoot")
		}
	})

	t.Run("creates directories and derives paths", func(t *testing.T) {
		tmpDir := t.TempDir()
		cfg := Config{GameRoot: filepath.Join(tmpDir, "game")}

		if err := validateAndEnsureDirectories(&cfg); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		expectedData := filepath.Join(cfg.GameRoot, "fossmodmanager")
		if cfg.DataDir != expectedData {
			t.Errorf("Expected DataDir %s, got %s", expectedData, cfg.DataDir)
		}
		if cfg.DatabasePath != filepath.Join(expectedData, "registry.db") {
			t.Errorf("Unexpected DatabasePath: %s", cfg.DatabasePath)
		}

		for _, dir := range []string{cfg.ModsDir(), cfg.ImageCacheDir} {
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				t.Errorf("Expected directory %s to exist: %v", dir, err)
			}
		}
	})

	t.Run("respects explicit data dir", func(t *testing.T) {
		tmpDir := t.TempDir()
		cfg := Config{
			GameRoot: filepath.Join(tmpDir, "game"),
			DataDir:  filepath.Join(tmpDir, "elsewhere"),
		}

		if err := validateAndEnsureDirectories(&cfg); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if cfg.DataDir != filepath.Join(tmpDir, "elsewhere") {
			t.Errorf("Explicit DataDir should be kept, got %s", cfg.DataDir)
		}
	})
}

func TestFindGameRoot(t *testing.T) {
	t.Run("steam layout", func(t *testing.T) {
		tmpDir := t.TempDir()
		gameDir := filepath.Join(tmpDir, "SteamLibrary", "steamapps", "common", "SomeGame")
		binDir := filepath.Join(gameDir, "bin")
		if err := os.MkdirAll(binDir, 0755); err != nil {
			t.Fatal(err)
		}
		exe := filepath.Join(binDir, "game.exe")
		if err := os.WriteFile(exe, []byte("binary"), 0755); err != nil {
			t.Fatal(err)
		}

		root, err := FindGameRoot(exe)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if root != gameDir {
			t.Errorf("Expected %s, got %s", gameDir, root)
		}
	})

	t.Run("no steam layout", func(t *testing.T) {
		tmpDir := t.TempDir()
		exe := filepath.Join(tmpDir, "game.exe")
		if err := os.WriteFile(exe, []byte("binary"), 0755); err != nil {
			t.Fatal(err)
		}

		if _, err := FindGameRoot(exe); err == nil {
			t.Error("Expected error without steamapps/common in the path")
		}
	})

	t.Run("path is a directory", func(t *testing.T) {
		if _, err := FindGameRoot(t.TempDir()); err == nil {
			t.Error("Expected error for directory path")
		}
	})

	t.Run("path does not exist", func(t *testing.T) {
		if _, err := FindGameRoot(filepath.Join(t.TempDir(), "missing.exe")); err == nil {
			t.Error("Expected error for missing path")
		}
	})
}
