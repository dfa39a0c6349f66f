package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// Values are loaded by Viper from a config file and/or environment variables.
type Config struct {
	GameRoot          string `mapstructure:"GAME_ROOT"`
	GameExecutable    string `mapstructure:"GAME_EXECUTABLE"`
	DataDir           string `mapstructure:"DATA_DIR"`
	KeepDisabledFiles bool   `mapstructure:"KEEP_DISABLED_FILES"`
	DatabasePath      string `mapstructure:"-"` // Not from env, derived
	ImageCacheDir     string `mapstructure:"-"` // Not from env, derived
}

// LoadConfig reads configuration from file and environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env") // REQUIRED if the config file does not have the extension in the name

	vipErr := viper.ReadInConfig()
	if _, ok := vipErr.(viper.ConfigFileNotFoundError); ok {
		slog.Info("Config file (.env) not found, relying on environment variables.")
	} else if vipErr != nil {
		return Config{}, fmt.Errorf("fatal error config file: %w", vipErr)
	}

	// Viper will check for an environment variable matching the key name (e.g., GAME_ROOT)
	viper.AutomaticEnv()

	for _, key := range []string{"GAME_ROOT", "GAME_EXECUTABLE", "DATA_DIR", "KEEP_DISABLED_FILES"} {
		if bindErr := viper.BindEnv(key); bindErr != nil {
			slog.Warn("Unable to bind env var", "key", key, "error", bindErr)
		}
	}

	if vipErr = viper.Unmarshal(&config); vipErr != nil {
		return Config{}, fmt.Errorf("unable to decode into struct, %w", vipErr)
	}

	processConfigDefaults(&config)

	if err := validateAndEnsureDirectories(&config); err != nil {
		return Config{}, err
	}

	return config, nil
}

// processConfigDefaults fills in values Viper could not determine on its own.
func processConfigDefaults(cfg *Config) {
	// Viper doesn't handle bool defaults from env well without explicit SetDefault,
	// so check the raw string value before trusting the unmarshalled field.
	keepStr := viper.GetString("KEEP_DISABLED_FILES")
	if keepStr == "" {
		cfg.KeepDisabledFiles = false
	} else if keep, err := strconv.ParseBool(keepStr); err != nil {
		slog.Warn("Invalid value for KEEP_DISABLED_FILES, defaulting to false", "value", keepStr, "error", err)
		cfg.KeepDisabledFiles = false
	} else {
		cfg.KeepDisabledFiles = keep
	}

	// A configured executable can stand in for an explicit game root.
	if cfg.GameRoot == "" && cfg.GameExecutable != "" {
		root, err := FindGameRoot(cfg.GameExecutable)
		if err != nil {
			slog.Warn("Could not derive game root from executable", "executable", cfg.GameExecutable, "error", err)
		} else {
			slog.Info("Derived game root from executable", "root", root)
			cfg.GameRoot = root
		}
	}
}

// validateAndEnsureDirectories checks required paths and creates the
// directories the manager owns.
func validateAndEnsureDirectories(cfg *Config) error {
	if cfg.GameRoot == "" {
		slog.Error("GAME_ROOT is not set")
		return fmt.Errorf("GAME_ROOT is required (or GAME_EXECUTABLE to derive it)")
	}

	if _, err := os.Stat(cfg.GameRoot); os.IsNotExist(err) {
		slog.Info("Game root does not exist, creating it", "path", cfg.GameRoot)
		if err := os.MkdirAll(cfg.GameRoot, 0755); err != nil {
			slog.Error("Failed to create game root", "path", cfg.GameRoot, "error", err)
			return err
		}
	} else if err != nil {
		slog.Error("Failed to check game root", "path", cfg.GameRoot, "error", err)
		return err
	}

	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(cfg.GameRoot, "fossmodmanager")
	}

	// The manager owns <data>/mods (extracted archives live here) and the
	// image cache directory.
	modsDir := filepath.Join(cfg.DataDir, "mods")
	cfg.ImageCacheDir = filepath.Join(cfg.DataDir, "images")
	for _, dir := range []string{modsDir, cfg.ImageCacheDir} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			slog.Info("Directory does not exist, creating it", "path", dir)
			if err := os.MkdirAll(dir, 0755); err != nil {
				slog.Error("Failed to create directory", "path", dir, "error", err)
				return err
			}
		} else if err != nil {
			slog.Error("Failed to check directory", "path", dir, "error", err)
			return err
		}
	}

	// Place the registry database alongside the managed mods for portability.
	cfg.DatabasePath = filepath.Join(cfg.DataDir, "registry.db")

	return nil
}

// ModsDir returns the directory holding extracted skin mod folders.
func (c Config) ModsDir() string {
	return filepath.Join(c.DataDir, "mods")
}

// FindGameRoot walks up from a game executable looking for the Steam
// steamapps/common layout and returns the game's install directory.
func FindGameRoot(executablePath string) (string, error) {
	info, err := os.Stat(executablePath)
	if err != nil {
		return "", fmt.Errorf("provided path does not exist: %s", executablePath)
	}
	if info.IsDir() {
		return "", fmt.Errorf("provided path is not a file: %s", executablePath)
	}

	current := filepath.Dir(executablePath)
	for {
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("reached filesystem root without finding steamapps/common above %s", executablePath)
		}

		if filepath.Base(parent) == "common" {
			grandparent := filepath.Dir(parent)
			if filepath.Base(grandparent) == "steamapps" {
				return current, nil
			}
		}

		current = parent
	}
}
