// Package registry is the authority over installed mods and skins for
// one game root. It owns the sqlite bookkeeping and the filesystem
// mutations behind install, enable/disable, and delete; the mirror and
// coordinator packages only ever talk to it through their capability
// interfaces.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"fossmodmanager/mirror"

	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/gormlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Options configures a Service for one game root.
type Options struct {
	DatabasePath      string
	GameRoot          string
	ModsDir           string // extracted skin mod folders
	KeepDisabledFiles bool   // rename skin files to .disabled instead of deleting
	Log               *zap.SugaredLogger
}

// Service implements the registry capabilities: scan, list, install,
// toggle, delete.
type Service struct {
	db           *gorm.DB
	gameRoot     string
	modsDir      string
	keepDisabled bool
	log          *zap.SugaredLogger
}

// Open connects the registry database, migrates the schema, and imports
// a legacy JSON registry if one is sitting next to the database.
func Open(opts Options) (*Service, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(gormlite.Open(opts.DatabasePath), &gorm.Config{
		Logger: gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("connect registry database: %w", err)
	}

	if err := db.AutoMigrate(&Mod{}, &Skin{}); err != nil {
		return nil, fmt.Errorf("migrate registry schema: %w", err)
	}

	s := &Service{
		db:           db,
		gameRoot:     opts.GameRoot,
		modsDir:      opts.ModsDir,
		keepDisabled: opts.KeepDisabledFiles,
		log:          opts.Log,
	}

	if err := s.importLegacyRegistry(filepath.Join(filepath.Dir(opts.DatabasePath), legacySkinRegistry)); err != nil {
		// The database stays usable; the old file is left in place for
		// inspection.
		s.log.Warnw("Legacy registry import failed", zap.Error(err))
	}

	return s, nil
}

// ListMods returns all archive-installed mods.
func (s *Service) ListMods(ctx context.Context) ([]mirror.ModRecord, error) {
	var mods []Mod
	if err := s.db.WithContext(ctx).Order("directory_name").Find(&mods).Error; err != nil {
		return nil, fmt.Errorf("query mods: %w", err)
	}

	records := make([]mirror.ModRecord, 0, len(mods))
	for _, m := range mods {
		records = append(records, mirror.ModRecord{
			DirectoryName: m.DirectoryName,
			Name:          m.Name,
			Author:        m.Author,
			Version:       m.Version,
			Description:   m.Description,
			Enabled:       m.Enabled,
			ThumbnailPath: m.ThumbnailPath,
		})
	}
	return records, nil
}

// ListSkins returns all registered skin mods.
func (s *Service) ListSkins(ctx context.Context) ([]mirror.SkinModRecord, error) {
	var skins []Skin
	if err := s.db.WithContext(ctx).Order("path").Find(&skins).Error; err != nil {
		return nil, fmt.Errorf("query skins: %w", err)
	}

	records := make([]mirror.SkinModRecord, 0, len(skins))
	for _, sk := range skins {
		records = append(records, mirror.SkinModRecord{
			Path:          sk.Path,
			Name:          sk.Name,
			Author:        sk.Author,
			Version:       sk.Version,
			Description:   sk.Description,
			Enabled:       sk.Enabled,
			ThumbnailPath: sk.ThumbnailPath,
		})
	}
	return records, nil
}

// SetEnabled toggles the mod or skin with the given key. Archive mods
// flip by directory rename; skins by installing or removing their files.
// Toggling into the current state is a no-op.
func (s *Service) SetEnabled(ctx context.Context, key string, enabled bool) error {
	var mod Mod
	result := s.db.WithContext(ctx).Where("directory_name = ?", key).First(&mod)
	if result.Error == nil {
		return s.setModEnabled(ctx, &mod, enabled)
	}
	if result.Error != gorm.ErrRecordNotFound {
		return fmt.Errorf("query mod %q: %w", key, result.Error)
	}

	var skin Skin
	result = s.db.WithContext(ctx).Where("path = ?", key).First(&skin)
	if result.Error == nil {
		return s.setSkinEnabled(ctx, &skin, enabled)
	}
	if result.Error != gorm.ErrRecordNotFound {
		return fmt.Errorf("query skin %q: %w", key, result.Error)
	}

	return fmt.Errorf("mod %q not found in registry", key)
}

func (s *Service) setModEnabled(ctx context.Context, mod *Mod, enabled bool) error {
	enabledDir := filepath.Join(s.gameRoot, mod.InstalledDirectory)
	disabledDir := enabledDir + disabledSuffix

	if enabled {
		if _, err := os.Stat(enabledDir); err == nil {
			s.log.Infow("Mod already enabled", zap.String("mod", mod.DirectoryName))
		} else if err := os.Rename(disabledDir, enabledDir); err != nil {
			return fmt.Errorf("enable mod %q: %w", mod.DirectoryName, err)
		}
	} else {
		if _, err := os.Stat(disabledDir); err == nil {
			s.log.Infow("Mod already disabled", zap.String("mod", mod.DirectoryName))
		} else if err := os.Rename(enabledDir, disabledDir); err != nil {
			return fmt.Errorf("disable mod %q: %w", mod.DirectoryName, err)
		}
	}

	mod.Enabled = enabled
	if err := s.db.WithContext(ctx).Save(mod).Error; err != nil {
		return fmt.Errorf("save mod %q: %w", mod.DirectoryName, err)
	}

	s.log.Infow("Mod toggled", zap.String("mod", mod.DirectoryName), zap.Bool("enabled", enabled))
	return nil
}

func (s *Service) setSkinEnabled(ctx context.Context, skin *Skin, enabled bool) error {
	if skin.Enabled == enabled {
		s.log.Infow("Skin already in requested state", zap.String("skin", skin.Path), zap.Bool("enabled", enabled))
		return nil
	}

	if enabled {
		installed, err := s.installSkinFiles(skin.Path)
		if err != nil {
			// Undo the partial copy; the record never tracked these files,
			// so leaving them would orphan them in the game root.
			s.removeSkinFiles(installed)
			return fmt.Errorf("enable skin %q: %w", skin.Name, err)
		}
		data, err := json.Marshal(installed)
		if err != nil {
			return fmt.Errorf("record installed files: %w", err)
		}
		skin.InstalledFiles = string(data)
	} else {
		var installed []string
		if skin.InstalledFiles != "" {
			if err := json.Unmarshal([]byte(skin.InstalledFiles), &installed); err != nil {
				return fmt.Errorf("parse installed files for %q: %w", skin.Name, err)
			}
		}
		s.removeSkinFiles(installed)
		skin.InstalledFiles = ""
	}

	skin.Enabled = enabled
	if err := s.db.WithContext(ctx).Save(skin).Error; err != nil {
		return fmt.Errorf("save skin %q: %w", skin.Name, err)
	}

	s.log.Infow("Skin toggled", zap.String("skin", skin.Path), zap.Bool("enabled", enabled))
	return nil
}

// Delete removes the record, its source folder, and anything it placed
// in the game root. The registry is the only component allowed to
// destroy records.
func (s *Service) Delete(ctx context.Context, key string) error {
	var mod Mod
	result := s.db.WithContext(ctx).Where("directory_name = ?", key).First(&mod)
	if result.Error == nil {
		enabledDir := filepath.Join(s.gameRoot, mod.InstalledDirectory)
		for _, dir := range []string{enabledDir, enabledDir + disabledSuffix} {
			if err := os.RemoveAll(dir); err != nil {
				s.log.Warnw("Failed to remove mod directory", zap.String("dir", dir), zap.Error(err))
			}
		}
		if err := s.db.WithContext(ctx).Unscoped().Delete(&mod).Error; err != nil {
			return fmt.Errorf("delete mod %q: %w", key, err)
		}
		s.log.Infow("Mod deleted", zap.String("mod", key))
		return nil
	}
	if result.Error != gorm.ErrRecordNotFound {
		return fmt.Errorf("query mod %q: %w", key, result.Error)
	}

	var skin Skin
	result = s.db.WithContext(ctx).Where("path = ?", key).First(&skin)
	if result.Error == nil {
		if skin.Enabled {
			if err := s.setSkinEnabled(ctx, &skin, false); err != nil {
				s.log.Warnw("Failed to remove skin files before delete", zap.String("skin", key), zap.Error(err))
			}
		}
		if err := os.RemoveAll(skin.Path); err != nil {
			s.log.Warnw("Failed to remove skin folder", zap.String("path", skin.Path), zap.Error(err))
		}
		if err := s.db.WithContext(ctx).Unscoped().Delete(&skin).Error; err != nil {
			return fmt.Errorf("delete skin %q: %w", key, err)
		}
		s.log.Infow("Skin deleted", zap.String("skin", key))
		return nil
	}
	if result.Error != gorm.ErrRecordNotFound {
		return fmt.Errorf("query skin %q: %w", key, result.Error)
	}

	return fmt.Errorf("mod %q not found in registry", key)
}
