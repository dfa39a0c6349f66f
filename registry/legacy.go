package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"fossmodmanager/mirror"

	"go.uber.org/zap"
)

// legacySkinRegistry is the JSON file older releases kept their skin
// records in before the sqlite database existed.
const legacySkinRegistry = "skin_registry.json"

type legacyRegistryFile struct {
	InstalledSkins []mirror.SkinModRecord `json:"installed_skins"`
}

// importLegacyRegistry migrates records from the old JSON registry into
// the database, then renames the file aside so the import runs once.
// Records whose path already exists in the database are skipped; the
// database copy is fresher.
func (s *Service) importLegacyRegistry(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read legacy registry: %w", err)
	}

	var legacy legacyRegistryFile
	if err := json.Unmarshal(content, &legacy); err != nil {
		return fmt.Errorf("parse legacy registry: %w", err)
	}

	imported := 0
	for _, record := range legacy.InstalledSkins {
		if record.Path == "" {
			s.log.Warnw("Skipping legacy record without a path", zap.String("name", record.Name))
			continue
		}

		var count int64
		if err := s.db.Model(&Skin{}).Where("path = ?", record.Path).Count(&count).Error; err != nil {
			return fmt.Errorf("check legacy record %q: %w", record.Path, err)
		}
		if count > 0 {
			continue
		}

		skin := Skin{
			Path:          record.Path,
			Name:          record.Name,
			Author:        record.Author,
			Version:       record.Version,
			Description:   record.Description,
			Enabled:       record.Enabled,
			ThumbnailPath: record.ThumbnailPath,
			InstalledAt:   time.Now(),
		}
		if err := s.db.Create(&skin).Error; err != nil {
			return fmt.Errorf("import legacy record %q: %w", record.Path, err)
		}
		imported++
	}

	if err := os.Rename(path, path+".imported"); err != nil {
		return fmt.Errorf("archive legacy registry: %w", err)
	}

	s.log.Infow("Imported legacy skin registry",
		zap.Int("imported", imported),
		zap.Int("total", len(legacy.InstalledSkins)))
	return nil
}
