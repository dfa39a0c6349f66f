package registry

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const disabledSuffix = ".disabled"

// skinContentDepth limits how deep we look for .pak files and natives
// trees when deciding whether a folder is a skin mod.
const skinContentDepth = 3

// Rescan reconciles the registry with the filesystem: archive mods get
// their enabled state re-derived from their directory names, and the
// skin mods directory is re-discovered so folders dropped in or removed
// by hand show up without an install step.
func (s *Service) Rescan(ctx context.Context) error {
	if err := s.rescanModState(ctx); err != nil {
		return err
	}
	return s.rescanSkins(ctx)
}

// rescanModState derives each archive mod's enabled flag from whether
// its installed directory exists with or without the disabled suffix.
func (s *Service) rescanModState(ctx context.Context) error {
	var mods []Mod
	if err := s.db.WithContext(ctx).Find(&mods).Error; err != nil {
		return fmt.Errorf("query mods for rescan: %w", err)
	}

	for i := range mods {
		mod := &mods[i]
		enabledDir := filepath.Join(s.gameRoot, mod.InstalledDirectory)
		disabledDir := enabledDir + disabledSuffix

		enabledExists := isDir(enabledDir)
		disabledExists := isDir(disabledDir)

		switch {
		case enabledExists && disabledExists:
			s.log.Warnw("Mod present in both enabled and disabled state, assuming enabled",
				zap.String("mod", mod.DirectoryName))
		case !enabledExists && !disabledExists:
			s.log.Warnw("Mod directory missing in both states, assuming disabled",
				zap.String("mod", mod.DirectoryName))
		}

		if mod.Enabled != enabledExists {
			mod.Enabled = enabledExists
			if err := s.db.WithContext(ctx).Save(mod).Error; err != nil {
				return fmt.Errorf("save rescanned mod %q: %w", mod.DirectoryName, err)
			}
		}
	}

	return nil
}

// rescanSkins walks the managed mods directory one level deep, registers
// qualifying new folders (disabled, like a fresh install), and drops
// records whose folders vanished.
func (s *Service) rescanSkins(ctx context.Context) error {
	var known []Skin
	if err := s.db.WithContext(ctx).Find(&known).Error; err != nil {
		return fmt.Errorf("query skins for rescan: %w", err)
	}
	knownByPath := make(map[string]*Skin, len(known))
	for i := range known {
		knownByPath[known[i].Path] = &known[i]
	}

	present := make(map[string]bool)

	entries, err := os.ReadDir(s.modsDir)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Infow("Skin mods directory does not exist", zap.String("dir", s.modsDir))
			entries = nil
		} else {
			return fmt.Errorf("read mods directory: %w", err)
		}
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		folder := filepath.Join(s.modsDir, entry.Name())
		if !hasSkinContent(folder) {
			s.log.Debugw("Skipping directory, not a skin mod", zap.String("dir", folder))
			continue
		}
		present[folder] = true

		if _, ok := knownByPath[folder]; ok {
			continue
		}

		skin := newSkinFromFolder(folder)
		if err := s.db.WithContext(ctx).Create(&skin).Error; err != nil {
			return fmt.Errorf("register discovered skin %q: %w", skin.Name, err)
		}
		s.log.Infow("Discovered skin mod", zap.String("name", skin.Name), zap.String("path", folder))
	}

	for path, skin := range knownByPath {
		if present[path] {
			continue
		}
		s.log.Infow("Skin folder removed on disk, dropping record", zap.String("path", path))
		if err := s.db.WithContext(ctx).Unscoped().Delete(skin).Error; err != nil {
			return fmt.Errorf("drop vanished skin %q: %w", path, err)
		}
	}

	return nil
}

// newSkinFromFolder builds a disabled skin record from an on-disk
// folder, pulling whatever metadata the folder offers.
func newSkinFromFolder(folder string) Skin {
	folderName := filepath.Base(folder)
	info := parseModInfoDir(folder)

	name := info.Name
	if name == "" {
		name = extractModName(folderName)
	}

	return Skin{
		Path:          folder,
		Name:          name,
		Author:        info.Author,
		Version:       info.Version,
		Description:   info.Description,
		Enabled:       false, // new mods start disabled
		ThumbnailPath: findScreenshot(folder),
		InstalledAt:   time.Now(),
	}
}

// installSkinFiles copies a skin's .pak files into the game root and its
// natives tree under <root>/natives, returning everything it placed.
func (s *Service) installSkinFiles(skinDir string) ([]string, error) {
	var installed []string

	err := walkDepth(skinDir, skinContentDepth, func(path string, d fs.DirEntry) error {
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pak") {
			return nil
		}
		dest := filepath.Join(s.gameRoot, filepath.Base(path))
		if err := copyFile(path, dest); err != nil {
			return fmt.Errorf("install %s: %w", filepath.Base(path), err)
		}
		installed = append(installed, dest)
		return nil
	})
	if err != nil {
		return installed, err
	}

	nativesDir, ok := findNativesDir(skinDir)
	if !ok {
		return installed, nil
	}

	gameNatives := filepath.Join(s.gameRoot, "natives")
	err = filepath.WalkDir(nativesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(nativesDir, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(gameNatives, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return fmt.Errorf("create natives directory: %w", err)
		}
		if err := copyFile(path, dest); err != nil {
			return fmt.Errorf("install natives file %s: %w", rel, err)
		}
		installed = append(installed, dest)
		return nil
	})

	return installed, err
}

// removeSkinFiles undoes an install. With KeepDisabledFiles the files are
// renamed aside instead of deleted. Individual failures are logged and
// skipped so one stubborn file doesn't wedge the whole disable.
func (s *Service) removeSkinFiles(installed []string) {
	for _, path := range installed {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if s.keepDisabled {
			if err := os.Rename(path, path+disabledSuffix); err != nil {
				s.log.Warnw("Failed to disable file", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		if err := os.Remove(path); err != nil {
			s.log.Warnw("Failed to remove file", zap.String("path", path), zap.Error(err))
		}
	}
}

// hasSkinContent reports whether a folder carries .pak files or a
// natives tree within the detection depth.
func hasSkinContent(folder string) bool {
	found := false
	_ = walkDepth(folder, skinContentDepth, func(path string, d fs.DirEntry) error {
		if d.IsDir() && strings.EqualFold(d.Name(), "natives") {
			found = true
			return fs.SkipAll
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pak") {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	return found
}

// findNativesDir locates the first natives directory in a skin folder.
func findNativesDir(folder string) (string, bool) {
	var natives string
	_ = walkDepth(folder, skinContentDepth, func(path string, d fs.DirEntry) error {
		if d.IsDir() && strings.EqualFold(d.Name(), "natives") {
			natives = path
			return fs.SkipAll
		}
		return nil
	})
	return natives, natives != ""
}

// walkDepth walks root up to maxDepth levels below it, skipping
// unreadable entries instead of failing.
func walkDepth(root string, maxDepth int, fn func(path string, d fs.DirEntry) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if strings.Count(rel, string(filepath.Separator))+1 > maxDepth {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		return fn(path, d)
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dest)
		return err
	}
	return nil
}

// findSkinByPath is shared by install and tests.
func (s *Service) findSkinByPath(ctx context.Context, path string) (*Skin, error) {
	var skin Skin
	if err := s.db.WithContext(ctx).Where("path = ?", path).First(&skin).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &skin, nil
}
