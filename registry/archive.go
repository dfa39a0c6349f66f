package registry

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fossmodmanager/install"

	"go.uber.org/zap"
)

// InstallFromArchive extracts a zip archive and registers its contents.
// Archives carrying .pak files or a natives tree become skin mods
// (registered disabled, enabled on demand); archives carrying plugin
// files are installed straight into the game's reframework tree and
// registered enabled. Anything else is a validation error.
//
// Progress events on the channel are advisory; the returned error is the
// only authoritative outcome.
func (s *Service) InstallFromArchive(ctx context.Context, archivePath string, events chan<- install.ProgressEvent) error {
	stem := archiveStem(archivePath)
	emit(events, install.ProgressEvent{
		Type:      install.EventStarted,
		Operation: "install",
		ModName:   stem,
	})

	err := s.installFromArchive(ctx, archivePath, stem, events)

	finished := install.ProgressEvent{
		Type:      install.EventFinished,
		Operation: "install",
		ModName:   stem,
		Success:   err == nil,
	}
	if err != nil {
		finished.Message = err.Error()
	} else {
		finished.Message = fmt.Sprintf("Installed %s", stem)
	}
	emit(events, finished)

	return err
}

func (s *Service) installFromArchive(ctx context.Context, archivePath, stem string, events chan<- install.ProgressEvent) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	// Same stem installs over the previous extraction: last write wins,
	// matching how the registry replaces records sharing an identity.
	dest := filepath.Join(s.modsDir, stem)
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("clear previous extraction: %w", err)
	}

	if err := extractZip(&reader.Reader, dest, stem, events); err != nil {
		os.RemoveAll(dest)
		return err
	}

	if hasSkinContent(dest) {
		return s.registerSkin(ctx, dest)
	}

	pluginDir, ok := classifyPluginContent(dest)
	if !ok {
		os.RemoveAll(dest)
		return fmt.Errorf("archive %s contains no recognizable mod content", filepath.Base(archivePath))
	}

	return s.registerPluginMod(ctx, dest, stem, pluginDir)
}

// registerSkin records an extracted skin folder, replacing any record
// with the same path.
func (s *Service) registerSkin(ctx context.Context, folder string) error {
	existing, err := s.findSkinByPath(ctx, folder)
	if err != nil {
		return fmt.Errorf("query existing skin: %w", err)
	}
	if existing != nil {
		if err := s.db.WithContext(ctx).Unscoped().Delete(existing).Error; err != nil {
			return fmt.Errorf("replace existing skin record: %w", err)
		}
	}

	skin := newSkinFromFolder(folder)
	if err := s.db.WithContext(ctx).Create(&skin).Error; err != nil {
		return fmt.Errorf("register skin: %w", err)
	}

	s.log.Infow("Skin installed from archive", zap.String("name", skin.Name), zap.String("path", folder))
	return nil
}

// registerPluginMod moves the extracted tree into the game's reframework
// directory and records it enabled, since its files are now live.
func (s *Service) registerPluginMod(ctx context.Context, extracted, stem, pluginDir string) error {
	installedDirectory := filepath.Join("reframework", pluginDir, stem)
	target := filepath.Join(s.gameRoot, installedDirectory)

	// An older disabled copy would shadow the fresh install.
	for _, stale := range []string{target, target + disabledSuffix} {
		if err := os.RemoveAll(stale); err != nil {
			return fmt.Errorf("clear previous install: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create plugin directory: %w", err)
	}
	if err := os.Rename(extracted, target); err != nil {
		return fmt.Errorf("move plugin into game root: %w", err)
	}

	info := parseModInfoDir(target)
	name := info.Name
	if name == "" {
		name = extractModName(stem)
	}

	mod := Mod{
		DirectoryName:      stem,
		Name:               name,
		Author:             info.Author,
		Version:            info.Version,
		Description:        info.Description,
		Enabled:            true,
		ThumbnailPath:      findScreenshot(target),
		Source:             "local_zip",
		InstalledDirectory: installedDirectory,
		InstalledAt:        time.Now(),
	}

	var existing Mod
	result := s.db.WithContext(ctx).Where("directory_name = ?", stem).First(&existing)
	if result.Error == nil {
		mod.ID = existing.ID
		if err := s.db.WithContext(ctx).Save(&mod).Error; err != nil {
			return fmt.Errorf("update mod record: %w", err)
		}
	} else if err := s.db.WithContext(ctx).Create(&mod).Error; err != nil {
		return fmt.Errorf("register mod: %w", err)
	}

	s.log.Infow("Plugin mod installed from archive", zap.String("mod", stem), zap.String("dir", installedDirectory))
	return nil
}

// extractZip unpacks an archive under dest, refusing entries that would
// escape it.
func extractZip(reader *zip.Reader, dest, stem string, events chan<- install.ProgressEvent) error {
	total := len(reader.File)
	for i, file := range reader.File {
		target, err := safeJoin(dest, file.Name)
		if err != nil {
			return err
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory %s: %w", file.Name, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("create directory for %s: %w", file.Name, err)
		}

		if err := extractFile(file, target); err != nil {
			return err
		}

		emit(events, install.ProgressEvent{
			Type:      install.EventProgress,
			Operation: "install",
			ModName:   stem,
			Progress:  float64(i+1) / float64(total),
			Message:   file.Name,
		})
	}
	return nil
}

func extractFile(file *zip.File, target string) error {
	in, err := file.Open()
	if err != nil {
		return fmt.Errorf("open %s in archive: %w", file.Name, err)
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("extract %s: %w", file.Name, err)
	}
	return nil
}

// safeJoin joins an archive entry name onto dest, rejecting traversal.
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes destination", name)
	}
	return target, nil
}

// classifyPluginContent decides where a non-skin archive belongs in the
// reframework tree: script-only mods run from autorun, anything with a
// native plugin goes to plugins.
func classifyPluginContent(folder string) (string, bool) {
	hasDLL := false
	hasLua := false
	_ = walkDepth(folder, skinContentDepth, func(path string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".dll":
			hasDLL = true
		case ".lua":
			hasLua = true
		}
		return nil
	})

	switch {
	case hasDLL:
		return "plugins", true
	case hasLua:
		return "autorun", true
	default:
		return "", false
	}
}

func archiveStem(archivePath string) string {
	base := filepath.Base(archivePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// emit sends an advisory event without ever blocking an install on a
// missing or full observer.
func emit(events chan<- install.ProgressEvent, ev install.ProgressEvent) {
	if events == nil {
		return
	}
	select {
	case events <- ev:
	default:
	}
}
