package registry

import (
	"os"
	"path/filepath"
	"strings"
)

// modInfo holds the optional metadata a skin folder can ship in a
// modinfo.ini file.
type modInfo struct {
	Name        string
	Author      string
	Version     string
	Description string
}

// nameDelimiters are the separators mod authors commonly stuff into
// folder names; everything before the first one reads as the mod name.
const nameDelimiters = "_- !#$.(["

// extractModName turns a raw folder name into a friendlier display name.
func extractModName(folderName string) string {
	if pos := strings.IndexAny(folderName, nameDelimiters); pos > 0 {
		return folderName[:pos]
	}

	lower := strings.ToLower(folderName)
	if strings.HasSuffix(lower, ".pak") || strings.Contains(folderName, "chunk") {
		if pos := strings.Index(folderName, "chunk"); pos > 0 {
			return strings.TrimRight(folderName[:pos], "_-")
		}
		return "Custom Skin"
	}

	return folderName
}

// screenshotCandidates are checked in order, in the folder itself and
// one subdirectory deep.
var screenshotCandidates = []string{
	"preview.jpg", "preview.png",
	"screenshot.jpg", "screenshot.png",
	"thumb.jpg", "thumb.png",
	"image.jpg", "image.png",
	"1.png", "1.jpg",
}

// findScreenshot returns the path of a usable preview image for the
// folder, or "" when there is none. Absence is not an error; the UI
// renders a placeholder.
func findScreenshot(folder string) string {
	for _, candidate := range screenshotCandidates {
		path := filepath.Join(folder, candidate)
		if isFile(path) {
			return path
		}
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		for _, candidate := range screenshotCandidates {
			path := filepath.Join(folder, entry.Name(), candidate)
			if isFile(path) {
				return path
			}
		}
	}

	return ""
}

// parseModInfoDir looks for modinfo.ini in the folder and its immediate
// subdirectories and parses the first one found.
func parseModInfoDir(folder string) modInfo {
	candidates := []string{
		filepath.Join(folder, "modinfo.ini"),
		filepath.Join(folder, "Texture", "modinfo.ini"),
	}

	if entries, err := os.ReadDir(folder); err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				candidates = append(candidates, filepath.Join(folder, entry.Name(), "modinfo.ini"))
			}
		}
	}

	for _, path := range candidates {
		if info, ok := parseModInfoFile(path); ok {
			return info
		}
	}
	return modInfo{}
}

// parseModInfoFile reads the simple key=value modinfo format. Lines
// starting with ';' or '#' are comments.
func parseModInfoFile(path string) (modInfo, bool) {
	content, err := os.ReadFile(path)
	if err != nil {
		return modInfo{}, false
	}

	var info modInfo
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "name":
			info.Name = value
		case "author":
			info.Author = value
		case "version":
			info.Version = value
		case "description":
			info.Description = value
		}
	}

	return info, true
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
