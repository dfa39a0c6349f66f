package registry

import (
	"time"

	"gorm.io/gorm"
)

// Mod is an archive-installed mod whose files live under the game's
// reframework tree. Enabled state is physically represented by the
// installed directory's name: `<dir>` is enabled, `<dir>.disabled` is not.
type Mod struct {
	gorm.Model
	DirectoryName      string `gorm:"uniqueIndex"` // identity within one game root
	Name               string
	Author             string
	Version            string
	Description        string
	Enabled            bool
	ThumbnailPath      string
	Source             string // e.g. "local_zip"
	InstalledDirectory string // relative path from game root
	InstalledAt        time.Time
}

// Skin is a loose-folder appearance mod kept under the manager's mods
// directory. Its identity is the folder path. Enabling copies its .pak
// files and natives tree into the game root; InstalledFiles tracks what
// was copied so disabling can undo it.
type Skin struct {
	gorm.Model
	Path           string `gorm:"uniqueIndex"` // absolute folder path
	Name           string
	Author         string
	Version        string
	Description    string
	Enabled        bool
	ThumbnailPath  string
	InstalledFiles string // JSON array of absolute paths in the game root
	InstalledAt    time.Time
}
