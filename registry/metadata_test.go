package registry

import (
	"path/filepath"
	"testing"
)

func TestExtractModName(t *testing.T) {
	tests := []struct {
		name     string
		folder   string
		expected string
	}{
		{"delimiter underscore", "Leon_Jacket_v2", "Leon"},
		{"delimiter dash", "Ada-RedDress", "Ada"},
		{"delimiter space", "Cool Skin Pack", "Cool"},
		{"delimiter parenthesis", "Claire(Classic)", "Claire"},
		{"no delimiter", "Outfit", "Outfit"},
		{"chunk name", "re_chunk_000.pak.patch", "re"},
		{"pak trailing chunk", "mymod_chunk_01", "mymod"},
		{"bare pak suffix", "skin.pak", "skin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractModName(tt.folder); got != tt.expected {
				t.Errorf("extractModName(%q) = %q, want %q", tt.folder, got, tt.expected)
			}
		})
	}
}

func TestParseModInfoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "modinfo.ini")
	writeFile(t, path, `
; comment line
# another comment
name=Classic Outfit
author = someone
version=1.2
description=A classic look
ignored line without equals
empty=
`)

	info, ok := parseModInfoFile(path)
	if !ok {
		t.Fatal("expected file to parse")
	}
	if info.Name != "Classic Outfit" {
		t.Errorf("unexpected name: %q", info.Name)
	}
	if info.Author != "someone" {
		t.Errorf("whitespace around keys and values should be trimmed: %q", info.Author)
	}
	if info.Version != "1.2" || info.Description != "A classic look" {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestParseModInfoFileMissing(t *testing.T) {
	if _, ok := parseModInfoFile(filepath.Join(t.TempDir(), "modinfo.ini")); ok {
		t.Fatal("missing file should not parse")
	}
}

func TestFindScreenshot(t *testing.T) {
	t.Run("in folder", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "preview.png"), "img")

		if got := findScreenshot(dir); got != filepath.Join(dir, "preview.png") {
			t.Errorf("unexpected screenshot: %q", got)
		}
	})

	t.Run("one subdirectory deep", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "extras", "screenshot.jpg"), "img")

		if got := findScreenshot(dir); got != filepath.Join(dir, "extras", "screenshot.jpg") {
			t.Errorf("unexpected screenshot: %q", got)
		}
	})

	t.Run("none", func(t *testing.T) {
		if got := findScreenshot(t.TempDir()); got != "" {
			t.Errorf("expected empty path, got %q", got)
		}
	})

	t.Run("candidate priority", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "1.png"), "img")
		writeFile(t, filepath.Join(dir, "preview.jpg"), "img")

		if got := findScreenshot(dir); got != filepath.Join(dir, "preview.jpg") {
			t.Errorf("preview should win over numbered fallback: %q", got)
		}
	})
}
