package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

type testEnv struct {
	svc      *Service
	gameRoot string
	modsDir  string
	dataDir  string
}

func newTestEnv(t *testing.T, opts ...func(*Options)) testEnv {
	t.Helper()
	dir := t.TempDir()

	env := testEnv{
		gameRoot: filepath.Join(dir, "game"),
		dataDir:  filepath.Join(dir, "data"),
	}
	env.modsDir = filepath.Join(env.dataDir, "mods")
	for _, d := range []string{env.gameRoot, env.modsDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	options := Options{
		DatabasePath: filepath.Join(env.dataDir, "registry.db"),
		GameRoot:     env.gameRoot,
		ModsDir:      env.modsDir,
		Log:          zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	svc, err := Open(options)
	if err != nil {
		t.Fatalf("failed to open registry: %v", err)
	}
	env.svc = svc
	return env
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestRescanDiscoversSkins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(env.modsDir, "CoolSkin", "textures", "body.pak"), "pak")
	writeFile(t, filepath.Join(env.modsDir, "notes", "readme.txt"), "not a skin")

	if err := env.svc.Rescan(ctx); err != nil {
		t.Fatalf("rescan failed: %v", err)
	}

	skins, err := env.svc.ListSkins(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(skins) != 1 {
		t.Fatalf("expected 1 discovered skin, got %d", len(skins))
	}
	if skins[0].Name != "CoolSkin" {
		t.Errorf("unexpected name: %q", skins[0].Name)
	}
	if skins[0].Enabled {
		t.Error("discovered skins must start disabled")
	}

	// A second rescan must not duplicate the record.
	if err := env.svc.Rescan(ctx); err != nil {
		t.Fatalf("second rescan failed: %v", err)
	}
	skins, _ = env.svc.ListSkins(ctx)
	if len(skins) != 1 {
		t.Errorf("rescan duplicated records: %d", len(skins))
	}

	// Removing the folder drops the record.
	if err := os.RemoveAll(filepath.Join(env.modsDir, "CoolSkin")); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.Rescan(ctx); err != nil {
		t.Fatalf("rescan after removal failed: %v", err)
	}
	skins, _ = env.svc.ListSkins(ctx)
	if len(skins) != 0 {
		t.Errorf("vanished folder still listed: %+v", skins)
	}
}

func TestSkinEnableDisable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	skinDir := filepath.Join(env.modsDir, "Outfit")
	writeFile(t, filepath.Join(skinDir, "outfit.pak"), "pak")
	writeFile(t, filepath.Join(skinDir, "natives", "stm", "mesh.bin"), "mesh")

	if err := env.svc.Rescan(ctx); err != nil {
		t.Fatal(err)
	}

	if err := env.svc.SetEnabled(ctx, skinDir, true); err != nil {
		t.Fatalf("enable failed: %v", err)
	}

	placedPak := filepath.Join(env.gameRoot, "outfit.pak")
	placedMesh := filepath.Join(env.gameRoot, "natives", "stm", "mesh.bin")
	for _, path := range []string{placedPak, placedMesh} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected installed file %s: %v", path, err)
		}
	}

	skins, _ := env.svc.ListSkins(ctx)
	if len(skins) != 1 || !skins[0].Enabled {
		t.Fatalf("skin should be enabled: %+v", skins)
	}

	if err := env.svc.SetEnabled(ctx, skinDir, false); err != nil {
		t.Fatalf("disable failed: %v", err)
	}
	for _, path := range []string{placedPak, placedMesh} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed", path)
		}
	}
}

func TestSkinEnableFailureCleansUpPartialCopy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	skinDir := filepath.Join(env.modsDir, "Outfit")
	writeFile(t, filepath.Join(skinDir, "a.pak"), "pak")
	writeFile(t, filepath.Join(skinDir, "natives", "stm", "mesh.bin"), "mesh")

	// A plain file where the natives directory belongs makes the natives
	// copy fail after the .pak has already been placed.
	writeFile(t, filepath.Join(env.gameRoot, "natives"), "in the way")

	if err := env.svc.Rescan(ctx); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.SetEnabled(ctx, skinDir, true); err == nil {
		t.Fatal("expected enable to fail")
	}

	if _, err := os.Stat(filepath.Join(env.gameRoot, "a.pak")); !os.IsNotExist(err) {
		t.Error("partially installed file left orphaned in the game root")
	}

	skins, err := env.svc.ListSkins(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(skins) != 1 || skins[0].Enabled {
		t.Errorf("failed enable must leave the skin disabled: %+v", skins)
	}
}

func TestSkinDisableKeepsFilesAside(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.KeepDisabledFiles = true })
	ctx := context.Background()

	skinDir := filepath.Join(env.modsDir, "Outfit")
	writeFile(t, filepath.Join(skinDir, "outfit.pak"), "pak")

	if err := env.svc.Rescan(ctx); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.SetEnabled(ctx, skinDir, true); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.SetEnabled(ctx, skinDir, false); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(env.gameRoot, "outfit.pak"+disabledSuffix)); err != nil {
		t.Errorf("expected file renamed aside: %v", err)
	}
}

func TestModStateDerivedFromDirectories(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mod := Mod{
		DirectoryName:      "hud-tweaks",
		Name:               "HUD Tweaks",
		Enabled:            true,
		InstalledDirectory: filepath.Join("reframework", "autorun", "hud-tweaks"),
		InstalledAt:        time.Now(),
	}
	if err := env.svc.db.Create(&mod).Error; err != nil {
		t.Fatal(err)
	}

	// Only the disabled directory exists on disk.
	disabledDir := filepath.Join(env.gameRoot, mod.InstalledDirectory) + disabledSuffix
	if err := os.MkdirAll(disabledDir, 0755); err != nil {
		t.Fatal(err)
	}

	if err := env.svc.Rescan(ctx); err != nil {
		t.Fatalf("rescan failed: %v", err)
	}

	mods, err := env.svc.ListMods(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(mods) != 1 || mods[0].Enabled {
		t.Errorf("enabled flag should follow the directory state: %+v", mods)
	}
}

func TestSetEnabledModRenamesDirectory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	installedDir := filepath.Join("reframework", "plugins", "fps-unlock")
	mod := Mod{
		DirectoryName:      "fps-unlock",
		Name:               "FPS Unlock",
		Enabled:            true,
		InstalledDirectory: installedDir,
		InstalledAt:        time.Now(),
	}
	if err := env.svc.db.Create(&mod).Error; err != nil {
		t.Fatal(err)
	}
	enabledDir := filepath.Join(env.gameRoot, installedDir)
	if err := os.MkdirAll(enabledDir, 0755); err != nil {
		t.Fatal(err)
	}

	if err := env.svc.SetEnabled(ctx, "fps-unlock", false); err != nil {
		t.Fatalf("disable failed: %v", err)
	}
	if _, err := os.Stat(enabledDir + disabledSuffix); err != nil {
		t.Errorf("expected disabled directory: %v", err)
	}
	if _, err := os.Stat(enabledDir); !os.IsNotExist(err) {
		t.Error("enabled directory should be gone")
	}

	// Disabling again is idempotent.
	if err := env.svc.SetEnabled(ctx, "fps-unlock", false); err != nil {
		t.Errorf("repeat disable should be a no-op: %v", err)
	}

	if err := env.svc.SetEnabled(ctx, "fps-unlock", true); err != nil {
		t.Fatalf("enable failed: %v", err)
	}
	if _, err := os.Stat(enabledDir); err != nil {
		t.Errorf("expected enabled directory back: %v", err)
	}
}

func TestSetEnabledUnknownKey(t *testing.T) {
	env := newTestEnv(t)

	if err := env.svc.SetEnabled(context.Background(), "ghost", true); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestDeleteSkinRemovesEverything(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	skinDir := filepath.Join(env.modsDir, "Outfit")
	writeFile(t, filepath.Join(skinDir, "outfit.pak"), "pak")

	if err := env.svc.Rescan(ctx); err != nil {
		t.Fatal(err)
	}
	if err := env.svc.SetEnabled(ctx, skinDir, true); err != nil {
		t.Fatal(err)
	}

	if err := env.svc.Delete(ctx, skinDir); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, err := os.Stat(skinDir); !os.IsNotExist(err) {
		t.Error("skin folder should be removed")
	}
	if _, err := os.Stat(filepath.Join(env.gameRoot, "outfit.pak")); !os.IsNotExist(err) {
		t.Error("installed files should be removed before delete")
	}
	skins, _ := env.svc.ListSkins(ctx)
	if len(skins) != 0 {
		t.Errorf("record should be gone: %+v", skins)
	}
}

func TestLegacyRegistryImport(t *testing.T) {
	dir := t.TempDir()
	gameRoot := filepath.Join(dir, "game")
	dataDir := filepath.Join(dir, "data")
	modsDir := filepath.Join(dataDir, "mods")
	for _, d := range []string{gameRoot, modsDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	// One flat record and one in the older nested shape.
	legacy := `{
		"installed_skins": [
			{"path": "/old/flat-skin", "name": "Flat", "enabled": true},
			{"base": {"path": "/old/nested-skin", "name": "Nested"}, "thumbnail_path": "/old/nested-skin/1.png"}
		]
	}`
	legacyPath := filepath.Join(dataDir, legacySkinRegistry)
	if err := os.WriteFile(legacyPath, []byte(legacy), 0644); err != nil {
		t.Fatal(err)
	}

	svc, err := Open(Options{
		DatabasePath: filepath.Join(dataDir, "registry.db"),
		GameRoot:     gameRoot,
		ModsDir:      modsDir,
		Log:          zap.NewNop().Sugar(),
	})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	skins, err := svc.ListSkins(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(skins) != 2 {
		t.Fatalf("expected 2 imported skins, got %d", len(skins))
	}

	byPath := make(map[string]bool)
	for _, s := range skins {
		byPath[s.Path] = true
	}
	if !byPath["/old/flat-skin"] || !byPath["/old/nested-skin"] {
		t.Errorf("unexpected imported paths: %+v", skins)
	}

	if _, err := os.Stat(legacyPath); !os.IsNotExist(err) {
		t.Error("legacy file should be renamed aside after import")
	}
	if _, err := os.Stat(legacyPath + ".imported"); err != nil {
		t.Errorf("expected archived legacy file: %v", err)
	}
}
