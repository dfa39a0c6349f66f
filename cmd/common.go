package cmd

import (
	"fossmodmanager/config"
	"fossmodmanager/imaging"
	"fossmodmanager/install"
	"fossmodmanager/logger"
	"fossmodmanager/mirror"
	"fossmodmanager/registry"
	"fossmodmanager/thumbcache"

	"go.uber.org/zap"
)

// app bundles the wired-up services every command works against.
type app struct {
	cfg       config.Config
	registry  *registry.Service
	mirror    *mirror.Mirror
	thumbs    *thumbcache.Cache
	installer *install.Coordinator
}

// bootstrap handles shared initialization logic for commands.
func bootstrap(path string) *app {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		logger.Log.Fatalw("Failed to load configuration", zap.Error(err))
	}

	reg, err := registry.Open(registry.Options{
		DatabasePath:      cfg.DatabasePath,
		GameRoot:          cfg.GameRoot,
		ModsDir:           cfg.ModsDir(),
		KeepDisabledFiles: cfg.KeepDisabledFiles,
		Log:               logger.Log,
	})
	if err != nil {
		logger.Log.Fatalw("Failed to open mod registry", zap.Error(err))
	}
	logger.Log.Infow("Registry initialized", zap.String("path", cfg.DatabasePath))

	images, err := imaging.New(cfg.ImageCacheDir, logger.Log)
	if err != nil {
		logger.Log.Fatalw("Failed to initialize image cache", zap.Error(err))
	}

	scanner := mirror.NewScanner(reg, logger.Log)
	m := mirror.New(reg, scanner, logger.Log)

	return &app{
		cfg:       cfg,
		registry:  reg,
		mirror:    m,
		thumbs:    thumbcache.New(images, images, images, logger.Log),
		installer: install.NewCoordinator(reg, m, logger.Log),
	}
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen-3] + "..."
	}
	return s
}

func kindLabel(kind mirror.Kind) string {
	if kind == mirror.KindSkin {
		return "skin"
	}
	return "mod"
}
