// Package imaging reads mod thumbnails into base64 payloads and keeps a
// persistent on-disk cache of encoded copies keyed by image path.
package imaging

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// maxEntryAge is how long a cached payload is trusted before it is
// treated as a miss and re-read from the source image.
const maxEntryAge = 7 * 24 * time.Hour

// sidecar records which image a cache file belongs to, guarding against
// hash collisions on the key.
type sidecar struct {
	OriginalPath string `json:"original_path"`
	Timestamp    int64  `json:"timestamp"`
}

// Service implements direct image reads and the best-effort disk cache.
type Service struct {
	cacheDir string
	log      *zap.SugaredLogger
	now      func() time.Time
}

func New(cacheDir string, log *zap.SugaredLogger) (*Service, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("create image cache directory: %w", err)
	}
	return &Service{cacheDir: cacheDir, log: log, now: time.Now}, nil
}

// cacheKey hashes the image path into a filesystem-safe name.
func cacheKey(imagePath string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(imagePath))
	return fmt.Sprintf("%x", h.Sum64())
}

func (s *Service) payloadPath(key string) string {
	return filepath.Join(s.cacheDir, key+".cache")
}

func (s *Service) sidecarPath(key string) string {
	return filepath.Join(s.cacheDir, key+".json")
}

// ReadImage reads an image file and returns it base64-encoded. A missing
// file is an error here; callers decide whether that means a placeholder.
func (s *Service) ReadImage(_ context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image %s: %w", imagePath, err)
	}

	s.log.Debugw("Read mod image", zap.String("path", imagePath), zap.Int("bytes", len(data)))
	return base64.StdEncoding.EncodeToString(data), nil
}

// WriteCachedImage stores an encoded payload for later bulk reads. The
// sidecar goes first so a torn write leaves a miss, not a lie.
func (s *Service) WriteCachedImage(_ context.Context, imagePath string, payload string) error {
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("decode image payload: %w", err)
	}

	key := cacheKey(imagePath)
	info, err := json.Marshal(sidecar{OriginalPath: imagePath, Timestamp: s.now().Unix()})
	if err != nil {
		return fmt.Errorf("serialize cache info: %w", err)
	}
	if err := os.WriteFile(s.sidecarPath(key), info, 0644); err != nil {
		return fmt.Errorf("write cache info: %w", err)
	}
	if err := os.WriteFile(s.payloadPath(key), decoded, 0644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}

	s.log.Debugw("Cached mod image", zap.String("path", imagePath))
	return nil
}

// BulkReadCachedImages returns the cached payloads it can vouch for. A
// missing, collided, stale, or unreadable entry is a miss, never an
// error for the whole batch.
func (s *Service) BulkReadCachedImages(_ context.Context, imagePaths []string) (map[string]string, error) {
	result := make(map[string]string)

	for _, path := range imagePaths {
		key := cacheKey(path)

		infoJSON, err := os.ReadFile(s.sidecarPath(key))
		if err != nil {
			continue
		}
		var info sidecar
		if err := json.Unmarshal(infoJSON, &info); err != nil {
			s.log.Warnw("Failed to parse cache info", zap.String("path", path), zap.Error(err))
			continue
		}
		if info.OriginalPath != path {
			s.log.Warnw("Cache key collision", zap.String("cached", info.OriginalPath), zap.String("requested", path))
			continue
		}
		if age := s.now().Unix() - info.Timestamp; age > int64(maxEntryAge.Seconds()) {
			s.log.Debugw("Cache entry too old, will reload", zap.String("path", path), zap.Int64("age_seconds", age))
			continue
		}

		data, err := os.ReadFile(s.payloadPath(key))
		if err != nil {
			s.log.Warnw("Failed to read cached image data", zap.String("path", path), zap.Error(err))
			continue
		}
		result[path] = base64.StdEncoding.EncodeToString(data)
	}

	s.log.Infow("Bulk thumbnail cache read", zap.Int("hits", len(result)), zap.Int("requested", len(imagePaths)))
	return result, nil
}
