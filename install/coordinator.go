// Package install drives batches of archive installations against the
// registry service: one concurrent call per archive, settle-all
// semantics, and a single mirror refresh once anything succeeded.
package install

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"fossmodmanager/mirror"

	"go.uber.org/zap"
)

// EventType labels a progress notification.
type EventType string

const (
	EventStarted  EventType = "started"
	EventProgress EventType = "progress"
	EventFinished EventType = "finished"
)

// ProgressEvent is an advisory notification emitted while an archive is
// being installed. Correctness never depends on these arriving.
type ProgressEvent struct {
	Type      EventType
	Operation string
	ModName   string
	Progress  float64 // 0.0 to 1.0, only meaningful for EventProgress
	Message   string
	Success   bool // only meaningful for EventFinished
}

// ArchiveInstaller is the registry service capability the coordinator
// drives. events may be nil when the caller has no observer.
type ArchiveInstaller interface {
	InstallFromArchive(ctx context.Context, archivePath string, events chan<- ProgressEvent) error
}

// refresher is the slice of the mirror the coordinator needs.
type refresher interface {
	Refresh(ctx context.Context) (mirror.Snapshot, error)
}

// Outcome is the per-archive result of one batch.
type Outcome struct {
	Path    string
	Success bool
	Err     error
}

// Coordinator installs archives as user-initiated batches.
type Coordinator struct {
	svc    ArchiveInstaller
	mirror refresher
	log    *zap.SugaredLogger

	// Observer receives forwarded progress events. Optional; slow or
	// absent observers never stall an installation.
	Observer chan<- ProgressEvent
}

func NewCoordinator(svc ArchiveInstaller, m refresher, log *zap.SugaredLogger) *Coordinator {
	return &Coordinator{svc: svc, mirror: m, log: log}
}

// InstallBatch installs every archive concurrently and waits for all of
// them to settle. Outcomes are returned in input order; a failure in one
// archive never cancels the others, and duplicates are treated as
// independent requests. If at least one install succeeded, the mirror is
// refreshed exactly once afterwards.
func (c *Coordinator) InstallBatch(ctx context.Context, paths []string) []Outcome {
	if len(paths) == 0 {
		return []Outcome{}
	}

	outcomes := make([]Outcome, len(paths))
	var succeeded atomic.Int64
	var wg sync.WaitGroup

	for i, path := range paths {
		wg.Add(1)
		go func(idx int, archivePath string) {
			defer wg.Done()

			events := make(chan ProgressEvent, 16)
			var forward sync.WaitGroup
			forward.Add(1)
			go func() {
				defer forward.Done()
				c.forward(events)
			}()

			installLog := c.log.With(zap.String("archive", filepath.Base(archivePath)))
			installLog.Infow("Installing archive")

			err := c.svc.InstallFromArchive(ctx, archivePath, events)
			close(events)
			forward.Wait()

			if err != nil {
				// Identify failures by the final filename component;
				// full paths are long and the user picked the file by name.
				outcomes[idx] = Outcome{
					Path: archivePath,
					Err:  fmt.Errorf("install %s: %w", filepath.Base(archivePath), err),
				}
				installLog.Errorw("Install failed", zap.Error(err))
				return
			}

			outcomes[idx] = Outcome{Path: archivePath, Success: true}
			succeeded.Add(1)
			installLog.Infow("Install succeeded")
		}(i, path)
	}

	wg.Wait()

	if succeeded.Load() > 0 {
		if _, err := c.mirror.Refresh(ctx); err != nil {
			c.log.Warnw("Post-install refresh failed", zap.Error(err))
		}
	}

	return outcomes
}

// forward relays service progress events to the observer verbatim,
// dropping them when the observer cannot keep up.
func (c *Coordinator) forward(events <-chan ProgressEvent) {
	for ev := range events {
		if c.Observer == nil {
			continue
		}
		select {
		case c.Observer <- ev:
		default:
		}
	}
}
