package install

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"fossmodmanager/mirror"

	"go.uber.org/zap"
)

type fakeInstaller struct {
	mu       sync.Mutex
	failing  map[string]error
	installs []string
}

func (f *fakeInstaller) InstallFromArchive(_ context.Context, archivePath string, events chan<- ProgressEvent) error {
	f.mu.Lock()
	f.installs = append(f.installs, archivePath)
	err := f.failing[archivePath]
	f.mu.Unlock()

	if events != nil {
		events <- ProgressEvent{Type: EventStarted, Operation: "install"}
		events <- ProgressEvent{Type: EventFinished, Operation: "install", Success: err == nil}
	}
	return err
}

type fakeRefresher struct {
	refreshes atomic.Int64
	err       error
}

func (f *fakeRefresher) Refresh(_ context.Context) (mirror.Snapshot, error) {
	f.refreshes.Add(1)
	return mirror.Snapshot{}, f.err
}

func TestInstallBatchAllSucceed(t *testing.T) {
	svc := &fakeInstaller{}
	ref := &fakeRefresher{}
	c := NewCoordinator(svc, ref, zap.NewNop().Sugar())

	paths := []string{"/tmp/a.zip", "/tmp/b.zip", "/tmp/c.zip"}
	outcomes := c.InstallBatch(context.Background(), paths)

	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	for i, outcome := range outcomes {
		if outcome.Path != paths[i] {
			t.Errorf("outcome %d out of order: got %q want %q", i, outcome.Path, paths[i])
		}
		if !outcome.Success || outcome.Err != nil {
			t.Errorf("outcome %d should be a success: %+v", i, outcome)
		}
	}
	if got := ref.refreshes.Load(); got != 1 {
		t.Errorf("expected exactly one refresh, got %d", got)
	}
}

func TestInstallBatchFailureIsolation(t *testing.T) {
	svc := &fakeInstaller{failing: map[string]error{
		"/tmp/bad.zip": errors.New("not a zip"),
	}}
	ref := &fakeRefresher{}
	c := NewCoordinator(svc, ref, zap.NewNop().Sugar())

	outcomes := c.InstallBatch(context.Background(), []string{"/tmp/good.zip", "/tmp/bad.zip"})

	if !outcomes[0].Success {
		t.Errorf("good archive should succeed: %+v", outcomes[0])
	}
	if outcomes[1].Success || outcomes[1].Err == nil {
		t.Fatalf("bad archive should fail: %+v", outcomes[1])
	}
	if !strings.Contains(outcomes[1].Err.Error(), "bad.zip") {
		t.Errorf("failure should identify the archive by filename, got %v", outcomes[1].Err)
	}
	if strings.Contains(outcomes[1].Err.Error(), "/tmp/") {
		t.Errorf("failure should not carry the full path, got %v", outcomes[1].Err)
	}
	if got := ref.refreshes.Load(); got != 1 {
		t.Errorf("partial success still refreshes exactly once, got %d", got)
	}
}

func TestInstallBatchNoRefreshWhenAllFail(t *testing.T) {
	svc := &fakeInstaller{failing: map[string]error{
		"/tmp/a.zip": errors.New("boom"),
		"/tmp/b.zip": errors.New("boom"),
	}}
	ref := &fakeRefresher{}
	c := NewCoordinator(svc, ref, zap.NewNop().Sugar())

	outcomes := c.InstallBatch(context.Background(), []string{"/tmp/a.zip", "/tmp/b.zip"})
	for _, outcome := range outcomes {
		if outcome.Success {
			t.Errorf("expected failure: %+v", outcome)
		}
	}
	if got := ref.refreshes.Load(); got != 0 {
		t.Errorf("no successes means no refresh, got %d", got)
	}
}

func TestInstallBatchEmpty(t *testing.T) {
	svc := &fakeInstaller{}
	ref := &fakeRefresher{}
	c := NewCoordinator(svc, ref, zap.NewNop().Sugar())

	outcomes := c.InstallBatch(context.Background(), nil)
	if outcomes == nil || len(outcomes) != 0 {
		t.Fatalf("expected empty outcome slice, got %v", outcomes)
	}
	if got := ref.refreshes.Load(); got != 0 {
		t.Errorf("empty batch must not refresh, got %d", got)
	}
}

func TestInstallBatchDuplicatesAreIndependent(t *testing.T) {
	svc := &fakeInstaller{}
	ref := &fakeRefresher{}
	c := NewCoordinator(svc, ref, zap.NewNop().Sugar())

	outcomes := c.InstallBatch(context.Background(), []string{"/tmp/a.zip", "/tmp/a.zip"})
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.installs) != 2 {
		t.Errorf("duplicate paths should install twice, got %d installs", len(svc.installs))
	}
}

func TestInstallBatchForwardsEventsToObserver(t *testing.T) {
	svc := &fakeInstaller{}
	ref := &fakeRefresher{}
	c := NewCoordinator(svc, ref, zap.NewNop().Sugar())

	observer := make(chan ProgressEvent, 16)
	c.Observer = observer

	c.InstallBatch(context.Background(), []string{"/tmp/a.zip"})
	close(observer)

	var types []EventType
	for ev := range observer {
		types = append(types, ev.Type)
	}
	if len(types) != 2 || types[0] != EventStarted || types[1] != EventFinished {
		t.Errorf("expected started then finished, got %v", types)
	}
}

func TestInstallBatchRefreshFailureDoesNotFailOutcomes(t *testing.T) {
	svc := &fakeInstaller{}
	ref := &fakeRefresher{err: errors.New("refresh broken")}
	c := NewCoordinator(svc, ref, zap.NewNop().Sugar())

	outcomes := c.InstallBatch(context.Background(), []string{"/tmp/a.zip"})
	if !outcomes[0].Success || outcomes[0].Err != nil {
		t.Errorf("refresh failure must not taint install outcomes: %+v", outcomes[0])
	}
}
