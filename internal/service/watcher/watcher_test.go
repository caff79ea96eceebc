package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"kiosk/internal/config"
)

type resizeCall struct{ width, height int }

type fakeResizer struct {
	calls chan resizeCall
}

func (r *fakeResizer) SetResolution(width, height int) error {
	r.calls <- resizeCall{width, height}
	return nil
}

func writeConfig(t *testing.T, path string, width, height int) {
	t.Helper()
	body := fmt.Sprintf("width = %d\nheight = %d\n", width, height)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func startWatcher(t *testing.T, changed map[string]bool) (string, *fakeResizer) {
	t.Helper()
	t.Setenv("FRAME_WIDTH", "")
	t.Setenv("FRAME_HEIGHT", "")

	path := filepath.Join(t.TempDir(), "kiosk.toml")
	writeConfig(t, path, 640, 480)

	cfg := config.Default()
	cfg.ConfigFile = path

	target := &fakeResizer{calls: make(chan resizeCall, 16)}
	w := New(cfg, changed, target, nil)
	w.delay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return path, target
}

// waitCall rewrites the file until the watcher reacts, since the watch may not be armed yet.
func waitCall(t *testing.T, path string, width, height int, target *fakeResizer) resizeCall {
	t.Helper()

	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	writeConfig(t, path, width, height)
	for {
		select {
		case call := <-target.calls:
			return call
		case <-tick.C:
			writeConfig(t, path, width, height)
		case <-deadline:
			t.Fatal("watcher did not apply the change")
		}
	}
}

func TestConfigWatcher_AppliesResolution(t *testing.T) {
	path, target := startWatcher(t, nil)

	call := waitCall(t, path, 1280, 720, target)
	if call.width != 1280 || call.height != 720 {
		t.Errorf("unexpected resolution %dx%d", call.width, call.height)
	}
}

func TestConfigWatcher_FlagsKeepPrecedence(t *testing.T) {
	path, target := startWatcher(t, map[string]bool{"width": true})

	call := waitCall(t, path, 1920, 1080, target)
	if call.width != 640 || call.height != 1080 {
		t.Errorf("expected width pinned by flag, got %dx%d", call.width, call.height)
	}
}

func TestConfigWatcher_InvalidFileIgnored(t *testing.T) {
	path, target := startWatcher(t, nil)

	if err := os.WriteFile(path, []byte("width = \"wide\"\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	select {
	case call := <-target.calls:
		t.Fatalf("unexpected resize %dx%d", call.width, call.height)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestConfigWatcher_RequiresFile(t *testing.T) {
	w := New(config.Default(), nil, &fakeResizer{}, nil)
	if err := w.Run(context.Background()); err == nil {
		t.Error("expected an error without a config file")
	}
}
