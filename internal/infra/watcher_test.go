package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/logmonitor/internal/domain"
)

func TestFileWatcher_WakesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "app.log", "")

	fw, err := NewFileWatcher([]domain.MonitoredFile{{Path: path, Kind: domain.KindLog}}, zap.NewNop())
	require.NoError(t, err)
	defer fw.Close()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("line\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case <-fw.C():
	case <-time.After(5 * time.Second):
		t.Fatal("expected a wake-up after write")
	}
}

func TestFileWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	fw, err := NewFileWatcher([]domain.MonitoredFile{{Path: path, Kind: domain.KindLog}}, zap.NewNop())
	require.NoError(t, err)
	defer fw.Close()

	writeFile(t, dir, "other.log", "noise\n")

	select {
	case <-fw.C():
		t.Fatal("unexpected wake-up for an unmonitored file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestFileWatcher_MissingDirectoryIsNotFatal(t *testing.T) {
	fw, err := NewFileWatcher([]domain.MonitoredFile{{Path: "/nonexistent/dir/app.log"}}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, fw.Close())
}
