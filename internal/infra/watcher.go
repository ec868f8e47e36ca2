package infra

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/logmonitor/internal/domain"
)

// FileWatcher implements domain.Waker with fsnotify. It watches the parent
// directories of monitored files so creations and renames are seen too.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	paths   map[string]struct{}
	wake    chan struct{}
	done    chan struct{}
	logger  *zap.Logger
}

// NewFileWatcher starts watching the directories holding files.
// Directories that cannot be watched are logged and skipped.
func NewFileWatcher(files []domain.MonitoredFile, logger *zap.Logger) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &FileWatcher{
		watcher: w,
		paths:   make(map[string]struct{}, len(files)),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		logger:  logger,
	}

	dirs := make(map[string]struct{})
	for _, f := range files {
		p := filepath.Clean(f.Path)
		fw.paths[p] = struct{}{}
		dirs[filepath.Dir(p)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			logger.Warn("cannot watch directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	go fw.loop()
	return fw, nil
}

// C returns the wake-up channel.
func (fw *FileWatcher) C() <-chan struct{} {
	return fw.wake
}

// Close stops the watcher.
func (fw *FileWatcher) Close() error {
	err := fw.watcher.Close()
	<-fw.done
	return err
}

func (fw *FileWatcher) loop() {
	defer close(fw.done)

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if _, watched := fw.paths[filepath.Clean(event.Name)]; !watched {
				continue
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			select {
			case fw.wake <- struct{}{}:
			default:
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}

// Ensure FileWatcher implements domain.Waker.
var _ domain.Waker = (*FileWatcher)(nil)
