package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// fileWatcher reports the contents of one file each time it changes. The
// parent directory is watched so editors that save by rename are seen.
type fileWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *zap.Logger
}

func newFileWatcher(path string, logger *zap.Logger) (*fileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	return &fileWatcher{path: abs, watcher: watcher, logger: logger}, nil
}

// Run calls onChange with the file's contents until ctx is done. Reads that
// fail, usually because the file is mid-save, are skipped.
func (fw *fileWatcher) Run(ctx context.Context, onChange func(source string)) error {
	defer fw.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			source, err := readSource(nil, fw.path)
			if err == nil && source == "" {
				// Truncated mid-save; the write that follows carries the content.
				continue
			}
			if err != nil {
				fw.logger.Debug("Skipping unreadable change", zap.String("file", fw.path), zap.Error(err))
				continue
			}
			fw.logger.Debug("Source changed", zap.String("file", fw.path), zap.Stringer("op", event.Op))
			onChange(source)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			fw.logger.Warn("File watcher error", zap.Error(err))
		}
	}
}
