package policy

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/hupe1980/jubilee/logging"
)

// WatchOptions configures Watch.
type WatchOptions struct {
	Logger logging.Logger
	// OnReload is called after every reload attempt with the new size or the error.
	OnReload func(size int, err error)
}

// Watch loads path into a and keeps it in sync with the file until ctx is
// cancelled. The parent directory is watched so editors that replace the file
// by rename are handled. A failed reload keeps the previous entries.
//
// The returned channel is closed once the watcher goroutine has exited.
func (a *Allowlist) Watch(ctx context.Context, path string, optFns ...func(o *WatchOptions)) (<-chan struct{}, error) {
	opts := WatchOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("allowlist watch: %w", err)
	}
	addrs, err := ReadAllowlistFile(abs)
	if err != nil {
		return nil, err
	}
	a.Replace(addrs)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("allowlist watch: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("allowlist watch %s: %w", abs, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				addrs, err := ReadAllowlistFile(abs)
				if err != nil {
					opts.Logger.Warn("policy.allowlist.reload_failed", "path", abs, "error", err.Error())
				} else {
					a.Replace(addrs)
					opts.Logger.Info("policy.allowlist.reloaded", "path", abs, "entries", a.Len())
				}
				if opts.OnReload != nil {
					opts.OnReload(a.Len(), err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				opts.Logger.Warn("policy.allowlist.watch_error", "error", err.Error())
			}
		}
	}()

	return done, nil
}
