package cli

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/joelanford/axscan/app"
)

// Editors often write a file several times per save.
const watchDebounce = 100 * time.Millisecond

// Watch scans files once, then rescans whichever of them change until ctx
// is done. Each rescan writes its own summary.
func Watch(ctx context.Context, opts *app.Opts, logger *slog.Logger, files []string, stdout io.Writer) error {
	sess, err := newSession(opts, logger, stdout)
	if err != nil {
		return err
	}
	defer sess.Close()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "error creating file watcher")
	}
	defer fw.Close()

	// fsnotify reports paths under the watched directory, so files are
	// keyed by absolute path and the parent directories are watched. This
	// survives editors that replace the file on save.
	watched := make(map[string]string, len(files))
	dirs := make(map[string]struct{})
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return errors.Wrapf(err, "error resolving %s", f)
		}
		watched[abs] = f
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			return errors.Wrapf(err, "error watching %s", dir)
		}
	}

	if _, err := sess.scan(ctx, files); err != nil {
		return err
	}

	pending := make(map[string]struct{})
	var flush <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			name, ok := watched[filepath.Clean(event.Name)]
			if !ok || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			logger.Debug("file changed", "file", name, "op", event.Op.String())
			pending[name] = struct{}{}
			flush = time.After(watchDebounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", "error", err)
		case <-flush:
			flush = nil
			changed := make([]string, 0, len(pending))
			for _, f := range files {
				if _, ok := pending[f]; ok {
					changed = append(changed, f)
					delete(pending, f)
				}
			}
			if _, err := sess.scan(ctx, changed); err != nil {
				return err
			}
		}
	}
}
