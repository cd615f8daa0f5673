package web

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/mogaika/mmd_browser/utils"
)

// Watch reloads library models when their files change, until ctx is done
func (l *Library) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrapf(err, "Failed to create watcher")
	}
	if err := w.Add(l.dir); err != nil {
		w.Close()
		return errors.Wrapf(err, "Failed to watch %q", l.dir)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				l.handleFileEvent(e)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				utils.Logger("web").Errorf("Watcher error: %v", err)
			case <-ctx.Done():
				return
			}
		}
	}()
	utils.Logger("web").Infof("Watching library %q", l.dir)
	return nil
}

func (l *Library) handleFileEvent(e fsnotify.Event) {
	if !IsModelFile(e.Name) {
		return
	}
	path := filepath.Join(l.dir, filepath.Base(e.Name))
	switch {
	case e.Has(fsnotify.Remove), e.Has(fsnotify.Rename):
		l.Forget(path)
	case e.Has(fsnotify.Create), e.Has(fsnotify.Write):
		l.Reload(path)
	}
}
