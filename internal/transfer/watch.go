package transfer

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watchOutputs monitors the compositing tool's output tree while the
// external call is in flight and invokes report with the name of each
// artifact as it appears. The compositing step can run for minutes, so
// these events are the only intermediate feedback it produces. The
// returned stop function must be called exactly once; a nil stop is
// never returned. Watch failures are soft: the transfer proceeds without
// intermediate events.
func watchOutputs(root string, report func(name string)) func() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return func() {}
	}
	if err := w.Add(root); err != nil {
		w.Close()
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Create == 0 {
					continue
				}
				// The tool creates the style subdirectory first; follow it.
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.Add(event.Name)
					continue
				}
				report(filepath.Base(event.Name))
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return func() {
		w.Close()
		<-done
	}
}
