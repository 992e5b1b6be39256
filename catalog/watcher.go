package catalog

import (
	"io/fs"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/sabouaram/staticd/logging"
)

// Watcher observes the document root and signals that a rebuild is due,
// supplementing the operator-driven refresh flag with a file-system-driven
// one. Either trigger ends up flipping the same refresh flag the acceptor
// loop polls; the watcher never rebuilds the catalog itself.
type Watcher struct {
	w       *fsnotify.Watcher
	trigger chan struct{}
	log     logging.Logger
}

// NewWatcher starts watching root/webpages recursively.
func NewWatcher(root string, log logging.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	webpages := filepath.Join(root, "webpages")

	dirs, err := listDirs(webpages)
	if err != nil {
		_ = fw.Close()
		return nil, err
	}

	for _, d := range dirs {
		if err := fw.Add(d); err != nil {
			if log != nil {
				log.Entry(logging.WarnLevel, "cannot watch directory").
					Field("dir", d).ErrorAdd(false, err).Log()
			}
		}
	}

	watcher := &Watcher{w: fw, trigger: make(chan struct{}, 1), log: log}
	go watcher.run()

	return watcher, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.notify()
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			if w.log != nil {
				w.log.Entry(logging.WarnLevel, "catalog watcher error").ErrorAdd(false, err).Log()
			}
		}
	}
}

func (w *Watcher) notify() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Triggered yields a channel that receives a value each time a filesystem
// change under the document root warrants a catalog rebuild. The channel
// is coalesced: bursts of changes collapse into a single pending trigger.
func (w *Watcher) Triggered() <-chan struct{} {
	return w.trigger
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.w.Close()
}

func listDirs(root string) ([]string, error) {
	var dirs []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})

	return dirs, err
}
