// Package watch re-runs work when watched scripts or documents change.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 100 * time.Millisecond

var log = commonlog.GetLogger("tendril.watch")

// Extensions are the file types that trigger a change inside watched
// directories. Explicitly watched files always trigger.
var Extensions = []string{".lua", ".md", ".markdown", ".html", ".htm", ".yaml", ".yml"}

// Watcher monitors files and directories and calls OnChange for each
// change that survives debouncing.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool
	dirs     []string
	debounce time.Duration
	onChange func(path string)

	// Track last change time to debounce rapid changes
	mu         sync.Mutex
	lastChange time.Time
	changeSeq  uint64
}

// New creates a watcher over paths. Directories are watched
// recursively; files are watched through their parent directory.
func New(paths []string, debounce time.Duration, onChange func(path string)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		watcher:  fsWatcher,
		files:    make(map[string]bool),
		debounce: debounce,
		onChange: onChange,
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			w.dirs = append(w.dirs, abs)
		} else {
			w.files[abs] = true
		}
	}

	return w, nil
}

// Start registers the watches and processes events until ctx is done or
// the watcher is closed.
func (w *Watcher) Start(ctx context.Context) error {
	parents := make(map[string]bool)
	for f := range w.files {
		parents[filepath.Dir(f)] = true
	}
	for dir := range parents {
		if err := w.watcher.Add(dir); err != nil {
			log.Errorf("failed to watch %s: %v", dir, err)
		} else {
			log.Infof("watching files in %s", dir)
		}
	}

	for _, dir := range w.dirs {
		if err := w.watchDirRecursive(dir); err != nil {
			log.Errorf("failed to watch dir %s: %v", dir, err)
		} else {
			log.Infof("watching %s", dir)
		}
	}

	go w.eventLoop(ctx)
	return nil
}

// watchDirRecursive adds a directory and its subdirectories to the watch list
func (w *Watcher) watchDirRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}

			w.mu.Lock()
			if time.Since(w.lastChange) < w.debounce {
				w.mu.Unlock()
				continue
			}
			w.lastChange = time.Now()
			w.changeSeq++
			w.mu.Unlock()

			log.Infof("changed: %s", event.Name)
			if w.onChange != nil {
				w.onChange(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("watcher error: %v", err)
		}
	}
}

// relevant reports whether a change to path should trigger a run.
func (w *Watcher) relevant(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if w.files[abs] {
		return true
	}

	inDir := false
	for _, dir := range w.dirs {
		if rel, err := filepath.Rel(dir, abs); err == nil && !strings.HasPrefix(rel, "..") {
			inDir = true
			break
		}
	}
	if !inDir {
		return false
	}

	ext := strings.ToLower(filepath.Ext(abs))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ChangeSeq returns the number of changes delivered so far.
func (w *Watcher) ChangeSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.changeSeq
}

// Close stops the watcher
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
