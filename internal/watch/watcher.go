// Package watch feeds file changes into the session inputs.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"rjdctl/internal/errors"
	"rjdctl/internal/input"

	"github.com/fsnotify/fsnotify"
)

// Handler is called with the path of a file that changed
type Handler func(path string) error

// Watcher watches individual files and calls their handler after writes
// settle. Directories are watched too so atomic renames are seen.
type Watcher struct {
	mu sync.Mutex

	handlers map[string]Handler
	timers   map[string]*time.Timer

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration

	stopChan chan struct{}
	pending  chan string
	done     chan struct{}

	logger  *errors.Logger
	running bool
}

// New creates a watcher. A zero delay defaults to 100ms.
func New(debounceDelay time.Duration, logger *errors.Logger) *Watcher {
	if debounceDelay <= 0 {
		debounceDelay = 100 * time.Millisecond
	}
	return &Watcher{
		handlers:      make(map[string]Handler),
		timers:        make(map[string]*time.Timer),
		debounceDelay: debounceDelay,
		stopChan:      make(chan struct{}),
		pending:       make(chan string, 8),
		done:          make(chan struct{}),
		logger:        logger,
	}
}

// Add registers handler for path. It must be called before Start.
func (w *Watcher) Add(path string, handler Handler) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher is already running")
	}
	w.handlers[filepath.Clean(abs)] = handler
	return nil
}

// Start begins watching every registered file
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher is already running")
	}
	if len(w.handlers) == 0 {
		return fmt.Errorf("no files to watch")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	dirs := make(map[string]bool)
	files := make([]string, 0, len(w.handlers))
	for file := range w.handlers {
		files = append(files, file)
		dirs[filepath.Dir(file)] = true
	}
	for dir := range dirs {
		if err := fsWatcher.Add(dir); err != nil {
			_ = fsWatcher.Close()
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	w.fsWatcher = fsWatcher
	w.running = true
	go w.watchLoop()

	w.logger.Info("Input file watcher started",
		"files", files,
		"debounce_delay", w.debounceDelay.String())
	return nil
}

// Stop stops watching and waits for the event loop to exit
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopChan)
	for _, timer := range w.timers {
		timer.Stop()
	}
	err := w.fsWatcher.Close()
	w.mu.Unlock()

	<-w.done
	if err != nil {
		w.logger.LogError(err, "Failed to close file system watcher")
		return err
	}
	w.logger.Info("Input file watcher stopped")
	return nil
}

func (w *Watcher) watchLoop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if w.shouldProcessEvent(event) {
				w.schedule(filepath.Clean(event.Name))
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.LogError(err, "File watcher error")

		case path := <-w.pending:
			w.dispatch(path)

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) shouldProcessEvent(event fsnotify.Event) bool {
	w.mu.Lock()
	_, watched := w.handlers[filepath.Clean(event.Name)]
	w.mu.Unlock()

	return watched && event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// schedule restarts the debounce timer for path
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounceDelay, func() {
		select {
		case w.pending <- path:
		case <-w.stopChan:
		}
	})
}

func (w *Watcher) dispatch(path string) {
	w.mu.Lock()
	handler := w.handlers[path]
	w.mu.Unlock()
	if handler == nil {
		return
	}

	if _, err := os.Stat(path); err != nil {
		w.logger.Debug("Watched file is gone, keeping last value", "file", path)
		return
	}

	if err := handler(path); err != nil {
		w.logger.LogError(err, "Failed to apply watched file", "file", path)
		return
	}
	w.logger.Debug("Applied watched file", "file", path)
}

// ForInputs builds a watcher that selects resumePath on every change and
// replaces the job description with the contents of jdPath. Either path may
// be empty.
func ForInputs(collector *input.Collector, resumePath, jdPath string, debounceDelay time.Duration, logger *errors.Logger) (*Watcher, error) {
	w := New(debounceDelay, logger)

	if resumePath != "" {
		if err := w.Add(resumePath, func(path string) error {
			return collector.SelectPath(input.SourceWatch, path)
		}); err != nil {
			return nil, err
		}
	}

	if jdPath != "" {
		if err := w.Add(jdPath, func(path string) error {
			return LoadJobDescription(collector, path)
		}); err != nil {
			return nil, err
		}
	}

	return w, nil
}

// LoadJobDescription replaces the job description with the file contents
func LoadJobDescription(collector *input.Collector, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("cannot read job description %s", path), err)
	}
	collector.SetJobDescription(string(content))
	return nil
}
