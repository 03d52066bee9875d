package drafts

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Awaneesh03/digital-life-dashboard/internal/record"
)

// CaptureWatcher watches a capture directory for form snapshots written
// as <key>.json and feeds them into a Saver. External tools (or the
// dashboard widgets themselves) drop snapshot files there; the watcher
// turns each write into a queued draft, with the Saver's debounce
// absorbing editor-style write bursts.
type CaptureWatcher struct {
	watcher *fsnotify.Watcher
	saver   *Saver
	logger  *log.Logger

	dir     string
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewCaptureWatcher creates a watcher feeding the given saver. The
// watcher must be started with Start() before it picks anything up.
func NewCaptureWatcher(saver *Saver, logger *log.Logger) (*CaptureWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[drafts] ", log.LstdFlags)
	}

	return &CaptureWatcher{
		watcher: watcher,
		saver:   saver,
		logger:  logger,
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching dir for *.json snapshot files.
func (cw *CaptureWatcher) Start(dir string) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.running {
		return fmt.Errorf("capture watcher already running")
	}

	if err := cw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch capture directory %s: %w", dir, err)
	}
	cw.dir = dir

	cw.running = true
	cw.wg.Add(1)
	go cw.processEvents()

	return nil
}

// Stop stops watching and blocks until the event loop has exited.
func (cw *CaptureWatcher) Stop() error {
	cw.mu.Lock()
	if !cw.running {
		cw.mu.Unlock()
		return nil
	}
	cw.running = false
	cw.mu.Unlock()

	close(cw.done)

	if err := cw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	cw.wg.Wait()
	return nil
}

// IsRunning returns true if the watcher is currently running.
func (cw *CaptureWatcher) IsRunning() bool {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.running
}

func (cw *CaptureWatcher) processEvents() {
	defer cw.wg.Done()

	for {
		select {
		case <-cw.done:
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if key, ok := cw.captureKey(event); ok {
				cw.ingest(key, event.Name)
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Printf("Capture watcher error: %v", err)
		}
	}
}

// captureKey maps an fsnotify event to a draft key, or reports that the
// event should be ignored. Only creates and writes of *.json files in
// the watched directory count.
func (cw *CaptureWatcher) captureKey(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	base := filepath.Base(event.Name)
	if !strings.HasSuffix(base, ".json") {
		return "", false
	}
	return strings.TrimSuffix(base, ".json"), true
}

// ingest reads a snapshot file and queues its content as a draft. A
// half-written file fails to parse and is skipped; the write event for
// its final content follows.
func (cw *CaptureWatcher) ingest(key, path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		cw.logger.Printf("Failed to read capture %s: %v", path, err)
		return
	}

	data, err := record.Unmarshal(raw)
	if err != nil {
		cw.logger.Printf("Skipping unparseable capture %s: %v", path, err)
		return
	}

	cw.saver.Save(key, data)
}
