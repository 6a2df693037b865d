package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long a file must stay quiet before it is queued.
const DefaultDebounce = 500 * time.Millisecond

// audioExts are the upload types the inbox accepts.
var audioExts = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".ogg": true, ".flac": true,
	".aac": true, ".wma": true, ".webm": true, ".mp4": true, ".opus": true,
}

// IsAudioFile reports whether name has an accepted audio extension.
func IsAudioFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return audioExts[strings.ToLower(filepath.Ext(base))]
}

// Enqueuer accepts inbox jobs.
type Enqueuer interface {
	Enqueue(j Job) bool
}

// Watcher monitors an inbox directory for new audio files and hands them to
// the queue. Only the top level of the directory is watched; done/ and
// failed/ are ignored.
type Watcher struct {
	dir      string
	queue    Enqueuer
	debounce time.Duration
	log      zerolog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup

	// Debounce: coalesce rapid Create+Write events on the same file.
	debounceMu     sync.Mutex
	debounceTimers map[string]*time.Timer

	filesQueued  atomic.Int64
	filesDropped atomic.Int64
	status       atomic.Value // string: "starting", "watching", "stopped"
}

// NewWatcher creates an inbox watcher. A zero debounce selects DefaultDebounce.
func NewWatcher(dir string, queue Enqueuer, debounce time.Duration, log zerolog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		dir:            dir,
		queue:          queue,
		debounce:       debounce,
		log:            log.With().Str("component", "watcher").Logger(),
		done:           make(chan struct{}),
		debounceTimers: make(map[string]*time.Timer),
	}
	w.status.Store("starting")
	return w
}

// Start creates the inbox if needed, queues audio files already present, and
// begins watching for new ones.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return err
	}
	w.watcher = fw

	w.wg.Add(1)
	go w.watchLoop()

	existing := w.backfill()
	w.status.Store("watching")
	w.log.Info().Str("inbox", w.dir).Int("existing_files", existing).Msg("inbox watcher started")
	return nil
}

// Stop closes the fsnotify watcher and cancels pending debounce timers.
func (w *Watcher) Stop() {
	w.status.Store("stopped")
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.wg.Wait()

	w.debounceMu.Lock()
	for path, t := range w.debounceTimers {
		t.Stop()
		delete(w.debounceTimers, path)
	}
	w.debounceMu.Unlock()

	w.log.Info().
		Int64("files_queued", w.filesQueued.Load()).
		Int64("files_dropped", w.filesDropped.Load()).
		Msg("inbox watcher stopped")
}

// Status returns the current watcher status for the health endpoint.
func (w *Watcher) Status() string {
	s, _ := w.status.Load().(string)
	return s
}

// watchLoop is the main event loop that processes fsnotify events.
func (w *Watcher) watchLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !IsAudioFile(event.Name) {
				continue
			}
			w.scheduleEnqueue(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("fsnotify error")
		}
	}
}

// scheduleEnqueue debounces a file so it is queued once, after the writer
// has gone quiet.
func (w *Watcher) scheduleEnqueue(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if t, ok := w.debounceTimers[path]; ok {
		t.Reset(w.debounce)
		return
	}

	w.debounceTimers[path] = time.AfterFunc(w.debounce, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}
		w.enqueue(path)
	})
}

func (w *Watcher) enqueue(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	if !w.queue.Enqueue(Job{Path: path}) {
		w.filesDropped.Add(1)
		w.log.Warn().Str("path", path).Msg("inbox queue full, file left in place")
		return
	}
	w.filesQueued.Add(1)
	w.log.Debug().Str("path", path).Msg("inbox file queued")
}

// backfill queues audio files that were already in the inbox at startup.
func (w *Watcher) backfill() int {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.Warn().Err(err).Msg("failed to scan inbox")
		return 0
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || !IsAudioFile(e.Name()) {
			continue
		}
		w.enqueue(filepath.Join(w.dir, e.Name()))
		n++
	}
	return n
}
