package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"sheets/internal/metrics"
)

// ImportedSuffix is appended to a file once its sheet has been stored.
const ImportedSuffix = ".imported"

// DefaultSettle is how long a file must stay quiet before it is imported.
const DefaultSettle = 300 * time.Millisecond

// Importer stores sheet JSON and returns the new sheet id.
type Importer interface {
	Import(ctx context.Context, text string) (string, error)
}

// ImportedHandler is called after a file has been imported and renamed.
type ImportedHandler func(path, sheetID string)

type Options struct {
	Settle     time.Duration
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
	OnImported ImportedHandler
}

// Inbox imports every *.json file dropped into a directory. Files already
// present when it starts are imported too. A file that fails to import stays
// where it is and is retried on its next write.
type Inbox struct {
	dir      string
	importer Importer
	settle   time.Duration
	log      zerolog.Logger
	metrics  *metrics.Metrics
	onDone   ImportedHandler

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc

	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
}

func NewInbox(dir string, importer Importer, opts Options) *Inbox {
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	return &Inbox{
		dir:      dir,
		importer: importer,
		settle:   opts.Settle,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		onDone:   opts.OnImported,
		timers:   make(map[string]*time.Timer),
	}
}

func (in *Inbox) Dir() string { return in.dir }

// Start creates the directory if needed, imports what is already there and
// begins watching. It returns once the watch is established.
func (in *Inbox) Start(ctx context.Context) error {
	if err := os.MkdirAll(in.dir, 0o755); err != nil {
		return fmt.Errorf("create inbox dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(in.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", in.dir, err)
	}
	// Scanned after Add so a file dropped in between is still seen.
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("scan inbox: %w", err)
	}
	in.watcher = watcher

	ctx, cancel := context.WithCancel(ctx)
	in.cancel = cancel

	in.wg.Add(1)
	go func() {
		defer in.wg.Done()
		in.watchLoop(ctx)
	}()

	for _, e := range entries {
		if !e.IsDir() && isSheetFile(e.Name()) {
			in.schedule(ctx, filepath.Join(in.dir, e.Name()))
		}
	}
	in.log.Info().Str("dir", in.dir).Msg("watching import inbox")
	return nil
}

// Close stops watching and waits for imports already underway.
func (in *Inbox) Close() error {
	if in.cancel != nil {
		in.cancel()
	}
	in.mu.Lock()
	for path, t := range in.timers {
		if t.Stop() {
			in.wg.Done()
		}
		delete(in.timers, path)
	}
	in.mu.Unlock()

	var err error
	if in.watcher != nil {
		err = in.watcher.Close()
	}
	in.wg.Wait()
	return err
}

func (in *Inbox) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-in.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isSheetFile(event.Name) {
				continue
			}
			in.schedule(ctx, event.Name)
		case err, ok := <-in.watcher.Errors:
			if !ok {
				return
			}
			in.log.Warn().Err(err).Msg("inbox watcher error")
		}
	}
}

// schedule (re)arms the settle timer for path so a file written in several
// chunks is imported once.
func (in *Inbox) schedule(ctx context.Context, path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if t, ok := in.timers[path]; ok {
		if t.Stop() {
			in.wg.Done()
		}
	}
	in.wg.Add(1)
	in.timers[path] = time.AfterFunc(in.settle, func() {
		defer in.wg.Done()
		in.mu.Lock()
		delete(in.timers, path)
		in.mu.Unlock()
		in.importFile(ctx, path)
	})
}

func (in *Inbox) importFile(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		// Already renamed by an earlier run, or removed by the user.
		if !os.IsNotExist(err) {
			in.log.Warn().Err(err).Str("file", path).Msg("read inbox file")
		}
		return
	}

	id, err := in.importer.Import(ctx, string(data))
	in.metrics.RecordWatchImport(err)
	if err != nil {
		in.log.Warn().Err(err).Str("file", path).Msg("inbox import failed")
		return
	}
	if err := os.Rename(path, path+ImportedSuffix); err != nil {
		in.log.Error().Err(err).Str("file", path).Str("sheet", id).Msg("imported file could not be renamed")
	}
	in.log.Info().Str("file", filepath.Base(path)).Str("sheet", id).Msg("sheet imported from inbox")
	if in.onDone != nil {
		in.onDone(path, id)
	}
}

func isSheetFile(name string) bool {
	base := filepath.Base(name)
	return strings.EqualFold(filepath.Ext(base), ".json") && !strings.HasPrefix(base, ".")
}
