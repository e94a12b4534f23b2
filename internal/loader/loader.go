// Package loader orchestrates folder loads: manifest lookup, prioritized
// quick batches to get cards on screen fast, a one-time shuffle, and a
// cancellable background fill for the rest.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chartdeck/chartdeck/internal/deck"
	"github.com/chartdeck/chartdeck/internal/events"
	"github.com/chartdeck/chartdeck/internal/logging"
	"github.com/chartdeck/chartdeck/internal/metrics"
	"github.com/chartdeck/chartdeck/internal/planner"
	"github.com/chartdeck/chartdeck/internal/protocol"
)

var (
	// ErrManifest marks a folder manifest that could not be obtained.
	ErrManifest = errors.New("manifest fetch failed")
	// ErrNoData marks a load that exhausted every strategy with zero files.
	ErrNoData = errors.New("no data available")
	// ErrNoFolder is returned when no folder name was given and no previous
	// load established one.
	ErrNoFolder = errors.New("no folder selected")
)

// FolderFetcher lists the folders available on the data server.
type FolderFetcher interface {
	FetchFolders(ctx context.Context) ([]protocol.Folder, error)
}

// Manifests resolves a folder name to its manifest, normally via a cache.
type Manifests interface {
	Get(ctx context.Context, folderName string) (*protocol.Folder, error)
}

// BatchFetcher retrieves a batch of files with settle-all semantics.
type BatchFetcher interface {
	FetchBatch(ctx context.Context, targets []protocol.FileDescriptor, folderName string) []deck.LoadedFile
}

// Options tunes the load pipeline.
type Options struct {
	Essentials          deck.Essentials
	ReadyMinFiles       int
	QuickBatchSize      int
	BackgroundBatchSize int
	LoadTimeout         time.Duration
}

// Controller runs load sessions. At most one session is live at a time; a
// request for a different folder supersedes the current session, and a
// duplicate request for the in-flight folder is a no-op.
type Controller struct {
	folders   FolderFetcher
	manifests Manifests
	planner   *planner.Planner
	batcher   BatchFetcher
	shuffler  *deck.Shuffler
	events    *events.Broadcaster
	opts      Options

	mu         sync.Mutex
	folderList []protocol.Folder
	cards      []*deck.Flashcard
	loading    bool
	lastErr    error
	lastFolder string
	current    *session
	seq        uint64
}

// New creates a Controller.
func New(folders FolderFetcher, manifests Manifests, p *planner.Planner, batcher BatchFetcher, opts Options) *Controller {
	if opts.QuickBatchSize <= 0 {
		opts.QuickBatchSize = 12
	}
	if opts.BackgroundBatchSize <= 0 {
		opts.BackgroundBatchSize = 60
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 30 * time.Second
	}
	return &Controller{
		folders:   folders,
		manifests: manifests,
		planner:   p,
		batcher:   batcher,
		shuffler:  deck.NewShuffler(),
		events:    events.NewBroadcaster(),
		opts:      opts,
	}
}

// Events returns the controller's progress broadcaster.
func (c *Controller) Events() *events.Broadcaster {
	return c.events
}

// FetchFolders refreshes the folder list.
func (c *Controller) FetchFolders(ctx context.Context) error {
	folders, err := c.folders.FetchFolders(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrManifest, err)
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.folderList = folders
	c.lastErr = nil
	c.mu.Unlock()
	return nil
}

// FetchFlashcards loads the named folder. It blocks until the deck is
// presentable (or the load fails), then keeps filling in the background.
// An empty folderName repeats the most recent folder. Cancellation via ctx
// or Cleanup is silent, not an error.
func (c *Controller) FetchFlashcards(ctx context.Context, folderName string) error {
	start := time.Now()

	c.mu.Lock()
	if folderName == "" {
		folderName = c.lastFolder
	}
	if folderName == "" {
		c.mu.Unlock()
		return ErrNoFolder
	}

	if cur := c.current; cur != nil && !cur.cancelled() {
		st := cur.State()
		if cur.folderName == folderName && st != StateDone {
			// Already loading this folder.
			c.mu.Unlock()
			return nil
		}
		if cur.folderName != folderName {
			c.supersedeLocked()
		}
	}

	c.seq++
	s := newSession(ctx, folderName, c.seq)
	c.current = s
	if folderName != c.lastFolder {
		c.cards = nil
	}
	c.lastFolder = folderName
	c.loading = true
	c.lastErr = nil
	c.mu.Unlock()

	metrics.SessionStarted()
	logging.Info("folder load started", zap.String("folder", folderName))

	// The visible phase gets a hard ceiling so the caller never waits
	// indefinitely; the background fill runs without one.
	vctx, vcancel := context.WithTimeout(s.ctx, c.opts.LoadTimeout)
	defer vcancel()

	s.setState(StateManifestPending)
	folder, err := c.manifests.Get(vctx, folderName)
	if err != nil {
		if s.cancelled() {
			c.endSilently(s)
			return nil
		}
		return c.fail(s, fmt.Errorf("%w: folder %s: %w", ErrManifest, folderName, err))
	}
	if len(folder.Files) == 0 {
		return c.fail(s, fmt.Errorf("%w: folder %s is empty", ErrNoData, folderName))
	}

	s.mu.Lock()
	s.plan = c.planner.Plan(folder.Files)
	s.mu.Unlock()

	s.setState(StateQuickBatch)
	c.apply(s, c.batcher.FetchBatch(vctx, s.take(c.opts.QuickBatchSize), folderName))

	if !c.ready() && s.remaining() > 0 && !s.cancelled() {
		s.setState(StateQuickBatch2)
		c.apply(s, c.batcher.FetchBatch(vctx, s.take(c.opts.QuickBatchSize), folderName))
	}

	if s.cancelled() {
		c.endSilently(s)
		return nil
	}

	if c.fileCount() == 0 && s.remaining() == 0 {
		return c.fail(s, fmt.Errorf("%w: folder %s", ErrNoData, folderName))
	}

	c.publish(s, time.Since(start))

	s.setState(StateBackgroundFill)
	go c.backgroundFill(s)
	return nil
}

// Cleanup cancels any in-flight session. Safe to call repeatedly.
func (c *Controller) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.supersedeLocked()
	c.loading = false
}

// Cards returns a snapshot of the live collection.
func (c *Controller) Cards() []*deck.Flashcard {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*deck.Flashcard, len(c.cards))
	copy(out, c.cards)
	return out
}

// Folders returns the most recently fetched folder list.
func (c *Controller) Folders() []protocol.Folder {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.Folder(nil), c.folderList...)
}

// Loading reports whether a visible load phase is in progress.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Err returns the last hard load error, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// supersedeLocked cancels the current session. Caller holds c.mu.
func (c *Controller) supersedeLocked() {
	cur := c.current
	if cur == nil {
		return
	}
	state := cur.State()
	cur.setState(StateCancelled)
	cur.end(func() {
		metrics.RecordSessionCancelled()
		metrics.SessionEnded()
		logging.Info("load session superseded",
			zap.String("folder", cur.folderName),
			zap.String("state", state.String()))
	})
	c.shuffler.Forget(cur.key)
	c.current = nil
}

// apply merges a batch into the live collection, unless the session has been
// superseded in the meantime.
func (c *Controller) apply(s *session, loaded []deck.LoadedFile) {
	if len(loaded) == 0 {
		return
	}

	c.mu.Lock()
	if c.current != s || s.cancelled() {
		c.mu.Unlock()
		return
	}
	before := len(c.cards)
	c.cards = deck.Merge(c.cards, loaded, s.folderName, c.opts.Essentials)
	newCards := len(c.cards) - before
	cards, ready, files := c.statsLocked()
	c.mu.Unlock()

	for i := 0; i < newCards; i++ {
		metrics.RecordCardCreated()
	}
	c.events.Publish(events.Event{
		Type:   events.EventCardsUpdated,
		Folder: s.folderName,
		Cards:  cards,
		Ready:  ready,
		Files:  files,
	})
}

// publish shuffles the collection once for this session and clears the
// loading indicator: the deck is now presentable.
func (c *Controller) publish(s *session, elapsed time.Duration) {
	c.mu.Lock()
	if c.current == s && !s.cancelled() {
		c.cards = c.shuffler.ShuffleOnce(s.key, c.cards)
		c.loading = false
	}
	cards, ready, files := c.statsLocked()
	c.mu.Unlock()

	s.setState(StateReady)
	metrics.RecordTimeToReady(elapsed)
	logging.Info("deck presentable",
		zap.String("folder", s.folderName),
		zap.Int("cards", cards),
		zap.Int("ready", ready),
		zap.Int("files", files),
		zap.Duration("elapsed", elapsed))
	c.events.Publish(events.Event{
		Type:   events.EventReady,
		Folder: s.folderName,
		Cards:  cards,
		Ready:  ready,
		Files:  files,
	})
}

// backgroundFill drains the remaining plan in large batches. It exits at the
// next batch boundary once the session is superseded.
func (c *Controller) backgroundFill(s *session) {
	for {
		if s.cancelled() {
			c.endSilently(s)
			return
		}
		batch := s.take(c.opts.BackgroundBatchSize)
		if len(batch) == 0 {
			break
		}
		c.apply(s, c.batcher.FetchBatch(s.ctx, batch, s.folderName))
	}

	s.setState(StateDone)
	s.end(metrics.SessionEnded)

	c.mu.Lock()
	cards, ready, files := c.statsLocked()
	c.mu.Unlock()
	logging.Info("background fill complete",
		zap.String("folder", s.folderName),
		zap.Int("cards", cards),
		zap.Int("files", files))
	c.events.Publish(events.Event{
		Type:   events.EventDone,
		Folder: s.folderName,
		Cards:  cards,
		Ready:  ready,
		Files:  files,
	})
}

// fail records a hard error, clears loading state, and tears the session
// down.
func (c *Controller) fail(s *session, err error) error {
	c.mu.Lock()
	if c.current == s {
		c.lastErr = err
		c.loading = false
		c.current = nil
	}
	c.mu.Unlock()

	s.setState(StateCancelled)
	s.end(metrics.SessionEnded)
	logging.Error("folder load failed", zap.String("folder", s.folderName), zap.Error(err))
	c.events.Publish(events.Event{
		Type:    events.EventError,
		Folder:  s.folderName,
		Message: err.Error(),
	})
	return err
}

// endSilently finishes a superseded session without surfacing an error.
func (c *Controller) endSilently(s *session) {
	c.mu.Lock()
	if c.current == s {
		c.current = nil
		c.loading = false
	}
	c.mu.Unlock()
	s.end(metrics.SessionEnded)
}

func (c *Controller) ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return deck.Ready(deck.AllFiles(c.cards), c.opts.Essentials, c.opts.ReadyMinFiles)
}

func (c *Controller) fileCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return deck.CountLoaded(c.cards)
}

// statsLocked computes collection counters. Caller holds c.mu.
func (c *Controller) statsLocked() (cards, ready, files int) {
	cards = len(c.cards)
	for _, card := range c.cards {
		if card.IsReady {
			ready++
		}
		files += len(card.Files)
	}
	return cards, ready, files
}
