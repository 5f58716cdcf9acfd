// Package autosave periodically persists the editor's annotation
// collection to the backend. Saves are full replaces and are single-flight:
// a save requested while one is outstanding is coalesced into one queued
// follow-up instead of racing it.
package autosave

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdf-annotator/backend/internal/models"
)

// State is the controller's save-state machine:
// clean -> dirty -> saving -> clean|error.
type State string

const (
	StateClean  State = "clean"
	StateSaving State = "saving"
	StateError  State = "error"
)

// Source supplies the collection to persist. The revision returned by
// Snapshot ties a successful save to the exact edits it covered, so edits
// made while a save is in flight keep the source dirty.
type Source interface {
	Dirty() bool
	Snapshot() ([]models.Annotation, uint64)
	MarkSaved(rev uint64)
}

// Saver persists a full annotation collection for a file.
type Saver interface {
	SaveAnnotations(ctx context.Context, fileID string, annotations []models.Annotation) error
}

// Options tune the controller; zero values pick the defaults.
type Options struct {
	Interval    time.Duration // autosave period, default 30s
	MaxAttempts int           // save attempts per request, default 3
	BackoffBase time.Duration // first retry delay, doubles per attempt, default 500ms
	SaveTimeout time.Duration // per-attempt timeout, default 15s
	OnError     func(error)   // invoked after the final failed attempt
}

// Controller drives timed and explicit saves for one editor session.
type Controller struct {
	src    Source
	saver  Saver
	fileID string
	opts   Options
	logger *zap.Logger

	// Buffered with capacity 1: an explicit save requested while one is in
	// flight parks here and coalesces with any further requests.
	saveReq chan struct{}

	mu    sync.Mutex
	state State

	stop    chan struct{}
	stopped chan struct{}
	started bool
	closed  bool
}

// New creates a controller for one session. Call Start to begin the timer.
func New(src Source, saver Saver, fileID string, opts Options, logger *zap.Logger) *Controller {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = 15 * time.Second
	}
	return &Controller{
		src:     src,
		saver:   saver,
		fileID:  fileID,
		opts:    opts,
		logger:  logger,
		saveReq: make(chan struct{}, 1),
		state:   StateClean,
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start launches the autosave loop.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go c.loop()
}

// SaveNow requests an immediate save. If a save is already in flight the
// request is queued and coalesced; it never starts a concurrent save.
func (c *Controller) SaveNow() {
	select {
	case c.saveReq <- struct{}{}:
	default:
		// A request is already pending; it will cover this one too.
	}
}

// State returns the current save state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close stops the timer, waits for any in-flight save to finish, and
// flushes remaining dirty edits with one final save so nothing is written
// against the wrong document after unload.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if !c.started || c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stop)
	select {
	case <-c.stopped:
	case <-ctx.Done():
		return ctx.Err()
	}

	if c.src.Dirty() {
		return c.save(ctx)
	}
	return nil
}

func (c *Controller) loop() {
	defer close(c.stopped)

	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if c.src.Dirty() {
				c.runSave()
			}
		case <-c.saveReq:
			c.runSave()
		case <-c.stop:
			return
		}
	}
}

func (c *Controller) runSave() {
	if !c.src.Dirty() {
		return
	}
	if err := c.save(context.Background()); err != nil {
		if c.opts.OnError != nil {
			c.opts.OnError(err)
		}
	}
}

// save performs one save request with bounded exponential backoff. On
// success the source's dirty flag is cleared for the saved revision; on
// terminal failure it is left set so the next tick retries.
func (c *Controller) save(ctx context.Context) error {
	c.setState(StateSaving)

	annotations, rev := c.src.Snapshot()

	var err error
	for attempt := 0; attempt < c.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.opts.BackoffBase << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				c.setState(StateError)
				return ctx.Err()
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.opts.SaveTimeout)
		err = c.saver.SaveAnnotations(attemptCtx, c.fileID, annotations)
		cancel()

		if err == nil {
			c.src.MarkSaved(rev)
			c.setState(StateClean)
			c.logger.Debug("Saved annotations",
				zap.String("file_id", c.fileID),
				zap.Int("count", len(annotations)),
			)
			return nil
		}

		c.logger.Warn("Save attempt failed",
			zap.String("file_id", c.fileID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	c.setState(StateError)
	return err
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
