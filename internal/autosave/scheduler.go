// Package autosave debounces section edits into persistence calls.
//
// Every mutation calls Schedule, which restarts a single timer. Only the most
// recent timer fires; when it does, the scheduler snapshots the current
// section list and hands the whole list to the persister.
package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"arp/api/internal/section"
)

// Status is reported to the indicator around every save.
type Status string

const (
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
	StatusFailed Status = "failed"
)

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("autosave scheduler closed")

// Persister stores the full section list for an owner.
type Persister interface {
	SaveSections(ctx context.Context, ownerID string, sections []section.Section) error
}

// Source provides the current section list. *section.List satisfies it.
type Source interface {
	Snapshot() []section.Section
}

// Indicator receives save progress for display. err is set for StatusFailed.
type Indicator func(status Status, err error)

// Config holds scheduler settings.
type Config struct {
	// Delay is how long to wait after the last mutation before saving.
	Delay time.Duration

	// SaveTimeout bounds a single persistence call.
	SaveTimeout time.Duration
}

// DefaultConfig returns the editor defaults.
func DefaultConfig() Config {
	return Config{
		Delay:       time.Second,
		SaveTimeout: 30 * time.Second,
	}
}

// Scheduler owns the debounce timer for one owner's sections.
type Scheduler struct {
	ownerID   string
	source    Source
	persister Persister
	config    Config
	log       zerolog.Logger

	mu        sync.Mutex
	timer     *time.Timer
	gen       uint64
	closed    bool
	indicator Indicator

	saveMu sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. Zero config values fall back to DefaultConfig.
func New(ownerID string, source Source, persister Persister, config Config, logger zerolog.Logger) *Scheduler {
	def := DefaultConfig()
	if config.Delay <= 0 {
		config.Delay = def.Delay
	}
	if config.SaveTimeout <= 0 {
		config.SaveTimeout = def.SaveTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		ownerID:   ownerID,
		source:    source,
		persister: persister,
		config:    config,
		log:       logger.With().Str("component", "autosave").Str("owner", ownerID).Logger(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// OnStatus registers the save indicator.
func (s *Scheduler) OnStatus(fn Indicator) {
	s.mu.Lock()
	s.indicator = fn
	s.mu.Unlock()
}

// Schedule cancels any pending save and starts a fresh timer.
func (s *Scheduler) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.config.Delay, func() { s.fire(gen) })
}

// Pending reports whether a save is waiting on the timer.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ctx, cancel := context.WithTimeout(s.ctx, s.config.SaveTimeout)
	defer cancel()
	_ = s.save(ctx)
}

// Flush cancels the pending timer and saves immediately.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return s.save(ctx)
}

// Close stops the pending timer and waits for an in-flight save to finish.
// A timer that was already due no longer saves after Close returns.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	snapshot := s.source.Snapshot()
	s.report(StatusSaving, nil)
	start := time.Now()
	if err := s.persister.SaveSections(ctx, s.ownerID, snapshot); err != nil {
		s.log.Error().Err(err).Int("sections", len(snapshot)).Msg("autosave failed")
		s.report(StatusFailed, err)
		return err
	}
	s.log.Debug().Int("sections", len(snapshot)).Dur("took", time.Since(start)).Msg("autosaved")
	s.report(StatusSaved, nil)
	return nil
}

func (s *Scheduler) report(status Status, err error) {
	s.mu.Lock()
	fn := s.indicator
	s.mu.Unlock()
	if fn != nil {
		fn(status, err)
	}
}
