// Package autosync decides when the in-memory ledger is pushed to the remote
// spreadsheet. Mutations are debounced, rate limited against the last
// successful push and funneled through a single-slot queue served by one
// worker, so at most one push is ever in flight.
package autosync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ledgersync/internal/logger"
	"ledgersync/internal/models"
	"ledgersync/internal/sheets"
)

// Defaults applied to zero Options fields.
const (
	DefaultDebounce    = 3 * time.Second
	DefaultMinInterval = 2 * time.Minute
	DefaultCooldown    = time.Second
	DefaultPushTimeout = 2 * time.Minute
)

var (
	ErrNotConfigured = errors.New("autosync: spreadsheet id is missing or too short")
	ErrNoCredential  = errors.New("autosync: no valid credential")
	ErrInProgress    = errors.New("autosync: a push is already in progress")
	ErrClosed        = errors.New("autosync: orchestrator is closed")
)

// State is the externally visible phase of the orchestrator.
type State string

const (
	StateDisabled        State = "disabled"
	StateArmed           State = "armed"
	StateDebouncePending State = "debounce_pending"
	StateQueued          State = "queued"
	StatePushing         State = "pushing"
)

// Pusher writes a Document snapshot to the remote target.
type Pusher interface {
	Push(ctx context.Context, target sheets.Target, doc *models.Document) error
}

// PushFunc adapts a function to Pusher.
type PushFunc func(ctx context.Context, target sheets.Target, doc *models.Document) error

func (f PushFunc) Push(ctx context.Context, target sheets.Target, doc *models.Document) error {
	return f(ctx, target, doc)
}

// ConfigStore persists the auto-sync configuration record. It is read at the
// start of every push.
type ConfigStore interface {
	LoadAutoSyncConfig(ctx context.Context) (models.AutoSyncConfig, error)
	SaveAutoSyncConfig(ctx context.Context, cfg models.AutoSyncConfig) error
}

// Credentials yields the current bearer token when one is valid.
type Credentials interface {
	AccessToken() (string, bool)
}

// Result describes one finished or skipped push.
type Result struct {
	Manual   bool
	Outcome  models.SyncOutcome
	Err      error
	Started  time.Time
	Duration time.Duration
}

// Options tunes the orchestrator. Zero durations take the package defaults;
// a negative MinInterval or Cooldown disables that guard.
type Options struct {
	Debounce    time.Duration
	MinInterval time.Duration
	Cooldown    time.Duration
	PushTimeout time.Duration
	Clock       Clock
	// OnResult, when set, is called after every push attempt.
	OnResult func(Result)
}

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.MinInterval == 0 {
		o.MinInterval = DefaultMinInterval
	}
	if o.Cooldown == 0 {
		o.Cooldown = DefaultCooldown
	}
	if o.PushTimeout <= 0 {
		o.PushTimeout = DefaultPushTimeout
	}
	if o.Clock == nil {
		o.Clock = RealClock()
	}
	return o
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	State      State      `json:"state"`
	Enabled    bool       `json:"enabled"`
	Syncing    bool       `json:"syncing"`
	LastPushAt *time.Time `json:"last_push_at,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	Pushes     int        `json:"pushes"`
	Coalesced  int        `json:"coalesced"`
	Dropped    int        `json:"dropped"`
}

// Orchestrator owns the debounce timer, the pending slot and the push worker.
type Orchestrator struct {
	pusher  Pusher
	configs ConfigStore
	creds   Credentials
	opts    Options
	clock   Clock
	log     *zap.SugaredLogger

	// gate holds one token while a push runs.
	gate   chan struct{}
	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	enabled   bool
	closed    bool
	timer     Timer
	timerGen  int
	debounced *models.Document
	pending   *models.Document
	pushing   bool
	lastPush  time.Time
	lastErr   string
	pushes    int
	coalesced int
	dropped   int
}

// New creates a disabled orchestrator and starts its worker. Call Restore to
// pick up the persisted enabled flag.
func New(pusher Pusher, configs ConfigStore, creds Credentials, opts Options) *Orchestrator {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		pusher:  pusher,
		configs: configs,
		creds:   creds,
		opts:    opts,
		clock:   opts.Clock,
		log:     logger.Named("autosync"),
		gate:    make(chan struct{}, 1),
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
	o.wg.Add(1)
	go o.run()
	return o
}

// Restore loads the persisted configuration and arms the orchestrator when
// auto-sync was left enabled.
func (o *Orchestrator) Restore(ctx context.Context) error {
	cfg, err := o.configs.LoadAutoSyncConfig(ctx)
	if err != nil {
		return fmt.Errorf("restoring auto-sync config: %w", err)
	}
	o.mu.Lock()
	o.enabled = cfg.Enabled
	o.mu.Unlock()
	o.log.Infow("Auto-sync restored", "enabled", cfg.Enabled, "has_target", cfg.HasTarget())
	return nil
}

// Enable persists the target and turns auto-sync on.
func (o *Orchestrator) Enable(ctx context.Context, spreadsheetID string) error {
	cfg := models.AutoSyncConfig{Enabled: true, SpreadsheetID: spreadsheetID}
	if !cfg.HasTarget() {
		return ErrNotConfigured
	}
	if err := o.configs.SaveAutoSyncConfig(ctx, cfg); err != nil {
		return fmt.Errorf("saving auto-sync config: %w", err)
	}
	o.mu.Lock()
	o.enabled = true
	o.mu.Unlock()
	o.log.Infow("Auto-sync enabled", "spreadsheet_id", spreadsheetID)
	return nil
}

// Disable persists the disabled flag, keeping the target, and drops any
// scheduled push.
func (o *Orchestrator) Disable(ctx context.Context) error {
	cfg, err := o.configs.LoadAutoSyncConfig(ctx)
	if err != nil {
		return fmt.Errorf("loading auto-sync config: %w", err)
	}
	cfg.Enabled = false
	if err := o.configs.SaveAutoSyncConfig(ctx, cfg); err != nil {
		return fmt.Errorf("saving auto-sync config: %w", err)
	}
	o.mu.Lock()
	o.disableLocked()
	o.mu.Unlock()
	o.log.Infow("Auto-sync disabled")
	return nil
}

func (o *Orchestrator) disableLocked() {
	o.enabled = false
	o.pending = nil
	o.debounced = nil
	o.stopTimerLocked()
}

func (o *Orchestrator) stopTimerLocked() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.timerGen++
}

// Notify records a mutation. doc must be a snapshot the caller no longer
// mutates. While disabled, or within MinInterval of the last successful push,
// the request is dropped.
func (o *Orchestrator) Notify(doc *models.Document) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || !o.enabled {
		return
	}
	if o.opts.MinInterval > 0 && !o.lastPush.IsZero() {
		if since := o.clock.Now().Sub(o.lastPush); since < o.opts.MinInterval {
			o.dropped++
			o.log.Debugw("Push request dropped", "reason", "min_interval", "since_last_push", since)
			return
		}
	}

	if o.debounced != nil {
		o.coalesced++
	}
	o.debounced = doc
	o.stopTimerLocked()
	gen := o.timerGen
	o.timer = o.clock.AfterFunc(o.opts.Debounce, func() { o.fire(gen) })
}

// fire moves the debounced snapshot into the pending slot. A newer snapshot
// replaces an older one still waiting there.
func (o *Orchestrator) fire(gen int) {
	o.mu.Lock()
	if gen != o.timerGen || o.closed {
		o.mu.Unlock()
		return
	}
	o.timer = nil
	doc := o.debounced
	o.debounced = nil
	if doc == nil || !o.enabled {
		o.mu.Unlock()
		return
	}
	if o.pending != nil {
		o.coalesced++
		o.log.Debugw("Queued push coalesced")
	}
	o.pending = doc
	o.mu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) run() {
	defer o.wg.Done()
	for {
		select {
		case <-o.ctx.Done():
			return
		case <-o.wake:
		}

		for {
			select {
			case o.gate <- struct{}{}:
			case <-o.ctx.Done():
				return
			}
			o.mu.Lock()
			doc := o.pending
			o.pending = nil
			o.mu.Unlock()
			if doc == nil {
				<-o.gate
				break
			}

			_ = o.push(o.ctx, doc, false)
			<-o.gate

			if !o.sleep(o.opts.Cooldown) {
				return
			}
		}
	}
}

func (o *Orchestrator) sleep(d time.Duration) bool {
	if d <= 0 {
		return o.ctx.Err() == nil
	}
	done := make(chan struct{})
	t := o.clock.AfterFunc(d, func() { close(done) })
	select {
	case <-done:
		return true
	case <-o.ctx.Done():
		t.Stop()
		return false
	}
}

// PushNow pushes doc immediately, bypassing the debounce window and the
// minimum interval. It fails with ErrInProgress when a push is running.
func (o *Orchestrator) PushNow(ctx context.Context, doc *models.Document) error {
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return ErrClosed
	}

	select {
	case o.gate <- struct{}{}:
	default:
		return ErrInProgress
	}
	defer func() { <-o.gate }()
	return o.push(ctx, doc, true)
}

// push runs one attempt and reports it. The caller holds the gate, so the
// orchestrator shows as pushing from here until the outcome is known.
func (o *Orchestrator) push(ctx context.Context, doc *models.Document, manual bool) error {
	started := o.clock.Now()
	o.mu.Lock()
	o.pushing = true
	o.mu.Unlock()

	outcome, err := o.attempt(ctx, doc, manual, started)

	o.mu.Lock()
	o.pushing = false
	o.mu.Unlock()

	if o.opts.OnResult != nil {
		o.opts.OnResult(Result{
			Manual:   manual,
			Outcome:  outcome,
			Err:      err,
			Started:  started,
			Duration: o.clock.Now().Sub(started),
		})
	}
	return err
}

func (o *Orchestrator) attempt(ctx context.Context, doc *models.Document, manual bool, started time.Time) (models.SyncOutcome, error) {
	cfg, err := o.configs.LoadAutoSyncConfig(ctx)
	if err != nil {
		err = fmt.Errorf("loading auto-sync config: %w", err)
		o.recordFailure(err)
		return models.SyncOutcomeFailed, err
	}
	if !manual && !cfg.Enabled {
		o.log.Infow("Push skipped", "reason", "disabled")
		return models.SyncOutcomeSkipped, nil
	}
	if !cfg.HasTarget() {
		o.log.Warnw("Push skipped", "reason", "no_target", "manual", manual)
		o.recordFailure(ErrNotConfigured)
		return models.SyncOutcomeSkipped, ErrNotConfigured
	}
	token, ok := o.creds.AccessToken()
	if !ok {
		o.log.Warnw("Push skipped", "reason", "no_credential", "manual", manual)
		o.recordFailure(ErrNoCredential)
		return models.SyncOutcomeSkipped, ErrNoCredential
	}

	pctx, cancel := context.WithTimeout(ctx, o.opts.PushTimeout)
	err = o.pusher.Push(pctx, sheets.Target{SpreadsheetID: cfg.SpreadsheetID, AccessToken: token}, doc)
	cancel()

	o.mu.Lock()
	if err == nil {
		o.lastPush = o.clock.Now()
		o.pushes++
		o.lastErr = ""
	} else {
		o.lastErr = err.Error()
	}
	o.mu.Unlock()

	if err == nil {
		o.log.Infow("Pushed", "manual", manual, "spreadsheet_id", cfg.SpreadsheetID, "duration", o.clock.Now().Sub(started))
		return models.SyncOutcomeSuccess, nil
	}
	if sheets.IsAuthError(err) {
		o.autoDisable(cfg)
		return models.SyncOutcomeAuthFailed, err
	}
	o.log.Errorw("Push failed", "manual", manual, "error", err)
	return models.SyncOutcomeFailed, err
}

func (o *Orchestrator) recordFailure(err error) {
	o.mu.Lock()
	o.lastErr = err.Error()
	o.mu.Unlock()
}

// autoDisable turns auto-sync off after a rejected credential and persists
// the flag so a restart stays disabled.
func (o *Orchestrator) autoDisable(cfg models.AutoSyncConfig) {
	o.mu.Lock()
	o.disableLocked()
	o.mu.Unlock()

	cfg.Enabled = false
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.configs.SaveAutoSyncConfig(ctx, cfg); err != nil {
		o.log.Errorw("Persisting auto-disable failed", "error", err)
	}
	o.log.Warnw("Auto-sync disabled after authentication failure")
}

// Status returns the current phase and counters.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := Status{
		Enabled:   o.enabled,
		Syncing:   o.pushing,
		LastError: o.lastErr,
		Pushes:    o.pushes,
		Coalesced: o.coalesced,
		Dropped:   o.dropped,
	}
	if !o.lastPush.IsZero() {
		at := o.lastPush
		s.LastPushAt = &at
	}
	switch {
	case o.pushing:
		s.State = StatePushing
	case o.pending != nil:
		s.State = StateQueued
	case o.timer != nil:
		s.State = StateDebouncePending
	case o.enabled:
		s.State = StateArmed
	default:
		s.State = StateDisabled
	}
	return s
}

// Close stops the timer and the worker. A push in flight is cancelled.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.stopTimerLocked()
	o.mu.Unlock()

	o.cancel()
	o.wg.Wait()
}
