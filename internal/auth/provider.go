// Package auth holds the bearer credential used to reach the remote
// spreadsheet. The record is persisted encrypted in the settings table,
// cleared once it expires, and can be refreshed from a token file written by
// an external OAuth helper.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"ledgersync/internal/logger"
	"ledgersync/internal/models"
)

// DefaultPollInterval is how often Watch checks for expiry.
const DefaultPollInterval = time.Minute

// ErrInvalidRecord is returned by Set for a record without a token or one
// that has already expired.
var ErrInvalidRecord = errors.New("auth: credential record is missing a token or already expired")

// User is the profile attached to a credential.
type User struct {
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// Record is the persisted credential. ExpiresAt is in epoch milliseconds.
type Record struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	AccessToken     string `json:"accessToken"`
	ExpiresAt       int64  `json:"expiresAt"`
	User            *User  `json:"user,omitempty"`
}

// IsValid reports whether a token expiring at expiresAt (epoch ms) is still
// usable at now. The comparison is strict.
func IsValid(expiresAt int64, now time.Time) bool {
	return now.UnixMilli() < expiresAt
}

// Valid reports whether r carries a usable token at now.
func (r Record) Valid(now time.Time) bool {
	return r.AccessToken != "" && IsValid(r.ExpiresAt, now)
}

// SettingsStore is the key-value table the record is kept in.
type SettingsStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Options tunes a Provider.
type Options struct {
	PollInterval time.Duration
	// TokenFile, when set, is watched for records written by a token helper.
	TokenFile string
	Now       func() time.Time
}

// Provider owns the current credential.
type Provider struct {
	store  SettingsStore
	sealer *Sealer
	opts   Options
	log    *zap.SugaredLogger

	mu        sync.RWMutex
	record    *Record
	listeners []func()
}

// NewProvider creates a Provider that seals records with secret.
func NewProvider(store SettingsStore, secret string, opts Options) (*Provider, error) {
	sealer, err := NewSealer(secret)
	if err != nil {
		return nil, err
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Provider{
		store:  store,
		sealer: sealer,
		opts:   opts,
		log:    logger.Named("auth"),
	}, nil
}

// Current returns the record if one is held and still valid.
func (p *Provider) Current() (Record, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.record == nil || !p.record.Valid(p.opts.Now()) {
		return Record{}, false
	}
	return *p.record, true
}

// AccessToken returns the bearer token when the record is valid.
func (p *Provider) AccessToken() (string, bool) {
	rec, ok := p.Current()
	return rec.AccessToken, ok
}

// OnExpire registers fn to run after Watch clears an expired record.
func (p *Provider) OnExpire(fn func()) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Set persists rec and makes it current.
func (p *Provider) Set(ctx context.Context, rec Record) error {
	if !rec.Valid(p.opts.Now()) {
		return ErrInvalidRecord
	}
	rec.IsAuthenticated = true

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}
	sealed, err := p.sealer.Seal(raw)
	if err != nil {
		return fmt.Errorf("sealing credential: %w", err)
	}
	if err := p.store.Set(ctx, models.SettingGoogleAuth, sealed); err != nil {
		return err
	}

	p.mu.Lock()
	p.record = &rec
	p.mu.Unlock()
	p.log.Infow("Credential stored", "expires_at", time.UnixMilli(rec.ExpiresAt).UTC())
	return nil
}

// Clear drops the current record and its persisted copy.
func (p *Provider) Clear(ctx context.Context) error {
	p.mu.Lock()
	p.record = nil
	p.mu.Unlock()
	if err := p.store.Delete(ctx, models.SettingGoogleAuth); err != nil {
		return err
	}
	p.log.Infow("Credential cleared")
	return nil
}

// Restore loads the persisted record. An expired or unreadable record is
// removed.
func (p *Provider) Restore(ctx context.Context) error {
	sealed, ok, err := p.store.Get(ctx, models.SettingGoogleAuth)
	if err != nil || !ok {
		return err
	}

	raw, err := p.sealer.Open(sealed)
	if err != nil {
		p.log.Warnw("Stored credential unreadable, discarding", "error", err)
		return p.Clear(ctx)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		p.log.Warnw("Stored credential malformed, discarding", "error", err)
		return p.Clear(ctx)
	}
	if !rec.Valid(p.opts.Now()) {
		p.log.Infow("Stored credential expired")
		return p.Clear(ctx)
	}

	p.mu.Lock()
	p.record = &rec
	p.mu.Unlock()
	return nil
}

// LoadTokenFile reads a record from path and stores it.
func (p *Provider) LoadTokenFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading token file: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return fmt.Errorf("parsing token file: %w", err)
	}
	return p.Set(ctx, rec)
}

// Watch clears the record once it expires and, when a token file is
// configured, picks up every record written to it. It blocks until ctx is
// done.
func (p *Provider) Watch(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	var watchErrs <-chan error
	if p.opts.TokenFile != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("creating token file watcher: %w", err)
		}
		defer watcher.Close()
		// The directory is watched so atomic replacements are seen.
		if err := watcher.Add(filepath.Dir(p.opts.TokenFile)); err != nil {
			return fmt.Errorf("watching token file: %w", err)
		}
		events, watchErrs = watcher.Events, watcher.Errors

		if _, err := os.Stat(p.opts.TokenFile); err == nil {
			p.reloadTokenFile(ctx)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.checkExpiry(ctx)
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) == filepath.Clean(p.opts.TokenFile) && (ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				p.reloadTokenFile(ctx)
			}
		case err, ok := <-watchErrs:
			if !ok {
				return nil
			}
			p.log.Warnw("Token file watcher error", "error", err)
		}
	}
}

func (p *Provider) reloadTokenFile(ctx context.Context) {
	if err := p.LoadTokenFile(ctx, p.opts.TokenFile); err != nil {
		p.log.Warnw("Token file ignored", "path", p.opts.TokenFile, "error", err)
	}
}

func (p *Provider) checkExpiry(ctx context.Context) {
	p.mu.RLock()
	expired := p.record != nil && !p.record.Valid(p.opts.Now())
	listeners := append([]func(){}, p.listeners...)
	p.mu.RUnlock()
	if !expired {
		return
	}

	p.log.Infow("Credential expired")
	if err := p.Clear(ctx); err != nil {
		p.log.Errorw("Clearing expired credential failed", "error", err)
	}
	for _, fn := range listeners {
		fn()
	}
}
