// Package syncengine reconciles the local record store with a shared remote
// store. Each cycle pushes the local active set tagged with the
// installation identifier, then pulls the remote set and merges it with
// last-write-wins semantics. Cycles are single-flight: a tick firing while
// a cycle is still running is skipped, never queued.
package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bosswatch/bosswatch/internal/tracker"
)

var ErrNotConfigured = errors.New("sync endpoint not configured")

type Syncer struct {
	store  *tracker.Store
	logger zerolog.Logger
	client *http.Client
	now    func() time.Time

	mu      sync.Mutex
	syncing bool
	status  Status
}

// Status is a snapshot of the engine's recent activity for the admin API.
type Status struct {
	LastSyncTime   *time.Time `json:"lastSyncTime,omitempty"`
	LastError      string     `json:"lastError,omitempty"`
	LastUploaded   int        `json:"lastUploaded"`
	LastDownloaded int        `json:"lastDownloaded"`
	LastApplied    int        `json:"lastApplied"`
	Cycles         int64      `json:"cycles"`
	SkippedCycles  int64      `json:"skippedCycles"`
	InProgress     bool       `json:"inProgress"`
}

type Options struct {
	Logger     zerolog.Logger
	HTTPClient *http.Client
	Now        func() time.Time
}

func New(store *tracker.Store, opts Options) *Syncer {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Syncer{
		store:  store,
		logger: opts.Logger,
		client: client,
		now:    now,
	}
}

// Run drives periodic sync until ctx is done. The interval and the
// auto-sync toggle are re-read from the store each tick, so configuration
// changes take effect without a restart.
func (s *Syncer) Run(ctx context.Context) {
	for {
		interval := s.store.SyncConfig().Interval()
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		if !s.store.SyncConfig().AutoSync {
			continue
		}
		if _, err := s.TrySyncOnce(ctx); err != nil && !errors.Is(err, ErrNotConfigured) {
			s.logger.Warn().Err(err).Msg("sync cycle failed")
		}
	}
}

// TrySyncOnce runs one sync cycle unless a cycle is already in flight, in
// which case it returns ran=false without waiting.
func (s *Syncer) TrySyncOnce(ctx context.Context) (ran bool, err error) {
	s.mu.Lock()
	if s.syncing {
		s.status.SkippedCycles++
		s.mu.Unlock()
		skippedTotal.Inc()
		return false, nil
	}
	s.syncing = true
	s.status.InProgress = true
	s.mu.Unlock()

	uploaded, downloaded, applied := 0, 0, 0
	defer func() {
		finished := s.now()
		s.mu.Lock()
		s.syncing = false
		s.status.InProgress = false
		s.status.LastSyncTime = &finished
		s.status.Cycles++
		s.status.LastUploaded = uploaded
		s.status.LastDownloaded = downloaded
		s.status.LastApplied = applied
		if err != nil {
			s.status.LastError = err.Error()
			cyclesTotal.WithLabelValues("error").Inc()
		} else {
			s.status.LastError = ""
			cyclesTotal.WithLabelValues("ok").Inc()
		}
		s.mu.Unlock()
	}()

	cfg := s.store.SyncConfig()
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return true, ErrNotConfigured
	}
	installation := s.store.InstallationID()

	if cfg.EnableUpload {
		uploaded, err = s.upload(ctx, cfg, endpoint, installation)
		if err != nil {
			return true, fmt.Errorf("upload: %w", err)
		}
		uploadedTotal.Add(float64(uploaded))
	}
	if cfg.EnableDownload {
		downloaded, applied, err = s.download(ctx, cfg, endpoint, installation)
		if err != nil {
			return true, fmt.Errorf("download: %w", err)
		}
		appliedTotal.Add(float64(applied))
	}
	s.logger.Debug().
		Int("uploaded", uploaded).
		Int("downloaded", downloaded).
		Int("applied", applied).
		Msg("sync cycle complete")
	return true, nil
}

// Status returns a copy of the engine status.
func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Syncer) upload(ctx context.Context, cfg tracker.SyncConfig, endpoint, installation string) (int, error) {
	records := s.store.Records()
	if len(records) == 0 {
		return 0, nil
	}
	for i := range records {
		records[i].Recorder = installation
	}
	data, err := json.Marshal(records)
	if err != nil {
		return 0, err
	}
	resp, err := s.doAction(ctx, cfg, endpoint, url.Values{
		"action": {"batchSync"},
		"data":   {string(data)},
	})
	if err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, fmt.Errorf("remote rejected batch: %s", resp.Message)
	}
	return len(records), nil
}

func (s *Syncer) download(ctx context.Context, cfg tracker.SyncConfig, endpoint, installation string) (downloaded, applied int, err error) {
	resp, err := s.doAction(ctx, cfg, endpoint, url.Values{"action": {"getActiveRecords"}})
	if err != nil {
		return 0, 0, err
	}
	if !resp.Success {
		return 0, 0, fmt.Errorf("remote refused download: %s", resp.Message)
	}
	downloaded = len(resp.Records)
	// Records tagged with our own identifier are reflections of a prior
	// upload; merging them back would duplicate state.
	foreign := resp.Records[:0]
	for _, r := range resp.Records {
		if r.Recorder == installation {
			continue
		}
		foreign = append(foreign, r)
	}
	applied = s.store.MergeRemoteRecords(foreign)
	return downloaded, applied, nil
}

type syncResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	Records []tracker.Record `json:"records,omitempty"`
}

// doAction issues one remote call with the fixed-delay retry policy.
// Network errors, 429s, and 5xx responses are retried up to the configured
// bound; other failures abort the cycle immediately.
func (s *Syncer) doAction(ctx context.Context, cfg tracker.SyncConfig, endpoint string, params url.Values) (*syncResponse, error) {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	target := endpoint + sep + params.Encode()

	attempts := cfg.Retries()
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := waitWithContext(ctx, cfg.RetryDelay()); err != nil {
				return nil, err
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		_ = resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("remote status %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("remote status %d", resp.StatusCode)
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}
		var parsed syncResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &parsed, nil
	}
	return nil, fmt.Errorf("gave up after %d attempts: %w", attempts, lastErr)
}

func waitWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
