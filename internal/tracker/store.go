// Package tracker owns the authoritative respawn-record state: the active
// record set, the patrol log, and the kill statistics, persisted through a
// pluggable StateBackend. All mutations persist synchronously before they
// return; notification and sync side effects happen outside this package
// and never roll back committed state.
package tracker

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bosswatch/bosswatch/internal/catalog"
	"github.com/bosswatch/bosswatch/internal/ingest"
)

const defaultPatrolRetention = 500

// patrolResultPending is the outcome note recorded for a patrol that found
// the boss not yet respawned.
const patrolResultPending = "未重生"

type Store struct {
	catalog func() *catalog.Catalog
	backend StateBackend
	logger  zerolog.Logger
	now     func() time.Time

	mu              sync.RWMutex
	records         []Record
	patrols         []PatrolEntry
	stats           map[string]*BossStats
	scanRegion      *ScanRegion
	webhooks        WebhookConfig
	syncCfg         SyncConfig
	installationID  string
	appliedImports  map[string]struct{}
	lastID          int64
	patrolRetention int
}

type StoreOptions struct {
	Catalog *catalog.Catalog
	// CatalogProvider supplies the current catalog on each use; a hot-reload
	// watcher may swap it at any time. Takes precedence over Catalog.
	CatalogProvider func() *catalog.Catalog
	// StateBackend defaults to an in-memory backend.
	StateBackend StateBackend
	Logger       zerolog.Logger
	// Now supplies the clock; defaults to time.Now. Tests inject fixed
	// instants here.
	Now func() time.Time
	// PatrolRetention caps the patrol log length; oldest entries are
	// dropped past the cap. Defaults to 500.
	PatrolRetention int
}

func NewStore(opts StoreOptions) (*Store, error) {
	catalogProvider := opts.CatalogProvider
	if catalogProvider == nil {
		if opts.Catalog == nil {
			return nil, fmt.Errorf("%w: catalog is required", ErrInvalidInput)
		}
		fixed := opts.Catalog
		catalogProvider = func() *catalog.Catalog { return fixed }
	}
	backend := opts.StateBackend
	if backend == nil {
		backend = NewInMemoryStateBackend()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	retention := opts.PatrolRetention
	if retention <= 0 {
		retention = defaultPatrolRetention
	}
	s := &Store{
		catalog:         catalogProvider,
		backend:         backend,
		logger:          opts.Logger,
		now:             now,
		stats:           map[string]*BossStats{},
		syncCfg:         DefaultSyncConfig(),
		appliedImports:  map[string]struct{}{},
		patrolRetention: retention,
	}
	state, err := backend.Load()
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	if state != nil {
		for _, slice := range state.decodeWarnings {
			s.logger.Warn().Str("slice", slice).Msg("corrupt persisted state, reset to empty")
		}
		s.records = state.Records
		s.patrols = state.Patrols
		if state.Stats != nil {
			s.stats = state.Stats
		}
		s.scanRegion = state.ScanRegion
		s.webhooks = state.Webhooks
		if state.Sync.SyncIntervalMS != 0 || state.Sync.Endpoint != "" {
			s.syncCfg = state.Sync
		}
		s.installationID = state.InstallationID
		for _, id := range state.AppliedImports {
			s.appliedImports[id] = struct{}{}
		}
		s.lastID = state.LastID
		for _, r := range s.records {
			if r.ID > s.lastID {
				s.lastID = r.ID
			}
		}
	}
	if s.installationID == "" {
		s.installationID = "user_" + uuid.NewString()
		s.mu.Lock()
		_ = s.saveLocked()
		s.mu.Unlock()
	}
	return s, nil
}

// RecordKillInput carries one kill observation. KillTimeRaw is an optional
// wall-clock override; LocationChoice is only consulted for bosses with a
// location choice.
type RecordKillInput struct {
	BossName       string
	Channel        string
	LocationChoice string
	KillTimeRaw    string
}

// RecordKill validates and commits a kill observation. A repeat observation
// for the same (boss, channel) overwrites the existing record in place; the
// location does not participate in the key, so a location change on a
// repeat kill updates rather than duplicates.
func (s *Store) RecordKill(in RecordKillInput) (Record, error) {
	cat := s.catalog()
	boss, ok := cat.Lookup(strings.TrimSpace(in.BossName))
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownBoss, in.BossName)
	}
	if strings.TrimSpace(in.Channel) == "" {
		return Record{}, fmt.Errorf("%w: channel is required", ErrInvalidInput)
	}
	channel, err := ingest.NormalizeChannel(in.Channel)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	now := s.now()
	killTime, err := ResolveKillTime(in.KillTimeRaw, now)
	if err != nil {
		return Record{}, err
	}
	location := cat.ResolveLocation(boss, in.LocationChoice)
	windowStart := killTime.Add(time.Duration(boss.MinMinutes) * time.Minute)
	windowEnd := killTime.Add(time.Duration(boss.MaxMinutes) * time.Minute)

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.findByKeyLocked(boss.Name, channel)
	var rec *Record
	if idx >= 0 {
		rec = &s.records[idx]
		rec.Location = location
		rec.KillTime = killTime
		rec.WindowStart = windowStart
		rec.WindowEnd = windowEnd
		rec.Notified = false
		rec.LastPatrolTime = nil
		// A local observation supersedes any synced-in origin.
		rec.Recorder = ""
		rec.SyncedFrom = ""
	} else {
		s.records = append(s.records, Record{
			ID:          s.nextIDLocked(now),
			BossName:    boss.Name,
			Channel:     channel,
			Location:    location,
			KillTime:    killTime,
			WindowStart: windowStart,
			WindowEnd:   windowEnd,
		})
		rec = &s.records[len(s.records)-1]
	}
	s.touchStatsLocked(boss.Name, channel, now)
	_ = s.saveLocked()
	return *rec, nil
}

// Rearm re-times an existing record as if the boss were just killed again.
func (s *Store) Rearm(id int64) (Record, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.findByIDLocked(id)
	if idx < 0 {
		return Record{}, ErrNotFound
	}
	rec := &s.records[idx]
	boss, ok := s.catalog().Lookup(rec.BossName)
	if !ok {
		return Record{}, fmt.Errorf("%w: %q", ErrUnknownBoss, rec.BossName)
	}
	rec.KillTime = now
	rec.WindowStart = now.Add(time.Duration(boss.MinMinutes) * time.Minute)
	rec.WindowEnd = now.Add(time.Duration(boss.MaxMinutes) * time.Minute)
	rec.Notified = false
	rec.LastPatrolTime = nil
	rec.Recorder = ""
	rec.SyncedFrom = ""
	s.touchStatsLocked(rec.BossName, rec.Channel, now)
	_ = s.saveLocked()
	return *rec, nil
}

// Patrol marks a manual liveness check on a record and appends a patrol log
// entry. Valid in any status; the caller decides when it is meaningful.
func (s *Store) Patrol(id int64, note string) (Record, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.findByIDLocked(id)
	if idx < 0 {
		return Record{}, ErrNotFound
	}
	rec := &s.records[idx]
	t := now
	rec.LastPatrolTime = &t
	s.patrols = append(s.patrols, PatrolEntry{
		Timestamp: now,
		BossName:  rec.BossName,
		Channel:   rec.Channel,
		Location:  rec.Location,
		Result:    patrolResultPending,
		Note:      strings.TrimSpace(note),
	})
	s.trimPatrolsLocked()
	_ = s.saveLocked()
	return *rec, nil
}

// DeleteRecord removes a record if present. Deleting an unknown id is a
// no-op, not an error.
func (s *Store) DeleteRecord(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.findByIDLocked(id)
	if idx < 0 {
		return
	}
	s.records = append(s.records[:idx], s.records[idx+1:]...)
	_ = s.saveLocked()
}

// ClearAll empties the active record set. Statistics and the patrol log are
// untouched.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	_ = s.saveLocked()
}

// Records returns a copy of the active record set in insertion order.
func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// ClassifiedRecords returns the active set annotated with live status,
// sorted by window start.
func (s *Store) ClassifiedRecords(now time.Time) []ClassifiedRecord {
	records := s.Records()
	out := make([]ClassifiedRecord, 0, len(records))
	for _, r := range records {
		c := Classify(r, now)
		out = append(out, ClassifiedRecord{
			Record:      r,
			Status:      c.Status,
			RemainingMS: c.Remaining.Milliseconds(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].WindowStart.Before(out[j].WindowStart)
	})
	return out
}

// Patrols returns a copy of the patrol log, oldest first.
func (s *Store) Patrols() []PatrolEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PatrolEntry, len(s.patrols))
	copy(out, s.patrols)
	return out
}

// Statistics returns a deep copy of the per-boss aggregates.
func (s *Store) Statistics() map[string]BossStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]BossStats, len(s.stats))
	for name, st := range s.stats {
		out[name] = *st.clone()
	}
	return out
}

// StatsDigest summarizes today's kills for the statistics sink.
type StatsDigest struct {
	Date           string
	InstallationID string
	TotalToday     int
	PerBoss        map[string]int
}

// TodayDigest computes the daily summary as of now. Entries whose last
// reset date is not today contribute zero.
func (s *Store) TodayDigest(now time.Time) StatsDigest {
	today := dateKey(now)
	s.mu.RLock()
	defer s.mu.RUnlock()
	digest := StatsDigest{
		Date:           today,
		InstallationID: s.installationID,
		PerBoss:        map[string]int{},
	}
	for name, st := range s.stats {
		if st.LastResetDate != today || st.TodayKills == 0 {
			continue
		}
		digest.PerBoss[name] = st.TodayKills
		digest.TotalToday += st.TodayKills
	}
	return digest
}

// ResetTodayStats zeroes today's counters across all entries.
func (s *Store) ResetTodayStats() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.stats {
		st.TodayKills = 0
		st.LastResetDate = dateKey(now)
	}
	_ = s.saveLocked()
}

// ResetAllStats clears every aggregate entirely.
func (s *Store) ResetAllStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = map[string]*BossStats{}
	_ = s.saveLocked()
}

// RefreshDay applies the lazy daily rollover to every entry. Called from
// the midnight timer so counters read zero right after the day boundary
// even before the first kill.
func (s *Store) RefreshDay() {
	now := s.now()
	today := dateKey(now)
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := false
	for _, st := range s.stats {
		if st.LastResetDate != today {
			st.TodayKills = 0
			st.LastResetDate = today
			changed = true
		}
	}
	if changed {
		_ = s.saveLocked()
	}
}

func (s *Store) Webhooks() WebhookConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.webhooks.clone()
}

func (s *Store) SetWebhooks(cfg WebhookConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooks = cfg.clone()
	_ = s.saveLocked()
}

func (s *Store) SyncConfig() SyncConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncCfg
}

func (s *Store) SetSyncConfig(cfg SyncConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncCfg = cfg
	_ = s.saveLocked()
}

func (s *Store) ScanRegion() *ScanRegion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.scanRegion == nil {
		return nil
	}
	region := *s.scanRegion
	return &region
}

func (s *Store) SetScanRegion(region *ScanRegion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if region == nil {
		s.scanRegion = nil
	} else {
		r := *region
		s.scanRegion = &r
	}
	_ = s.saveLocked()
}

// InstallationID is the stable random identifier generated on first start,
// used as the sync origin tag.
func (s *Store) InstallationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.installationID
}

// MergeRemoteRecords applies downloaded records with last-write-wins
// semantics: an unknown (boss, channel) key inserts, a known key is
// replaced only when the remote kill time is strictly newer. Local ids are
// preserved on replacement so id-based operations stay stable across sync.
// Returns the number of records that changed local state.
func (s *Store) MergeRemoteRecords(remote []Record) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	applied := 0
	for _, rr := range remote {
		if strings.TrimSpace(rr.BossName) == "" || strings.TrimSpace(rr.Channel) == "" {
			continue
		}
		idx := s.findByKeyLocked(rr.BossName, rr.Channel)
		if idx < 0 {
			rec := rr
			if rec.SyncedFrom == "" {
				rec.SyncedFrom = "remote"
			}
			// Remote ids are timestamp-derived by another installation and
			// can collide with local ones; a collision would make id-addressed
			// delete/rearm/patrol ambiguous.
			if rec.ID == 0 || s.findByIDLocked(rec.ID) >= 0 {
				rec.ID = s.nextIDLocked(s.now())
			} else if rec.ID > s.lastID {
				s.lastID = rec.ID
			}
			s.records = append(s.records, rec)
			applied++
			continue
		}
		local := &s.records[idx]
		if !rr.KillTime.After(local.KillTime) {
			continue
		}
		id := local.ID
		rec := rr
		rec.ID = id
		if rec.SyncedFrom == "" {
			rec.SyncedFrom = "remote"
		}
		s.records[idx] = rec
		applied++
	}
	if applied > 0 {
		_ = s.saveLocked()
	}
	return applied
}

// ApplyBossBackup merges a backup snapshot into the store. The batch id
// makes the merge idempotent: a batch that was already applied is skipped
// entirely. Returns false when skipped.
func (s *Store) ApplyBossBackup(batchID string, records []Record, patrols []PatrolEntry, stats map[string]BossStats, scan *ScanRegion) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if batchID != "" {
		if _, done := s.appliedImports[batchID]; done {
			return false
		}
	}

	byID := make(map[int64]int, len(s.records))
	for i, r := range s.records {
		byID[r.ID] = i
	}
	for _, br := range records {
		if idx, ok := byID[br.ID]; ok {
			s.records[idx] = br
			continue
		}
		if idx := s.findByKeyLocked(br.BossName, br.Channel); idx >= 0 {
			// Same dedupe key under a different id: the backup wins but the
			// at-most-one-per-key invariant holds.
			br.ID = s.records[idx].ID
			s.records[idx] = br
			continue
		}
		if br.ID > s.lastID {
			s.lastID = br.ID
		}
		s.records = append(s.records, br)
	}

	seen := make(map[string]struct{}, len(s.patrols))
	for _, p := range s.patrols {
		seen[patrolKey(p)] = struct{}{}
	}
	for _, p := range patrols {
		if _, dup := seen[patrolKey(p)]; dup {
			continue
		}
		seen[patrolKey(p)] = struct{}{}
		s.patrols = append(s.patrols, p)
	}
	sort.Slice(s.patrols, func(i, j int) bool {
		return s.patrols[i].Timestamp.Before(s.patrols[j].Timestamp)
	})
	s.trimPatrolsLocked()

	for name, bs := range stats {
		entry, ok := s.stats[name]
		if !ok {
			s.stats[name] = bs.clone()
			continue
		}
		entry.TotalKills += bs.TotalKills
		switch {
		case bs.LastResetDate == entry.LastResetDate:
			entry.TodayKills += bs.TodayKills
		case bs.LastResetDate > entry.LastResetDate:
			entry.TodayKills = bs.TodayKills
			entry.LastResetDate = bs.LastResetDate
		}
		if bs.LastKillTime != nil && (entry.LastKillTime == nil || bs.LastKillTime.After(*entry.LastKillTime)) {
			t := *bs.LastKillTime
			entry.LastKillTime = &t
		}
		if entry.ChannelDistribution == nil {
			entry.ChannelDistribution = map[string]int{}
		}
		for ch, n := range bs.ChannelDistribution {
			entry.ChannelDistribution[ch] += n
		}
	}

	if scan != nil {
		r := *scan
		s.scanRegion = &r
	}
	if batchID != "" {
		s.appliedImports[batchID] = struct{}{}
	}
	_ = s.saveLocked()
	return true
}

func patrolKey(p PatrolEntry) string {
	return p.BossName + "_" + p.Timestamp.UTC().Format(time.RFC3339Nano)
}

func (s *Store) findByKeyLocked(bossName, channel string) int {
	for i, r := range s.records {
		if r.BossName == bossName && r.Channel == channel {
			return i
		}
	}
	return -1
}

func (s *Store) findByIDLocked(id int64) int {
	for i, r := range s.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// nextIDLocked derives an id from the clock, bumped past the last issued id
// so two records created in the same millisecond never collide.
func (s *Store) nextIDLocked(now time.Time) int64 {
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id
}

// touchStatsLocked applies the lazy daily rollover and increments the
// counters for one kill. Called once per RecordKill/Rearm, never per
// notification attempt.
func (s *Store) touchStatsLocked(bossName, channel string, now time.Time) {
	today := dateKey(now)
	entry, ok := s.stats[bossName]
	if !ok {
		entry = &BossStats{
			LastResetDate:       today,
			ChannelDistribution: map[string]int{},
		}
		s.stats[bossName] = entry
	}
	if entry.LastResetDate != today {
		entry.TodayKills = 0
		entry.LastResetDate = today
	}
	entry.TotalKills++
	entry.TodayKills++
	t := now
	entry.LastKillTime = &t
	if entry.ChannelDistribution == nil {
		entry.ChannelDistribution = map[string]int{}
	}
	entry.ChannelDistribution[channel]++
}

func (s *Store) trimPatrolsLocked() {
	if len(s.patrols) <= s.patrolRetention {
		return
	}
	excess := len(s.patrols) - s.patrolRetention
	s.patrols = append([]PatrolEntry(nil), s.patrols[excess:]...)
}

func (s *Store) saveLocked() error {
	state := &persistedState{
		Records:        s.records,
		Patrols:        s.patrols,
		Stats:          s.stats,
		ScanRegion:     s.scanRegion,
		Webhooks:       s.webhooks,
		Sync:           s.syncCfg,
		InstallationID: s.installationID,
		LastID:         s.lastID,
	}
	for id := range s.appliedImports {
		state.AppliedImports = append(state.AppliedImports, id)
	}
	sort.Strings(state.AppliedImports)
	if err := s.backend.Save(state); err != nil {
		s.logger.Error().Err(err).Msg("persist state failed")
		return err
	}
	return nil
}
