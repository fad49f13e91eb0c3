package tracker

import "time"

// BossStats is the per-boss kill aggregate. TodayKills rolls over lazily:
// the first touch on a day different from LastResetDate zeroes it before
// incrementing.
type BossStats struct {
	TotalKills          int            `json:"totalKills"`
	TodayKills          int            `json:"todayKills"`
	LastResetDate       string         `json:"lastResetDate"`
	LastKillTime        *time.Time     `json:"lastKillTime,omitempty"`
	ChannelDistribution map[string]int `json:"channelDistribution"`
}

func (s *BossStats) clone() *BossStats {
	out := &BossStats{
		TotalKills:          s.TotalKills,
		TodayKills:          s.TodayKills,
		LastResetDate:       s.LastResetDate,
		ChannelDistribution: make(map[string]int, len(s.ChannelDistribution)),
	}
	if s.LastKillTime != nil {
		t := *s.LastKillTime
		out.LastKillTime = &t
	}
	for ch, n := range s.ChannelDistribution {
		out.ChannelDistribution[ch] = n
	}
	return out
}

// PatrolEntry is one append-only liveness-check log line.
type PatrolEntry struct {
	Timestamp time.Time `json:"timestamp"`
	BossName  string    `json:"bossName"`
	Channel   string    `json:"channel"`
	Location  string    `json:"map"`
	Result    string    `json:"result"`
	Note      string    `json:"note,omitempty"`
}

// WebhookConfig holds the notification sink destinations. Legacy is honored
// only while Unified is unset.
type WebhookConfig struct {
	PerBoss    map[string]string `json:"individualBossWebhooks"`
	Unified    string            `json:"unifiedWebhook"`
	Legacy     string            `json:"userWebhook"`
	Statistics string            `json:"statisticsWebhook"`
}

func (c WebhookConfig) clone() WebhookConfig {
	out := c
	out.PerBoss = make(map[string]string, len(c.PerBoss))
	for name, url := range c.PerBoss {
		out.PerBoss[name] = url
	}
	return out
}

// SyncConfig controls the periodic sync engine. Durations are persisted as
// milliseconds to stay compatible with exports from older installations.
type SyncConfig struct {
	AutoSync       bool   `json:"autoSync"`
	Endpoint       string `json:"endpoint,omitempty"`
	SyncIntervalMS int64  `json:"syncInterval"`
	MaxRetries     int    `json:"maxRetries"`
	RetryDelayMS   int64  `json:"retryDelay"`
	EnableUpload   bool   `json:"enableUpload"`
	EnableDownload bool   `json:"enableDownload"`
}

// DefaultSyncConfig matches the documented defaults: auto sync every 60s,
// three retries spaced 2s apart, both directions enabled.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		AutoSync:       true,
		SyncIntervalMS: 60_000,
		MaxRetries:     3,
		RetryDelayMS:   2_000,
		EnableUpload:   true,
		EnableDownload: true,
	}
}

func (c SyncConfig) Interval() time.Duration {
	if c.SyncIntervalMS <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.SyncIntervalMS) * time.Millisecond
}

func (c SyncConfig) RetryDelay() time.Duration {
	if c.RetryDelayMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

func (c SyncConfig) Retries() int {
	if c.MaxRetries <= 0 {
		return 3
	}
	return c.MaxRetries
}

// ScanRegion is the screen rectangle the OCR ingestion adapter captures.
// Stored verbatim for the external capture pipeline.
type ScanRegion struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// dateKey renders the local calendar date used for lazy daily rollover.
func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
