package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bosswatch/bosswatch/internal/catalog"
	"github.com/bosswatch/bosswatch/internal/tracker"
)

type capturedRequest struct {
	path string
	body Message
}

// webhookRecorder is an httptest server collecting webhook posts.
type webhookRecorder struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   int
	server   *httptest.Server
}

func newWebhookRecorder(status int) *webhookRecorder {
	r := &webhookRecorder{status: status}
	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var msg Message
		_ = json.NewDecoder(req.Body).Decode(&msg)
		r.mu.Lock()
		r.requests = append(r.requests, capturedRequest{path: req.URL.Path, body: msg})
		r.mu.Unlock()
		w.WriteHeader(r.status)
	}))
	return r
}

func (r *webhookRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func (r *webhookRecorder) last() capturedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[len(r.requests)-1]
}

func newStore(t *testing.T, now time.Time) *tracker.Store {
	t.Helper()
	s, err := tracker.NewStore(tracker.StoreOptions{
		Catalog: catalog.Default(),
		Now:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestValidateWebhookURL(t *testing.T) {
	if err := ValidateWebhookURL("https://discord.com/api/webhooks/123/token"); err != nil {
		t.Errorf("discord.com url rejected: %v", err)
	}
	if err := ValidateWebhookURL("https://discordapp.com/api/webhooks/123/token"); err != nil {
		t.Errorf("discordapp.com url rejected: %v", err)
	}
	for _, raw := range []string{"", "https://example.com/hook", "http://discord.com/api/webhooks/1/t", "https://discord.com/api/webhooks/"} {
		if err := ValidateWebhookURL(raw); !errors.Is(err, ErrInvalidWebhookURL) {
			t.Errorf("ValidateWebhookURL(%q) = %v, want ErrInvalidWebhookURL", raw, err)
		}
	}
}

func TestWebhookSinkSend(t *testing.T) {
	recorder := newWebhookRecorder(http.StatusNoContent)
	defer recorder.server.Close()

	sink, err := NewWebhookSink("unified", recorder.server.URL, recorder.server.Client())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)
	boss, _ := catalog.Default().Lookup("巴洛古")
	rec := tracker.Record{
		BossName:    boss.Name,
		Channel:     "3",
		Location:    boss.DefaultLocation(),
		KillTime:    now,
		WindowStart: now.Add(60 * time.Minute),
		WindowEnd:   now.Add(80 * time.Minute),
	}
	if err := sink.Send(context.Background(), KillMessage(boss, rec, now)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if recorder.count() != 1 {
		t.Fatalf("request count = %d", recorder.count())
	}
	got := recorder.last().body
	if len(got.Embeds) != 1 {
		t.Fatalf("embed count = %d", len(got.Embeds))
	}
	embed := got.Embeds[0]
	if embed.Color != boss.ColorValue() {
		t.Errorf("embed color = %d, want %d", embed.Color, boss.ColorValue())
	}
	if len(embed.Fields) != 4 {
		t.Errorf("field count = %d, want 4", len(embed.Fields))
	}
	if embed.Fields[0].Value != "3" || !embed.Fields[0].Inline {
		t.Errorf("channel field = %+v", embed.Fields[0])
	}
	if embed.Footer.Text == "" || embed.Timestamp == "" {
		t.Error("embed missing footer or timestamp")
	}
}

func TestWebhookSinkNon2xxIsError(t *testing.T) {
	recorder := newWebhookRecorder(http.StatusBadGateway)
	defer recorder.server.Close()

	sink, err := NewWebhookSink("unified", recorder.server.URL, recorder.server.Client())
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.Send(context.Background(), Message{}); err == nil {
		t.Error("expected error for 502 response")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestDispatchKillPerBossAndUnified(t *testing.T) {
	perBoss := newWebhookRecorder(http.StatusOK)
	defer perBoss.server.Close()
	unified := newWebhookRecorder(http.StatusOK)
	defer unified.server.Close()
	legacy := newWebhookRecorder(http.StatusOK)
	defer legacy.server.Close()

	now := time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)
	store := newStore(t, now)
	store.SetWebhooks(tracker.WebhookConfig{
		PerBoss: map[string]string{"巴洛古": perBoss.server.URL},
		Unified: unified.server.URL,
		Legacy:  legacy.server.URL,
	})

	d := NewDispatcher(store, DispatcherOptions{Now: func() time.Time { return now }})
	defer d.Close()

	boss, _ := catalog.Default().Lookup("巴洛古")
	rec, err := store.RecordKill(tracker.RecordKillInput{BossName: boss.Name, Channel: "3"})
	if err != nil {
		t.Fatal(err)
	}
	d.DispatchKill(boss, rec)

	waitFor(t, func() bool { return perBoss.count() == 1 && unified.count() == 1 })
	// Legacy is suppressed while the unified webhook is set.
	if legacy.count() != 0 {
		t.Errorf("legacy received %d sends despite unified being set", legacy.count())
	}
}

func TestDispatchKillLegacyFallback(t *testing.T) {
	legacy := newWebhookRecorder(http.StatusOK)
	defer legacy.server.Close()

	now := time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)
	store := newStore(t, now)
	store.SetWebhooks(tracker.WebhookConfig{Legacy: legacy.server.URL})

	d := NewDispatcher(store, DispatcherOptions{Now: func() time.Time { return now }})
	defer d.Close()

	boss, _ := catalog.Default().Lookup("木妖王")
	rec, _ := store.RecordKill(tracker.RecordKillInput{BossName: boss.Name, Channel: "1"})
	d.DispatchKill(boss, rec)

	waitFor(t, func() bool { return legacy.count() == 1 })
}

func TestDispatchKillSwallowsSinkFailure(t *testing.T) {
	failing := newWebhookRecorder(http.StatusInternalServerError)
	defer failing.server.Close()

	now := time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)
	store := newStore(t, now)
	store.SetWebhooks(tracker.WebhookConfig{Unified: failing.server.URL})

	d := NewDispatcher(store, DispatcherOptions{Now: func() time.Time { return now }})
	boss, _ := catalog.Default().Lookup("巴洛古")
	rec, _ := store.RecordKill(tracker.RecordKillInput{BossName: boss.Name, Channel: "3"})

	// Must not panic or block; the failure is logged and discarded.
	d.DispatchKill(boss, rec)
	waitFor(t, func() bool { return failing.count() == 1 })
	d.Close()

	if got := len(store.Records()); got != 1 {
		t.Errorf("failed notification affected committed state: %d records", got)
	}
}

func TestDispatchDigest(t *testing.T) {
	stats := newWebhookRecorder(http.StatusOK)
	defer stats.server.Close()

	now := time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)
	store := newStore(t, now)
	store.SetWebhooks(tracker.WebhookConfig{Statistics: stats.server.URL})

	d := NewDispatcher(store, DispatcherOptions{Now: func() time.Time { return now }})
	defer d.Close()

	// Nothing killed today: digest is skipped entirely.
	d.DispatchDigest()
	time.Sleep(50 * time.Millisecond)
	if stats.count() != 0 {
		t.Fatalf("digest sent with zero kills: %d", stats.count())
	}

	store.RecordKill(tracker.RecordKillInput{BossName: "巴洛古", Channel: "3"})
	d.DispatchDigest()
	waitFor(t, func() bool { return stats.count() == 1 })

	embed := stats.last().body.Embeds[0]
	if embed.Title != "📊 每日擊殺統計" {
		t.Errorf("digest title = %q", embed.Title)
	}
}

func TestDispatchAfterCloseIsNoop(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)
	store := newStore(t, now)
	d := NewDispatcher(store, DispatcherOptions{})
	d.Close()
	d.Close() // idempotent

	boss, _ := catalog.Default().Lookup("巴洛古")
	d.DispatchKill(boss, tracker.Record{BossName: boss.Name, Channel: "1"})
	d.DispatchDigest()
}
