// Package notify fans a committed record out to the configured webhook
// sinks: one per-boss destination, a unified destination, a legacy
// single-destination fallback, and a low-frequency statistics digest. Every
// send is best-effort; failures are logged and never surface to the caller.
package notify

import (
	"fmt"
	"sort"
	"time"

	"github.com/bosswatch/bosswatch/internal/catalog"
	"github.com/bosswatch/bosswatch/internal/tracker"
)

const footerText = "楓之谷BOSS重生時間系統"

// Message is one embed-style notification payload.
type Message struct {
	Embeds []Embed `json:"embeds"`
}

type Embed struct {
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Color       int         `json:"color"`
	Fields      []Field     `json:"fields"`
	Timestamp   string      `json:"timestamp"`
	Footer      EmbedFooter `json:"footer"`
}

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

// KillMessage renders the kill notification for a committed record.
func KillMessage(boss catalog.Boss, rec tracker.Record, now time.Time) Message {
	embed := Embed{
		Title:       "⚔️ BOSS擊殺記錄",
		Description: fmt.Sprintf("**%s** 已被擊殺", boss.Name),
		Color:       boss.ColorValue(),
		Fields: []Field{
			{Name: "📺 頻道", Value: rec.Channel, Inline: true},
			{Name: "🗺️ 地圖", Value: rec.Location, Inline: true},
			{
				Name: "⏰ 預計重生時間",
				Value: fmt.Sprintf("%s ~ %s",
					formatClock(rec.WindowStart), formatClock(rec.WindowEnd)),
				Inline: false,
			},
			{Name: "🕒 擊殺時間", Value: formatClock(rec.KillTime), Inline: false},
		},
		Timestamp: now.UTC().Format(time.RFC3339),
		Footer:    EmbedFooter{Text: footerText},
	}
	return Message{Embeds: []Embed{embed}}
}

// DigestMessage renders the daily statistics summary.
func DigestMessage(digest tracker.StatsDigest, now time.Time) Message {
	fields := []Field{
		{Name: "📅 日期", Value: digest.Date, Inline: true},
		{Name: "🔢 今日總擊殺", Value: fmt.Sprintf("%d", digest.TotalToday), Inline: true},
		{Name: "🖥️ 裝置", Value: digest.InstallationID, Inline: false},
	}
	names := make([]string, 0, len(digest.PerBoss))
	for name := range digest.PerBoss {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fields = append(fields, Field{
			Name:   name,
			Value:  fmt.Sprintf("%d 次", digest.PerBoss[name]),
			Inline: true,
		})
	}
	embed := Embed{
		Title:     "📊 每日擊殺統計",
		Color:     0x00CCFF,
		Fields:    fields,
		Timestamp: now.UTC().Format(time.RFC3339),
		Footer:    EmbedFooter{Text: footerText + " - 每日統計"},
	}
	return Message{Embeds: []Embed{embed}}
}

// formatClock renders an instant as "M/D HH:MM" in its own location.
func formatClock(t time.Time) string {
	return fmt.Sprintf("%d/%d %02d:%02d", int(t.Month()), t.Day(), t.Hour(), t.Minute())
}
