package tracker

import "time"

// Record is one active respawn timer. At most one record exists per
// (bossName, channel) pair; a repeat kill overwrites the existing record in
// place. JSON field names follow the sync wire format.
type Record struct {
	ID             int64      `json:"id"`
	BossName       string     `json:"bossName"`
	Channel        string     `json:"channel"`
	Location       string     `json:"map"`
	KillTime       time.Time  `json:"deathTime"`
	WindowStart    time.Time  `json:"respawnMin"`
	WindowEnd      time.Time  `json:"respawnMax"`
	LastPatrolTime *time.Time `json:"lastPatrolTime,omitempty"`
	Notified       bool       `json:"notified"`

	// Recorder is set on upload to the installation that observed the kill;
	// SyncedFrom marks records merged in from a remote peer so they can be
	// told apart from locally observed ones.
	Recorder   string `json:"recorder,omitempty"`
	SyncedFrom string `json:"syncedFrom,omitempty"`
}

// Status is the lifecycle phase of a record relative to its respawn window.
type Status string

const (
	// StatusWaiting: now is before the window opens.
	StatusWaiting Status = "waiting"
	// StatusPossible: now is inside the window (closed at both ends).
	StatusPossible Status = "possible"
	// StatusConfirmed: the window has closed; the boss is overdue.
	StatusConfirmed Status = "confirmed"
)

// Classification pairs a status with its countdown. Remaining counts down
// to the window boundary for waiting/possible and counts up past the window
// end for confirmed.
type Classification struct {
	Status    Status `json:"status"`
	Remaining time.Duration
}

// Classify maps a record and an instant to its lifecycle phase. Pure; safe
// to call from a display tick at any frequency.
func Classify(r Record, now time.Time) Classification {
	switch {
	case now.Before(r.WindowStart):
		return Classification{Status: StatusWaiting, Remaining: r.WindowStart.Sub(now)}
	case !now.After(r.WindowEnd):
		return Classification{Status: StatusPossible, Remaining: r.WindowEnd.Sub(now)}
	default:
		return Classification{Status: StatusConfirmed, Remaining: now.Sub(r.WindowEnd)}
	}
}

// ClassifiedRecord is a record annotated with its live status for display.
type ClassifiedRecord struct {
	Record
	Status      Status `json:"status"`
	RemainingMS int64  `json:"remainingMs"`
}
