// Package httpapi exposes the tracker over REST plus a websocket live feed
// and a small HTML dashboard. Handlers map the tracker's sentinel errors to
// status codes; notification fan-out happens after the store commit and
// never affects the response.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/bosswatch/bosswatch/internal/backup"
	"github.com/bosswatch/bosswatch/internal/catalog"
	"github.com/bosswatch/bosswatch/internal/notify"
	"github.com/bosswatch/bosswatch/internal/syncengine"
	"github.com/bosswatch/bosswatch/internal/tracker"
)

// Notifier receives committed records for fan-out. Satisfied by
// *notify.Dispatcher; nil disables notifications.
type Notifier interface {
	DispatchKill(boss catalog.Boss, rec tracker.Record)
	DispatchDigest()
}

type ServerOptions struct {
	// Catalog supplies the current catalog; a hot-reload watcher may swap
	// it between requests.
	Catalog func() *catalog.Catalog
	// Notifier and Syncer are optional.
	Notifier     Notifier
	Syncer       *syncengine.Syncer
	Logger       zerolog.Logger
	MaxBodyBytes int64
	Now          func() time.Time
}

type Server struct {
	store    *tracker.Store
	catalog  func() *catalog.Catalog
	notifier Notifier
	syncer   *syncengine.Syncer
	logger   zerolog.Logger
	now      func() time.Time
	maxBody  int64
	metrics  http.Handler
}

func NewServer(store *tracker.Store, opts ServerOptions) *Server {
	if opts.Catalog == nil {
		fixed := catalog.Default()
		opts.Catalog = func() *catalog.Catalog { return fixed }
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{
		store:    store,
		catalog:  opts.Catalog,
		notifier: opts.Notifier,
		syncer:   opts.Syncer,
		logger:   opts.Logger,
		now:      opts.Now,
		maxBody:  opts.MaxBodyBytes,
		metrics:  promhttp.Handler(),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" && r.Method == http.MethodGet {
		s.handleDashboard(w, r)
		return
	}
	if r.URL.Path == "/health" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if r.URL.Path == "/metrics" && r.Method == http.MethodGet {
		s.metrics.ServeHTTP(w, r)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "v1" {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "bosses" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.catalog().All())
	case len(parts) == 2 && parts[1] == "records" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.ClassifiedRecords(s.now()))
	case len(parts) == 2 && parts[1] == "records" && r.Method == http.MethodPost:
		s.handleRecordKill(w, r)
	case len(parts) == 2 && parts[1] == "records" && r.Method == http.MethodDelete:
		s.store.ClearAll()
		w.WriteHeader(http.StatusNoContent)
	case len(parts) == 3 && parts[1] == "records" && r.Method == http.MethodDelete:
		s.handleDeleteRecord(w, parts[2])
	case len(parts) == 4 && parts[1] == "records" && parts[3] == "rearm" && r.Method == http.MethodPost:
		s.handleRearm(w, parts[2])
	case len(parts) == 4 && parts[1] == "records" && parts[3] == "patrol" && r.Method == http.MethodPost:
		s.handlePatrol(w, r, parts[2])
	case len(parts) == 2 && parts[1] == "patrols" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Patrols())
	case len(parts) == 2 && parts[1] == "statistics" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Statistics())
	case len(parts) == 3 && parts[1] == "statistics" && parts[2] == "reset" && r.Method == http.MethodPost:
		s.handleStatisticsReset(w, r)
	case len(parts) == 2 && parts[1] == "webhooks" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.Webhooks())
	case len(parts) == 2 && parts[1] == "webhooks" && r.Method == http.MethodPut:
		s.handlePutWebhooks(w, r)
	case len(parts) == 2 && parts[1] == "scan-region" && r.Method == http.MethodGet:
		s.handleGetScanRegion(w)
	case len(parts) == 2 && parts[1] == "scan-region" && r.Method == http.MethodPut:
		s.handlePutScanRegion(w, r)
	case len(parts) == 3 && parts[1] == "sync" && parts[2] == "status" && r.Method == http.MethodGet:
		s.handleSyncStatus(w)
	case len(parts) == 3 && parts[1] == "sync" && parts[2] == "trigger" && r.Method == http.MethodPost:
		s.handleSyncTrigger(w, r)
	case len(parts) == 3 && parts[1] == "sync" && parts[2] == "config" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.store.SyncConfig())
	case len(parts) == 3 && parts[1] == "sync" && parts[2] == "config" && r.Method == http.MethodPut:
		s.handlePutSyncConfig(w, r)
	case len(parts) == 3 && parts[1] == "backup" && parts[2] == "export" && r.Method == http.MethodGet:
		s.handleBackupExport(w, r)
	case len(parts) == 3 && parts[1] == "backup" && parts[2] == "import" && r.Method == http.MethodPost:
		s.handleBackupImport(w, r)
	case len(parts) == 2 && parts[1] == "live" && r.Method == http.MethodGet:
		s.handleLive(w, r)
	default:
		writeError(w, http.StatusNotFound, "not_found", "route not found")
	}
}

type recordKillRequest struct {
	BossName    string `json:"bossName"`
	Channel     string `json:"channel"`
	MapChoice   string `json:"map,omitempty"`
	KillTimeRaw string `json:"killTime,omitempty"`
}

func (s *Server) handleRecordKill(w http.ResponseWriter, r *http.Request) {
	var req recordKillRequest
	if !s.readJSONBody(w, r, &req) {
		return
	}
	rec, err := s.store.RecordKill(tracker.RecordKillInput{
		BossName:       req.BossName,
		Channel:        req.Channel,
		LocationChoice: req.MapChoice,
		KillTimeRaw:    req.KillTimeRaw,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.fanout(rec)
	c := tracker.Classify(rec, s.now())
	writeJSON(w, http.StatusCreated, tracker.ClassifiedRecord{
		Record:      rec,
		Status:      c.Status,
		RemainingMS: c.Remaining.Milliseconds(),
	})
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid record id")
		return
	}
	s.store.DeleteRecord(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRearm(w http.ResponseWriter, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid record id")
		return
	}
	rec, err := s.store.Rearm(id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.fanout(rec)
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handlePatrol(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid record id")
		return
	}
	var req struct {
		Note string `json:"note,omitempty"`
	}
	// The body is optional; chunked requests report no content length, so
	// decide by what was actually read.
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
			return
		}
	}
	rec, err := s.store.Patrol(id, req.Note)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleStatisticsReset(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("scope") {
	case "", "today":
		s.store.ResetTodayStats()
	case "all":
		s.store.ResetAllStats()
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "scope must be today or all")
		return
	}
	writeJSON(w, http.StatusOK, s.store.Statistics())
}

func (s *Server) handlePutWebhooks(w http.ResponseWriter, r *http.Request) {
	var cfg tracker.WebhookConfig
	if !s.readJSONBody(w, r, &cfg) {
		return
	}
	for boss, url := range cfg.PerBoss {
		if url == "" {
			continue
		}
		if err := notify.ValidateWebhookURL(url); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("webhook for %s: %v", boss, err))
			return
		}
	}
	for name, url := range map[string]string{
		"unifiedWebhook":    cfg.Unified,
		"userWebhook":       cfg.Legacy,
		"statisticsWebhook": cfg.Statistics,
	} {
		if url == "" {
			continue
		}
		if err := notify.ValidateWebhookURL(url); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("%s: %v", name, err))
			return
		}
	}
	s.store.SetWebhooks(cfg)
	writeJSON(w, http.StatusOK, s.store.Webhooks())
}

func (s *Server) handleGetScanRegion(w http.ResponseWriter) {
	region := s.store.ScanRegion()
	if region == nil {
		writeError(w, http.StatusNotFound, "not_found", "scan region not configured")
		return
	}
	writeJSON(w, http.StatusOK, region)
}

func (s *Server) handlePutScanRegion(w http.ResponseWriter, r *http.Request) {
	var region tracker.ScanRegion
	if !s.readJSONBody(w, r, &region) {
		return
	}
	if region.Width <= 0 || region.Height <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "scan region needs positive width and height")
		return
	}
	s.store.SetScanRegion(&region)
	writeJSON(w, http.StatusOK, s.store.ScanRegion())
}

func (s *Server) handleSyncStatus(w http.ResponseWriter) {
	if s.syncer == nil {
		writeError(w, http.StatusNotFound, "not_found", "sync engine not running")
		return
	}
	writeJSON(w, http.StatusOK, s.syncer.Status())
}

func (s *Server) handleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		writeError(w, http.StatusNotFound, "not_found", "sync engine not running")
		return
	}
	ran, err := s.syncer.TrySyncOnce(r.Context())
	if !ran {
		writeError(w, http.StatusConflict, "sync_in_progress", "a sync cycle is already running")
		return
	}
	if err != nil {
		if errors.Is(err, syncengine.ErrNotConfigured) {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "sync_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.syncer.Status())
}

func (s *Server) handlePutSyncConfig(w http.ResponseWriter, r *http.Request) {
	var cfg tracker.SyncConfig
	if !s.readJSONBody(w, r, &cfg) {
		return
	}
	s.store.SetSyncConfig(cfg)
	writeJSON(w, http.StatusOK, s.store.SyncConfig())
}

func (s *Server) handleBackupExport(w http.ResponseWriter, r *http.Request) {
	var (
		doc backup.Document
		err error
	)
	switch r.URL.Query().Get("type") {
	case "", "boss":
		doc, err = backup.ExportBoss(s.store, s.now())
	case "webhook":
		doc, err = backup.ExportWebhooks(s.store, s.now())
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "type must be boss or webhook")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleBackupImport(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	result, err := backup.Import(s.store, body)
	if err != nil {
		if errors.Is(err, backup.ErrInvalidBackup) {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// fanout kicks the notification side channel for a committed record.
// Failures inside the dispatcher are logged there and never reach the
// response.
func (s *Server) fanout(rec tracker.Record) {
	if s.notifier == nil {
		return
	}
	boss, ok := s.catalog().Lookup(rec.BossName)
	if !ok {
		return
	}
	s.notifier.DispatchKill(boss, rec)
	s.notifier.DispatchDigest()
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tracker.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, tracker.ErrInvalidInput), errors.Is(err, tracker.ErrUnknownBoss):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBody+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return nil, false
	}
	if int64(len(body)) > s.maxBody {
		writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body exceeds limit")
		return nil, false
	}
	return body, true
}

func (s *Server) readJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, ok := s.readBody(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
