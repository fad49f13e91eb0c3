package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bosswatch/bosswatch/internal/catalog"
	"github.com/bosswatch/bosswatch/internal/tracker"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 64
	sendTimeout      = 10 * time.Second
)

type task struct {
	sink Sink
	kind string
	msg  Message
}

// Dispatcher resolves the sink set for each event and delivers the sends on
// a bounded worker pool. Dispatch methods never block the caller beyond a
// channel hand-off and never return errors: delivery failures are logged
// and counted, nothing more.
type Dispatcher struct {
	store  *tracker.Store
	logger zerolog.Logger
	now    func() time.Time
	client *http.Client

	mu     sync.Mutex
	closed bool
	tasks  chan task
	wg     sync.WaitGroup
}

type DispatcherOptions struct {
	Workers    int
	QueueSize  int
	Logger     zerolog.Logger
	HTTPClient *http.Client
	Now        func() time.Time
}

func NewDispatcher(store *tracker.Store, opts DispatcherOptions) *Dispatcher {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	d := &Dispatcher{
		store:  store,
		logger: opts.Logger,
		now:    now,
		client: opts.HTTPClient,
		tasks:  make(chan task, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// DispatchKill fans a committed kill record out to every configured sink:
// the boss's own webhook, the unified webhook, and the legacy webhook only
// while no unified one is set.
func (d *Dispatcher) DispatchKill(boss catalog.Boss, rec tracker.Record) {
	cfg := d.store.Webhooks()
	msg := KillMessage(boss, rec, d.now())

	type dest struct {
		kind string
		url  string
	}
	dests := make([]dest, 0, 2)
	if url := cfg.PerBoss[boss.Name]; url != "" {
		dests = append(dests, dest{"boss", url})
	}
	if cfg.Unified != "" {
		dests = append(dests, dest{"unified", cfg.Unified})
	} else if cfg.Legacy != "" {
		dests = append(dests, dest{"legacy", cfg.Legacy})
	}
	for _, dst := range dests {
		sink, err := NewWebhookSink(dst.kind, dst.url, d.client)
		if err != nil {
			d.logger.Warn().Err(err).Str("sink", dst.kind).Msg("skipping misconfigured webhook")
			continue
		}
		d.enqueue(task{sink: sink, kind: dst.kind, msg: msg})
	}
}

// DispatchDigest sends the daily statistics summary to the statistics
// webhook. Skipped silently when no webhook is configured or nothing was
// killed today.
func (d *Dispatcher) DispatchDigest() {
	cfg := d.store.Webhooks()
	if cfg.Statistics == "" {
		return
	}
	now := d.now()
	digest := d.store.TodayDigest(now)
	if digest.TotalToday == 0 {
		return
	}
	sink, err := NewWebhookSink("statistics", cfg.Statistics, d.client)
	if err != nil {
		d.logger.Warn().Err(err).Msg("skipping misconfigured statistics webhook")
		return
	}
	d.enqueue(task{sink: sink, kind: "statistics", msg: DigestMessage(digest, now)})
}

func (d *Dispatcher) enqueue(t task) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.tasks <- t:
	default:
		dropsTotal.Inc()
		d.logger.Warn().Str("sink", t.kind).Msg("notification queue full, dropping send")
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.tasks {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := t.sink.Send(ctx, t.msg)
		cancel()
		if err != nil {
			sendsTotal.WithLabelValues(t.kind, "error").Inc()
			d.logger.Warn().Err(err).Str("sink", t.kind).Msg("notification send failed")
			continue
		}
		sendsTotal.WithLabelValues(t.kind, "ok").Inc()
	}
}

// Close drains in-flight sends and stops the workers. Dispatch calls after
// Close are no-ops.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.tasks)
	d.mu.Unlock()
	d.wg.Wait()
}
