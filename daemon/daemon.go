// Package daemon runs the reconciliation loop: on every tick it fetches the current
// address and, when it differs from the last applied one, hands it to the updater.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync/atomic"
	"time"

	"dynosaur/log"
	"dynosaur/updater"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// IPFetcher discovers the current public address.
type IPFetcher interface {
	Fetch(ctx context.Context) (netip.Addr, error)
}

// RecordUpdater makes the subject record point at ip.
type RecordUpdater interface {
	Update(ctx context.Context, ip netip.Addr, subject updater.SubjectRecord) error
}

type State int32

const (
	Idle State = iota
	Running
	ShuttingDown
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting_down"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

var ErrAlreadyStarted = errors.New("daemon already started")

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.Ticker.C
}

func newTimeTicker(d time.Duration) ticker {
	return timeTicker{time.NewTicker(d)}
}

type Daemon struct {
	interval    time.Duration
	subject     updater.SubjectRecord
	fetcher     IPFetcher
	updater     RecordUpdater
	exitOnError bool
	immediate   bool

	registerer prometheus.Registerer
	metrics    *metrics
	state      atomic.Int32

	newTicker func(time.Duration) ticker
	afterTick func(err error)
}

type Option func(*Daemon)

// WithImmediateStart runs the first reconciliation right away instead of after one
// full interval.
func WithImmediateStart() Option {
	return func(d *Daemon) {
		d.immediate = true
	}
}

// WithMetrics registers the daemon's collectors on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(d *Daemon) {
		d.registerer = reg
	}
}

func New(interval time.Duration, subject updater.SubjectRecord, fetcher IPFetcher, recordUpdater RecordUpdater, exitOnError bool, opts ...Option) (*Daemon, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", interval)
	}
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if recordUpdater == nil {
		return nil, errors.New("updater is required")
	}

	d := &Daemon{
		interval:    interval,
		subject:     subject,
		fetcher:     fetcher,
		updater:     recordUpdater,
		exitOnError: exitOnError,
		metrics:     newMetrics(subject),
		newTicker:   newTimeTicker,
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.registerer != nil {
		if err := d.metrics.register(d.registerer); err != nil {
			return nil, fmt.Errorf("failed register metrics: %w", err)
		}
	}

	return d, nil
}

func (d *Daemon) State() State {
	return State(d.state.Load())
}

func (d *Daemon) setState(s State) {
	d.state.Store(int32(s))
}

// Run drives the loop until ctx is cancelled, or until the first error when the
// daemon exits on error. Cancellation always wins: an error from a tick abandoned
// by shutdown is not reported.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return ErrAlreadyStarted
	}

	ctx = log.WithRecord(ctx, d.subject.Type(), d.subject.Name())
	log.S(ctx).Infow("daemon started", "interval", d.interval, "exit_on_error", d.exitOnError, "immediate", d.immediate)

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- d.loop(loopCtx)
	}()

	select {
	case <-ctx.Done():
		d.setState(ShuttingDown)
		log.S(ctx).Infow("shutdown requested, stopping")
		return nil
	case err := <-done:
		if ctx.Err() != nil || err == nil {
			d.setState(ShuttingDown)
			log.S(ctx).Infow("shutdown requested, stopping")
			return nil
		}

		d.setState(Failed)
		log.S(ctx).Errorw("daemon terminated", log.Fatal, zap.Error(err))
		return err
	}
}

// RunOnce performs a single reconciliation with an empty memo.
func (d *Daemon) RunOnce(ctx context.Context) error {
	ctx = log.WithRecord(ctx, d.subject.Type(), d.subject.Name())

	var memo netip.Addr
	return d.tick(ctx, &memo)
}

func (d *Daemon) loop(ctx context.Context) error {
	t := d.newTicker(d.interval)
	defer t.Stop()

	var memo netip.Addr

	if d.immediate {
		if err := d.step(ctx, &memo); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C():
		}

		if err := d.step(ctx, &memo); err != nil {
			return err
		}
	}
}

func (d *Daemon) step(ctx context.Context, memo *netip.Addr) error {
	err := d.tick(ctx, memo)
	if d.afterTick != nil {
		d.afterTick(err)
	}

	if err != nil && d.exitOnError {
		return err
	}
	return nil
}

// tick runs one fetch and, if the address moved, one update. memo is written only
// after the update succeeded so that a failed update is retried next time.
func (d *Daemon) tick(ctx context.Context, memo *netip.Addr) error {
	elapsed := log.Elapsed("elapsed")
	d.metrics.ticks.Inc()

	ip, err := d.fetcher.Fetch(log.SWith(ctx, log.Stage("fetch")))
	if err != nil {
		d.metrics.fetchFailures.Inc()
		log.S(ctx).Errorw("failed fetch ip, skip update", log.Stage("fetch"), zap.Error(err))
		return err
	}

	ip = ip.Unmap()
	if memo.IsValid() && *memo == ip {
		log.S(ctx).Debugw("IP didn't change since last update", log.IP(ip))
		return nil
	}

	if err := d.updater.Update(log.SWith(ctx, log.Stage("update")), ip, d.subject); err != nil {
		d.metrics.updateFailures.Inc()
		log.S(ctx).Errorw("failed update record", log.Stage("update"), log.IP(ip), zap.Error(err))
		return err
	}

	*memo = ip
	d.metrics.updatesApplied.Inc()
	d.metrics.lastUpdate.SetToCurrentTime()

	log.S(ctx).Infow("record updated",
		"name", d.subject.Name(),
		"type", d.subject.Type(),
		log.IP(ip),
		elapsed)

	return nil
}
