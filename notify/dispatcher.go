package notify

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DispatcherConfig sizes the worker pool of a Dispatcher.
type DispatcherConfig struct {
	Workers        int
	Buffer         int
	HandoffTimeout time.Duration
	DeliverTimeout time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Buffer < 0 {
		c.Buffer = 0
	}
	if c.HandoffTimeout < 0 {
		c.HandoffTimeout = 0
	}
	if c.DeliverTimeout <= 0 {
		c.DeliverTimeout = 10 * time.Second
	}
	return c
}

type job struct {
	ctx context.Context
	n   Notification
}

// Dispatcher hands notifications to a pool of workers. When the buffer stays
// full for longer than the handoff timeout the caller delivers inline, so a
// notification is never dropped while the dispatcher is open.
type Dispatcher struct {
	sink   Sink
	cfg    DispatcherConfig
	logger *log.Logger

	mu     sync.RWMutex
	jobs   chan job
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(sink Sink, cfg DispatcherConfig, logger *log.Logger) *Dispatcher {
	if sink == nil {
		panic("notify.NewDispatcher: sink is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	cfg = cfg.withDefaults()
	d := &Dispatcher{
		sink:   sink,
		cfg:    cfg,
		logger: logger,
		jobs:   make(chan job, cfg.Buffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	logger.Infof("notification dispatcher started, workers: %d, buffer: %d, handoff: %v", cfg.Workers, cfg.Buffer, cfg.HandoffTimeout)
	return d
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for j := range d.jobs {
		d.deliver(j, id)
	}
}

func (d *Dispatcher) deliver(j job, worker int) {
	ctx, cancel := context.WithTimeout(j.ctx, d.cfg.DeliverTimeout)
	defer cancel()
	if err := d.sink.Deliver(ctx, j.n); err != nil {
		d.logger.Errorf("notification delivery failed, err: %v, board: %s, level: %s, worker: %d", err, j.n.Board, j.n.Level, worker)
	}
}

// Notify queues n. The caller's cancellation does not abort delivery.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) {
	j := job{ctx: context.WithoutCancel(ctx), n: n}

	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		d.logger.Warnf("notification dropped after close, board: %s, message: %s", n.Board, n.Message)
		return
	}
	ok := trySendNonBlocking(d.jobs, j)
	if !ok && d.cfg.HandoffTimeout > 0 {
		timer := time.NewTimer(d.cfg.HandoffTimeout)
		ok = sendWithTimer(d.jobs, j, timer.C)
		timer.Stop()
	}
	d.mu.RUnlock()

	if !ok {
		d.deliver(j, -1)
	}
}

// Close stops accepting notifications and waits for queued ones to be
// delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func trySendNonBlocking(ch chan<- job, j job) bool {
	select {
	case ch <- j:
		return true
	default:
		return false
	}
}

func sendWithTimer(ch chan<- job, j job, timer <-chan time.Time) bool {
	select {
	case ch <- j:
		return true
	case <-timer:
		return false
	}
}

// Direct delivers synchronously and logs failures.
type Direct struct {
	Sink   Sink
	Logger *log.Logger
}

func (d Direct) Notify(ctx context.Context, n Notification) {
	if err := d.Sink.Deliver(ctx, n); err != nil {
		logger := d.Logger
		if logger == nil {
			logger = log.StandardLogger()
		}
		logger.WithError(err).WithField("board", n.Board).Error("notification delivery failed")
	}
}
