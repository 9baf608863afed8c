package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ignite/conference-hub/internal/domain"
	"github.com/ignite/conference-hub/internal/metrics"
	"github.com/ignite/conference-hub/internal/pkg/logger"
)

var (
	errQueueFull = errors.New("notification queue full")
	errStopped   = errors.New("notification dispatcher stopped")
)

// DispatcherConfig sizes the delivery queue.
type DispatcherConfig struct {
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
	SendTimeout time.Duration `yaml:"send_timeout"`
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1000
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 15 * time.Second
	}
	return c
}

// Dispatcher renders and sends notifications on background workers.
// Enqueue never blocks: when the queue is full the notification is dropped
// and counted as failed.
type Dispatcher struct {
	cfg      DispatcherConfig
	renderer *Renderer
	sender   Sender
	metrics  *metrics.Metrics
	log      *logger.Logger

	queue   chan domain.Notification
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

// NewDispatcher creates a dispatcher. Call Start before enqueueing.
func NewDispatcher(cfg DispatcherConfig, renderer *Renderer, sender Sender, m *metrics.Metrics) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		cfg:      cfg,
		renderer: renderer,
		sender:   sender,
		metrics:  m,
		log:      logger.With("component", "notify"),
		queue:    make(chan domain.Notification, cfg.QueueSize),
	}
}

// Start launches the workers. They exit once Stop drains the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work(ctx)
	}
}

// Enqueue queues n for delivery.
func (d *Dispatcher) Enqueue(n domain.Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.log.Warn("notification dropped: dispatcher stopped", "recipient", n.Recipient, "template", n.Template)
		d.metrics.ObserveNotification(n.Template, errStopped)
		return
	}
	select {
	case d.queue <- n:
	default:
		d.log.Warn("notification dropped: queue full", "recipient", n.Recipient, "template", n.Template)
		d.metrics.ObserveNotification(n.Template, errQueueFull)
	}
}

// Stop refuses new notifications and waits for queued ones to be sent.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for n := range d.queue {
		err := d.deliver(ctx, n)
		d.metrics.ObserveNotification(n.Template, err)
		if err != nil {
			d.log.Error("notification failed", "recipient", n.Recipient, "template", n.Template, "error", err)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n domain.Notification) error {
	rendered, err := d.renderer.Render(n)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.SendTimeout)
	defer cancel()
	return d.sender.Send(ctx, Message{
		To:       n.Recipient,
		ReplyTo:  n.ReplyTo,
		Subject:  rendered.Subject,
		HTML:     rendered.HTML,
		Template: n.Template,
	})
}
