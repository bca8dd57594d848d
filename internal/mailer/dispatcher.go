package mailer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrDispatcherNotStarted = errors.New("mail dispatcher not started")
	ErrDispatcherStopped    = errors.New("mail dispatcher stopped")
)

// Dispatcher delivers messages in the background on a bounded number of workers.
type Dispatcher interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context)
	Enqueue(msg Message) error
	Pending() int
}

type DispatcherConfig struct {
	MaxConcurrent int
	Attempts      int
	RetryDelay    time.Duration
	SendTimeout   time.Duration
	Logger        *logrus.Logger
}

type dispatcher struct {
	cfg       DispatcherConfig
	transport Transport

	sem     chan struct{}
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
	pending int
}

func NewDispatcher(cfg DispatcherConfig, transport Transport) Dispatcher {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &dispatcher{
		cfg:       cfg,
		transport: transport,
		sem:       make(chan struct{}, cfg.MaxConcurrent),
	}
}

// Start readies the dispatcher. Deliveries keep ctx's values but not its
// cancellation; only Shutdown cancels them.
func (d *dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx != nil {
		return errors.New("mail dispatcher already started")
	}
	d.ctx, d.cancel = context.WithCancel(context.WithoutCancel(ctx))
	d.cfg.Logger.Infof("mail dispatcher started, workers: %d", d.cfg.MaxConcurrent)
	return nil
}

// Shutdown stops accepting messages and waits for queued ones until ctx is done,
// after which outstanding deliveries are cancelled.
func (d *dispatcher) Shutdown(ctx context.Context) {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		d.cfg.Logger.Warnf("mail dispatcher drain timed out, dropping %d messages", d.Pending())
		if d.cancel != nil {
			d.cancel()
		}
		<-done
	}
	if d.cancel != nil {
		d.cancel()
	}
	d.cfg.Logger.Info("mail dispatcher stopped")
}

func (d *dispatcher) Enqueue(msg Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.stopped:
		return ErrDispatcherStopped
	case d.ctx == nil:
		return ErrDispatcherNotStarted
	}
	d.pending++
	d.wg.Add(1)
	go d.run(msg)
	return nil
}

func (d *dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

func (d *dispatcher) run(msg Message) {
	defer d.wg.Done()
	defer func() {
		d.mu.Lock()
		d.pending--
		d.mu.Unlock()
	}()

	logger := d.cfg.Logger.WithFields(logrus.Fields{"message_id": msg.ID, "kind": msg.Kind})

	select {
	case <-d.ctx.Done():
		logger.Warn("dispatcher stopped before delivery")
		return
	case d.sem <- struct{}{}:
		defer func() { <-d.sem }()
	}

	for attempt := 1; attempt <= d.cfg.Attempts; attempt++ {
		err := d.send(msg)
		if err == nil {
			logger.Debug("message delivered")
			return
		}
		logger.WithField("attempt", attempt).Warnf("deliver message: %v", err)
		if attempt == d.cfg.Attempts {
			break
		}
		select {
		case <-d.ctx.Done():
			return
		case <-time.After(d.cfg.RetryDelay):
		}
	}
	logger.Error("message dropped after retries")
}

func (d *dispatcher) send(msg Message) error {
	ctx, cancel := context.WithTimeout(d.ctx, d.cfg.SendTimeout)
	defer cancel()
	return d.transport.Send(ctx, msg)
}

var _ Dispatcher = (*dispatcher)(nil)
