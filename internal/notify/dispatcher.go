package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// sendTimeout bounds a single delivery
const sendTimeout = 30 * time.Second

// Dispatcher delivers messages in the background on a bounded pool
type Dispatcher struct {
	sender     Sender
	recipients []string
	log        zerolog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
	// Semaphore limiting concurrent deliveries
	sem chan struct{}
}

// NewDispatcher creates a dispatcher that sends to recipients unless a
// message names its own
func NewDispatcher(sender Sender, recipients []string, workers int, log zerolog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}

	log.Info().Int("workers", workers).Int("recipients", len(recipients)).Msg("Initializing notification dispatcher")

	return &Dispatcher{
		sender:     sender,
		recipients: recipients,
		log:        log.With().Str("component", "dispatcher").Logger(),
		sem:        make(chan struct{}, workers),
	}
}

// Start accepts messages until ctx is cancelled or Stop is called
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}
	d.running = true
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.log.Info().Msg("Dispatcher started")
}

// Stop stops accepting messages and drains queued deliveries
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
	d.log.Info().Msg("Dispatcher stopped")
}

// Dispatch hands msg to a free worker and returns without waiting for the
// delivery. When every worker is busy msg is dropped. It reports whether msg
// was accepted.
func (d *Dispatcher) Dispatch(msg Message) bool {
	if len(msg.To) == 0 {
		msg.To = d.recipients
	}
	if len(msg.To) == 0 {
		d.log.Debug().Str("subject", msg.Subject).Msg("No recipients, dropping notification")
		return false
	}

	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		d.log.Warn().Str("subject", msg.Subject).Msg("Dispatcher not running, dropping notification")
		return false
	}
	ctx := d.ctx
	d.wg.Add(1)
	d.mu.Unlock()

	select {
	case d.sem <- struct{}{}:
	default:
		d.wg.Done()
		d.log.Warn().Str("subject", msg.Subject).Msg("All workers busy, dropping notification")
		return false
	}

	go func() {
		defer d.wg.Done()
		defer func() { <-d.sem }()
		defer func() {
			if r := recover(); r != nil {
				d.log.Error().Interface("panic", r).Str("subject", msg.Subject).Msg("Notification panicked - recovered")
			}
		}()

		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()

		if err := d.sender.Send(sendCtx, msg); err != nil {
			d.log.Error().Err(err).Str("subject", msg.Subject).Msg("Failed to send notification")
			return
		}
		d.log.Debug().Strs("to", msg.To).Str("subject", msg.Subject).Msg("Notification sent")
	}()
	return true
}
