// Package notify fans alerts out to the configured notification
// channels. Every delivery attempt is recorded as its own notification
// row: pending on insert, then finalized as sent or failed. Failed
// rows are never rewritten; re-dispatching an alert appends fresh ones.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fleetd/internal/domain"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Channel delivers one alert to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, a *domain.Alert) error
}

// Store is the slice of the record store the dispatcher needs.
type Store interface {
	GetAlert(id string) (*domain.Alert, error)
	InsertNotification(n *domain.Notification) error
	FinalizeNotification(id, status string, sentAt time.Time, errDetail string) error
}

// StatusError is a non-2xx response from a notification endpoint. Its
// message is stored verbatim on the failed notification row.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Options configures a Dispatcher.
type Options struct {
	// SendTimeout bounds a single channel delivery.
	SendTimeout time.Duration
}

// Dispatcher fans one alert out to every configured channel. Channels
// send concurrently and independently: one channel failing or hanging
// does not block or fail the others.
type Dispatcher struct {
	store    Store
	channels []Channel
	opts     Options
	log      *logrus.Entry
	wg       sync.WaitGroup
}

// NewDispatcher returns a dispatcher over the given channels.
func NewDispatcher(store Store, channels []Channel, opts Options, log *logrus.Entry) *Dispatcher {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 30 * time.Second
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Dispatcher{store: store, channels: channels, opts: opts, log: log}
}

// Dispatch delivers the alert to every configured channel, one
// notification row per channel. It returns an error only when the
// alert itself cannot be loaded; per-channel failures are recorded on
// their rows, not returned.
func (d *Dispatcher) Dispatch(ctx context.Context, alertID string) error {
	alert, err := d.store.GetAlert(alertID)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	if len(d.channels) == 0 {
		d.log.WithField("alert", alertID).Debug("no notification channels configured")
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, ch := range d.channels {
		ch := ch
		g.Go(func() error {
			d.deliver(ctx, ch, alert)
			return nil
		})
	}
	return g.Wait()
}

// Enqueue dispatches the alert in the background. Used by the health
// monitor, whose sweeps must not wait on webhook latency.
func (d *Dispatcher) Enqueue(alertID string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*d.opts.SendTimeout)
		defer cancel()
		if err := d.Dispatch(ctx, alertID); err != nil {
			d.log.WithError(err).WithField("alert", alertID).Error("background dispatch failed")
		}
	}()
}

// Close waits for in-flight background dispatches to finish.
func (d *Dispatcher) Close() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, ch Channel, alert *domain.Alert) {
	n := &domain.Notification{
		AlertID: alert.ID,
		Channel: ch.Name(),
	}
	if err := d.store.InsertNotification(n); err != nil {
		d.log.WithError(err).WithField("channel", ch.Name()).Error("failed to record notification")
		return
	}

	// Exactly one send per notification row. Retrying an alert means
	// re-dispatching it, which appends a fresh row.
	ctx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
	defer cancel()

	if err := ch.Send(ctx, alert); err != nil {
		if ferr := d.store.FinalizeNotification(n.ID, domain.NotificationFailed, time.Time{}, err.Error()); ferr != nil {
			d.log.WithError(ferr).WithField("channel", ch.Name()).Error("failed to finalize notification")
		}
		d.log.WithError(err).WithFields(logrus.Fields{
			"alert":   alert.ID,
			"channel": ch.Name(),
		}).Warn("notification delivery failed")
		return
	}

	if ferr := d.store.FinalizeNotification(n.ID, domain.NotificationSent, time.Now().UTC(), ""); ferr != nil {
		d.log.WithError(ferr).WithField("channel", ch.Name()).Error("failed to finalize notification")
	}
	d.log.WithFields(logrus.Fields{
		"alert":   alert.ID,
		"channel": ch.Name(),
	}).Info("notification sent")
}
