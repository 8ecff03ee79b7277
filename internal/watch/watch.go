package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/bbs/internal/filter"
	"github.com/dyluth/bbs/pkg/bbs"
)

// Source is the part of the store that publishes live events.
type Source interface {
	SubscribeNotifications(ctx context.Context, identity bbs.Identity) (*bbs.Subscription[bbs.Notification], error)
	SubscribeStaffAlerts(ctx context.Context) (*bbs.Subscription[bbs.StaffAlert], error)
}

// Handler receives streamed events. Nil callbacks are skipped.
type Handler struct {
	Notification func(*bbs.Notification)
	Alert        func(*bbs.StaffAlert)
	// Error is called for undecodable messages; the stream keeps going.
	Error func(error)
}

// Options selects what Stream subscribes to.
type Options struct {
	Identities []bbs.Identity
	Staff      bool
	// Filter drops notifications that do not match. Staff alerts are never filtered.
	Filter *filter.Criteria
}

// Stream delivers notifications for each identity, and staff alerts when
// requested, until ctx is cancelled or a subscription ends. It returns
// ctx.Err() on cancellation.
func Stream(ctx context.Context, source Source, opts Options, h Handler) error {
	if len(opts.Identities) == 0 && !opts.Staff {
		return fmt.Errorf("nothing to watch: give an identity or enable staff alerts")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	notifications := make(chan *bbs.Notification)
	errs := make(chan error)
	done := make(chan struct{}, len(opts.Identities)+1)

	for _, identity := range opts.Identities {
		sub, err := source.SubscribeNotifications(ctx, identity)
		if err != nil {
			return err
		}
		defer sub.Close()
		go forward(ctx, sub, notifications, errs, done)
	}

	var alerts <-chan *bbs.StaffAlert
	var alertErrs <-chan error
	if opts.Staff {
		sub, err := source.SubscribeStaffAlerts(ctx)
		if err != nil {
			return err
		}
		defer sub.Close()
		alerts, alertErrs = sub.Events(), sub.Errors()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-done:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("notification subscription closed")

		case n := <-notifications:
			if opts.Filter != nil && !opts.Filter.Matches(n) {
				continue
			}
			if h.Notification != nil {
				h.Notification(n)
			}

		case a, ok := <-alerts:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("staff alert subscription closed")
			}
			if h.Alert != nil {
				h.Alert(a)
			}

		case err := <-errs:
			if h.Error != nil {
				h.Error(err)
			}

		case err, ok := <-alertErrs:
			if ok && h.Error != nil {
				h.Error(err)
			}
			if !ok {
				alertErrs = nil
			}
		}
	}
}

// forward copies one notification subscription onto the shared channels.
func forward(ctx context.Context, sub *bbs.Subscription[bbs.Notification], out chan<- *bbs.Notification, errs chan<- error, done chan<- struct{}) {
	events, subErrs := sub.Events(), sub.Errors()
	for {
		select {
		case n, ok := <-events:
			if !ok {
				done <- struct{}{}
				return
			}
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		case err, ok := <-subErrs:
			if !ok {
				subErrs = nil
				continue
			}
			select {
			case errs <- err:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Next waits for the next notification on sub.
func Next(ctx context.Context, sub *bbs.Subscription[bbs.Notification], timeout time.Duration) (*bbs.Notification, error) {
	timeoutCh := time.After(timeout)
	errs := sub.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for notification after %v", timeout)

		case n, ok := <-sub.Events():
			if !ok {
				return nil, fmt.Errorf("subscription closed")
			}
			return n, nil

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			return nil, err
		}
	}
}
