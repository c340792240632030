package lifecycle

import (
	"context"
	"sync"
	"time"

	"hailo/internal/domain/ride"
	"hailo/internal/general/logger"
	"hailo/internal/ports"
)

// Feed yields status observations for one ride. Push and poll feeds look the same to the
// consumer, so the reconciler does not care which channel delivered a value.
type Feed interface {
	Observations() <-chan Observation
	Close() error
}

// PushFeed adapts a notifier subscription on a ride topic.
type PushFeed struct {
	sub  ports.Subscription
	out  chan Observation
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewPushFeed subscribes to the per-ride topic of rideID.
func NewPushFeed(ctx context.Context, notifier ports.Notifier, rideID string) (*PushFeed, error) {
	sub, err := notifier.Subscribe(ctx, ride.TopicForRide(rideID))
	if err != nil {
		return nil, err
	}

	feed := &PushFeed{
		sub:  sub,
		out:  make(chan Observation),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go feed.forward(rideID)
	return feed, nil
}

func (f *PushFeed) forward(rideID string) {
	defer close(f.done)
	defer close(f.out)

	for {
		select {
		case <-f.stop:
			return
		case update, ok := <-f.sub.Updates():
			if !ok {
				return
			}
			if update.RideID != rideID {
				continue
			}
			select {
			case f.out <- ObserveUpdate(update):
			case <-f.stop:
				return
			}
		}
	}
}

func (f *PushFeed) Observations() <-chan Observation {
	return f.out
}

// Close releases the subscription and waits for the forwarder to exit.
func (f *PushFeed) Close() error {
	var err error
	f.once.Do(func() {
		close(f.stop)
		err = f.sub.Close()
		<-f.done
	})
	return err
}

// Fetcher reads the current record of a ride.
type Fetcher func(ctx context.Context) (*ride.Record, error)

// PollFeed re-reads a ride on every scheduler tick.
type PollFeed struct {
	scheduler *Scheduler
	out       chan Observation
	once      sync.Once
}

// NewPollFeed starts polling with fetch every interval. Read failures are logged and
// left to the next tick.
func NewPollFeed(ctx context.Context, interval time.Duration, fetch Fetcher, log *logger.Logger) *PollFeed {
	feed := &PollFeed{out: make(chan Observation)}
	feed.scheduler = NewScheduler(interval, func(ctx context.Context) {
		record, err := fetch(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error(ctx, "poll_failed", "Polling read failed", err, nil)
			}
			return
		}
		if record == nil {
			return
		}
		select {
		case feed.out <- ObserveRecord(record, ChannelPoll):
		case <-ctx.Done():
		}
	})
	feed.scheduler.Start(ctx)
	return feed
}

func (f *PollFeed) Observations() <-chan Observation {
	return f.out
}

// Close stops the scheduler synchronously; no observation is produced afterwards.
func (f *PollFeed) Close() error {
	f.once.Do(func() {
		f.scheduler.Stop()
		close(f.out)
	})
	return nil
}
