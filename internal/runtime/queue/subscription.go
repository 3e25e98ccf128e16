package queue

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/errors"
	"github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/logging"
)

// Delivery is one received message plus its acknowledgement handle.
type Delivery struct {
	msg     Message
	raw     *message.Message
	autoAck bool
}

// Message returns the received message. Its headers are a private copy.
func (d Delivery) Message() Message {
	return d.msg
}

// AutoAcked reports whether the delivery was acknowledged on receipt.
func (d Delivery) AutoAcked() bool {
	return d.autoAck
}

// Ack acknowledges the delivery. It is a no-op returning true under autoAck.
func (d Delivery) Ack() bool {
	if d.autoAck {
		return true
	}
	return d.raw.Ack()
}

// Nack asks the broker to redeliver. Under autoAck the delivery is already
// acknowledged and Nack returns false.
func (d Delivery) Nack() bool {
	if d.autoAck {
		return false
	}
	return d.raw.Nack()
}

// Subscription is an open stream of deliveries from one queue.
type Subscription struct {
	queue   string
	autoAck bool
	logger  logging.ServiceLogger

	ctx        context.Context
	cancel     context.CancelFunc
	deliveries chan Delivery
	done       chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

func newSubscription(ctx context.Context, cancel context.CancelFunc, queue string, autoAck bool, logger logging.ServiceLogger) *Subscription {
	return &Subscription{
		queue:      queue,
		autoAck:    autoAck,
		logger:     logger.With(logging.LogFields{"queue": queue}),
		ctx:        ctx,
		cancel:     cancel,
		deliveries: make(chan Delivery),
		done:       make(chan struct{}),
	}
}

// Queue returns the subscribed queue name.
func (s *Subscription) Queue() string {
	return s.queue
}

// Deliveries returns the channel deliveries arrive on. It is closed when the
// subscription ends.
func (s *Subscription) Deliveries() <-chan Delivery {
	return s.deliveries
}

// Done is closed once the subscription has ended and released its resources.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns ErrSubscriptionClosed when the transport ended the stream on its
// own (for example after losing the broker connection), and nil when the
// subscription was cancelled or closed by the caller.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the subscription and waits for the receive loop to exit. It is
// safe to call more than once.
func (s *Subscription) Close() error {
	s.closeOnce.Do(s.cancel)
	<-s.done
	return nil
}

func (s *Subscription) pump(raw <-chan *message.Message) {
	defer close(s.done)
	defer close(s.deliveries)
	defer s.cancel()

	for {
		select {
		case <-s.ctx.Done():
			return
		case wm, ok := <-raw:
			if !ok {
				if s.ctx.Err() == nil {
					s.setErr(errspkg.ErrSubscriptionClosed)
					s.logger.Info("Transport closed the subscription", nil)
				}
				return
			}
			if !s.deliver(wm) {
				return
			}
		}
	}
}

func (s *Subscription) deliver(wm *message.Message) bool {
	if s.autoAck {
		wm.Ack()
	}
	d := Delivery{msg: fromWatermill(s.queue, wm), raw: wm, autoAck: s.autoAck}

	select {
	case s.deliveries <- d:
		return true
	case <-s.ctx.Done():
		if !s.autoAck {
			wm.Nack()
		}
		return false
	}
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}
