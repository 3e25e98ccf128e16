package queue

// PublishOption customises a single Publish call.
type PublishOption func(*publishOptions)

type publishOptions struct {
	persistent bool
}

// WithPersistent selects the delivery mode. Messages are persistent by default.
func WithPersistent(persistent bool) PublishOption {
	return func(o *publishOptions) {
		o.persistent = persistent
	}
}

// SubscribeOption customises a Subscription.
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	autoAck bool
}

// WithAutoAck controls when deliveries are acknowledged. With autoAck (the
// default) each delivery is acknowledged as soon as it is received, before
// any processing, so a failing handler loses the message. Without it the
// consumer must call Ack or Nack.
func WithAutoAck(autoAck bool) SubscribeOption {
	return func(o *subscribeOptions) {
		o.autoAck = autoAck
	}
}
