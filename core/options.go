package core

import (
	"time"
)

type options struct {
	now         func() time.Time
	concurrency int
}

type Option func(*options)

// WithClock replaces time.Now for the open/closed decision.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithConcurrency bounds the number of in flight reads per listing.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		now:         time.Now,
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
