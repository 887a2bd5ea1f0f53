// Package syncer runs the leader-monitoring loop: it polls the data API on an
// adaptive interval, records allowed movements through the service and settles
// open movements against the leader's closed positions.
package syncer

import (
	"time"

	"polymarket-copytrader/config"
)

// Signal classifies the outcome of one poll tick for interval adaptation.
type Signal int

const (
	// SignalSuccess is a completed tick, throttled or not upstream.
	SignalSuccess Signal = iota
	// SignalRateLimited is a tick rejected with HTTP 429.
	SignalRateLimited
	// SignalError is any other tick failure. The interval holds steady so a
	// flapping upstream does not whipsaw the poll rate.
	SignalError
)

// BackoffPolicy bounds the adaptive interval. Rate limits push the interval
// up by IncreaseStep; successes walk it back down by DecreaseStep.
type BackoffPolicy struct {
	Floor        time.Duration
	Ceiling      time.Duration
	IncreaseStep time.Duration
	DecreaseStep time.Duration
}

// PolicyFromConfig builds a backoff policy from the poller configuration.
func PolicyFromConfig(pc config.PollerConfig) BackoffPolicy {
	return BackoffPolicy{
		Floor:        time.Duration(pc.FloorMS) * time.Millisecond,
		Ceiling:      time.Duration(pc.CeilingMS) * time.Millisecond,
		IncreaseStep: time.Duration(pc.IncreaseStepMS) * time.Millisecond,
		DecreaseStep: time.Duration(pc.DecreaseStepMS) * time.Millisecond,
	}
}

// Next returns the interval to use after a tick with the given outcome,
// clamped to [Floor, Ceiling].
func (p BackoffPolicy) Next(current time.Duration, sig Signal) time.Duration {
	next := current
	switch sig {
	case SignalSuccess:
		next = current - p.DecreaseStep
	case SignalRateLimited:
		next = current + p.IncreaseStep
	case SignalError:
	}
	return p.Clamp(next)
}

// Clamp bounds an interval to the policy's window.
func (p BackoffPolicy) Clamp(d time.Duration) time.Duration {
	if d < p.Floor {
		return p.Floor
	}
	if d > p.Ceiling {
		return p.Ceiling
	}
	return d
}
