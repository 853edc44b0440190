package messaging

import "time"

type ReplicatorOpt func(*Replicator)

// WithSubjectPrefix sets the subject prefix requests are sent under.
func WithSubjectPrefix(prefix string) ReplicatorOpt {
	return func(r *Replicator) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// WithQueueSize bounds the number of snapshots waiting for delivery.
func WithQueueSize(n int) ReplicatorOpt {
	return func(r *Replicator) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

// WithWorkers limits concurrent deliveries.
func WithWorkers(n int) ReplicatorOpt {
	return func(r *Replicator) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithMaxAttempts bounds delivery attempts per snapshot, including the first.
func WithMaxAttempts(n uint) ReplicatorOpt {
	return func(r *Replicator) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func WithRequestTimeout(d time.Duration) ReplicatorOpt {
	return func(r *Replicator) {
		if d > 0 {
			r.requestTimeout = d
		}
	}
}

// WithBackoff sets the first and the largest wait between attempts.
func WithBackoff(initial, max time.Duration) ReplicatorOpt {
	return func(r *Replicator) {
		if initial > 0 {
			r.initialBackoff = initial
		}
		if max > 0 {
			r.maxBackoff = max
		}
	}
}
