package command

import (
	"fmt"

	"github.com/pixil98/go-errors"

	"github.com/pixil98/go-hearth/internal/messaging"
)

type ReplicationConfig struct {
	Enabled        bool         `json:"enabled" env:"ENABLED"`
	SubjectPrefix  string       `json:"subject_prefix" env:"SUBJECT_PREFIX"`
	QueueSize      int          `json:"queue_size" env:"QUEUE_SIZE"`
	Workers        int          `json:"workers" env:"WORKERS"`
	MaxAttempts    uint         `json:"max_attempts" env:"MAX_ATTEMPTS"`
	RequestTimeout string       `json:"request_timeout" env:"REQUEST_TIMEOUT"`
	Mirror         MirrorConfig `json:"mirror" envPrefix:"MIRROR_"`
}

// MirrorConfig runs the receiving side of replication in-process.
type MirrorConfig struct {
	Enabled bool   `json:"enabled" env:"ENABLED"`
	Path    string `json:"path" env:"PATH"`
}

func (c *ReplicationConfig) validate() error {
	el := errors.NewErrorList()

	if c.QueueSize < 0 {
		el.Add(fmt.Errorf("replication: queue_size must not be negative"))
	}
	if c.Workers < 0 {
		el.Add(fmt.Errorf("replication: workers must not be negative"))
	}
	if _, err := parseOptionalDuration("request_timeout", c.RequestTimeout); err != nil {
		el.Add(fmt.Errorf("replication: %w", err))
	}
	if c.Mirror.Enabled && c.Mirror.Path == "" {
		el.Add(fmt.Errorf("replication: mirror path is required"))
	}

	return el.Err()
}

func (c *ReplicationConfig) BuildReplicator(server *messaging.NatsServer) *messaging.Replicator {
	opts := []messaging.ReplicatorOpt{
		messaging.WithSubjectPrefix(c.SubjectPrefix),
		messaging.WithQueueSize(c.QueueSize),
		messaging.WithWorkers(c.Workers),
		messaging.WithMaxAttempts(c.MaxAttempts),
	}
	if d, _ := parseOptionalDuration("request_timeout", c.RequestTimeout); d > 0 {
		opts = append(opts, messaging.WithRequestTimeout(d))
	}
	return messaging.NewReplicator(server, server, opts...)
}

func (c *ReplicationConfig) BuildMirror(server *messaging.NatsServer) *messaging.Mirror {
	return messaging.NewMirror(server, c.Mirror.Path, c.SubjectPrefix)
}
