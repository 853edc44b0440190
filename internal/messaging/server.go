package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

var ErrNotStarted = errors.New("nats server not started")

// NatsServer runs an embedded NATS server with one internal client connection.
// It carries session events and snapshot replication requests.
type NatsServer struct {
	ns *server.Server

	startupTimeout time.Duration
	host           string
	port           int

	mu    sync.RWMutex
	conn  *nats.Conn
	ready chan struct{}
}

func NewNatsServer(opts ...NatsServerOpt) (*NatsServer, error) {
	s := &NatsServer{
		startupTimeout: 10 * time.Second,
		host:           "127.0.0.1",
		port:           server.RANDOM_PORT,
		ready:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	ns, err := server.NewServer(&server.Options{
		Host:   s.host,
		Port:   s.port,
		NoSigs: true, // Let the application handle signals
	})
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}
	s.ns = ns

	return s, nil
}

func (n *NatsServer) Start(ctx context.Context) error {
	n.ns.Start()

	if !n.ns.ReadyForConnections(n.startupTimeout) {
		return fmt.Errorf("nats server not ready for connections")
	}

	// Create internal client connection
	conn, err := nats.Connect(n.ns.ClientURL(), nats.Name("hearth"))
	if err != nil {
		return fmt.Errorf("creating nats client connection: %w", err)
	}

	n.mu.Lock()
	n.conn = conn
	n.mu.Unlock()
	close(n.ready)

	slog.InfoContext(ctx, "nats server listening", "addr", n.ns.Addr())

	<-ctx.Done()

	if err := conn.Drain(); err != nil {
		slog.WarnContext(ctx, "draining nats connection", "error", err)
	}
	n.ns.Shutdown()
	n.ns.WaitForShutdown()

	return nil
}

// Ready is closed once the internal client connection is established.
func (n *NatsServer) Ready() <-chan struct{} {
	return n.ready
}

// Connected reports whether the internal client is currently connected.
func (n *NatsServer) Connected() bool {
	conn := n.client()
	return conn != nil && conn.IsConnected()
}

// Probe is an initialization probe for the messaging step.
func (n *NatsServer) Probe(ctx context.Context) (bool, error) {
	return n.Connected(), nil
}

// Subscribe creates a subscription on the given subject.
// The handler is called for each message received.
// Returns an unsubscribe function to remove the subscription.
func (n *NatsServer) Subscribe(subject string, handler func(data []byte)) (func(), error) {
	conn := n.client()
	if conn == nil {
		return nil, ErrNotStarted
	}
	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to %q: %w", subject, err)
	}
	return unsubscriber(sub), nil
}

// Publish sends a message to the given subject
func (n *NatsServer) Publish(subject string, data []byte) error {
	conn := n.client()
	if conn == nil {
		return ErrNotStarted
	}
	return conn.Publish(subject, data)
}

// Request sends data on subject and waits for a single reply.
func (n *NatsServer) Request(ctx context.Context, subject string, data []byte) ([]byte, error) {
	conn := n.client()
	if conn == nil {
		return nil, ErrNotStarted
	}

	msg, err := conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return nil, fmt.Errorf("requesting %q: %w", subject, err)
	}
	return msg.Data, nil
}

// Respond serves requests on subject. The handler's return value is sent as the
// reply. Returns an unsubscribe function.
func (n *NatsServer) Respond(subject string, handler func(subject string, data []byte) []byte) (func(), error) {
	conn := n.client()
	if conn == nil {
		return nil, ErrNotStarted
	}

	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		reply := handler(msg.Subject, msg.Data)
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			slog.Warn("replying to request", "subject", msg.Subject, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("serving %q: %w", subject, err)
	}
	return unsubscriber(sub), nil
}

func (n *NatsServer) client() *nats.Conn {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.conn
}

func unsubscriber(sub *nats.Subscription) func() {
	return func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			slog.Debug("unsubscribing", "subject", sub.Subject, "error", err)
		}
	}
}
