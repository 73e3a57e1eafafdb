package pubsub

import (
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/logger"
)

// EmbeddedNATSPubSub runs a NATS server in-process for development and tests
type EmbeddedNATSPubSub struct {
	*NATSPubSub
	server *server.Server
}

// EmbeddedNATSOptions configures the embedded NATS server
type EmbeddedNATSOptions struct {
	Port       int    // 0 or -1 picks a random free port
	Subject    string // Subject to publish/subscribe to
	StreamName string // JetStream stream name
	StoreDir   string // empty keeps JetStream in memory
}

// DefaultEmbeddedNATSOptions returns the development defaults
func DefaultEmbeddedNATSOptions() EmbeddedNATSOptions {
	return EmbeddedNATSOptions{
		Port:       -1,
		Subject:    "analysis.events",
		StreamName: DefaultStreamName,
	}
}

// NewEmbeddedNATSPubSub starts an embedded server and connects to it
func NewEmbeddedNATSPubSub(opts EmbeddedNATSOptions) (*EmbeddedNATSPubSub, error) {
	port := opts.Port
	if port == 0 {
		port = -1
	}

	serverOpts := &server.Options{
		Host:      "127.0.0.1",
		Port:      port,
		JetStream: true,
		NoSigs:    true,
		StoreDir:  opts.StoreDir,
	}

	ns, err := server.NewServer(serverOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded NATS server: %w", err)
	}
	ns.SetLogger(&natsLogger{}, false, false)

	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server failed to start within timeout")
	}

	clientURL := ns.ClientURL()
	logger.Info("Embedded NATS server started", "url", clientURL)

	nc, err := nats.Connect(clientURL)
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("failed to connect to embedded NATS: %w", err)
	}

	streamName := opts.StreamName
	if streamName == "" {
		streamName = DefaultStreamName
	}
	storage := nats.MemoryStorage
	if opts.StoreDir != "" {
		storage = nats.FileStorage
	}

	inner, err := newNATSPubSub(nc, opts.Subject, &nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{opts.Subject},
		Storage:  storage,
		MaxAge:   time.Hour,
	})
	if err != nil {
		nc.Close()
		ns.Shutdown()
		return nil, err
	}

	return &EmbeddedNATSPubSub{NATSPubSub: inner, server: ns}, nil
}

// Close shuts down the client and the embedded server
func (p *EmbeddedNATSPubSub) Close() {
	logger.Info("Shutting down embedded NATS server")
	p.NATSPubSub.Close()
	if p.server != nil {
		p.server.Shutdown()
		p.server.WaitForShutdown()
	}
}

// ServerURL returns the client URL of the embedded server
func (p *EmbeddedNATSPubSub) ServerURL() string {
	return p.server.ClientURL()
}

// natsLogger adapts the server's printf logger to slog
type natsLogger struct{}

func (l *natsLogger) Noticef(format string, v ...interface{}) {
	logger.With("component", "nats").Info(fmt.Sprintf(format, v...))
}

func (l *natsLogger) Warnf(format string, v ...interface{}) {
	logger.With("component", "nats").Warn(fmt.Sprintf(format, v...))
}

func (l *natsLogger) Fatalf(format string, v ...interface{}) {
	logger.With("component", "nats").Error(fmt.Sprintf(format, v...))
}

func (l *natsLogger) Errorf(format string, v ...interface{}) {
	logger.With("component", "nats").Error(fmt.Sprintf(format, v...))
}

func (l *natsLogger) Debugf(format string, v ...interface{}) {
	logger.With("component", "nats").Debug(fmt.Sprintf(format, v...))
}

func (l *natsLogger) Tracef(format string, v ...interface{}) {
	logger.With("component", "nats", "trace", true).Debug(fmt.Sprintf(format, v...))
}
