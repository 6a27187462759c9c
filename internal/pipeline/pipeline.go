package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/meshtools/meshdb/internal/decode"
	"github.com/meshtools/meshdb/internal/mqtt"
	"github.com/meshtools/meshdb/internal/observability"
	"github.com/meshtools/meshdb/internal/storage"
)

// Client abstracts the MQTT client behaviour required by the pipeline.
type Client interface {
	Start(ctx context.Context) error
	Stop()
	Messages() <-chan mqtt.Message
	Errors() <-chan error
}

// Writer persists decoded packets.
type Writer interface {
	HandlePacket(ctx context.Context, pkt decode.Packet) storage.StoreResult
}

// Pipeline wires the MQTT client with the JSON decoder and storage writer.
type Pipeline struct {
	client  Client
	writer  Writer
	logger  *slog.Logger
	metrics *observability.Metrics
	errCh   chan error
	wg      sync.WaitGroup
}

// Option configures optional pipeline behaviour.
type Option func(*Pipeline)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// New creates a pipeline instance.
func New(client Client, writer Writer, opts ...Option) *Pipeline {
	p := &Pipeline{
		client: client,
		writer: writer,
		logger: observability.NoOpLogger(),
		errCh:  make(chan error, 32),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Errors exposes asynchronous processing errors.
func (p *Pipeline) Errors() <-chan error {
	return p.errCh
}

// Run starts the pipeline and blocks until the context is cancelled or the client stops.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.client == nil {
		return fmt.Errorf("pipeline: client is nil")
	}
	if p.writer == nil {
		return fmt.Errorf("pipeline: writer is nil")
	}

	if err := p.client.Start(ctx); err != nil {
		return fmt.Errorf("pipeline: start client: %w", err)
	}

	p.wg.Add(2)
	go p.consume(ctx)
	go p.forwardClientErrors(ctx)

	<-ctx.Done()
	p.client.Stop()
	p.wg.Wait()
	close(p.errCh)

	return nil
}

func (p *Pipeline) consume(ctx context.Context) {
	defer p.wg.Done()
	msgs := p.client.Messages()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			p.metrics.ObserveQueueDepth(len(msgs))

			pkt, err := decode.DecodeJSON(msg.Payload)
			if err != nil {
				p.metrics.IncMalformedPackets()
				p.publishErr(fmt.Errorf("pipeline: decode %s: %w", msg.Topic, err))
				continue
			}
			if pkt.RxTime == 0 && !msg.Time.IsZero() {
				pkt.RxTime = msg.Time.Unix()
			}

			res := p.writer.HandlePacket(ctx, pkt)
			p.logger.Debug("packet handled",
				slog.String("topic", msg.Topic),
				slog.String("port", string(pkt.Port)),
				slog.Bool("node_info", res.NodeInfo),
				slog.Bool("position", res.Position),
				slog.Bool("telemetry", res.Telemetry),
				slog.Bool("message", res.Message),
			)
		}
	}
}

func (p *Pipeline) forwardClientErrors(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-p.client.Errors():
			if !ok {
				return
			}
			p.publishErr(fmt.Errorf("pipeline: mqtt: %w", err))
		}
	}
}

func (p *Pipeline) publishErr(err error) {
	if err == nil {
		return
	}
	select {
	case p.errCh <- err:
	default:
	}
}
