package agent

import (
	"io"
	"log/slog"
	"time"

	"github.com/relaydog/mqttagent/mqttnet"
)

// IncomingPublishCallback is invoked once per PUBLISH delivered from the
// broker, from inside the agent's command loop. It must not block.
type IncomingPublishCallback func(pub *mqttnet.IncomingPublish, userCtx any)

// Agent owns the MQTT client exclusively; Run must be called from exactly
// one goroutine for the lifetime of the Agent.
type Agent struct {
	client MQTTClient
	mi     MessageInterface
	acks   *pendingAckTable
	clock  Clock
	logger *slog.Logger

	incomingPublish    IncomingPublishCallback
	incomingPublishCtx any

	maxEventQueueWait time.Duration

	metrics *Metrics
	tracer  tracer
	spans   map[uint16]func(Status)
}

// Option configures an Agent at construction time.
type Option func(*Agent)

// WithLogger sets the structured logger used for dispatch diagnostics.
// The default discards all output, matching mqttnet's own default.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// WithClock overrides the agent's time source; the default wraps
// time.Now().
func WithClock(c Clock) Option {
	return func(a *Agent) { a.clock = c }
}

// WithMaxOutstandingAcks sets the pending-ack table's fixed capacity.
func WithMaxOutstandingAcks(n int) Option {
	return func(a *Agent) { a.acks = newPendingAckTable(n) }
}

// WithMaxEventQueueWait bounds how long Run blocks on an empty queue
// before checking context cancellation again.
func WithMaxEventQueueWait(d time.Duration) Option {
	return func(a *Agent) { a.maxEventQueueWait = d }
}

// WithIncomingPublishCallback registers the handler invoked for every
// PUBLISH the broker delivers.
func WithIncomingPublishCallback(cb IncomingPublishCallback, userCtx any) Option {
	return func(a *Agent) {
		a.incomingPublish = cb
		a.incomingPublishCtx = userCtx
	}
}

// WithMetrics wires Prometheus counters/gauges into the agent's dispatch
// and pending-ack code paths.
func WithMetrics(m *Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

// WithTracer wires OpenTelemetry span creation around dispatched commands.
func WithTracer(t tracer) Option {
	return func(a *Agent) { a.tracer = t }
}

// New constructs an Agent bound to client and mi. client need not be
// connected yet — the first command is typically CommandConnect.
func New(client MQTTClient, mi MessageInterface, opts ...Option) *Agent {
	a := &Agent{
		client:            client,
		mi:                mi,
		acks:              newPendingAckTable(defaultMaxOutstandingAcks),
		clock:             systemClock{},
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxEventQueueWait: time.Second,
		spans:             make(map[uint16]func(Status)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// complete invokes cmd's completion callback exactly once and returns it
// to the pool. Callers must not touch cmd afterward.
func (a *Agent) complete(cmd *Command, info ReturnInfo) {
	if a.metrics != nil {
		a.metrics.observeCompletion(cmd.Kind, info.Status)
	}
	if cmd.OnComplete != nil {
		cmd.OnComplete(cmd.CmdContext, info)
	}
	a.mi.ReleaseCommand(cmd)
}
