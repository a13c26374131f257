package mqttnet

import (
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"time"
)

// Option configures a Client at construction time, matching gonzalop-mq's
// functional-options shape (options.go's WithLogger/WithQoS family).
type Option func(*clientOptions)

type clientOptions struct {
	logger            *slog.Logger
	dialer            *net.Dialer
	tlsConfig         *tls.Config
	protocolVersion   uint8
	maxIncomingPacket int
	networkBufferSize int
	clientID          string
}

// defaultNetworkBufferSize mirrors the demo buffer size the coreMQTT-Agent
// source this package is grounded on is usually configured with.
const defaultNetworkBufferSize = 1024

func defaultOptions() clientOptions {
	return clientOptions{
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		dialer:            &net.Dialer{Timeout: 30 * time.Second},
		protocolVersion:   4,
		maxIncomingPacket: 0,
		networkBufferSize: defaultNetworkBufferSize,
	}
}

// WithLogger sets the structured logger used for protocol-level
// diagnostics (unexpected packets, handshake failures).
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// WithDialer overrides the net.Dialer used to establish the TCP connection,
// matching gonzalop-mq's support for a caller-supplied Dialer.
func WithDialer(d *net.Dialer) Option {
	return func(o *clientOptions) { o.dialer = d }
}

// WithTLSConfig supplies the TLS configuration used when the server URL has
// a TLS scheme (ssl, tls, mqtts, tcps); it does not turn TLS on by itself.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *clientOptions) { o.tlsConfig = cfg }
}

// WithProtocolVersion selects the MQTT protocol level: 4 for v3.1.1
// (the default) or 5 for v5.0.
func WithProtocolVersion(version uint8) Option {
	return func(o *clientOptions) { o.protocolVersion = version }
}

// WithMaxIncomingPacketSize bounds the size of a single incoming packet
// ReadPacket will accept; zero uses the MQTT spec maximum.
func WithMaxIncomingPacketSize(n int) Option {
	return func(o *clientOptions) { o.maxIncomingPacket = n }
}

// WithNetworkBufferSize sets the size of the network buffer the client
// reports via NetworkBufferSize, used by callers (the agent's publish
// validation) to reject an outgoing PUBLISH that cannot possibly fit
// before ever writing to the wire.
func WithNetworkBufferSize(n int) Option {
	return func(o *clientOptions) { o.networkBufferSize = n }
}

// WithClientID pins the client identifier used on CONNECT. If unset, New
// generates one.
func WithClientID(id string) Option {
	return func(o *clientOptions) { o.clientID = id }
}
