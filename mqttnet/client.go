package mqttnet

import (
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/relaydog/mqttagent/internal/packets"
)

// Client is a synchronous, single-goroutine MQTT 3.1.1/5.0 client. Unlike
// gonzalop-mq's own Client, it spawns no internal goroutines: every method
// does exactly the I/O its name promises and returns, so that a single
// external caller (the agent command loop) can safely be its only user.
// Client is not safe for concurrent use — that contract is the entire
// reason this module's agent package exists.
type Client struct {
	opts clientOptions
	conn net.Conn

	nextPacketID uint16 // 0 means "not yet connected"

	// outgoingQoS tracks packet IDs of our own QoS>0 publishes the broker
	// has not yet fully acknowledged, mirroring the persistent state
	// MQTT_PublishToResend walks in the source this is grounded on.
	outgoingQoS map[uint16]outgoingPublish

	// incomingQoS2 deduplicates redelivered QoS 2 PUBLISH packets: once we
	// have sent PUBREC for a packet id we must not redeliver it to the
	// application on a retransmit, only re-ack.
	incomingQoS2 map[uint16]struct{}

	mu sync.Mutex // guards outgoingQoS/incomingQoS2 against the resend path
}

type outgoingPublish struct {
	topic   string
	payload []byte
	qos     QoS
	retain  bool
}

// New constructs a Client bound to no connection yet; call Connect before
// anything else.
func New(opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.clientID == "" {
		o.clientID = "mqttagent-" + uuid.NewString()
	}
	return &Client{
		opts:         o,
		outgoingQoS:  make(map[uint16]outgoingPublish),
		incomingQoS2: make(map[uint16]struct{}),
	}
}

// StateCursor drives PublishToResend across successive calls, the Go
// analog of coreMQTT's MQTTStateCursor_t.
type StateCursor struct {
	ids   []uint16
	index int
	ready bool
}

func dialAddr(server string) (network string, addr string, useTLS bool, err error) {
	u, err := url.Parse(server)
	if err != nil || u.Host == "" {
		// Bare host:port, default to plain TCP.
		return "tcp", server, false, nil
	}
	switch u.Scheme {
	case "tcp", "mqtt":
		useTLS = false
	case "ssl", "tls", "mqtts", "tcps":
		useTLS = true
	case "":
		useTLS = false
	default:
		return "", "", false, fmt.Errorf("mqttnet: unsupported scheme %q", u.Scheme)
	}
	host := u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		if useTLS {
			host = net.JoinHostPort(host, "8883")
		} else {
			host = net.JoinHostPort(host, "1883")
		}
	}
	return "tcp", host, useTLS, nil
}

func (c *Client) dial(server string) (net.Conn, error) {
	network, addr, useTLS, err := dialAddr(server)
	if err != nil {
		return nil, err
	}
	conn, err := c.opts.dialer.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("mqttnet: dial %s: %w", addr, err)
	}
	if useTLS {
		cfg := c.opts.tlsConfig
		if cfg == nil {
			host, _, _ := net.SplitHostPort(addr)
			cfg = &tls.Config{ServerName: host}
		}
		tlsConn := tls.Client(conn, cfg)
		if err := tlsConn.Handshake(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("mqttnet: tls handshake: %w", err)
		}
		conn = tlsConn
	}
	return conn, nil
}

// Connect dials server, performs the CONNECT/CONNACK handshake, and
// returns the broker-reported session-present flag. ackTimeout bounds how
// long Connect waits for CONNACK; zero means no deadline.
func (c *Client) Connect(server string, info ConnectInfo, ackTimeout time.Duration) (sessionPresent bool, err error) {
	if c.conn != nil {
		return false, ErrAlreadyConnected
	}
	conn, err := c.dial(server)
	if err != nil {
		return false, err
	}

	clientID := info.ClientID
	if clientID == "" {
		clientID = c.opts.clientID
	}
	pkt := &packets.ConnectPacket{
		ProtocolName:  "MQTT",
		ProtocolLevel: c.opts.protocolVersion,
		CleanSession:  info.CleanSession,
		KeepAlive:     info.KeepAlive,
		ClientID:      clientID,
	}
	if info.Will != nil {
		pkt.WillFlag = true
		pkt.WillQoS = uint8(info.Will.QoS)
		pkt.WillRetain = info.Will.Retain
		pkt.WillTopic = info.Will.Topic
		pkt.WillMessage = info.Will.Payload
	}
	if info.HasUsername {
		pkt.UsernameFlag = true
		pkt.Username = info.Username
	}
	if info.HasPassword {
		pkt.PasswordFlag = true
		pkt.Password = info.Password
	}

	if _, err := pkt.WriteTo(conn); err != nil {
		conn.Close()
		return false, fmt.Errorf("mqttnet: write CONNECT: %w", err)
	}

	if ackTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(ackTimeout))
	}
	raw, err := packets.ReadPacket(conn, c.opts.protocolVersion, c.opts.maxIncomingPacket)
	if ackTimeout > 0 {
		conn.SetReadDeadline(time.Time{})
	}
	if err != nil {
		conn.Close()
		return false, fmt.Errorf("mqttnet: read CONNACK: %w", err)
	}
	connack, ok := raw.(*packets.ConnackPacket)
	if !ok {
		conn.Close()
		return false, fmt.Errorf("mqttnet: expected CONNACK, got packet type %d", raw.Type())
	}
	if refused := connackError(connack.ReturnCode); refused != nil {
		conn.Close()
		return false, refused
	}

	c.conn = conn
	if c.nextPacketID == 0 {
		c.nextPacketID = 1
	}
	return connack.SessionPresent, nil
}

// GetPacketID returns the next packet identifier and advances the
// internal counter, skipping zero (MQTT reserves packet id 0 as invalid).
// Returns 0 if the client has never connected, matching the
// MQTT_PACKET_ID_INVALID witness used to validate API calls.
func (c *Client) GetPacketID() uint16 {
	if c.nextPacketID == 0 {
		return 0
	}
	id := c.nextPacketID
	c.nextPacketID++
	if c.nextPacketID == 0 {
		c.nextPacketID = 1
	}
	return id
}

// Connected reports whether Connect has completed successfully and
// Disconnect has not since been called, for callers (the agent's
// pre-enqueue validation) that need it before any packet id is involved.
// Unlike GetPacketID's counter, which stays non-zero after Disconnect, it
// turns false again once the client disconnects.
func (c *Client) Connected() bool {
	return c.conn != nil
}

// NetworkBufferSize returns the size passed to WithNetworkBufferSize (or
// the default), used to reject an outgoing PUBLISH whose topic cannot
// possibly fit in a single buffer before ever writing to the wire.
func (c *Client) NetworkBufferSize() int {
	return c.opts.networkBufferSize
}

// Publish writes a PUBLISH packet. For QoS > 0 the caller must have
// obtained packetID from GetPacketID.
func (c *Client) Publish(topic string, payload []byte, qos QoS, retain, dup bool, packetID uint16) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	pkt := &packets.PublishPacket{
		Dup:      dup,
		QoS:      uint8(qos),
		Retain:   retain,
		Topic:    topic,
		PacketID: packetID,
		Payload:  payload,
		Version:  c.opts.protocolVersion,
	}
	if _, err := pkt.WriteTo(c.conn); err != nil {
		return fmt.Errorf("mqttnet: write PUBLISH: %w", err)
	}
	if qos > QoS0 {
		c.mu.Lock()
		c.outgoingQoS[packetID] = outgoingPublish{topic: topic, payload: payload, qos: qos, retain: retain}
		c.mu.Unlock()
	}
	return nil
}

// Subscribe writes a SUBSCRIBE packet.
func (c *Client) Subscribe(topics []string, qos []QoS, packetID uint16) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	qosBytes := make([]uint8, len(qos))
	for i, q := range qos {
		qosBytes[i] = uint8(q)
	}
	pkt := &packets.SubscribePacket{
		PacketID: packetID,
		Topics:   topics,
		QoS:      qosBytes,
		Version:  c.opts.protocolVersion,
	}
	if _, err := pkt.WriteTo(c.conn); err != nil {
		return fmt.Errorf("mqttnet: write SUBSCRIBE: %w", err)
	}
	return nil
}

// Unsubscribe writes an UNSUBSCRIBE packet.
func (c *Client) Unsubscribe(topics []string, packetID uint16) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	pkt := &packets.UnsubscribePacket{
		PacketID: packetID,
		Topics:   topics,
		Version:  c.opts.protocolVersion,
	}
	if _, err := pkt.WriteTo(c.conn); err != nil {
		return fmt.Errorf("mqttnet: write UNSUBSCRIBE: %w", err)
	}
	return nil
}

// Ping writes a PINGREQ packet.
func (c *Client) Ping() error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if _, err := (&packets.PingreqPacket{}).WriteTo(c.conn); err != nil {
		return fmt.Errorf("mqttnet: write PINGREQ: %w", err)
	}
	return nil
}

// Disconnect writes a DISCONNECT packet and closes the connection. It is
// idempotent: calling it twice, or calling it on a client that never
// connected, is not an error.
func (c *Client) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	_, werr := (&packets.DisconnectPacket{Version: c.opts.protocolVersion}).WriteTo(c.conn)
	cerr := c.conn.Close()
	c.conn = nil
	if werr != nil {
		return fmt.Errorf("mqttnet: write DISCONNECT: %w", werr)
	}
	return cerr
}

// PublishToResend enumerates packet ids of our own QoS>0 publishes the
// broker has not yet acknowledged, one per call, returning (0, false)
// once exhausted. The cursor must be zero-valued on first use.
func (c *Client) PublishToResend(cursor *StateCursor) (uint16, bool) {
	c.mu.Lock()
	if !cursor.ready {
		cursor.ids = make([]uint16, 0, len(c.outgoingQoS))
		for id := range c.outgoingQoS {
			cursor.ids = append(cursor.ids, id)
		}
		cursor.ready = true
	}
	c.mu.Unlock()
	if cursor.index >= len(cursor.ids) {
		return 0, false
	}
	id := cursor.ids[cursor.index]
	cursor.index++
	return id, true
}

// ProcessLoop blocks up to timeout (zero waits at most one millisecond)
// waiting for one incoming packet, handles it, and returns. It reports
// whether a packet was read. QoS 2 handshake packets (PUBREC/PUBREL) are
// resolved here: ProcessLoop writes the matching PUBREL/PUBCOMP itself and
// then passes the packet to cb only as an EventIgnored.
func (c *Client) ProcessLoop(timeout time.Duration, cb EventCallback) (packetReceived bool, err error) {
	if c.conn == nil {
		return false, ErrNotConnected
	}
	if timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(timeout))
	} else {
		c.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	}
	raw, err := packets.ReadPacket(c.conn, c.opts.protocolVersion, c.opts.maxIncomingPacket)
	c.conn.SetReadDeadline(time.Time{})
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return false, nil
		}
		if err == io.EOF {
			return false, fmt.Errorf("mqttnet: connection closed: %w", err)
		}
		return false, fmt.Errorf("mqttnet: read packet: %w", err)
	}

	if err := c.handlePacket(raw, cb); err != nil {
		return true, err
	}
	return true, nil
}

func (c *Client) handlePacket(raw packets.Packet, cb EventCallback) error {
	switch p := raw.(type) {
	case *packets.PublishPacket:
		return c.handleIncomingPublish(p, cb)

	case *packets.PubackPacket:
		c.clearOutgoing(p.PacketID)
		cb(Event{Kind: EventAck, PacketType: packets.PUBACK, PacketID: p.PacketID})

	case *packets.PubcompPacket:
		c.clearOutgoing(p.PacketID)
		cb(Event{Kind: EventAck, PacketType: packets.PUBCOMP, PacketID: p.PacketID})

	case *packets.SubackPacket:
		failed := false
		for _, code := range p.ReturnCodes {
			if code == packets.SubackFailure {
				failed = true
				break
			}
		}
		cb(Event{Kind: EventAck, PacketType: packets.SUBACK, PacketID: p.PacketID, SubackCodes: p.ReturnCodes, AckFailed: failed})

	case *packets.UnsubackPacket:
		cb(Event{Kind: EventAck, PacketType: packets.UNSUBACK, PacketID: p.PacketID})

	case *packets.PubrecPacket:
		// Step 2 of our own outgoing QoS 2 publish: reply PUBREL and wait
		// for PUBCOMP. Handled entirely inside the client, per design.
		rel := &packets.PubrelPacket{PacketID: p.PacketID, Version: c.opts.protocolVersion}
		if _, err := rel.WriteTo(c.conn); err != nil {
			return fmt.Errorf("mqttnet: write PUBREL: %w", err)
		}
		cb(Event{Kind: EventIgnored, PacketType: packets.PUBREC, PacketID: p.PacketID})

	case *packets.PubrelPacket:
		// Step 3 of an incoming QoS 2 publish: reply PUBCOMP.
		comp := &packets.PubcompPacket{PacketID: p.PacketID, Version: c.opts.protocolVersion}
		if _, err := comp.WriteTo(c.conn); err != nil {
			return fmt.Errorf("mqttnet: write PUBCOMP: %w", err)
		}
		c.mu.Lock()
		delete(c.incomingQoS2, p.PacketID)
		c.mu.Unlock()
		cb(Event{Kind: EventIgnored, PacketType: packets.PUBREL, PacketID: p.PacketID})

	case *packets.PingrespPacket:
		cb(Event{Kind: EventIgnored, PacketType: packets.PINGRESP})

	default:
		c.opts.logger.Warn("mqttnet: unexpected packet type", slog.Int("type", int(raw.Type())))
		cb(Event{Kind: EventIgnored, PacketType: raw.Type()})
	}
	return nil
}

func (c *Client) handleIncomingPublish(p *packets.PublishPacket, cb EventCallback) error {
	if p.QoS == uint8(QoS2) {
		c.mu.Lock()
		_, dup := c.incomingQoS2[p.PacketID]
		c.incomingQoS2[p.PacketID] = struct{}{}
		c.mu.Unlock()
		rec := &packets.PubrecPacket{PacketID: p.PacketID, Version: c.opts.protocolVersion}
		if _, err := rec.WriteTo(c.conn); err != nil {
			return fmt.Errorf("mqttnet: write PUBREC: %w", err)
		}
		if dup {
			// Already delivered to the application; only the handshake
			// needed to be redone.
			return nil
		}
	} else if p.QoS == uint8(QoS1) {
		ack := &packets.PubackPacket{PacketID: p.PacketID, Version: c.opts.protocolVersion}
		if _, err := ack.WriteTo(c.conn); err != nil {
			return fmt.Errorf("mqttnet: write PUBACK: %w", err)
		}
	}

	cb(Event{
		Kind: EventIncomingPublish,
		Publish: &IncomingPublish{
			Topic:      p.Topic,
			Payload:    p.Payload,
			QoS:        QoS(p.QoS),
			Retained:   p.Retain,
			Duplicate:  p.Dup,
			PacketID:   p.PacketID,
			Properties: p.Properties,
		},
	})
	return nil
}

func (c *Client) clearOutgoing(packetID uint16) {
	c.mu.Lock()
	delete(c.outgoingQoS, packetID)
	c.mu.Unlock()
}

// ResendPublish republishes a previously-sent QoS>0 publish with Dup set,
// used by the agent's session-resume path for packet ids returned by
// PublishToResend.
func (c *Client) ResendPublish(packetID uint16) error {
	c.mu.Lock()
	op, ok := c.outgoingQoS[packetID]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("mqttnet: no retained state for packet id %d", packetID)
	}
	return c.Publish(op.topic, op.payload, op.qos, op.retain, true, packetID)
}
