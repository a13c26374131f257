package mqttnet

import "github.com/relaydog/mqttagent/internal/packets"

// IncomingPublish is the payload handed to the agent's incoming-publish
// callback for every PUBLISH received from the broker, regardless of
// direction of flow in any QoS handshake still in progress underneath it.
type IncomingPublish struct {
	Topic      string
	Payload    []byte
	QoS        QoS
	Retained   bool
	Duplicate  bool
	PacketID   uint16
	Properties *packets.Properties
}
