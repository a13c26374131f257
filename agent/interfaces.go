package agent

import (
	"time"

	"github.com/relaydog/mqttagent/mqttnet"
)

// MessageInterface is the multi-producer/single-consumer channel the agent
// drains and producers push onto, plus the command-pool allocator —
// together the Go mapping of AgentMessageInterface_t and the
// AgentCommandGet_t/AgentCommandRelease_t pair from the source this
// package is grounded on.
type MessageInterface interface {
	// Send pushes cmd onto the queue, blocking up to blockTime (zero means
	// non-blocking, negative means block indefinitely). Returns false if
	// the timeout elapsed before the command could be enqueued.
	Send(cmd *Command, blockTime time.Duration) bool

	// Recv pops the next command, blocking up to blockTime. Returns false
	// if the timeout elapsed with nothing to receive.
	Recv(blockTime time.Duration) (*Command, bool)

	// GetCommand checks out a Command from the pool, blocking up to
	// blockTime. Returns false if none became available in time.
	GetCommand(blockTime time.Duration) (*Command, bool)

	// ReleaseCommand returns cmd to the pool. Called exactly once per
	// command that was ever successfully obtained from GetCommand.
	ReleaseCommand(cmd *Command)
}

// MQTTClient is the narrow, non-thread-safe MQTT client surface the agent
// drives. mqttnet.Client satisfies it; tests substitute a fake.
type MQTTClient interface {
	Connect(server string, info mqttnet.ConnectInfo, ackTimeout time.Duration) (sessionPresent bool, err error)
	Publish(topic string, payload []byte, qos mqttnet.QoS, retain, dup bool, packetID uint16) error
	Subscribe(topics []string, qos []mqttnet.QoS, packetID uint16) error
	Unsubscribe(topics []string, packetID uint16) error
	Ping() error
	Disconnect() error
	ProcessLoop(timeout time.Duration, cb mqttnet.EventCallback) (packetReceived bool, err error)
	GetPacketID() uint16
	PublishToResend(cursor *mqttnet.StateCursor) (packetID uint16, ok bool)
	ResendPublish(packetID uint16) error

	// Connected is the client-initialized witness §4.7's validator checks
	// before any command reaches the queue, the Go mapping of the source's
	// next_packet_id != 0 test.
	Connected() bool

	// NetworkBufferSize reports the size of the buffer a PUBLISH must fit
	// in, used to enforce the topic_name_length + 4 < network_buffer_size
	// bound before any state mutation.
	NetworkBufferSize() int
}

// Clock is the agent's only source of wall-clock time, matching
// MQTTGetCurrentTimeFunc_t's role as an injectable external collaborator
// in the source this package is grounded on.
type Clock interface {
	NowMs() int64
}

type systemClock struct{}

func (systemClock) NowMs() int64 { return time.Now().UnixMilli() }
