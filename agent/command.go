// Package agent implements a thread-safe command-serialization layer atop
// a non-thread-safe MQTT 3.1.1 client. One goroutine — the agent — owns the
// client exclusively; any number of producer goroutines submit work by
// enqueueing commands and waiting on a completion callback.
package agent

import (
	"time"

	"github.com/relaydog/mqttagent/mqttnet"
)

// CommandKind identifies the operation a Command carries. The zero value,
// CommandNone, never appears on the wire between a producer and the agent;
// it exists so a zero-valued Command is recognizably invalid.
type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandProcessLoop
	CommandPublish
	CommandSubscribe
	CommandUnsubscribe
	CommandPing
	CommandConnect
	CommandDisconnect
	CommandTerminate

	numCommandKinds
)

func (k CommandKind) String() string {
	switch k {
	case CommandNone:
		return "none"
	case CommandProcessLoop:
		return "process_loop"
	case CommandPublish:
		return "publish"
	case CommandSubscribe:
		return "subscribe"
	case CommandUnsubscribe:
		return "unsubscribe"
	case CommandPing:
		return "ping"
	case CommandConnect:
		return "connect"
	case CommandDisconnect:
		return "disconnect"
	case CommandTerminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// Status is the terminal outcome of a Command, reported once to its
// completion callback. Status implements error so callers can use
// errors.Is against the Status* sentinels.
type Status int

const (
	StatusSuccess Status = iota
	StatusBadParameter
	StatusNoMemory
	StatusSendFailed
	StatusRecvFailed
	StatusBadResponse
	StatusServerRefused
)

func (s Status) Error() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusBadParameter:
		return "bad parameter"
	case StatusNoMemory:
		return "no memory: pending-ack table full"
	case StatusSendFailed:
		return "send failed"
	case StatusRecvFailed:
		return "recv failed"
	case StatusBadResponse:
		return "bad response from broker"
	case StatusServerRefused:
		return "server refused"
	default:
		return "unknown status"
	}
}

// ReturnInfo is delivered to a command's completion callback.
type ReturnInfo struct {
	Status      Status
	SubackCodes []uint8 // populated only for CommandSubscribe
}

// PublishArgs carries the arguments for CommandPublish. The caller owns
// Payload for the lifetime of the command — it must not be mutated until
// OnComplete has run.
type PublishArgs struct {
	Topic    string
	Payload  []byte
	QoS      mqttnet.QoS
	Retain   bool
	Dup      bool
	PacketID uint16 // assigned by the agent for QoS > 0; ignored otherwise
}

// SubscribeArgs carries the arguments for CommandSubscribe or
// CommandUnsubscribe; QoS is ignored (and may be nil) for unsubscribe.
type SubscribeArgs struct {
	Topics   []string
	QoS      []mqttnet.QoS
	PacketID uint16
}

// ConnectArgs carries the arguments for CommandConnect.
type ConnectArgs struct {
	Server         string
	ClientID       string
	CleanSession   bool
	KeepAlive      time.Duration
	Username       string
	Password       string
	HasCredentials bool
	Will           *mqttnet.Will
	ConnAckTimeout time.Duration

	// SessionPresent is filled in by the Connect handler once the broker's
	// CONNACK has been received, for the caller's completion callback to
	// inspect. The handler has already run ResumeSession with this value
	// by the time the callback fires.
	SessionPresent *bool
}

// CompletionFunc is invoked exactly once per command, from the agent
// goroutine, after the command is fully resolved (its ack has landed, or
// it failed outright, or the agent is terminating). It must not block.
type CompletionFunc func(cmdContext any, info ReturnInfo)

// Command is a single unit of work submitted to the agent. Args holds one
// of *PublishArgs, *SubscribeArgs, *ConnectArgs, or nil depending on Kind.
// A Command must not be reused or its Args mutated once it has been
// enqueued, until OnComplete has fired — the agent may still be reading it
// asynchronously via the pending-ack table up to that point.
type Command struct {
	Kind       CommandKind
	Args       any
	OnComplete CompletionFunc
	CmdContext any

	// BlockTime bounds how long EnqueueXxx blocks trying to obtain a
	// Command from the pool and push it onto the queue. Zero means don't
	// block at all; a negative value means block indefinitely.
	BlockTime time.Duration
}

// dispatchFlags is the per-dispatch outcome the command-loop step uses to
// decide whether to park the command awaiting an ack, run the client's
// process loop, and whether to end the command loop altogether.
type dispatchFlags struct {
	addAck         bool
	packetID       uint16
	runProcessLoop bool
	endLoop        bool
}
