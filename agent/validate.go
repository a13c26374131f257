package agent

import (
	"fmt"

	"github.com/relaydog/mqttagent/mqttnet"
)

// validate checks a command's shape before it is ever queued, mirroring
// validateStruct/validateParams in the source this is grounded on: a
// malformed command is rejected synchronously, in the caller's own
// goroutine, and never reaches the agent's queue at all.
//
// validate is a method (not a free function) because two of §4.7's checks
// — the client-initialized witness and the publish buffer bound — need to
// observe the MQTTClient. CommandConnect is exempt from the
// client-initialized check: it is the one command that is allowed (and
// expected) to run before the client has ever connected.
func (a *Agent) validate(cmd *Command) error {
	if cmd.Kind <= CommandNone || cmd.Kind >= numCommandKinds {
		return fmt.Errorf("mqttagent: %w: unknown command kind %d", errBadParameter, cmd.Kind)
	}

	if cmd.Kind != CommandConnect && !a.client.Connected() {
		return fmt.Errorf("mqttagent: %w: MQTT client has not been initialized", errBadParameter)
	}

	switch cmd.Kind {
	case CommandPublish:
		args, ok := cmd.Args.(*PublishArgs)
		if !ok || args == nil {
			return fmt.Errorf("mqttagent: %w: publish requires PublishArgs", errBadParameter)
		}
		if args.Topic == "" {
			return fmt.Errorf("mqttagent: %w: publish topic must not be empty", errBadParameter)
		}
		if args.QoS > mqttnet.QoS2 {
			return fmt.Errorf("mqttagent: %w: invalid QoS %d", errBadParameter, args.QoS)
		}
		// Control byte + remaining-length byte + 2-byte topic-length
		// prefix, mirroring uxControlAndLengthBytes in the source this is
		// grounded on.
		const controlAndLengthBytes = 4
		if len(args.Topic)+controlAndLengthBytes >= a.client.NetworkBufferSize() {
			return fmt.Errorf("mqttagent: %w: publish topic too long for the network buffer", errBadParameter)
		}

	case CommandSubscribe:
		args, ok := cmd.Args.(*SubscribeArgs)
		if !ok || args == nil {
			return fmt.Errorf("mqttagent: %w: subscribe requires SubscribeArgs", errBadParameter)
		}
		if len(args.Topics) == 0 {
			return fmt.Errorf("mqttagent: %w: subscribe requires at least one topic", errBadParameter)
		}
		if len(args.QoS) != len(args.Topics) {
			return fmt.Errorf("mqttagent: %w: subscribe QoS slice must match Topics length", errBadParameter)
		}

	case CommandUnsubscribe:
		args, ok := cmd.Args.(*SubscribeArgs)
		if !ok || args == nil {
			return fmt.Errorf("mqttagent: %w: unsubscribe requires SubscribeArgs", errBadParameter)
		}
		if len(args.Topics) == 0 {
			return fmt.Errorf("mqttagent: %w: unsubscribe requires at least one topic", errBadParameter)
		}

	case CommandConnect:
		args, ok := cmd.Args.(*ConnectArgs)
		if !ok || args == nil {
			return fmt.Errorf("mqttagent: %w: connect requires ConnectArgs", errBadParameter)
		}
		if args.Server == "" {
			return fmt.Errorf("mqttagent: %w: connect requires a non-empty server address", errBadParameter)
		}
		if !args.CleanSession && args.ClientID == "" {
			return fmt.Errorf("mqttagent: %w: a persistent session requires a non-empty client id", errBadParameter)
		}

	case CommandPing, CommandDisconnect, CommandTerminate, CommandProcessLoop:
		if cmd.Args != nil {
			return fmt.Errorf("mqttagent: %w: %s takes no arguments", errBadParameter, cmd.Kind)
		}
	}

	return nil
}
