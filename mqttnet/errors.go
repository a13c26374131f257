package mqttnet

import (
	"errors"
	"fmt"

	"github.com/relaydog/mqttagent/internal/packets"
)

// Sentinel errors surfaced from a CONNACK refusal, mirroring the named
// errors gonzalop-mq's own client.go maps CONNACK return codes onto.
var (
	ErrUnacceptableProtocolVersion = errors.New("mqttnet: broker refused: unacceptable protocol version")
	ErrIdentifierRejected          = errors.New("mqttnet: broker refused: client identifier rejected")
	ErrServerUnavailable           = errors.New("mqttnet: broker refused: server unavailable")
	ErrBadUsernameOrPassword       = errors.New("mqttnet: broker refused: bad username or password")
	ErrNotAuthorized               = errors.New("mqttnet: broker refused: not authorized")
	ErrNotConnected                = errors.New("mqttnet: client is not connected")
	ErrAlreadyConnected            = errors.New("mqttnet: client is already connected")
)

func connackError(code uint8) error {
	switch code {
	case packets.ConnAccepted:
		return nil
	case packets.ConnRefusedUnacceptableProtocol:
		return ErrUnacceptableProtocolVersion
	case packets.ConnRefusedIdentifierRejected:
		return ErrIdentifierRejected
	case packets.ConnRefusedServerUnavailable:
		return ErrServerUnavailable
	case packets.ConnRefusedBadUsernameOrPassword:
		return ErrBadUsernameOrPassword
	case packets.ConnRefusedNotAuthorized:
		return ErrNotAuthorized
	default:
		return fmt.Errorf("mqttnet: broker refused: unknown return code %d", code)
	}
}
