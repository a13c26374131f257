package agent

import (
	"log/slog"

	"github.com/relaydog/mqttagent/mqttnet"
)

// onEvent is the callback handed to mqttnet.Client.ProcessLoop. It is the
// Go counterpart of mqttEventCallback in the source this is grounded on:
// PUBLISH goes to the incoming-publish callback, ack-bearing packets are
// correlated against the pending-ack table and completed, and anything
// else (PINGRESP, or a packet mqttnet already fully handled internally)
// is logged and dropped.
func (a *Agent) onEvent(evt mqttnet.Event) {
	switch evt.Kind {
	case mqttnet.EventIncomingPublish:
		if a.incomingPublish != nil {
			a.incomingPublish(evt.Publish, a.incomingPublishCtx)
		}

	case mqttnet.EventAck:
		cmd, found := a.acks.take(evt.PacketID)
		if !found {
			a.logger.Warn("mqttagent: ack with no parked command",
				slog.Int("packet_id", int(evt.PacketID)),
				slog.Int("packet_type", int(evt.PacketType)))
			return
		}
		status := StatusSuccess
		if evt.AckFailed {
			status = StatusServerRefused
		}
		if end, ok := a.spans[evt.PacketID]; ok {
			end(status)
			delete(a.spans, evt.PacketID)
		}
		if a.metrics != nil {
			a.metrics.observeAckOccupancy(a.acks.occupied())
		}
		a.complete(cmd, ReturnInfo{Status: status, SubackCodes: evt.SubackCodes})

	case mqttnet.EventIgnored:
		a.logger.Debug("mqttagent: dropped packet",
			slog.Int("packet_type", int(evt.PacketType)))
	}
}
