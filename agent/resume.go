package agent

import (
	"fmt"
	"log/slog"

	"github.com/relaydog/mqttagent/mqttnet"
)

// ResumeSession reconciles the pending-ack table against what the broker
// reported on the most recent CONNACK. When sessionPresent is true, every
// parked Publish command is republished with Dup set so the broker can
// finish whatever QoS handshake it remembers; any other kind of parked
// command (Subscribe, Unsubscribe, Ping) has no broker-side memory to
// resume and is left untouched, matching resendPublishes in the source
// this is grounded on, which only ever resends publishes.
//
// When sessionPresent is false the broker has discarded its session
// state entirely: every parked command is completed with StatusRecvFailed
// and the table is cleared, matching clearPendingAcknowledgments.
//
// If a resend fails partway through, ResumeSession returns immediately
// and leaves the remaining entries in the table untouched — deliberately:
// a later retry of ResumeSession, once the transport problem is fixed,
// can pick up exactly where this call left off. This mirrors the
// original implementation, which does not clear the table on a partial
// resend failure either.
func (a *Agent) ResumeSession(sessionPresent bool) error {
	if !sessionPresent {
		a.drainPendingAcks(StatusRecvFailed)
		return nil
	}

	var cursor mqttnet.StateCursor
	for {
		packetID, ok := a.client.PublishToResend(&cursor)
		if !ok {
			return nil
		}
		cmd, found := a.acks.take(packetID)
		if !found {
			// The client retained QoS state the agent has no matching
			// parked command for (e.g. the agent itself was rebuilt);
			// nothing to redeliver an application callback for.
			continue
		}
		if _, ok := cmd.Args.(*PublishArgs); !ok {
			a.acks.reserve(packetID, cmd) // not a publish: leave it parked
			a.logger.Warn("mqttagent: resend candidate was not a publish",
				slog.Int("packet_id", int(packetID)))
			continue
		}
		if err := a.client.ResendPublish(packetID); err != nil {
			a.acks.reserve(packetID, cmd) // put it back; nothing was lost
			return fmt.Errorf("mqttagent: resume session: resend packet %d: %w", packetID, err)
		}
		a.acks.reserve(packetID, cmd)
	}
}
