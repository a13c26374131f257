package agent

import (
	"log/slog"

	"github.com/relaydog/mqttagent/mqttnet"
)

// commandFunc executes one dispatched command against the MQTT client and
// reports the outcome plus the flags the command-loop step needs to decide
// whether to park the command, drive the process loop, or end the loop —
// the Go counterpart of each MQTTAgentCommand_* function in the source
// this package is grounded on.
type commandFunc func(a *Agent, cmd *Command) (ReturnInfo, dispatchFlags)

var dispatchTable = [numCommandKinds]commandFunc{
	CommandNone:        dispatchNone,
	CommandProcessLoop: dispatchProcessLoop,
	CommandPublish:     dispatchPublish,
	CommandSubscribe:   dispatchSubscribe,
	CommandUnsubscribe: dispatchUnsubscribe,
	CommandPing:        dispatchPing,
	CommandConnect:     dispatchConnect,
	CommandDisconnect:  dispatchDisconnect,
	CommandTerminate:   dispatchTerminate,
}

// dispatchNone is the handler for a null command pointer: a recv timeout
// with nothing queued. It aliases dispatchProcessLoop so that an agent
// wake with nothing to do still drives the network.
func dispatchNone(a *Agent, cmd *Command) (ReturnInfo, dispatchFlags) {
	return dispatchProcessLoop(a, cmd)
}

func dispatchProcessLoop(a *Agent, cmd *Command) (ReturnInfo, dispatchFlags) {
	return ReturnInfo{Status: StatusSuccess}, dispatchFlags{runProcessLoop: true}
}

func dispatchPublish(a *Agent, cmd *Command) (ReturnInfo, dispatchFlags) {
	args, ok := cmd.Args.(*PublishArgs)
	if !ok {
		return ReturnInfo{Status: StatusBadParameter}, dispatchFlags{}
	}
	if args.QoS > mqttnet.QoS0 {
		args.PacketID = a.client.GetPacketID()
	}
	if err := a.client.Publish(args.Topic, args.Payload, args.QoS, args.Retain, args.Dup, args.PacketID); err != nil {
		a.logger.Warn("mqttagent: publish failed", slog.String("topic", args.Topic), slog.Any("err", err))
		return ReturnInfo{Status: StatusSendFailed}, dispatchFlags{}
	}
	if args.QoS == mqttnet.QoS0 {
		return ReturnInfo{Status: StatusSuccess}, dispatchFlags{runProcessLoop: true}
	}
	return ReturnInfo{Status: StatusSuccess}, dispatchFlags{addAck: true, packetID: args.PacketID, runProcessLoop: true}
}

func dispatchSubscribe(a *Agent, cmd *Command) (ReturnInfo, dispatchFlags) {
	args, ok := cmd.Args.(*SubscribeArgs)
	if !ok {
		return ReturnInfo{Status: StatusBadParameter}, dispatchFlags{}
	}
	args.PacketID = a.client.GetPacketID()
	if err := a.client.Subscribe(args.Topics, args.QoS, args.PacketID); err != nil {
		a.logger.Warn("mqttagent: subscribe failed", slog.Any("topics", args.Topics), slog.Any("err", err))
		return ReturnInfo{Status: StatusSendFailed}, dispatchFlags{}
	}
	return ReturnInfo{Status: StatusSuccess}, dispatchFlags{addAck: true, packetID: args.PacketID, runProcessLoop: true}
}

func dispatchUnsubscribe(a *Agent, cmd *Command) (ReturnInfo, dispatchFlags) {
	args, ok := cmd.Args.(*SubscribeArgs)
	if !ok {
		return ReturnInfo{Status: StatusBadParameter}, dispatchFlags{}
	}
	args.PacketID = a.client.GetPacketID()
	if err := a.client.Unsubscribe(args.Topics, args.PacketID); err != nil {
		a.logger.Warn("mqttagent: unsubscribe failed", slog.Any("topics", args.Topics), slog.Any("err", err))
		return ReturnInfo{Status: StatusSendFailed}, dispatchFlags{}
	}
	return ReturnInfo{Status: StatusSuccess}, dispatchFlags{addAck: true, packetID: args.PacketID, runProcessLoop: true}
}

func dispatchPing(a *Agent, cmd *Command) (ReturnInfo, dispatchFlags) {
	if err := a.client.Ping(); err != nil {
		a.logger.Warn("mqttagent: ping failed", slog.Any("err", err))
		return ReturnInfo{Status: StatusSendFailed}, dispatchFlags{}
	}
	// PINGRESP carries no packet id to correlate against; the agent does
	// not park an ack for it, matching the source's log-and-drop handling
	// of PINGRESP in the event callback.
	return ReturnInfo{Status: StatusSuccess}, dispatchFlags{runProcessLoop: true}
}

func dispatchConnect(a *Agent, cmd *Command) (ReturnInfo, dispatchFlags) {
	args, ok := cmd.Args.(*ConnectArgs)
	if !ok {
		return ReturnInfo{Status: StatusBadParameter}, dispatchFlags{}
	}
	info := mqttnet.ConnectInfo{
		ClientID:     args.ClientID,
		CleanSession: args.CleanSession,
		KeepAlive:    uint16(args.KeepAlive.Seconds()),
		HasUsername:  args.HasCredentials,
		Username:     args.Username,
		HasPassword:  args.HasCredentials && args.Password != "",
		Password:     args.Password,
		Will:         args.Will,
	}
	sessionPresent, err := a.client.Connect(args.Server, info, args.ConnAckTimeout)
	if err != nil {
		a.logger.Warn("mqttagent: connect failed", slog.Any("err", err))
		return ReturnInfo{Status: StatusServerRefused}, dispatchFlags{}
	}
	if args.SessionPresent != nil {
		*args.SessionPresent = sessionPresent
	}
	if err := a.ResumeSession(sessionPresent); err != nil {
		a.logger.Error("mqttagent: resume session after connect failed", slog.Any("err", err))
		return ReturnInfo{Status: StatusRecvFailed}, dispatchFlags{}
	}
	return ReturnInfo{Status: StatusSuccess}, dispatchFlags{}
}

func dispatchDisconnect(a *Agent, cmd *Command) (ReturnInfo, dispatchFlags) {
	if err := a.client.Disconnect(); err != nil {
		a.logger.Warn("mqttagent: disconnect failed", slog.Any("err", err))
		return ReturnInfo{Status: StatusSendFailed}, dispatchFlags{endLoop: true}
	}
	// Ending the command loop here is deliberate: reconnecting means
	// re-dialing a fresh transport, which is outside the agent's remit
	// (no automatic reconnection), so the caller must start a new Run.
	return ReturnInfo{Status: StatusSuccess}, dispatchFlags{endLoop: true}
}

// dispatchTerminate drains every queued command and every occupied
// PendingAck slot, completing each with StatusBadResponse — mirroring
// concludeCommandAsError, which both of Terminate's drain loops in the
// source this is grounded on use, distinct from clearPendingAcknowledgments'
// StatusRecvFailed used by ResumeSession's no-session path.
func dispatchTerminate(a *Agent, cmd *Command) (ReturnInfo, dispatchFlags) {
	a.drainQueue(StatusBadResponse)
	a.drainPendingAcks(StatusBadResponse)
	return ReturnInfo{Status: StatusSuccess}, dispatchFlags{endLoop: true}
}

// concludeAsError completes cmd with status and releases it back to the
// pool. The caller decides the status: StatusBadResponse for Terminate's
// two drain loops (concludeCommandAsError in the source), StatusRecvFailed
// for ResumeSession's no-session path (clearPendingAcknowledgments).
func (a *Agent) concludeAsError(cmd *Command, status Status) {
	a.complete(cmd, ReturnInfo{Status: status})
}

// drainQueue empties any commands still waiting in the queue, completing
// each with status instead of running it.
func (a *Agent) drainQueue(status Status) {
	for {
		cmd, ok := a.mi.Recv(0)
		if !ok {
			return
		}
		a.concludeAsError(cmd, status)
	}
}

// drainPendingAcks completes and clears every parked ack with status, used
// when the agent is terminating (every outstanding operation is abandoned,
// StatusBadResponse) or when ResumeSession finds no prior session to
// resume (every parked operation is unrecoverable since the broker has
// forgotten it, StatusRecvFailed).
func (a *Agent) drainPendingAcks(status Status) {
	a.acks.forEach(func(packetID uint16, origin *Command) {
		if end, ok := a.spans[packetID]; ok {
			end(status)
			delete(a.spans, packetID)
		}
		a.concludeAsError(origin, status)
	})
}
