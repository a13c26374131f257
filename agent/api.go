package agent

import (
	"fmt"
	"time"

	"github.com/relaydog/mqttagent/mqttnet"
)

// enqueue validates cmd, obtains a pooled Command to carry it, and pushes
// it onto the queue — the shared tail of every MQTTAgent_* public
// function in the source this is grounded on (validateStruct +
// validateParams, then createAndAddCommand).
func (a *Agent) enqueue(kind CommandKind, args any, onComplete CompletionFunc, cmdContext any, blockTime time.Duration) error {
	draft := &Command{Kind: kind, Args: args}
	if err := a.validate(draft); err != nil {
		return err
	}

	if needsAckSpace(kind, args) && !a.acks.spaceAvailable() {
		return fmt.Errorf("mqttagent: %w: pending-ack table has no free slot", ErrNoMemory)
	}

	cmd, ok := a.mi.GetCommand(blockTime)
	if !ok {
		return fmt.Errorf("mqttagent: %w: no command available from pool within block time", ErrNoMemory)
	}
	cmd.Kind = kind
	cmd.Args = args
	cmd.OnComplete = onComplete
	cmd.CmdContext = cmdContext
	cmd.BlockTime = blockTime

	if !a.mi.Send(cmd, blockTime) {
		a.mi.ReleaseCommand(cmd)
		return fmt.Errorf("mqttagent: %w: queue did not accept command within block time", ErrSendFailed)
	}
	return nil
}

// needsAckSpace reports whether kind will, if dispatched, try to reserve a
// PendingAck slot — Subscribe and Unsubscribe always do, Publish only for
// QoS > 0 — matching §4.7's best-effort pre-enqueue space check.
func needsAckSpace(kind CommandKind, args any) bool {
	switch kind {
	case CommandSubscribe, CommandUnsubscribe:
		return true
	case CommandPublish:
		p, ok := args.(*PublishArgs)
		return ok && p != nil && p.QoS > mqttnet.QoS0
	default:
		return false
	}
}

// EnqueuePublish submits a PUBLISH. For QoS 0 the completion callback
// fires as soon as the write succeeds; for QoS 1/2 it fires once the
// matching ack completes the handshake.
func (a *Agent) EnqueuePublish(args *PublishArgs, onComplete CompletionFunc, cmdContext any, blockTime time.Duration) error {
	return a.enqueue(CommandPublish, args, onComplete, cmdContext, blockTime)
}

// EnqueueSubscribe submits a SUBSCRIBE; onComplete receives the broker's
// per-topic return codes in ReturnInfo.SubackCodes.
func (a *Agent) EnqueueSubscribe(args *SubscribeArgs, onComplete CompletionFunc, cmdContext any, blockTime time.Duration) error {
	return a.enqueue(CommandSubscribe, args, onComplete, cmdContext, blockTime)
}

// EnqueueUnsubscribe submits an UNSUBSCRIBE.
func (a *Agent) EnqueueUnsubscribe(args *SubscribeArgs, onComplete CompletionFunc, cmdContext any, blockTime time.Duration) error {
	return a.enqueue(CommandUnsubscribe, args, onComplete, cmdContext, blockTime)
}

// EnqueueConnect submits a CONNECT. args.SessionPresent, if set, is
// filled in before onComplete fires.
func (a *Agent) EnqueueConnect(args *ConnectArgs, onComplete CompletionFunc, cmdContext any, blockTime time.Duration) error {
	return a.enqueue(CommandConnect, args, onComplete, cmdContext, blockTime)
}

// EnqueueDisconnect submits a DISCONNECT. Its completion ends the command
// loop: the underlying Run call returns right after onComplete fires,
// without dispatching another command.
func (a *Agent) EnqueueDisconnect(onComplete CompletionFunc, cmdContext any, blockTime time.Duration) error {
	return a.enqueue(CommandDisconnect, nil, onComplete, cmdContext, blockTime)
}

// EnqueuePing submits a PINGREQ.
func (a *Agent) EnqueuePing(onComplete CompletionFunc, cmdContext any, blockTime time.Duration) error {
	return a.enqueue(CommandPing, nil, onComplete, cmdContext, blockTime)
}

// EnqueueProcessLoop nudges the agent to drive the network even though no
// other command is ready, useful for keep-alive-driven polling.
func (a *Agent) EnqueueProcessLoop(onComplete CompletionFunc, cmdContext any, blockTime time.Duration) error {
	return a.enqueue(CommandProcessLoop, nil, onComplete, cmdContext, blockTime)
}

// CancelAll terminates the agent: every queued command and every parked
// ack is completed with an error, and the running Run call returns.
// It is the only supported way to cancel the agent as a whole — per-
// command cancellation via blockTime only ever affects the
// act of enqueueing, never a command already accepted by the agent.
func (a *Agent) CancelAll(blockTime time.Duration) error {
	return a.enqueue(CommandTerminate, nil, nil, nil, blockTime)
}

// mqttnet re-exported constructor helpers kept here so callers building
// ConnectArgs don't need a second import for common QoS values.
var (
	QoS0 = mqttnet.QoS0
	QoS1 = mqttnet.QoS1
	QoS2 = mqttnet.QoS2
)

// Sentinel errors surfaced by the Enqueue* functions, distinct from the
// Status values carried in a completion callback because these describe a
// failure to ever reach the agent at all.
var (
	ErrNoMemory   = fmt.Errorf("no memory")
	ErrSendFailed = fmt.Errorf("could not enqueue command")
)
