package agent

import "context"

// maxProcessLoopDrain bounds how many times Run will call the client's
// ProcessLoop back-to-back after a single dispatched command, so that a
// broker streaming a burst of publishes cannot starve other producers
// waiting on the queue. There is no equivalent bound in the source this
// is grounded on, which runs on a single-consumer embedded target where
// that starvation risk doesn't arise the same way; it is a deliberate,
// Go-specific addition, not a behavior change to any documented invariant.
const maxProcessLoopDrain = 64

// Run is the command loop: receive, dispatch, park-or-complete, drive the
// network, repeat, until a dispatched command sets endLoop or fails, or
// ctx is cancelled. A failed command's Status is returned as the error.
// Run must be called from exactly one goroutine; that goroutine
// becomes "the agent" for as long as Run is executing.
func (a *Agent) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		cmd, ok := a.mi.Recv(a.maxEventQueueWait)

		var info ReturnInfo
		var flags dispatchFlags
		if ok {
			info, flags = a.step(cmd)
		} else {
			// A recv timeout means out is null: dispatch it through the
			// None handler anyway (it aliases ProcessLoop) so an
			// idle-but-connected agent still drives the network, but
			// there is no real command to reserve an ack for or complete.
			info, flags = a.stepNone()
		}

		if flags.endLoop || info.Status != StatusSuccess {
			if info.Status == StatusSuccess {
				return nil
			}
			return info.Status
		}
	}
}

// step dispatches one command and performs the reserve-or-complete and
// process-loop-drive phases that follow it in the source's processCommand.
func (a *Agent) step(cmd *Command) (ReturnInfo, dispatchFlags) {
	if a.metrics != nil {
		a.metrics.observeDispatch(cmd.Kind)
	}
	endSpan := a.startDispatchSpan(cmd.Kind, 0)

	handler := dispatchTable[cmd.Kind]
	if handler == nil {
		handler = dispatchNone
	}
	info, flags := handler(a, cmd)

	if info.Status == StatusSuccess && flags.addAck {
		if a.acks.reserve(flags.packetID, cmd) {
			a.spans[flags.packetID] = endSpan
			if a.metrics != nil {
				a.metrics.observeAckOccupancy(a.acks.occupied())
			}
		} else {
			info.Status = StatusNoMemory
			endSpan(info.Status)
			a.complete(cmd, info)
		}
	} else {
		endSpan(info.Status)
		a.complete(cmd, info)
	}

	if info.Status == StatusSuccess && flags.runProcessLoop {
		a.driveProcessLoop()
	}

	return info, flags
}

// stepNone dispatches the null command produced by a recv timeout. Unlike
// step, there is no real Command to park an ack for or complete — the
// handler (always the ProcessLoop alias for a null command) only decides
// whether to drive the network.
func (a *Agent) stepNone() (ReturnInfo, dispatchFlags) {
	info, flags := dispatchNone(a, nil)
	if info.Status == StatusSuccess && flags.runProcessLoop {
		a.driveProcessLoop()
	}
	return info, flags
}

// driveProcessLoop repeatedly pumps the client's process loop with a
// non-blocking read, stopping as soon as a read would have blocked or the
// drain budget is exhausted.
func (a *Agent) driveProcessLoop() {
	for i := 0; i < maxProcessLoopDrain; i++ {
		received, err := a.client.ProcessLoop(0, a.onEvent)
		if err != nil {
			a.logger.Error("mqttagent: process loop error", "err", err)
			return
		}
		if !received {
			return
		}
	}
}
