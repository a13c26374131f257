// Package agentqueue provides the default agent.MessageInterface
// implementation: a bounded channel queue paired with a semaphore-gated
// command pool, the concrete collaborator gonzalop-mq's own channel-based
// work queues in logic.go are generalized into here.
package agentqueue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/relaydog/mqttagent/agent"
	"golang.org/x/sync/semaphore"
)

// Queue is the default agent.MessageInterface: a buffered channel of
// *agent.Command backed by a fixed pool of Command structs checked out
// through a weighted semaphore, so that in steady state no allocation
// happens on the hot path — the same "no dynamic allocation" contract the
// source's static command pool gives the embedded agent.
type Queue struct {
	ch   chan *agent.Command
	pool chan *agent.Command
	sem  *semaphore.Weighted
	tag  bool // whether to stamp commands with a debug correlation id
}

// New builds a Queue with room for capacity commands in flight at once —
// both the channel depth and the command-pool size. withDebugTags
// stores a uuid-based correlation id in each checked-out command's
// CmdContext; it costs an allocation per GetCommand and is meant for
// development, not steady-state production traffic.
func New(capacity int, withDebugTags bool) *Queue {
	if capacity <= 0 {
		capacity = 32
	}
	q := &Queue{
		ch:   make(chan *agent.Command, capacity),
		pool: make(chan *agent.Command, capacity),
		sem:  semaphore.NewWeighted(int64(capacity)),
		tag:  withDebugTags,
	}
	for i := 0; i < capacity; i++ {
		q.pool <- &agent.Command{}
	}
	return q
}

// Send implements agent.MessageInterface.
func (q *Queue) Send(cmd *agent.Command, blockTime time.Duration) bool {
	if blockTime == 0 {
		select {
		case q.ch <- cmd:
			return true
		default:
			return false
		}
	}
	ctx, cancel := blockContext(blockTime)
	defer cancel()
	select {
	case q.ch <- cmd:
		return true
	case <-ctx.Done():
		return false
	}
}

// Recv implements agent.MessageInterface.
func (q *Queue) Recv(blockTime time.Duration) (*agent.Command, bool) {
	if blockTime == 0 {
		select {
		case cmd := <-q.ch:
			return cmd, true
		default:
			return nil, false
		}
	}
	ctx, cancel := blockContext(blockTime)
	defer cancel()
	select {
	case cmd := <-q.ch:
		return cmd, true
	case <-ctx.Done():
		return nil, false
	}
}

// GetCommand implements agent.MessageInterface by acquiring one weighted
// semaphore unit and handing back the matching pooled Command.
func (q *Queue) GetCommand(blockTime time.Duration) (*agent.Command, bool) {
	if blockTime == 0 {
		if !q.sem.TryAcquire(1) {
			return nil, false
		}
	} else {
		ctx, cancel := blockContext(blockTime)
		defer cancel()
		if err := q.sem.Acquire(ctx, 1); err != nil {
			return nil, false
		}
	}
	cmd := <-q.pool
	*cmd = agent.Command{}
	if q.tag {
		cmd.CmdContext = correlationID{id: uuid.NewString(), wrapped: cmd.CmdContext}
	}
	return cmd, true
}

// ReleaseCommand implements agent.MessageInterface.
func (q *Queue) ReleaseCommand(cmd *agent.Command) {
	*cmd = agent.Command{}
	q.pool <- cmd
	q.sem.Release(1)
}

// correlationID is a debug-only wrapper so a tagged command's original
// CmdContext is still reachable by the application's completion callback.
type correlationID struct {
	id      string
	wrapped any
}

// ID returns the debug correlation id, or "" if the queue wasn't built
// with withDebugTags.
func (c correlationID) ID() string { return c.id }

// Unwrap returns the application's original CmdContext value.
func (c correlationID) Unwrap() any { return c.wrapped }

func blockContext(blockTime time.Duration) (context.Context, context.CancelFunc) {
	if blockTime < 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), blockTime)
}
