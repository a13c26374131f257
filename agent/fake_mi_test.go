package agent

import "time"

// fakeMessageInterface is a trivial MessageInterface for tests that don't
// need agentqueue's pooling/backpressure behavior — just enough blocking
// semantics for Run's receive loop to behave like a real implementation.
type fakeMessageInterface struct {
	ch   chan *Command
	pool chan *Command
}

func newFakeMessageInterface(capacity int) *fakeMessageInterface {
	pool := make(chan *Command, capacity)
	for i := 0; i < capacity; i++ {
		pool <- &Command{}
	}
	return &fakeMessageInterface{
		ch:   make(chan *Command, capacity),
		pool: pool,
	}
}

func (f *fakeMessageInterface) Send(cmd *Command, blockTime time.Duration) bool {
	select {
	case f.ch <- cmd:
		return true
	default:
		return false
	}
}

func (f *fakeMessageInterface) Recv(blockTime time.Duration) (*Command, bool) {
	if blockTime <= 0 {
		select {
		case cmd := <-f.ch:
			return cmd, true
		default:
			return nil, false
		}
	}
	timer := time.NewTimer(blockTime)
	defer timer.Stop()
	select {
	case cmd := <-f.ch:
		return cmd, true
	case <-timer.C:
		return nil, false
	}
}

func (f *fakeMessageInterface) GetCommand(blockTime time.Duration) (*Command, bool) {
	select {
	case cmd := <-f.pool:
		*cmd = Command{}
		return cmd, true
	default:
		return nil, false
	}
}

func (f *fakeMessageInterface) ReleaseCommand(cmd *Command) {
	*cmd = Command{}
	select {
	case f.pool <- cmd:
	default:
	}
}
