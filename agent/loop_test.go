package agent

import (
	"context"
	"testing"
	"time"

	"github.com/relaydog/mqttagent/mqttnet"
)

func TestRunEndsOnDisconnect(t *testing.T) {
	client := &fakeClient{}
	client.Connect("tcp://x", mqttnet.ConnectInfo{}, 0)
	mi := newFakeMessageInterface(4)
	a := New(client, mi, WithMaxEventQueueWait(10*time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()

	if err := a.EnqueueDisconnect(nil, nil, time.Second); err != nil {
		t.Fatalf("EnqueueDisconnect: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() = %v, want nil after a clean disconnect", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Disconnect")
	}
	if client.disconnects != 1 {
		t.Fatalf("disconnects = %d, want 1", client.disconnects)
	}
}

func TestRunEndsOnContextCancellation(t *testing.T) {
	a := New(&fakeClient{}, newFakeMessageInterface(4), WithMaxEventQueueWait(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Run() = nil, want context.Canceled")
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestStepThenOnEventDeliversPublishCompletion(t *testing.T) {
	// Exercises step (dispatch + park) and onEvent (ack correlation)
	// together, synchronously, the same pair Run drives in a loop.
	client := &fakeClient{}
	client.Connect("tcp://x", mqttnet.ConnectInfo{}, 0)
	a := New(client, newFakeMessageInterface(4))

	completed := make(chan ReturnInfo, 1)
	cmd := &Command{
		Kind: CommandPublish,
		Args: &PublishArgs{Topic: "t", QoS: mqttnet.QoS1},
		OnComplete: func(_ any, info ReturnInfo) {
			completed <- info
		},
	}

	a.step(cmd)

	if len(client.published) != 1 {
		t.Fatalf("published = %+v, want 1 publish dispatched", client.published)
	}
	packetID := client.published[0].packetID
	if packetID == 0 {
		t.Fatal("dispatch did not assign a packet id for a QoS 1 publish")
	}

	const pubackPacketType = 4
	a.onEvent(mqttnet.Event{Kind: mqttnet.EventAck, PacketID: packetID, PacketType: pubackPacketType})

	select {
	case info := <-completed:
		if info.Status != StatusSuccess {
			t.Fatalf("completion status = %v, want success", info.Status)
		}
	default:
		t.Fatal("publish completion callback never fired")
	}
}

func TestStepCompletesWithNoMemoryWhenAckTableFull(t *testing.T) {
	client := &fakeClient{}
	client.Connect("tcp://x", mqttnet.ConnectInfo{}, 0)
	a := New(client, newFakeMessageInterface(4), WithMaxOutstandingAcks(1))

	// Fill the only ack slot with an unrelated command.
	a.acks.reserve(999, &Command{Kind: CommandPing})

	var gotInfo ReturnInfo
	cmd := &Command{
		Kind: CommandPublish,
		Args: &PublishArgs{Topic: "t", QoS: mqttnet.QoS1},
		OnComplete: func(_ any, info ReturnInfo) {
			gotInfo = info
		},
	}

	a.step(cmd)

	if gotInfo.Status != StatusNoMemory {
		t.Fatalf("status = %v, want StatusNoMemory when the ack table is full", gotInfo.Status)
	}
}
