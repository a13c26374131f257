package agent

import (
	"testing"

	"github.com/relaydog/mqttagent/mqttnet"
)

func TestDispatchPublishQoS0SkipsAck(t *testing.T) {
	client := &fakeClient{}
	a := New(client, newFakeMessageInterface(4))

	cmd := &Command{Kind: CommandPublish, Args: &PublishArgs{Topic: "t", QoS: mqttnet.QoS0}}
	info, flags := dispatchPublish(a, cmd)

	if info.Status != StatusSuccess {
		t.Fatalf("status = %v, want success", info.Status)
	}
	if flags.addAck {
		t.Fatal("QoS 0 publish must not request an ack slot")
	}
	if len(client.published) != 1 || client.published[0].qos != mqttnet.QoS0 {
		t.Fatalf("published = %+v", client.published)
	}
}

func TestDispatchPublishQoS1RequestsAck(t *testing.T) {
	client := &fakeClient{}
	client.Connect("tcp://x", mqttnet.ConnectInfo{}, 0)
	a := New(client, newFakeMessageInterface(4))

	cmd := &Command{Kind: CommandPublish, Args: &PublishArgs{Topic: "t", QoS: mqttnet.QoS1}}
	info, flags := dispatchPublish(a, cmd)

	if info.Status != StatusSuccess {
		t.Fatalf("status = %v, want success", info.Status)
	}
	if !flags.addAck || flags.packetID == 0 {
		t.Fatalf("flags = %+v, want addAck with a non-zero packetID", flags)
	}
}

func TestDispatchPublishSendFailure(t *testing.T) {
	client := &fakeClient{publishErr: errTestPublish}
	a := New(client, newFakeMessageInterface(4))

	cmd := &Command{Kind: CommandPublish, Args: &PublishArgs{Topic: "t", QoS: mqttnet.QoS0}}
	info, flags := dispatchPublish(a, cmd)

	if info.Status != StatusSendFailed {
		t.Fatalf("status = %v, want StatusSendFailed", info.Status)
	}
	if flags.addAck || flags.runProcessLoop {
		t.Fatalf("flags = %+v, want zero value on failure", flags)
	}
}

func TestDispatchSubscribeRequestsAck(t *testing.T) {
	client := &fakeClient{}
	a := New(client, newFakeMessageInterface(4))

	cmd := &Command{Kind: CommandSubscribe, Args: &SubscribeArgs{Topics: []string{"a/b"}, QoS: []mqttnet.QoS{mqttnet.QoS1}}}
	info, flags := dispatchSubscribe(a, cmd)

	if info.Status != StatusSuccess || !flags.addAck {
		t.Fatalf("info=%+v flags=%+v, want success+addAck", info, flags)
	}
	if len(client.subscribed) != 1 {
		t.Fatalf("subscribed = %+v", client.subscribed)
	}
}

func TestDispatchConnectFillsSessionPresent(t *testing.T) {
	client := &fakeClient{sessionPresent: true}
	a := New(client, newFakeMessageInterface(4))

	var present bool
	cmd := &Command{Kind: CommandConnect, Args: &ConnectArgs{
		Server:         "tcp://localhost:1883",
		CleanSession:   true,
		SessionPresent: &present,
	}}
	info, _ := dispatchConnect(a, cmd)

	if info.Status != StatusSuccess {
		t.Fatalf("status = %v, want success", info.Status)
	}
	if !present {
		t.Fatal("SessionPresent was not filled in")
	}
}

func TestDispatchConnectRefused(t *testing.T) {
	client := &fakeClient{connectErr: errTestConnect}
	a := New(client, newFakeMessageInterface(4))

	cmd := &Command{Kind: CommandConnect, Args: &ConnectArgs{Server: "tcp://localhost:1883", CleanSession: true}}
	info, flags := dispatchConnect(a, cmd)

	if info.Status != StatusServerRefused {
		t.Fatalf("status = %v, want StatusServerRefused", info.Status)
	}
	if flags.endLoop {
		t.Fatal("a refused connect must not end the command loop by itself")
	}
}

func TestDispatchDisconnectEndsLoop(t *testing.T) {
	client := &fakeClient{}
	a := New(client, newFakeMessageInterface(4))

	info, flags := dispatchDisconnect(a, &Command{Kind: CommandDisconnect})
	if info.Status != StatusSuccess || !flags.endLoop {
		t.Fatalf("info=%+v flags=%+v, want success+endLoop", info, flags)
	}
	if client.disconnects != 1 {
		t.Fatalf("disconnects = %d, want 1", client.disconnects)
	}
}

func TestDispatchTerminateDrainsQueueAndAcks(t *testing.T) {
	client := &fakeClient{}
	mi := newFakeMessageInterface(4)
	a := New(client, mi)

	queued := &Command{Kind: CommandPing}
	mi.ch <- queued
	a.acks.reserve(5, &Command{Kind: CommandPublish})

	var gotQueuedStatus, gotParkedStatus Status
	queued.OnComplete = func(_ any, info ReturnInfo) { gotQueuedStatus = info.Status }
	parked, _ := a.acks.take(5)
	a.acks.reserve(5, parked)
	parked.OnComplete = func(_ any, info ReturnInfo) { gotParkedStatus = info.Status }

	info, flags := dispatchTerminate(a, &Command{Kind: CommandTerminate})

	if info.Status != StatusSuccess || !flags.endLoop {
		t.Fatalf("info=%+v flags=%+v, want success+endLoop", info, flags)
	}
	if gotQueuedStatus != StatusBadResponse {
		t.Fatalf("queued command status = %v, want StatusBadResponse", gotQueuedStatus)
	}
	if gotParkedStatus != StatusBadResponse {
		t.Fatalf("parked command status = %v, want StatusBadResponse", gotParkedStatus)
	}
	if a.acks.occupied() != 0 {
		t.Fatal("Terminate must leave the ack table empty")
	}
}

func TestDispatchNoneAliasesProcessLoop(t *testing.T) {
	a := New(&fakeClient{}, newFakeMessageInterface(4))
	info, flags := dispatchNone(a, &Command{Kind: CommandNone})
	if info.Status != StatusSuccess {
		t.Fatalf("status = %v, want StatusSuccess", info.Status)
	}
	if !flags.runProcessLoop {
		t.Fatal("CommandNone must alias ProcessLoop so an idle wake still drives the network")
	}
}

var (
	errTestPublish = fmtError("publish failed")
	errTestConnect = fmtError("connection refused")
)

type fmtError string

func (e fmtError) Error() string { return string(e) }
