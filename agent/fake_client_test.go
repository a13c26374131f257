package agent

import (
	"time"

	"github.com/relaydog/mqttagent/mqttnet"
)

// fakeClient is a hand-written test double for agent.MQTTClient, in the
// style of gonzalop-mq's own helper_test.go fakes rather than a generated
// mock.
type fakeClient struct {
	connected      bool
	sessionPresent bool
	connectErr     error

	// bufferSize, if zero, defaults to a generous value so existing tests
	// that don't care about the publish buffer bound aren't affected.
	bufferSize int

	published   []fakePublish
	subscribed  [][]string
	pings       int
	disconnects int

	nextID uint16

	// events, if set, is drained one at a time by ProcessLoop.
	events []mqttnet.Event

	publishErr error
	subErr     error
	unsubErr   error
	pingErr    error
}

type fakePublish struct {
	topic    string
	payload  []byte
	qos      mqttnet.QoS
	dup      bool
	packetID uint16
}

func (f *fakeClient) Connect(server string, info mqttnet.ConnectInfo, ackTimeout time.Duration) (bool, error) {
	if f.connectErr != nil {
		return false, f.connectErr
	}
	f.connected = true
	if f.nextID == 0 {
		f.nextID = 1
	}
	return f.sessionPresent, nil
}

func (f *fakeClient) Publish(topic string, payload []byte, qos mqttnet.QoS, retain, dup bool, packetID uint16) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, fakePublish{topic: topic, payload: payload, qos: qos, dup: dup, packetID: packetID})
	return nil
}

func (f *fakeClient) Subscribe(topics []string, qos []mqttnet.QoS, packetID uint16) error {
	if f.subErr != nil {
		return f.subErr
	}
	f.subscribed = append(f.subscribed, topics)
	return nil
}

func (f *fakeClient) Unsubscribe(topics []string, packetID uint16) error {
	return f.unsubErr
}

func (f *fakeClient) Ping() error {
	if f.pingErr != nil {
		return f.pingErr
	}
	f.pings++
	return nil
}

func (f *fakeClient) Disconnect() error {
	f.disconnects++
	f.connected = false
	return nil
}

func (f *fakeClient) ProcessLoop(timeout time.Duration, cb mqttnet.EventCallback) (bool, error) {
	if len(f.events) == 0 {
		return false, nil
	}
	evt := f.events[0]
	f.events = f.events[1:]
	cb(evt)
	return true, nil
}

func (f *fakeClient) GetPacketID() uint16 {
	id := f.nextID
	f.nextID++
	if f.nextID == 0 {
		f.nextID = 1
	}
	return id
}

func (f *fakeClient) PublishToResend(cursor *mqttnet.StateCursor) (uint16, bool) {
	return 0, false
}

func (f *fakeClient) ResendPublish(packetID uint16) error {
	f.published = append(f.published, fakePublish{packetID: packetID, dup: true})
	return nil
}

func (f *fakeClient) Connected() bool { return f.connected }

func (f *fakeClient) NetworkBufferSize() int {
	if f.bufferSize == 0 {
		return 1024
	}
	return f.bufferSize
}
